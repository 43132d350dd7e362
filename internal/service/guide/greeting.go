package guide

import (
	"fmt"
	"strings"
	"time"
)

type greetingSet struct {
	morning   string
	afternoon string
	evening   string
	body      string
	seeker    string
}

var greetings = map[string]greetingSet{
	"en": {
		morning:   "Good morning",
		afternoon: "Good afternoon",
		evening:   "Good evening",
		body:      "%s, %s. I am here to walk with you on your spiritual journey. What is on your heart today?",
		seeker:    "dear seeker",
	},
	"hi": {
		morning:   "सुप्रभात",
		afternoon: "नमस्कार",
		evening:   "शुभ संध्या",
		body:      "%s, %s। मैं आपकी आध्यात्मिक यात्रा में आपके साथ चलने के लिए यहाँ हूँ। आज आपके मन में क्या है?",
		seeker:    "प्रिय साधक",
	},
	"es": {
		morning:   "Buenos días",
		afternoon: "Buenas tardes",
		evening:   "Buenas noches",
		body:      "%s, %s. Estoy aquí para acompañarte en tu camino espiritual. ¿Qué llevas hoy en el corazón?",
		seeker:    "querido buscador",
	},
	"fr": {
		morning:   "Bonjour",
		afternoon: "Bon après-midi",
		evening:   "Bonsoir",
		body:      "%s, %s. Je suis là pour vous accompagner sur votre chemin spirituel. Qu'avez-vous sur le cœur aujourd'hui ?",
		seeker:    "cher chercheur",
	},
}

// Greeting builds the opening assistant message for a new conversation,
// localized and adjusted to the time of day. Unknown languages fall back
// to English.
func Greeting(fullName, language string, now time.Time) string {
	set, ok := greetings[normalizeLanguage(language)]
	if !ok {
		set = greetings["en"]
	}

	salutation := set.afternoon
	switch hour := now.Hour(); {
	case hour < 12:
		salutation = set.morning
	case hour >= 17:
		salutation = set.evening
	}

	name := strings.TrimSpace(fullName)
	if name == "" {
		name = set.seeker
	}

	return fmt.Sprintf(set.body, salutation, name)
}

func normalizeLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if idx := strings.IndexAny(language, "-_"); idx > 0 {
		language = language[:idx]
	}
	return language
}
