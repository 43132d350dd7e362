package emotion

import "strings"

// Label is an emotion the guidance engine understands.
type Label string

const (
	Hope      Label = "hope"
	Gratitude Label = "gratitude"
	Grief     Label = "grief"
	Anxiety   Label = "anxiety"
	Anger     Label = "anger"
	Peace     Label = "peace"
	Seeking   Label = "seeking"
)

// Decision carries the detected emotion and its keyword score.
type Decision struct {
	Emotion Label
	Score   int
}

var keywordBuckets = map[Label][]string{
	Hope: {
		"hope", "hopeful", "better", "faith", "believe", "light", "blessing", "optimis",
		"looking forward", "new beginning", "आशा", "उम्मीद", "विश्वास",
	},
	Gratitude: {
		"thank", "grateful", "gratitude", "blessed", "appreciate", "thankful",
		"धन्यवाद", "आभार", "कृतज्ञ",
	},
	Grief: {
		"grief", "loss", "lost", "died", "death", "mourning", "miss them", "heartbroken",
		"sad", "sorrow", "cry", "crying", "alone", "lonely", "depress",
		"दुख", "शोक", "अकेला", "उदास",
	},
	Anxiety: {
		"anxious", "anxiety", "worried", "worry", "afraid", "fear", "scared", "stress",
		"overwhelm", "panic", "nervous", "can't sleep", "restless", "uncertain",
		"चिंता", "डर", "घबराहट", "तनाव",
	},
	Anger: {
		"angry", "anger", "furious", "rage", "resent", "unfair", "betrayed", "hate",
		"frustrated", "fed up", "गुस्सा", "क्रोध", "नाराज",
	},
	Peace: {
		"peace", "calm", "still", "quiet", "serene", "content", "meditat", "breathe",
		"centered", "शांति", "शांत", "ध्यान",
	},
	Seeking: {
		"why", "meaning", "purpose", "guidance", "guide me", "what should i", "confused",
		"direction", "seeking", "searching", "help me understand", "path",
		"मार्गदर्शन", "उद्देश्य", "रास्ता",
	},
}

// punctuation carries feeling too; repeated question marks read as seeking,
// exclamations as intensity.
const questionBoost = 2

// Detect infers the dominant emotion of a user utterance. The empty or
// unmatched case defaults to Hope, which is also the default primary
// emotion of a fresh conversation.
func Detect(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Emotion: Hope, Score: 0}
	}

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if word == "" {
				continue
			}
			if strings.Contains(normalized, strings.ToLower(word)) {
				scores[label] += 3
			}
		}
	}

	if questions := strings.Count(text, "?"); questions > 1 {
		scores[Seeking] += questions * questionBoost
	}

	// Fixed tie-break order keeps detection deterministic.
	order := []Label{Grief, Anxiety, Anger, Seeking, Gratitude, Peace, Hope}
	best := Hope
	bestScore := 0
	for _, label := range order {
		if s := scores[label]; s > bestScore {
			bestScore = s
			best = label
		}
	}

	return Decision{Emotion: best, Score: bestScore}
}
