package knowledge

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/vanba/spiritchat/backend/internal/model/profile"
)

// Entry is one piece of the spiritual knowledge base: a passage the
// assistant can offer, tagged by tradition, emotions it speaks to, and
// free-form context tags used for search.
type Entry struct {
	ID                 uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Tradition          profile.Tradition           `gorm:"size:32;not null;index" json:"tradition"`
	TranslationText    string                      `gorm:"type:text;not null" json:"translation_text"`
	ScriptureReference string                      `gorm:"size:255" json:"scripture_reference"`
	ContextTags        datatypes.JSONSlice[string] `json:"context_tags"`
	EmotionRelevance   datatypes.JSONSlice[string] `json:"emotion_relevance"`
	Language           string                      `gorm:"size:10;default:'en'" json:"language"`
	IsActive           bool                        `gorm:"default:true" json:"is_active"`
	CreatedAt          time.Time                   `json:"created_at"`
}

// TableName keeps the collection name the frontend already queries.
func (Entry) TableName() string { return "spiritual_knowledge_base" }

// SpeaksTo reports whether the entry is tagged as relevant to the emotion.
func (e Entry) SpeaksTo(emotion string) bool {
	for _, tagged := range e.EmotionRelevance {
		if tagged == emotion {
			return true
		}
	}
	return false
}

// Seed provides the default knowledge base loaded at migration time.
func Seed() []Entry {
	return []Entry{
		{
			ID:                 uuid.MustParse("2f1c4b7e-0000-4000-8000-000000000001"),
			Tradition:          profile.TraditionHinduism,
			TranslationText:    "You have a right to perform your prescribed duty, but you are not entitled to the fruits of action. Never consider yourself the cause of the results of your activities, and never be attached to not doing your duty.",
			ScriptureReference: "Bhagavad Gita 2:47",
			ContextTags:        datatypes.NewJSONSlice([]string{"duty", "detachment", "work"}),
			EmotionRelevance:   datatypes.NewJSONSlice([]string{"anxiety", "seeking", "hope"}),
			Language:           "en",
			IsActive:           true,
		},
		{
			ID:                 uuid.MustParse("2f1c4b7e-0000-4000-8000-000000000002"),
			Tradition:          profile.TraditionIslam,
			TranslationText:    "Allah does not burden a soul beyond that it can bear.",
			ScriptureReference: "Quran 2:286",
			ContextTags:        datatypes.NewJSONSlice([]string{"endurance", "trust", "hardship"}),
			EmotionRelevance:   datatypes.NewJSONSlice([]string{"anxiety", "grief", "hope"}),
			Language:           "en",
			IsActive:           true,
		},
		{
			ID:                 uuid.MustParse("2f1c4b7e-0000-4000-8000-000000000003"),
			Tradition:          profile.TraditionChristianity,
			TranslationText:    "Come to me, all you who are weary and burdened, and I will give you rest.",
			ScriptureReference: "Bible - Matthew 11:28",
			ContextTags:        datatypes.NewJSONSlice([]string{"rest", "comfort", "burden"}),
			EmotionRelevance:   datatypes.NewJSONSlice([]string{"grief", "anxiety", "peace"}),
			Language:           "en",
			IsActive:           true,
		},
		{
			ID:                 uuid.MustParse("2f1c4b7e-0000-4000-8000-000000000004"),
			Tradition:          profile.TraditionBuddhism,
			TranslationText:    "Peace comes from within. Do not seek it without.",
			ScriptureReference: "Dhammapada",
			ContextTags:        datatypes.NewJSONSlice([]string{"stillness", "meditation", "inner peace"}),
			EmotionRelevance:   datatypes.NewJSONSlice([]string{"peace", "anxiety", "seeking"}),
			Language:           "en",
			IsActive:           true,
		},
		{
			ID:                 uuid.MustParse("2f1c4b7e-0000-4000-8000-000000000005"),
			Tradition:          profile.TraditionJudaism,
			TranslationText:    "Even though I walk through the valley of the shadow of death, I will fear no evil, for you are with me.",
			ScriptureReference: "Psalm 23:4",
			ContextTags:        datatypes.NewJSONSlice([]string{"courage", "protection", "loss"}),
			EmotionRelevance:   datatypes.NewJSONSlice([]string{"grief", "anxiety"}),
			Language:           "en",
			IsActive:           true,
		},
		{
			ID:                 uuid.MustParse("2f1c4b7e-0000-4000-8000-000000000006"),
			Tradition:          profile.TraditionSikhism,
			TranslationText:    "Why do you worry so much, when God himself takes care of you?",
			ScriptureReference: "Guru Granth Sahib, Ang 724",
			ContextTags:        datatypes.NewJSONSlice([]string{"worry", "providence", "trust"}),
			EmotionRelevance:   datatypes.NewJSONSlice([]string{"anxiety", "hope"}),
			Language:           "en",
			IsActive:           true,
		},
		{
			ID:                 uuid.MustParse("2f1c4b7e-0000-4000-8000-000000000007"),
			Tradition:          profile.TraditionJainism,
			TranslationText:    "Have compassion towards all living beings. Hatred leads to destruction.",
			ScriptureReference: "Mahavira, Sutrakritanga",
			ContextTags:        datatypes.NewJSONSlice([]string{"compassion", "non-violence"}),
			EmotionRelevance:   datatypes.NewJSONSlice([]string{"anger", "peace"}),
			Language:           "en",
			IsActive:           true,
		},
		{
			ID:                 uuid.MustParse("2f1c4b7e-0000-4000-8000-000000000008"),
			Tradition:          profile.TraditionUniversal,
			TranslationText:    "Every challenge is an opportunity for spiritual growth. The divine plan unfolds in perfect timing, even when we cannot see the path clearly.",
			ScriptureReference: "Universal wisdom",
			ContextTags:        datatypes.NewJSONSlice([]string{"growth", "trust", "patience"}),
			EmotionRelevance:   datatypes.NewJSONSlice([]string{"hope", "seeking", "anxiety"}),
			Language:           "en",
			IsActive:           true,
		},
		{
			ID:                 uuid.MustParse("2f1c4b7e-0000-4000-8000-000000000009"),
			Tradition:          profile.TraditionUniversal,
			TranslationText:    "In moments of uncertainty, turn inward and connect with your inner wisdom. The answers you seek already reside within your heart.",
			ScriptureReference: "Universal wisdom",
			ContextTags:        datatypes.NewJSONSlice([]string{"introspection", "uncertainty"}),
			EmotionRelevance:   datatypes.NewJSONSlice([]string{"seeking", "anxiety", "peace"}),
			Language:           "en",
			IsActive:           true,
		},
		{
			ID:                 uuid.MustParse("2f1c4b7e-0000-4000-8000-00000000000a"),
			Tradition:          profile.TraditionUniversal,
			TranslationText:    "When the storms of life feel overwhelming, remember that you are held and supported by infinite love. Breathe deeply and trust in the process.",
			ScriptureReference: "Universal wisdom",
			ContextTags:        datatypes.NewJSONSlice([]string{"overwhelm", "breath", "trust"}),
			EmotionRelevance:   datatypes.NewJSONSlice([]string{"grief", "anxiety", "peace"}),
			Language:           "en",
			IsActive:           true,
		},
	}
}
