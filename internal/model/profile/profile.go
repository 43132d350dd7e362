package profile

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Tradition identifies a wisdom tradition a seeker can draw guidance from.
type Tradition string

const (
	TraditionHinduism     Tradition = "hinduism"
	TraditionIslam        Tradition = "islam"
	TraditionChristianity Tradition = "christianity"
	TraditionBuddhism     Tradition = "buddhism"
	TraditionSikhism      Tradition = "sikhism"
	TraditionJainism      Tradition = "jainism"
	TraditionJudaism      Tradition = "judaism"
	TraditionUniversal    Tradition = "universal"
	TraditionAll          Tradition = "all_traditions"
)

// Traditions lists every recognized tradition value.
func Traditions() []Tradition {
	return []Tradition{
		TraditionHinduism, TraditionIslam, TraditionChristianity,
		TraditionBuddhism, TraditionSikhism, TraditionJainism,
		TraditionJudaism, TraditionUniversal, TraditionAll,
	}
}

// ValidTradition reports whether t is a recognized tradition value.
func ValidTradition(t Tradition) bool {
	for _, known := range Traditions() {
		if t == known {
			return true
		}
	}
	return false
}

// GuidanceFrequency expresses how often a seeker wants to be guided.
type GuidanceFrequency string

const (
	FrequencyDaily    GuidanceFrequency = "daily"
	FrequencyWeekly   GuidanceFrequency = "weekly"
	FrequencyAsNeeded GuidanceFrequency = "as_needed"
	FrequencyRarely   GuidanceFrequency = "rarely"
)

// ValidFrequency reports whether f is a recognized frequency value.
func ValidFrequency(f GuidanceFrequency) bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyAsNeeded, FrequencyRarely:
		return true
	}
	return false
}

// UserProfile is the account row. It backs both authentication and the
// profile surface; credential fields never serialize.
type UserProfile struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FullName          string    `gorm:"size:255" json:"full_name"`
	Email             string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash      string    `gorm:"not null" json:"-"`
	Role              string    `gorm:"size:20;default:'user'" json:"role"`
	PreferredLanguage string    `gorm:"size:10;default:'en'" json:"preferred_language"`
	EmailVerified     bool      `gorm:"default:false" json:"-"`
	AuthProvider      string    `gorm:"size:50;default:'email'" json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	SpiritualPreferences *SpiritualPreferences `gorm:"foreignKey:UserID" json:"spiritual_preferences,omitempty"`
}

// TableName keeps the collection name the frontend already queries.
func (UserProfile) TableName() string { return "user_profiles" }

// PrimaryTradition picks the tradition new conversations default to.
func (p *UserProfile) PrimaryTradition() Tradition {
	if p == nil || p.SpiritualPreferences == nil {
		return TraditionUniversal
	}
	if prefs := p.SpiritualPreferences.PreferredTraditions; len(prefs) > 0 {
		return prefs[0]
	}
	return TraditionUniversal
}

// SpiritualPreferences is one-to-one with UserProfile and is upserted as a
// whole row keyed by user id; there is no partial field merge.
type SpiritualPreferences struct {
	UserID              uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"user_id"`
	PreferredTraditions datatypes.JSONSlice[Tradition] `json:"preferred_traditions"`
	MeditationPractice  bool                           `json:"meditation_practice"`
	PrayerPractice      bool                           `json:"prayer_practice"`
	StudyPractice       bool                           `json:"study_practice"`
	GuidanceFrequency   GuidanceFrequency              `gorm:"size:20;default:'as_needed'" json:"guidance_frequency"`
	UpdatedAt           time.Time                      `json:"updated_at"`
}

// TableName keeps the collection name the frontend already queries.
func (SpiritualPreferences) TableName() string { return "spiritual_preferences" }
