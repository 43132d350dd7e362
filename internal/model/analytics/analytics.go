package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DailyUsage aggregates one seeker's activity for a calendar day. Rows are
// upserted best-effort on every message send; losing one is acceptable.
type DailyUsage struct {
	ID              uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex:idx_usage_user_date" json:"user_id"`
	SessionDate     time.Time                   `gorm:"type:date;not null;uniqueIndex:idx_usage_user_date" json:"session_date"`
	Conversations   int                         `json:"conversations"`
	MessagesSent    int                         `json:"messages_sent"`
	PrimaryEmotions datatypes.JSONSlice[string] `json:"primary_emotions"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

// TableName keeps the collection name the frontend already queries.
func (DailyUsage) TableName() string { return "user_analytics" }

// EmotionTrend is one point of the admin emotion-trend chart: how often
// each emotion surfaced on a given day across all users.
type EmotionTrend struct {
	Date   string         `json:"date"`
	Counts map[string]int `json:"counts"`
}
