package chat

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a named guidance thread owned by exactly one seeker.
// UpdatedAt is bumped on every appended message so listings stay sorted
// by recency.
type Conversation struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Title            string    `gorm:"size:255;not null" json:"title"`
	PrimaryEmotion   string    `gorm:"size:32;default:'hope'" json:"primary_emotion"`
	SpiritualContext string    `gorm:"size:32;default:'universal'" json:"spiritual_context"`
	Language         string    `gorm:"size:10;default:'en'" json:"language"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName keeps the collection name the frontend already queries.
func (Conversation) TableName() string { return "chat_conversations" }
