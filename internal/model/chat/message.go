package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType distinguishes who authored a turn.
type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
	MessageSystem    MessageType = "system"
)

// ParseMessageType validates a wire-level message type.
func ParseMessageType(raw string) (MessageType, error) {
	switch MessageType(raw) {
	case MessageUser, MessageAssistant, MessageSystem:
		return MessageType(raw), nil
	}
	return "", fmt.Errorf("unknown message type %q", raw)
}

var (
	errMessageNoID           = errors.New("message missing id")
	errMessageNoConversation = errors.New("message missing conversation id")
	errMessageNoContent      = errors.New("message missing content")
)

// Message is one immutable turn in a conversation. Rows are append-only
// and ordered by CreatedAt ascending.
type Message struct {
	ID                 uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID     uuid.UUID   `gorm:"type:uuid;not null;index" json:"conversation_id"`
	MessageType        MessageType `gorm:"size:16;not null" json:"message_type"`
	Content            string      `gorm:"type:text;not null" json:"content"`
	ScriptureReference string      `gorm:"size:255" json:"scripture_reference,omitempty"`
	EmotionDetected    string      `gorm:"size:32" json:"emotion_detected,omitempty"`
	Language           string      `gorm:"size:10;default:'en'" json:"language"`
	CreatedAt          time.Time   `json:"created_at"`
}

// TableName keeps the collection name the frontend already queries.
func (Message) TableName() string { return "chat_messages" }

// Validate rejects rows that do not match the expected shape. Applied at
// every boundary that receives a message from outside the process instead
// of trusting the payload implicitly.
func (m Message) Validate() error {
	if m.ID == uuid.Nil {
		return errMessageNoID
	}
	if m.ConversationID == uuid.Nil {
		return errMessageNoConversation
	}
	if _, err := ParseMessageType(string(m.MessageType)); err != nil {
		return err
	}
	if m.Content == "" {
		return errMessageNoContent
	}
	return nil
}
