package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vanba/spiritchat/backend/internal/model/chat"
)

// Messages implements MessageStore over PostgreSQL.
type Messages struct {
	db *gorm.DB
}

func (s *Messages) ListForConversation(ctx context.Context, conversationID uuid.UUID) ([]chat.Message, error) {
	var out []chat.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

func (s *Messages) Append(ctx context.Context, m *chat.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if _, err := chat.ParseMessageType(string(m.MessageType)); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}
