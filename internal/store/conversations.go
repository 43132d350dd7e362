package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vanba/spiritchat/backend/internal/model/chat"
)

// Conversations implements ConversationStore over PostgreSQL.
type Conversations struct {
	db *gorm.DB
}

func (s *Conversations) ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.Conversation, error) {
	var out []chat.Conversation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

func (s *Conversations) Get(ctx context.Context, id uuid.UUID) (*chat.Conversation, error) {
	var c chat.Conversation
	err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return &c, nil
}

func (s *Conversations) Create(ctx context.Context, c *chat.Conversation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (s *Conversations) Rename(ctx context.Context, id uuid.UUID, title string) error {
	res := s.db.WithContext(ctx).
		Model(&chat.Conversation{}).
		Where("id = ?", id).
		Update("title", title)
	if res.Error != nil {
		return fmt.Errorf("rename conversation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Conversations) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&chat.Message{}).Error; err != nil {
			return fmt.Errorf("delete conversation messages: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&chat.Conversation{})
		if res.Error != nil {
			return fmt.Errorf("delete conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *Conversations) TouchUpdatedAt(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).
		Model(&chat.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}
