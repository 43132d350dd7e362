package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vanba/spiritchat/backend/internal/model/chat"
	"github.com/vanba/spiritchat/backend/internal/realtime"
	"github.com/vanba/spiritchat/backend/internal/store"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotOwner             = errors.New("conversation belongs to another user")
	ErrEmptyContent         = errors.New("message content is required")
)

// Service encapsulates conversation and message persistence. It is the
// single write path for chat rows: every append goes through it so the
// realtime fan-out, the parent conversation's updated_at bump and the
// usage counters cannot be skipped.
type Service struct {
	conversations store.ConversationStore
	messages      store.MessageStore
	analytics     store.AnalyticsStore
	hub           *realtime.Hub
}

// NewService wires the chat service over its stores and the realtime hub.
func NewService(conversations store.ConversationStore, messages store.MessageStore, usage store.AnalyticsStore, hub *realtime.Hub) *Service {
	return &Service{
		conversations: conversations,
		messages:      messages,
		analytics:     usage,
		hub:           hub,
	}
}

// ListConversations returns the user's conversations, most recently
// updated first.
func (s *Service) ListConversations(ctx context.Context, userID uuid.UUID) ([]chat.Conversation, error) {
	return s.conversations.ListForUser(ctx, userID)
}

// GetConversation loads one conversation and enforces ownership.
func (s *Service) GetConversation(ctx context.Context, id, userID uuid.UUID) (*chat.Conversation, error) {
	conv, err := s.conversations.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, ErrNotOwner
	}
	return conv, nil
}

// CreateConversation inserts a conversation owned by userID and records it
// against today's usage counters.
func (s *Service) CreateConversation(ctx context.Context, userID uuid.UUID, title, primaryEmotion, spiritualContext, language string) (*chat.Conversation, error) {
	now := time.Now().UTC()
	conv := &chat.Conversation{
		ID:               uuid.New(),
		UserID:           userID,
		Title:            title,
		PrimaryEmotion:   primaryEmotion,
		SpiritualContext: spiritualContext,
		Language:         language,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if conv.Title == "" {
		conv.Title = "New Conversation"
	}

	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}

	if err := s.analytics.RecordConversation(ctx, userID, primaryEmotion); err != nil {
		slog.Warn("failed to record conversation usage", "user_id", userID, "error", err)
	}
	return conv, nil
}

// RenameConversation updates the title after checking ownership.
func (s *Service) RenameConversation(ctx context.Context, id, userID uuid.UUID, title string) error {
	if _, err := s.GetConversation(ctx, id, userID); err != nil {
		return err
	}
	return s.conversations.Rename(ctx, id, title)
}

// DeleteConversation removes the conversation after checking ownership.
func (s *Service) DeleteConversation(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.GetConversation(ctx, id, userID); err != nil {
		return err
	}
	return s.conversations.Delete(ctx, id)
}

// ListMessages returns the transcript ascending by created_at.
func (s *Service) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]chat.Message, error) {
	return s.messages.ListForConversation(ctx, conversationID)
}

// AppendMessage inserts one turn, publishes it to realtime subscribers and
// bumps the parent conversation's updated_at. The bump and the usage
// counter are best-effort metadata: failures are logged, never surfaced
// and never retried.
func (s *Service) AppendMessage(ctx context.Context, userID uuid.UUID, msg *chat.Message) (*chat.Message, error) {
	if msg.Content == "" {
		return nil, ErrEmptyContent
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, err
	}

	s.hub.Publish(*msg)

	if err := s.conversations.TouchUpdatedAt(ctx, msg.ConversationID); err != nil {
		slog.Warn("failed to touch conversation timestamp",
			"conversation_id", msg.ConversationID, "error", err)
	}

	if msg.MessageType == chat.MessageUser {
		if err := s.analytics.RecordMessage(ctx, userID, msg.EmotionDetected, false); err != nil {
			slog.Warn("failed to record message usage", "user_id", userID, "error", err)
		}
	}
	return msg, nil
}

// Subscribe opens a realtime subscription for one conversation.
func (s *Service) Subscribe(conversationID uuid.UUID, fn func(chat.Message)) *realtime.Subscription {
	return s.hub.Subscribe(conversationID, fn)
}
