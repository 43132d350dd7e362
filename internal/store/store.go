package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vanba/spiritchat/backend/internal/model/analytics"
	"github.com/vanba/spiritchat/backend/internal/model/chat"
	"github.com/vanba/spiritchat/backend/internal/model/knowledge"
	"github.com/vanba/spiritchat/backend/internal/model/profile"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("record not found")

// ProfileUpdates carries the mutable profile fields; nil means unchanged.
type ProfileUpdates struct {
	FullName          *string
	PreferredLanguage *string
}

// ProfileStore is the user_profiles repository. Get always preloads the
// embedded spiritual preferences so a refetch reflects them.
type ProfileStore interface {
	Get(ctx context.Context, id uuid.UUID) (*profile.UserProfile, error)
	GetByEmail(ctx context.Context, email string) (*profile.UserProfile, error)
	Create(ctx context.Context, p *profile.UserProfile) error
	Update(ctx context.Context, id uuid.UUID, updates ProfileUpdates) (*profile.UserProfile, error)
	UpsertPreferences(ctx context.Context, prefs *profile.SpiritualPreferences) error
	SetEmailVerified(ctx context.Context, id uuid.UUID, verified bool) error
}

// ConversationStore is the chat_conversations repository.
type ConversationStore interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.Conversation, error)
	Get(ctx context.Context, id uuid.UUID) (*chat.Conversation, error)
	Create(ctx context.Context, c *chat.Conversation) error
	Rename(ctx context.Context, id uuid.UUID, title string) error
	Delete(ctx context.Context, id uuid.UUID) error
	TouchUpdatedAt(ctx context.Context, id uuid.UUID) error
}

// MessageStore is the chat_messages repository. Messages are append-only.
type MessageStore interface {
	ListForConversation(ctx context.Context, conversationID uuid.UUID) ([]chat.Message, error)
	Append(ctx context.Context, m *chat.Message) error
}

// TokenStore persists hashed refresh and reset tokens.
type TokenStore interface {
	CreateRefresh(ctx context.Context, t *RefreshToken) error
	FindActiveRefresh(ctx context.Context, tokenHash string) (*RefreshToken, error)
	RevokeRefresh(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	CreateReset(ctx context.Context, t *PasswordResetToken) error
}

// KnowledgeStore serves the spiritual knowledge base.
type KnowledgeStore interface {
	Query(ctx context.Context, tradition profile.Tradition, emotion string, limit int) ([]knowledge.Entry, error)
	Search(ctx context.Context, term string, tradition profile.Tradition, language string, limit int) ([]knowledge.Entry, error)
}

// AnalyticsStore aggregates daily usage rows.
type AnalyticsStore interface {
	RecordMessage(ctx context.Context, userID uuid.UUID, emotion string, newConversation bool) error
	RecordConversation(ctx context.Context, userID uuid.UUID, emotion string) error
	ForUser(ctx context.Context, userID uuid.UUID, start, end *time.Time) ([]analytics.DailyUsage, error)
	AllUsers(ctx context.Context, start, end *time.Time, limit int) ([]analytics.DailyUsage, error)
}
