package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vanba/spiritchat/backend/internal/model/analytics"
)

// Analytics implements AnalyticsStore over PostgreSQL.
type Analytics struct {
	db *gorm.DB
}

// RecordMessage bumps today's usage row for the user. Callers treat this
// as best-effort; a failed bump is logged upstream, never surfaced.
func (s *Analytics) RecordMessage(ctx context.Context, userID uuid.UUID, emotion string, newConversation bool) error {
	return s.bump(ctx, userID, emotion, 1, boolToInt(newConversation))
}

// RecordConversation counts a newly created conversation without counting
// a message.
func (s *Analytics) RecordConversation(ctx context.Context, userID uuid.UUID, emotion string) error {
	return s.bump(ctx, userID, emotion, 0, 1)
}

func (s *Analytics) bump(ctx context.Context, userID uuid.UUID, emotion string, messages, conversations int) error {
	today := time.Now().UTC().Truncate(24 * time.Hour)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row analytics.DailyUsage
		err := tx.First(&row, "user_id = ? AND session_date = ?", userID, today).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = analytics.DailyUsage{
				ID:          uuid.New(),
				UserID:      userID,
				SessionDate: today,
			}
		case err != nil:
			return fmt.Errorf("load usage row: %w", err)
		}

		row.MessagesSent += messages
		row.Conversations += conversations
		if emotion != "" && !containsString(row.PrimaryEmotions, emotion) {
			row.PrimaryEmotions = append(row.PrimaryEmotions, emotion)
		}
		if row.PrimaryEmotions == nil {
			row.PrimaryEmotions = datatypes.NewJSONSlice([]string{})
		}
		row.UpdatedAt = time.Now().UTC()

		return tx.Save(&row).Error
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *Analytics) ForUser(ctx context.Context, userID uuid.UUID, start, end *time.Time) ([]analytics.DailyUsage, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	q = applyDateRange(q, start, end)

	var out []analytics.DailyUsage
	if err := q.Order("session_date DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("user analytics: %w", err)
	}
	return out, nil
}

func (s *Analytics) AllUsers(ctx context.Context, start, end *time.Time, limit int) ([]analytics.DailyUsage, error) {
	if limit <= 0 {
		limit = 100
	}
	q := applyDateRange(s.db.WithContext(ctx), start, end)

	var out []analytics.DailyUsage
	if err := q.Order("session_date DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("all-users analytics: %w", err)
	}
	return out, nil
}

func applyDateRange(q *gorm.DB, start, end *time.Time) *gorm.DB {
	if start != nil {
		q = q.Where("session_date >= ?", *start)
	}
	if end != nil {
		q = q.Where("session_date <= ?", *end)
	}
	return q
}

func containsString(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
