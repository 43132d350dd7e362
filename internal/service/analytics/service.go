package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vanba/spiritchat/backend/internal/model/analytics"
	"github.com/vanba/spiritchat/backend/internal/store"
)

// Service answers usage queries over the daily aggregates.
type Service struct {
	usage store.AnalyticsStore
}

func NewService(usage store.AnalyticsStore) *Service {
	return &Service{usage: usage}
}

// ForUser returns one user's daily rows, newest first.
func (s *Service) ForUser(ctx context.Context, userID uuid.UUID, start, end *time.Time) ([]analytics.DailyUsage, error) {
	return s.usage.ForUser(ctx, userID, start, end)
}

// AllUsers returns recent rows across every user, for the admin view.
func (s *Service) AllUsers(ctx context.Context, start, end *time.Time, limit int) ([]analytics.DailyUsage, error) {
	return s.usage.AllUsers(ctx, start, end, limit)
}

// EmotionTrends folds the per-user rows into one chart point per day,
// counting how often each emotion surfaced, oldest day first.
func (s *Service) EmotionTrends(ctx context.Context, start, end *time.Time) ([]analytics.EmotionTrend, error) {
	rows, err := s.usage.AllUsers(ctx, start, end, 1000)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]map[string]int)
	for _, row := range rows {
		day := row.SessionDate.Format("2006-01-02")
		counts, ok := byDay[day]
		if !ok {
			counts = make(map[string]int)
			byDay[day] = counts
		}
		for _, e := range row.PrimaryEmotions {
			counts[e]++
		}
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	trends := make([]analytics.EmotionTrend, 0, len(days))
	for _, day := range days {
		trends = append(trends, analytics.EmotionTrend{Date: day, Counts: byDay[day]})
	}
	return trends, nil
}
