package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/vanba/spiritchat/backend/internal/model/knowledge"
	"github.com/vanba/spiritchat/backend/internal/model/profile"
)

// Knowledge implements KnowledgeStore over PostgreSQL.
type Knowledge struct {
	db *gorm.DB
}

// Query returns active entries for a tradition, optionally narrowed to
// ones relevant to an emotion. TraditionAll matches everything.
func (s *Knowledge) Query(ctx context.Context, tradition profile.Tradition, emotion string, limit int) ([]knowledge.Entry, error) {
	q := s.db.WithContext(ctx).Where("is_active = true")

	if tradition != "" && tradition != profile.TraditionAll {
		q = q.Where("tradition = ?", tradition)
	}
	if emotion != "" {
		q = q.Where("emotion_relevance::jsonb @> ?", fmt.Sprintf("[%q]", emotion))
	}
	if limit <= 0 {
		limit = 10
	}

	var out []knowledge.Entry
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query knowledge: %w", err)
	}
	return out, nil
}

// Search matches the translation text or context tags against a term.
func (s *Knowledge) Search(ctx context.Context, term string, tradition profile.Tradition, language string, limit int) ([]knowledge.Entry, error) {
	q := s.db.WithContext(ctx).Where("is_active = true")

	if language != "" {
		q = q.Where("language = ?", language)
	}
	if tradition != "" && tradition != profile.TraditionAll {
		q = q.Where("tradition = ?", tradition)
	}
	if term != "" {
		like := "%" + term + "%"
		q = q.Where("translation_text ILIKE ? OR context_tags::text ILIKE ?", like, like)
	}
	if limit <= 0 {
		limit = 20
	}

	var out []knowledge.Entry
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}
	return out, nil
}
