package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vanba/spiritchat/backend/internal/model/profile"
)

// Profiles implements ProfileStore over PostgreSQL.
type Profiles struct {
	db *gorm.DB
}

func (s *Profiles) Get(ctx context.Context, id uuid.UUID) (*profile.UserProfile, error) {
	var p profile.UserProfile
	err := s.db.WithContext(ctx).
		Preload("SpiritualPreferences").
		First(&p, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &p, nil
}

func (s *Profiles) GetByEmail(ctx context.Context, email string) (*profile.UserProfile, error) {
	var p profile.UserProfile
	err := s.db.WithContext(ctx).
		Preload("SpiritualPreferences").
		First(&p, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load profile by email: %w", err)
	}
	return &p, nil
}

func (s *Profiles) Create(ctx context.Context, p *profile.UserProfile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *Profiles) Update(ctx context.Context, id uuid.UUID, updates ProfileUpdates) (*profile.UserProfile, error) {
	fields := map[string]interface{}{}
	if updates.FullName != nil {
		fields["full_name"] = *updates.FullName
	}
	if updates.PreferredLanguage != nil {
		fields["preferred_language"] = *updates.PreferredLanguage
	}

	if len(fields) > 0 {
		res := s.db.WithContext(ctx).
			Model(&profile.UserProfile{}).
			Where("id = ?", id).
			Updates(fields)
		if res.Error != nil {
			return nil, fmt.Errorf("update profile: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}

	return s.Get(ctx, id)
}

// UpsertPreferences replaces the whole preferences row keyed by user id;
// there is no partial merge by design.
func (s *Profiles) UpsertPreferences(ctx context.Context, prefs *profile.SpiritualPreferences) error {
	prefs.UpdatedAt = time.Now().UTC()
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(prefs).Error
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

func (s *Profiles) SetEmailVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	res := s.db.WithContext(ctx).
		Model(&profile.UserProfile{}).
		Where("id = ?", id).
		Update("email_verified", verified)
	if res.Error != nil {
		return fmt.Errorf("set email verified: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
