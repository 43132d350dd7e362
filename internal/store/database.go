package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/vanba/spiritchat/backend/internal/config"
	"github.com/vanba/spiritchat/backend/internal/model/analytics"
	"github.com/vanba/spiritchat/backend/internal/model/chat"
	"github.com/vanba/spiritchat/backend/internal/model/knowledge"
	"github.com/vanba/spiritchat/backend/internal/model/profile"
)

// Store bundles every repository over one database handle.
type Store struct {
	db *gorm.DB

	Profiles      *Profiles
	Conversations *Conversations
	Messages      *Messages
	Tokens        *Tokens
	Knowledge     *Knowledge
	Analytics     *Analytics
}

// Connect opens the database and wires the repositories.
func Connect(cfg config.DatabaseConfig) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	slog.Info("database connected", "host", cfg.Host, "name", cfg.Name)
	return New(db), nil
}

// New wires the repositories over an already-open handle.
func New(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Profiles:      &Profiles{db: db},
		Conversations: &Conversations{db: db},
		Messages:      &Messages{db: db},
		Tokens:        &Tokens{db: db},
		Knowledge:     &Knowledge{db: db},
		Analytics:     &Analytics{db: db},
	}
}

// Migrate runs AutoMigrate for all models and seeds the knowledge base.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(
		&profile.UserProfile{},
		&profile.SpiritualPreferences{},
		&chat.Conversation{},
		&chat.Message{},
		&RefreshToken{},
		&PasswordResetToken{},
		&knowledge.Entry{},
		&analytics.DailyUsage{},
	); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return s.seedKnowledge()
}

// seedKnowledge inserts the default knowledge entries, skipping rows that
// already exist so repeated startups stay idempotent.
func (s *Store) seedKnowledge() error {
	entries := knowledge.Seed()
	if len(entries) == 0 {
		return nil
	}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entries).Error
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
