package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/vanba/spiritchat/backend/internal/config"
	"github.com/vanba/spiritchat/backend/internal/handler"
	"github.com/vanba/spiritchat/backend/internal/logging"
	"github.com/vanba/spiritchat/backend/internal/realtime"
	analyticsService "github.com/vanba/spiritchat/backend/internal/service/analytics"
	authService "github.com/vanba/spiritchat/backend/internal/service/auth"
	chatService "github.com/vanba/spiritchat/backend/internal/service/chat"
	"github.com/vanba/spiritchat/backend/internal/service/guide"
	sessionService "github.com/vanba/spiritchat/backend/internal/service/session"
	"github.com/vanba/spiritchat/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Setup()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	sentryActive := false
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			sentryActive = true
			defer sentry.Flush(2 * time.Second)
		}
	}

	db, err := store.Connect(cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	provider := authService.NewProvider(db.Profiles, db.Tokens, cfg.Auth)
	hub := realtime.NewHub()
	chatSvc := chatService.NewService(db.Conversations, db.Messages, db.Analytics, hub)

	guideSvc, err := guide.NewService(ctx, db.Knowledge, cfg.AI)
	if err != nil {
		slog.Warn("model-backed guidance unavailable, using knowledge base only", "error", err)
		guideSvc, _ = guide.NewService(ctx, db.Knowledge, config.AIConfig{})
	}
	if guideSvc.ModelBacked() {
		slog.Info("guidance service initialized with chat model")
	} else {
		slog.Info("guidance service running offline from the knowledge base")
	}

	router := handler.NewRouter(handler.Deps{
		Config:       cfg,
		Provider:     provider,
		Store:        db,
		ChatSvc:      chatSvc,
		GuideSvc:     guideSvc,
		AnalyticsSvc: analyticsService.NewService(db.Analytics),
		Hints:        sessionService.NewHintCache(cfg.Chat.HintsPath),
		SentryActive: sentryActive,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("spiritchat backend listening", "addr", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
