package handler

import (
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vanba/spiritchat/backend/internal/config"
	analyticsHandler "github.com/vanba/spiritchat/backend/internal/handler/analytics"
	authHandler "github.com/vanba/spiritchat/backend/internal/handler/auth"
	conversationHandler "github.com/vanba/spiritchat/backend/internal/handler/conversation"
	knowledgeHandler "github.com/vanba/spiritchat/backend/internal/handler/knowledge"
	profileHandler "github.com/vanba/spiritchat/backend/internal/handler/profile"
	streamHandler "github.com/vanba/spiritchat/backend/internal/handler/stream"
	wsHandler "github.com/vanba/spiritchat/backend/internal/handler/ws"
	"github.com/vanba/spiritchat/backend/internal/middleware"
	analyticsService "github.com/vanba/spiritchat/backend/internal/service/analytics"
	authService "github.com/vanba/spiritchat/backend/internal/service/auth"
	chatService "github.com/vanba/spiritchat/backend/internal/service/chat"
	"github.com/vanba/spiritchat/backend/internal/service/guide"
	sessionService "github.com/vanba/spiritchat/backend/internal/service/session"
	"github.com/vanba/spiritchat/backend/internal/store"
	"github.com/vanba/spiritchat/backend/pkg/utils"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config       *config.Config
	Provider     *authService.Provider
	Store        *store.Store
	ChatSvc      *chatService.Service
	GuideSvc     *guide.Service
	AnalyticsSvc *analyticsService.Service
	Hints        *sessionService.HintCache
	SentryActive bool
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(deps.Config.Server))
	if deps.SentryActive {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}

	requireAuth := middleware.RequireAuth(deps.Provider)
	adminOnly := middleware.AdminRequired(deps.Store.Profiles, deps.Config.Auth)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.Store.Ping(req.Context()); err != nil {
			utils.RespondError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		authHandler.New(deps.Provider).RegisterRoutes(api)

		api.Group(func(private chi.Router) {
			private.Use(requireAuth)

			profileHandler.New(deps.Store.Profiles).RegisterRoutes(private)
			conversationHandler.New(deps.ChatSvc).RegisterRoutes(private)
			knowledgeHandler.New(deps.Store.Knowledge).RegisterRoutes(private)
			streamHandler.New(deps.ChatSvc).RegisterRoutes(private)
			wsHandler.New(deps.ChatSvc, deps.GuideSvc, deps.Provider, deps.Store.Profiles, deps.Hints, deps.Config.Chat.ReplyDelay).RegisterRoutes(private)

			analytics := analyticsHandler.New(deps.AnalyticsSvc)
			analytics.RegisterUserRoutes(private)

			private.Group(func(admin chi.Router) {
				admin.Use(adminOnly)
				analytics.RegisterAdminRoutes(admin)
			})
		})
	})

	return r
}
