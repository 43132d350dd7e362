package analytics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vanba/spiritchat/backend/internal/middleware"
	analyticsService "github.com/vanba/spiritchat/backend/internal/service/analytics"
	"github.com/vanba/spiritchat/backend/pkg/utils"
)

// Handler serves usage analytics. The per-user route belongs to the
// signed-in user; the aggregate routes sit behind the admin gate.
type Handler struct {
	svc *analyticsService.Service
}

// New creates the analytics handler.
func New(svc *analyticsService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterUserRoutes mounts the routes every signed-in user may call.
func (h *Handler) RegisterUserRoutes(r chi.Router) {
	r.Get("/analytics/me", h.handleMe)
}

// RegisterAdminRoutes mounts the aggregate routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/analytics/users", h.handleAllUsers)
	r.Get("/analytics/emotions", h.handleEmotionTrends)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	start, end, err := dateRange(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.svc.ForUser(r.Context(), claims.UserID, start, end)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "could not load analytics")
		return
	}
	utils.RespondJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleAllUsers(w http.ResponseWriter, r *http.Request) {
	start, end, err := dateRange(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	rows, err := h.svc.AllUsers(r.Context(), start, end, limit)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "could not load analytics")
		return
	}
	utils.RespondJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleEmotionTrends(w http.ResponseWriter, r *http.Request) {
	start, end, err := dateRange(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	trends, err := h.svc.EmotionTrends(r.Context(), start, end)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "could not load emotion trends")
		return
	}
	utils.RespondJSON(w, http.StatusOK, trends)
}

func dateRange(r *http.Request) (*time.Time, *time.Time, error) {
	parse := func(key string) (*time.Time, error) {
		raw := r.URL.Query().Get(key)
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}

	start, err := parse("start")
	if err != nil {
		return nil, nil, err
	}
	end, err := parse("end")
	if err != nil {
		return nil, nil, err
	}
	return start, end, nil
}
