package knowledge

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	profileModel "github.com/vanba/spiritchat/backend/internal/model/profile"
	"github.com/vanba/spiritchat/backend/internal/store"
	"github.com/vanba/spiritchat/backend/pkg/utils"
)

// Handler serves the spiritual knowledge base read endpoints.
type Handler struct {
	knowledge store.KnowledgeStore
}

// New creates the knowledge handler.
func New(knowledgeStore store.KnowledgeStore) *Handler {
	return &Handler{knowledge: knowledgeStore}
}

// RegisterRoutes mounts the knowledge routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/knowledge", h.handleQuery)
	r.Get("/knowledge/search", h.handleSearch)
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	tradition := profileModel.Tradition(r.URL.Query().Get("tradition"))
	if tradition != "" && !profileModel.ValidTradition(tradition) {
		utils.RespondError(w, http.StatusBadRequest, "unknown tradition "+string(tradition))
		return
	}

	entries, err := h.knowledge.Query(r.Context(), tradition, r.URL.Query().Get("emotion"), limitParam(r, 20))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "could not query knowledge base")
		return
	}
	utils.RespondJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		utils.RespondError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}

	tradition := profileModel.Tradition(r.URL.Query().Get("tradition"))
	if tradition != "" && !profileModel.ValidTradition(tradition) {
		utils.RespondError(w, http.StatusBadRequest, "unknown tradition "+string(tradition))
		return
	}

	entries, err := h.knowledge.Search(r.Context(), term, tradition, r.URL.Query().Get("language"), limitParam(r, 20))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, entries)
}

func limitParam(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 100 {
		return fallback
	}
	return limit
}
