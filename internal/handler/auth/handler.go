package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	authService "github.com/vanba/spiritchat/backend/internal/service/auth"
	"github.com/vanba/spiritchat/backend/pkg/utils"
)

// Handler exposes the authentication endpoints.
type Handler struct {
	provider *authService.Provider
}

// New creates the auth handler.
func New(provider *authService.Provider) *Handler {
	return &Handler{provider: provider}
}

// RegisterRoutes mounts the auth routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.handleSignUp)
		r.Post("/signin", h.handleSignIn)
		r.Post("/signout", h.handleSignOut)
		r.Post("/refresh", h.handleRefresh)
		r.Post("/reset-password", h.handleResetPassword)
		r.Get("/oauth/{provider}", h.handleOAuthStart)
		r.Get("/oauth/{provider}/callback", h.handleOAuthCallback)
	})
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email             string `json:"email"`
		Password          string `json:"password"`
		FullName          string `json:"full_name"`
		PreferredLanguage string `json:"preferred_language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, err := h.provider.SignUp(r.Context(), payload.Email, payload.Password, authService.SignUpMetadata{
		FullName:          payload.FullName,
		PreferredLanguage: payload.PreferredLanguage,
	})
	if err != nil {
		respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, identity)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.provider.SignInWithPassword(r.Context(), payload.Email, payload.Password)
	if err != nil {
		respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RefreshToken string `json:"refresh_token"`
	}
	// An empty body is fine; sign-out is idempotent.
	_ = json.NewDecoder(r.Body).Decode(&payload)

	if err := h.provider.SignOutToken(r.Context(), payload.RefreshToken); err != nil {
		respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.RefreshToken == "" {
		utils.RespondError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	sess, err := h.provider.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Email == "" {
		utils.RespondError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.provider.RequestPasswordReset(r.Context(), payload.Email); err != nil {
		respondFailure(w, err)
		return
	}
	// Same answer whether or not the address exists.
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "reset_requested"})
}

func (h *Handler) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider")
	redirectTo := r.URL.Query().Get("redirect_to")

	url, err := h.provider.SignInWithOAuth(r.Context(), providerID, redirectTo)
	if err != nil {
		respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *Handler) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "provider")
	code := r.URL.Query().Get("code")
	if code == "" {
		utils.RespondError(w, http.StatusBadRequest, "code query parameter is required")
		return
	}

	sess, err := h.provider.CompleteOAuth(r.Context(), providerID, code, r.URL.Query().Get("redirect_uri"))
	if err != nil {
		respondFailure(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

// respondFailure maps a classified failure onto an HTTP status while
// keeping the human-readable message and the machine category.
func respondFailure(w http.ResponseWriter, err error) {
	category := authService.CategoryOf(err)

	status := http.StatusInternalServerError
	switch category {
	case authService.CategoryValidation:
		status = http.StatusBadRequest
	case authService.CategoryAuth, authService.CategoryNotAuthenticated:
		status = http.StatusUnauthorized
	case authService.CategoryNetwork:
		status = http.StatusBadGateway
	}

	utils.RespondJSON(w, status, map[string]string{
		"error":    authService.UserMessage(err),
		"category": string(category),
	})
}
