package profile

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/datatypes"

	"github.com/vanba/spiritchat/backend/internal/middleware"
	profileModel "github.com/vanba/spiritchat/backend/internal/model/profile"
	"github.com/vanba/spiritchat/backend/internal/store"
	"github.com/vanba/spiritchat/backend/pkg/utils"
)

// Handler exposes the signed-in user's profile and spiritual preferences.
type Handler struct {
	profiles store.ProfileStore
}

// New creates the profile handler.
func New(profiles store.ProfileStore) *Handler {
	return &Handler{profiles: profiles}
}

// RegisterRoutes mounts the profile routes. Callers wrap them in the auth
// middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.handleGet)
	r.Put("/profile", h.handleUpdate)
	r.Put("/profile/preferences", h.handleUpdatePreferences)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	prof, err := h.profiles.Get(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "profile not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "could not load profile")
		return
	}
	utils.RespondJSON(w, http.StatusOK, prof)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload struct {
		FullName          *string `json:"full_name"`
		PreferredLanguage *string `json:"preferred_language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.FullName == nil && payload.PreferredLanguage == nil {
		utils.RespondError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	prof, err := h.profiles.Update(r.Context(), claims.UserID, store.ProfileUpdates{
		FullName:          payload.FullName,
		PreferredLanguage: payload.PreferredLanguage,
	})
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "could not update profile")
		return
	}
	utils.RespondJSON(w, http.StatusOK, prof)
}

func (h *Handler) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload struct {
		PreferredTraditions []profileModel.Tradition       `json:"preferred_traditions"`
		MeditationPractice  bool                           `json:"meditation_practice"`
		PrayerPractice      bool                           `json:"prayer_practice"`
		StudyPractice       bool                           `json:"study_practice"`
		GuidanceFrequency   profileModel.GuidanceFrequency `json:"guidance_frequency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	for _, t := range payload.PreferredTraditions {
		if !profileModel.ValidTradition(t) {
			utils.RespondError(w, http.StatusBadRequest, "unknown tradition "+string(t))
			return
		}
	}
	if payload.GuidanceFrequency == "" {
		payload.GuidanceFrequency = profileModel.FrequencyAsNeeded
	}
	if !profileModel.ValidFrequency(payload.GuidanceFrequency) {
		utils.RespondError(w, http.StatusBadRequest, "unknown guidance frequency "+string(payload.GuidanceFrequency))
		return
	}

	prefs := &profileModel.SpiritualPreferences{
		UserID:              claims.UserID,
		PreferredTraditions: datatypes.NewJSONSlice(payload.PreferredTraditions),
		MeditationPractice:  payload.MeditationPractice,
		PrayerPractice:      payload.PrayerPractice,
		StudyPractice:       payload.StudyPractice,
		GuidanceFrequency:   payload.GuidanceFrequency,
	}
	if err := h.profiles.UpsertPreferences(r.Context(), prefs); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "could not save preferences")
		return
	}

	// Refetch the whole profile so the embedded preferences in the
	// response are what the store actually holds.
	prof, err := h.profiles.Get(r.Context(), claims.UserID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "could not reload profile")
		return
	}
	utils.RespondJSON(w, http.StatusOK, prof)
}
