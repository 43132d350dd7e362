package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vanba/spiritchat/backend/internal/middleware"
	chatModel "github.com/vanba/spiritchat/backend/internal/model/chat"
	"github.com/vanba/spiritchat/backend/internal/service/auth"
	chatService "github.com/vanba/spiritchat/backend/internal/service/chat"
	"github.com/vanba/spiritchat/backend/pkg/utils"
)

// Handler exposes conversation and message CRUD over REST. The websocket
// gateway is the richer surface; these routes serve list views and
// clients that do not hold a socket open.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates the conversation handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the conversation routes. Callers wrap them in the
// auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Route("/{conversationID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Patch("/", h.handleRename)
			r.Delete("/", h.handleDelete)
			r.Get("/messages", h.handleListMessages)
			r.Post("/messages", h.handleAppendMessage)
		})
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conversations, err := h.chatSvc.ListConversations(r.Context(), claims.UserID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "could not list conversations")
		return
	}
	utils.RespondJSON(w, http.StatusOK, conversations)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload struct {
		Title            string `json:"title"`
		PrimaryEmotion   string `json:"primary_emotion"`
		SpiritualContext string `json:"spiritual_context"`
		Language         string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.chatSvc.CreateConversation(r.Context(), claims.UserID,
		payload.Title, payload.PrimaryEmotion, payload.SpiritualContext, payload.Language)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "could not create conversation")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, conv)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	claims, conversationID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	conv, err := h.chatSvc.GetConversation(r.Context(), conversationID, claims.UserID)
	if err != nil {
		respondChatError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) {
	claims, conversationID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var payload struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Title == "" {
		utils.RespondError(w, http.StatusBadRequest, "title is required")
		return
	}

	if err := h.chatSvc.RenameConversation(r.Context(), conversationID, claims.UserID, payload.Title); err != nil {
		respondChatError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	claims, conversationID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if err := h.chatSvc.DeleteConversation(r.Context(), conversationID, claims.UserID); err != nil {
		respondChatError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	claims, conversationID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if _, err := h.chatSvc.GetConversation(r.Context(), conversationID, claims.UserID); err != nil {
		respondChatError(w, err)
		return
	}

	messages, err := h.chatSvc.ListMessages(r.Context(), conversationID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "could not list messages")
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	claims, conversationID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if _, err := h.chatSvc.GetConversation(r.Context(), conversationID, claims.UserID); err != nil {
		respondChatError(w, err)
		return
	}

	var payload struct {
		MessageType        string `json:"message_type"`
		Content            string `json:"content"`
		ScriptureReference string `json:"scripture_reference"`
		EmotionDetected    string `json:"emotion_detected"`
		Language           string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	messageType, err := chatModel.ParseMessageType(payload.MessageType)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg := &chatModel.Message{
		ConversationID:     conversationID,
		MessageType:        messageType,
		Content:            payload.Content,
		ScriptureReference: payload.ScriptureReference,
		EmotionDetected:    payload.EmotionDetected,
		Language:           payload.Language,
	}
	appended, err := h.chatSvc.AppendMessage(r.Context(), claims.UserID, msg)
	if err != nil {
		respondChatError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, appended)
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (auth.AccessClaims, uuid.UUID, bool) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return auth.AccessClaims{}, uuid.Nil, false
	}

	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid conversation id")
		return auth.AccessClaims{}, uuid.Nil, false
	}
	return claims, conversationID, true
}

func respondChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrConversationNotFound):
		utils.RespondError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, chatService.ErrNotOwner):
		utils.RespondError(w, http.StatusForbidden, "conversation belongs to another user")
	case errors.Is(err, chatService.ErrEmptyContent):
		utils.RespondError(w, http.StatusBadRequest, "message content is required")
	default:
		utils.RespondError(w, http.StatusInternalServerError, "chat operation failed")
	}
}
