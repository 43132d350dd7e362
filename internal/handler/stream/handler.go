package stream

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vanba/spiritchat/backend/internal/middleware"
	chatModel "github.com/vanba/spiritchat/backend/internal/model/chat"
	chatService "github.com/vanba/spiritchat/backend/internal/service/chat"
	"github.com/vanba/spiritchat/backend/pkg/utils"
)

const heartbeatInterval = 25 * time.Second

// Handler bridges a conversation's realtime inserts onto a Server-Sent
// Events stream for clients that cannot hold a websocket open.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates the stream handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the SSE route. Callers wrap it in the auth
// middleware; EventSource clients pass the token as a query parameter.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/conversations/{conversationID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	if _, err := h.chatSvc.GetConversation(r.Context(), conversationID, claims.UserID); err != nil {
		utils.RespondError(w, http.StatusNotFound, "conversation not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	utils.SetupSSEHeaders(w)

	// The hub delivers while holding the subscription lock, so the
	// callback hands off to a buffered channel instead of writing to the
	// socket directly. A full buffer drops the event; the client catches
	// up from the message list on reconnect.
	events := make(chan chatModel.Message, 32)
	sub := h.chatSvc.Subscribe(conversationID, func(m chatModel.Message) {
		select {
		case events <- m:
		default:
			slog.Warn("sse buffer full, dropping event", "conversation_id", conversationID)
		}
	})
	defer sub.Unsubscribe()

	utils.SendSSEEvent(w, flusher, "status", map[string]string{"message": "stream established"})

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-events:
			utils.SendSSEEvent(w, flusher, "message", msg)
		case <-ticker.C:
			utils.SendSSEEvent(w, flusher, "heartbeat", map[string]string{
				"time": time.Now().UTC().Format(time.RFC3339),
			})
		}
	}
}
