package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vanba/spiritchat/backend/internal/middleware"
	profileModel "github.com/vanba/spiritchat/backend/internal/model/profile"
	"github.com/vanba/spiritchat/backend/internal/service/auth"
	chatService "github.com/vanba/spiritchat/backend/internal/service/chat"
	"github.com/vanba/spiritchat/backend/internal/service/guide"
	sessionService "github.com/vanba/spiritchat/backend/internal/service/session"
	"github.com/vanba/spiritchat/backend/internal/store"
)

const writeTimeout = 10 * time.Second

// Handler upgrades authenticated clients to a websocket and runs one
// orchestrator per connection. The connection is the application
// instance: it owns a session store, the open conversation and the
// message view-state, all torn down when the socket closes.
type Handler struct {
	chatSvc    *chatService.Service
	guideSvc   *guide.Service
	provider   *auth.Provider
	profiles   store.ProfileStore
	hints      *sessionService.HintCache
	replyDelay time.Duration
	upgrader   websocket.Upgrader
}

// New creates the websocket gateway.
func New(chatSvc *chatService.Service, guideSvc *guide.Service, provider *auth.Provider, profiles store.ProfileStore, hints *sessionService.HintCache, replyDelay time.Duration) *Handler {
	return &Handler{
		chatSvc:    chatSvc,
		guideSvc:   guideSvc,
		provider:   provider,
		profiles:   profiles,
		hints:      hints,
		replyDelay: replyDelay,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket route. Callers wrap it in the auth
// middleware; browser clients pass the token as a query parameter.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat", h.handleChat)
}

type inboundMessage struct {
	Type             string    `json:"type"`
	ConversationID   uuid.UUID `json:"conversation_id,omitempty"`
	Title            string    `json:"title,omitempty"`
	PrimaryEmotion   string    `json:"primary_emotion,omitempty"`
	SpiritualContext string    `json:"spiritual_context,omitempty"`
	Content          string    `json:"content,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// The profile shapes the greeting and the default tradition; a failed
	// load falls back to universal guidance rather than refusing the
	// connection.
	fullName := ""
	tradition := profileModel.TraditionUniversal
	language := "en"
	if prof, err := h.profiles.Get(r.Context(), claims.UserID); err == nil {
		fullName = prof.FullName
		tradition = prof.PrimaryTradition()
		if prof.PreferredLanguage != "" {
			language = prof.PreferredLanguage
		}
	} else {
		slog.Warn("profile load failed for websocket client", "user_id", claims.UserID, "error", err)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessStore := sessionService.NewStore(newConnBackend(h.provider, claims), h.profiles, h.hints)
	if err := sessStore.Initialize(r.Context()); err != nil {
		slog.Warn("session initialize failed", "user_id", claims.UserID, "error", err)
		return
	}
	defer sessStore.Close()

	outgoing := make(chan outgoingMessage, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range outgoing {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				slog.Debug("websocket write failed", "error", err)
			}
		}
	}()

	send := func(msgType string, data interface{}) {
		outgoing <- outgoingMessage{Type: msgType, Data: data, Timestamp: time.Now().UnixMilli()}
	}

	orch := chatService.NewOrchestrator(h.chatSvc, h.guideSvc, chatService.OrchestratorConfig{
		UserID:     claims.UserID,
		FullName:   fullName,
		Tradition:  tradition,
		Language:   language,
		ReplyDelay: h.replyDelay,
		Notify: func(u chatService.Update) {
			if u.Message != nil {
				send("message", u.Message)
			}
			send("state", map[string]interface{}{
				"state":           u.State,
				"conversation_id": u.ConversationID,
			})
		},
	})

	noticeCtx, stopNotices := context.WithCancel(context.Background())
	defer stopNotices()
	noticesDone := make(chan struct{})
	go func() {
		defer close(noticesDone)
		for {
			select {
			case <-noticeCtx.Done():
				return
			case notice := <-sessStore.Notices():
				send("notice", map[string]string{"message": notice.Message})
			}
		}
	}()

	h.readLoop(conn, orch, sessStore, send)

	// Stop every producer before closing the outgoing channel.
	orch.Close()
	stopNotices()
	<-noticesDone
	close(outgoing)
	<-writerDone
}

func (h *Handler) readLoop(conn *websocket.Conn, orch *chatService.Orchestrator, sessStore *sessionService.Store, send func(string, interface{})) {
	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket closed unexpectedly", "error", err)
			}
			return
		}

		switch msg.Type {
		case "open":
			if msg.ConversationID == uuid.Nil {
				send("error", map[string]string{"message": "conversation_id is required"})
				continue
			}
			if err := orch.OpenConversation(msg.ConversationID); err != nil {
				send("error", map[string]string{"message": err.Error()})
			}
		case "create":
			conv, err := orch.CreateConversation(msg.Title, msg.PrimaryEmotion, msg.SpiritualContext)
			if err != nil {
				send("error", map[string]string{"message": err.Error()})
				continue
			}
			send("conversation", conv)
		case "send":
			if _, err := orch.SendUserMessage(msg.Content); err != nil {
				send("error", map[string]string{"message": auth.UserMessage(err)})
			}
		case "snapshot":
			send("snapshot", orch.Snapshot())
		case "signout":
			if err := sessStore.SignOut(context.Background()); err != nil {
				send("error", map[string]string{"message": auth.UserMessage(err)})
				continue
			}
			return
		case "close":
			return
		default:
			send("error", map[string]string{"message": "unknown message type " + msg.Type})
		}
	}
}
