package chat_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vanba/spiritchat/backend/internal/config"
	analyticsModel "github.com/vanba/spiritchat/backend/internal/model/analytics"
	chatModel "github.com/vanba/spiritchat/backend/internal/model/chat"
	knowledgeModel "github.com/vanba/spiritchat/backend/internal/model/knowledge"
	profileModel "github.com/vanba/spiritchat/backend/internal/model/profile"
	"github.com/vanba/spiritchat/backend/internal/realtime"
	chatService "github.com/vanba/spiritchat/backend/internal/service/chat"
	"github.com/vanba/spiritchat/backend/internal/service/guide"
	"github.com/vanba/spiritchat/backend/internal/store"
)

type fakeConversations struct {
	mu   sync.Mutex
	rows map[uuid.UUID]chatModel.Conversation
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{rows: make(map[uuid.UUID]chatModel.Conversation)}
}

func (f *fakeConversations) ListForUser(_ context.Context, userID uuid.UUID) ([]chatModel.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chatModel.Conversation
	for _, c := range f.rows {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeConversations) Get(_ context.Context, id uuid.UUID) (*chatModel.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := c
	return &copied, nil
}

func (f *fakeConversations) Create(_ context.Context, c *chatModel.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[c.ID] = *c
	return nil
}

func (f *fakeConversations) Rename(_ context.Context, id uuid.UUID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Title = title
	f.rows[id] = c
	return nil
}

func (f *fakeConversations) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeConversations) TouchUpdatedAt(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	c.UpdatedAt = time.Now().UTC()
	f.rows[id] = c
	return nil
}

type fakeMessages struct {
	mu   sync.Mutex
	rows []chatModel.Message
}

func (f *fakeMessages) ListForConversation(_ context.Context, conversationID uuid.UUID) ([]chatModel.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chatModel.Message
	for _, m := range f.rows {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeMessages) Append(_ context.Context, m *chatModel.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *m)
	return nil
}

type fakeAnalytics struct{}

func (fakeAnalytics) RecordMessage(context.Context, uuid.UUID, string, bool) error { return nil }
func (fakeAnalytics) RecordConversation(context.Context, uuid.UUID, string) error  { return nil }
func (fakeAnalytics) ForUser(context.Context, uuid.UUID, *time.Time, *time.Time) ([]analyticsModel.DailyUsage, error) {
	return nil, nil
}
func (fakeAnalytics) AllUsers(context.Context, *time.Time, *time.Time, int) ([]analyticsModel.DailyUsage, error) {
	return nil, nil
}

type fakeKnowledge struct{}

func (fakeKnowledge) Query(_ context.Context, tradition profileModel.Tradition, emotion string, _ int) ([]knowledgeModel.Entry, error) {
	return []knowledgeModel.Entry{{
		ID:                 uuid.New(),
		Tradition:          tradition,
		TranslationText:    "Trust the unfolding of your path.",
		ScriptureReference: "Bhagavad Gita 2:47",
	}}, nil
}

func (fakeKnowledge) Search(context.Context, string, profileModel.Tradition, string, int) ([]knowledgeModel.Entry, error) {
	return nil, nil
}

type harness struct {
	svc   *chatService.Service
	hub   *realtime.Hub
	guide *guide.Service
	user  uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	hub := realtime.NewHub()
	svc := chatService.NewService(newFakeConversations(), &fakeMessages{}, fakeAnalytics{}, hub)

	guideSvc, err := guide.NewService(context.Background(), fakeKnowledge{}, config.AIConfig{})
	if err != nil {
		t.Fatalf("guide.NewService err: %v", err)
	}
	return &harness{svc: svc, hub: hub, guide: guideSvc, user: uuid.New()}
}

func (h *harness) orchestrator(t *testing.T, replyDelay time.Duration) *chatService.Orchestrator {
	t.Helper()
	orch := chatService.NewOrchestrator(h.svc, h.guide, chatService.OrchestratorConfig{
		UserID:     h.user,
		FullName:   "Asha",
		Tradition:  profileModel.TraditionUniversal,
		Language:   "en",
		ReplyDelay: replyDelay,
	})
	t.Cleanup(orch.Close)
	return orch
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func TestCreateConversationSeedsGreeting(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator(t, time.Millisecond)

	conv, err := orch.CreateConversation("Evening reflection", "", "")
	if err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}

	snap := orch.Snapshot()
	if snap.State != chatService.StateReady {
		t.Fatalf("unexpected state: %s", snap.State)
	}
	if snap.ConversationID != conv.ID {
		t.Fatalf("unexpected open conversation: %s", snap.ConversationID)
	}
	if len(snap.Messages) != 1 {
		t.Fatalf("expected exactly the greeting, got %d messages", len(snap.Messages))
	}
	if snap.Messages[0].MessageType != chatModel.MessageSystem {
		t.Fatalf("first message is %s, want system greeting", snap.Messages[0].MessageType)
	}
}

func TestSendUserMessageProducesReply(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator(t, 10*time.Millisecond)

	if _, err := orch.CreateConversation("", "", ""); err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}

	sent, err := orch.SendUserMessage("I feel anxious and cannot sleep")
	if err != nil {
		t.Fatalf("SendUserMessage err: %v", err)
	}
	if sent.EmotionDetected != "anxiety" {
		t.Fatalf("unexpected detected emotion: %s", sent.EmotionDetected)
	}

	waitFor(t, 2*time.Second, func() bool {
		return orch.Snapshot().State == chatService.StateReady && len(orch.Snapshot().Messages) == 3
	})

	snap := orch.Snapshot()
	if snap.Messages[1].MessageType != chatModel.MessageUser {
		t.Fatalf("second message is %s, want user", snap.Messages[1].MessageType)
	}
	if snap.Messages[2].MessageType != chatModel.MessageAssistant {
		t.Fatalf("third message is %s, want assistant", snap.Messages[2].MessageType)
	}
	if snap.Messages[2].Content == "" {
		t.Fatal("assistant reply is empty")
	}
}

func TestVisibleListStaysSortedWithoutDuplicates(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator(t, time.Millisecond)

	if _, err := orch.CreateConversation("", "", ""); err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}

	for i := 0; i < 5; i++ {
		waitFor(t, 2*time.Second, func() bool {
			return orch.Snapshot().State == chatService.StateReady
		})
		if _, err := orch.SendUserMessage("tell me about hope"); err != nil {
			t.Fatalf("SendUserMessage %d err: %v", i, err)
		}
	}

	// greeting + 5 user turns + 5 assistant replies
	waitFor(t, 2*time.Second, func() bool {
		snap := orch.Snapshot()
		return snap.State == chatService.StateReady && len(snap.Messages) == 11
	})

	snap := orch.Snapshot()
	seen := make(map[uuid.UUID]bool)
	for i, m := range snap.Messages {
		if seen[m.ID] {
			t.Fatalf("duplicate message id %s at index %d", m.ID, i)
		}
		seen[m.ID] = true
		if i > 0 && snap.Messages[i-1].CreatedAt.After(m.CreatedAt) {
			t.Fatalf("messages out of order at index %d", i)
		}
	}
}

func TestRealtimeRedeliveryIsDeduplicated(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator(t, time.Millisecond)

	if _, err := orch.CreateConversation("", "", ""); err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}
	sent, err := orch.SendUserMessage("hello")
	if err != nil {
		t.Fatalf("SendUserMessage err: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return orch.Snapshot().State == chatService.StateReady
	})
	before := len(orch.Snapshot().Messages)

	// The transport may redeliver a row the view already holds.
	h.hub.Publish(*sent)
	h.hub.Publish(*sent)
	time.Sleep(50 * time.Millisecond)

	if after := len(orch.Snapshot().Messages); after != before {
		t.Fatalf("redelivery changed the view: %d -> %d messages", before, after)
	}
}

func TestSwitchingConversationsLeaksNothing(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator(t, time.Millisecond)

	convA, err := orch.CreateConversation("first", "", "")
	if err != nil {
		t.Fatalf("CreateConversation A err: %v", err)
	}
	convB, err := orch.CreateConversation("second", "", "")
	if err != nil {
		t.Fatalf("CreateConversation B err: %v", err)
	}

	// An event for A arriving after the switch must not surface in B.
	h.hub.Publish(chatModel.Message{
		ID:             uuid.New(),
		ConversationID: convA.ID,
		MessageType:    chatModel.MessageUser,
		Content:        "stray event for the old view",
		CreatedAt:      time.Now().UTC(),
	})
	time.Sleep(50 * time.Millisecond)

	snap := orch.Snapshot()
	if snap.ConversationID != convB.ID {
		t.Fatalf("unexpected open conversation: %s", snap.ConversationID)
	}
	for _, m := range snap.Messages {
		if m.ConversationID == convA.ID {
			t.Fatalf("message from conversation A leaked into B's view: %s", m.ID)
		}
	}
}

func TestSendRequiresOpenConversation(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator(t, time.Millisecond)

	if _, err := orch.SendUserMessage("hello"); !errors.Is(err, chatService.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestOpenForeignConversationFails(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator(t, time.Millisecond)

	other, err := h.svc.CreateConversation(context.Background(), uuid.New(), "theirs", "hope", "universal", "en")
	if err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}

	if err := orch.OpenConversation(other.ID); !errors.Is(err, chatService.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if snap := orch.Snapshot(); snap.State != chatService.StateNoConversation {
		t.Fatalf("unexpected state after failed open: %s", snap.State)
	}
}

func TestClosedOrchestratorRejectsEverything(t *testing.T) {
	h := newHarness(t)
	orch := h.orchestrator(t, time.Millisecond)

	orch.Close()
	orch.Close()

	if _, err := orch.SendUserMessage("hello"); !errors.Is(err, chatService.ErrOrchestratorClosed) {
		t.Fatalf("expected ErrOrchestratorClosed, got %v", err)
	}
	if err := orch.OpenConversation(uuid.New()); !errors.Is(err, chatService.ErrOrchestratorClosed) {
		t.Fatalf("expected ErrOrchestratorClosed, got %v", err)
	}
}
