package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vanba/spiritchat/backend/internal/analysis/emotion"
	"github.com/vanba/spiritchat/backend/internal/model/chat"
	"github.com/vanba/spiritchat/backend/internal/model/profile"
	"github.com/vanba/spiritchat/backend/internal/realtime"
	"github.com/vanba/spiritchat/backend/internal/service/guide"
)

// State names a phase of the orchestrator's conversation lifecycle.
type State string

const (
	StateNoConversation State = "no_conversation"
	StateLoading        State = "loading"
	StateReady          State = "ready"
	StateAwaitingReply  State = "awaiting_reply"
	StateClosed         State = "closed"
)

var (
	ErrOrchestratorClosed = errors.New("orchestrator is closed")
	ErrNotReady           = errors.New("no conversation is ready")
)

// Snapshot is the view state exposed to the transport layer: the open
// conversation's transcript sorted by created_at ascending, local
// insertion order breaking ties.
type Snapshot struct {
	State          State
	ConversationID uuid.UUID
	Messages       []chat.Message
}

// Update is pushed to the listener after every visible change. Message is
// set when a turn newly became visible, nil for bare state transitions.
type Update struct {
	State          State
	ConversationID uuid.UUID
	Message        *chat.Message
}

type entry struct {
	msg chat.Message
	seq int
}

// Orchestrator owns one client's open conversation and its message list.
// It is the only component that talks to both the chat service and the
// realtime hub, so the staleness rules live in exactly one place.
//
// All state lives on a single event loop goroutine. Public methods post
// work onto that loop and wait for the result; realtime deliveries and
// reply timers post onto the same loop, so no result is ever applied
// without passing the epoch check first.
type Orchestrator struct {
	svc       *Service
	guide     *guide.Service
	userID    uuid.UUID
	fullName  string
	tradition profile.Tradition
	language  string

	replyDelay time.Duration
	notify     func(Update)

	queue *eventQueue
	done  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once

	// loop-owned state, never touched off the loop goroutine
	state   State
	conv    *chat.Conversation
	entries []entry
	seen    map[uuid.UUID]struct{}
	nextSeq int
	epoch   int
	sub     *realtime.Subscription
}

// OrchestratorConfig carries the per-client identity and tuning for one
// orchestrator instance.
type OrchestratorConfig struct {
	UserID     uuid.UUID
	FullName   string
	Tradition  profile.Tradition
	Language   string
	ReplyDelay time.Duration
	Notify     func(Update)
}

// NewOrchestrator starts the event loop for one client. Callers must
// Close it when the client disconnects.
func NewOrchestrator(svc *Service, guideSvc *guide.Service, cfg OrchestratorConfig) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		svc:        svc,
		guide:      guideSvc,
		userID:     cfg.UserID,
		fullName:   cfg.FullName,
		tradition:  cfg.Tradition,
		language:   cfg.Language,
		replyDelay: cfg.ReplyDelay,
		notify:     cfg.Notify,
		queue:      newEventQueue(),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		state:      StateNoConversation,
		seen:       make(map[uuid.UUID]struct{}),
	}
	go o.loop()
	return o
}

func (o *Orchestrator) loop() {
	defer close(o.done)
	for {
		fn, ok := o.queue.next()
		if !ok {
			return
		}
		fn()
	}
}

// call posts fn onto the loop and waits for it to run.
func (o *Orchestrator) call(fn func()) error {
	ran := make(chan struct{})
	if !o.queue.post(func() {
		defer close(ran)
		fn()
	}) {
		return ErrOrchestratorClosed
	}
	<-ran
	return nil
}

// OpenConversation tears down any prior subscription, loads the
// transcript and subscribes for inserts. The previous conversation's
// in-flight results are discarded by the epoch bump.
func (o *Orchestrator) OpenConversation(id uuid.UUID) error {
	var err error
	if posted := o.call(func() { err = o.open(id) }); posted != nil {
		return posted
	}
	return err
}

// CreateConversation inserts a conversation, seeds it with one localized
// system greeting and opens it.
func (o *Orchestrator) CreateConversation(title, primaryEmotion, spiritualContext string) (*chat.Conversation, error) {
	var (
		conv *chat.Conversation
		err  error
	)
	if posted := o.call(func() { conv, err = o.create(title, primaryEmotion, spiritualContext) }); posted != nil {
		return nil, posted
	}
	return conv, err
}

// SendUserMessage appends the user's turn and schedules the assistant
// reply. It is only valid while a conversation is Ready.
func (o *Orchestrator) SendUserMessage(text string) (*chat.Message, error) {
	var (
		msg *chat.Message
		err error
	)
	if posted := o.call(func() { msg, err = o.send(text) }); posted != nil {
		return nil, posted
	}
	return msg, err
}

// Snapshot returns a copy of the current view state.
func (o *Orchestrator) Snapshot() Snapshot {
	var snap Snapshot
	if err := o.call(func() { snap = o.snapshot() }); err != nil {
		return Snapshot{State: StateClosed}
	}
	return snap
}

// Close tears down the subscription and stops the loop. Idempotent; once
// it returns no listener callback will fire again.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.call(func() {
			o.teardown()
			o.state = StateClosed
		})
		o.cancel()
		o.queue.close()
		<-o.done
	})
}

// --- loop-side implementation ---

func (o *Orchestrator) open(id uuid.UUID) error {
	if o.state == StateClosed {
		return ErrOrchestratorClosed
	}

	o.teardown()
	o.setState(StateLoading, nil)

	conv, err := o.svc.GetConversation(o.ctx, id, o.userID)
	if err != nil {
		o.setState(StateNoConversation, nil)
		return err
	}

	// Subscribe before the bulk load so a row inserted in between is not
	// missed; the dedupe map absorbs the overlap.
	ep := o.epoch
	o.sub = o.svc.Subscribe(id, func(m chat.Message) {
		o.queue.post(func() {
			if o.epoch != ep || o.state == StateClosed {
				return
			}
			o.apply(m, true)
		})
	})

	history, err := o.svc.ListMessages(o.ctx, id)
	if err != nil {
		o.teardown()
		o.setState(StateNoConversation, nil)
		return err
	}
	o.conv = conv
	for _, m := range history {
		o.apply(m, false)
	}
	o.setState(StateReady, nil)
	return nil
}

func (o *Orchestrator) create(title, primaryEmotion, spiritualContext string) (*chat.Conversation, error) {
	if o.state != StateNoConversation && o.state != StateReady {
		if o.state == StateClosed {
			return nil, ErrOrchestratorClosed
		}
		return nil, ErrNotReady
	}

	if primaryEmotion == "" {
		primaryEmotion = string(emotion.Hope)
	}
	if spiritualContext == "" {
		spiritualContext = string(o.tradition)
	}

	conv, err := o.svc.CreateConversation(o.ctx, o.userID, title, primaryEmotion, spiritualContext, o.language)
	if err != nil {
		return nil, err
	}

	greeting := &chat.Message{
		ConversationID: conv.ID,
		MessageType:    chat.MessageSystem,
		Content:        guide.Greeting(o.fullName, o.language, time.Now()),
		Language:       o.language,
	}
	if _, err := o.svc.AppendMessage(o.ctx, o.userID, greeting); err != nil {
		return nil, err
	}

	if err := o.open(conv.ID); err != nil {
		return nil, err
	}
	return conv, nil
}

func (o *Orchestrator) send(text string) (*chat.Message, error) {
	switch o.state {
	case StateReady:
	case StateClosed:
		return nil, ErrOrchestratorClosed
	default:
		return nil, ErrNotReady
	}

	decision := emotion.Detect(text)
	msg := &chat.Message{
		ConversationID:  o.conv.ID,
		MessageType:     chat.MessageUser,
		Content:         text,
		EmotionDetected: string(decision.Emotion),
		Language:        o.conv.Language,
	}
	appended, err := o.svc.AppendMessage(o.ctx, o.userID, msg)
	if err != nil {
		return nil, err
	}

	// Local echo with the server-assigned id; the realtime redelivery of
	// the same row is dropped by the dedupe map.
	o.apply(*appended, false)
	o.setState(StateAwaitingReply, nil)

	ep := o.epoch
	question := text
	time.AfterFunc(o.replyDelay, func() {
		o.queue.post(func() {
			if o.epoch != ep || o.state == StateClosed {
				return
			}
			o.deliverReply(question, decision.Emotion)
		})
	})

	return appended, nil
}

// deliverReply generates and appends the assistant turn. The state
// returns to Ready whether or not the append succeeded; generation itself
// has no failure mode here.
func (o *Orchestrator) deliverReply(question string, detected emotion.Label) {
	reply := o.guide.GenerateReply(o.ctx, question, detected, o.tradition, o.visibleMessages())

	msg := &chat.Message{
		ConversationID:     o.conv.ID,
		MessageType:        chat.MessageAssistant,
		Content:            reply.Content,
		ScriptureReference: reply.ScriptureReference,
		EmotionDetected:    string(detected),
		Language:           o.conv.Language,
	}
	appended, err := o.svc.AppendMessage(o.ctx, o.userID, msg)
	if err == nil {
		o.apply(*appended, false)
	}
	o.setState(StateReady, nil)
}

// apply merges one message into view state, dropping duplicates by id and
// re-sorting by created_at with the local sequence breaking ties.
func (o *Orchestrator) apply(m chat.Message, notify bool) {
	if m.ConversationID != o.convID() {
		return
	}
	if _, dup := o.seen[m.ID]; dup {
		return
	}
	o.seen[m.ID] = struct{}{}
	o.entries = append(o.entries, entry{msg: m, seq: o.nextSeq})
	o.nextSeq++

	sort.SliceStable(o.entries, func(i, j int) bool {
		a, b := o.entries[i], o.entries[j]
		if !a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			return a.msg.CreatedAt.Before(b.msg.CreatedAt)
		}
		return a.seq < b.seq
	})

	if notify && o.notify != nil {
		copied := m
		o.notify(Update{State: o.state, ConversationID: o.convID(), Message: &copied})
	}
}

func (o *Orchestrator) setState(s State, msg *chat.Message) {
	o.state = s
	if o.notify != nil {
		o.notify(Update{State: s, ConversationID: o.convID(), Message: msg})
	}
}

func (o *Orchestrator) teardown() {
	if o.sub != nil {
		o.sub.Unsubscribe()
		o.sub = nil
	}
	o.epoch++
	o.conv = nil
	o.entries = nil
	o.seen = make(map[uuid.UUID]struct{})
	o.nextSeq = 0
}

func (o *Orchestrator) snapshot() Snapshot {
	return Snapshot{
		State:          o.state,
		ConversationID: o.convID(),
		Messages:       o.visibleMessages(),
	}
}

func (o *Orchestrator) visibleMessages() []chat.Message {
	out := make([]chat.Message, len(o.entries))
	for i, e := range o.entries {
		out[i] = e.msg
	}
	return out
}

func (o *Orchestrator) convID() uuid.UUID {
	if o.conv == nil {
		return uuid.Nil
	}
	return o.conv.ID
}

// eventQueue is an unbounded FIFO feeding the loop goroutine. Posting
// never blocks, which keeps realtime deliveries from wedging the hub
// while the loop is inside a store call.
type eventQueue struct {
	mu     sync.Mutex
	items  []func()
	wake   chan struct{}
	closed bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{wake: make(chan struct{}, 1)}
}

func (q *eventQueue) post(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *eventQueue) next() (func(), bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			fn := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return fn, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}
		<-q.wake
	}
}

func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}
