package realtime_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	chatModel "github.com/vanba/spiritchat/backend/internal/model/chat"
	"github.com/vanba/spiritchat/backend/internal/realtime"
)

func validMessage(conversationID uuid.UUID) chatModel.Message {
	return chatModel.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		MessageType:    chatModel.MessageUser,
		Content:        "hello",
		CreatedAt:      time.Now().UTC(),
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	hub := realtime.NewHub()
	conversationID := uuid.New()

	var mu sync.Mutex
	var got []chatModel.Message
	sub := hub.Subscribe(conversationID, func(m chatModel.Message) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	})
	defer sub.Unsubscribe()

	msg := validMessage(conversationID)
	hub.Publish(msg)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if got[0].ID != msg.ID {
		t.Fatalf("unexpected message ID: got %s want %s", got[0].ID, msg.ID)
	}
}

func TestPublishSkipsOtherConversations(t *testing.T) {
	hub := realtime.NewHub()

	delivered := 0
	sub := hub.Subscribe(uuid.New(), func(chatModel.Message) { delivered++ })
	defer sub.Unsubscribe()

	hub.Publish(validMessage(uuid.New()))

	if delivered != 0 {
		t.Fatalf("expected no deliveries, got %d", delivered)
	}
}

func TestPublishDropsMalformedRows(t *testing.T) {
	hub := realtime.NewHub()
	conversationID := uuid.New()

	delivered := 0
	sub := hub.Subscribe(conversationID, func(chatModel.Message) { delivered++ })
	defer sub.Unsubscribe()

	hub.Publish(chatModel.Message{ConversationID: conversationID})

	if delivered != 0 {
		t.Fatalf("malformed row was delivered %d times", delivered)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := realtime.NewHub()
	conversationID := uuid.New()

	delivered := 0
	sub := hub.Subscribe(conversationID, func(chatModel.Message) { delivered++ })

	hub.Publish(validMessage(conversationID))
	sub.Unsubscribe()
	hub.Publish(validMessage(conversationID))

	if delivered != 1 {
		t.Fatalf("expected exactly 1 delivery, got %d", delivered)
	}
}

func TestUnsubscribeTwiceIsSafe(t *testing.T) {
	hub := realtime.NewHub()
	sub := hub.Subscribe(uuid.New(), func(chatModel.Message) {})

	sub.Unsubscribe()
	sub.Unsubscribe()
}

// An unsubscribe racing an in-flight publish must win: once Unsubscribe
// returns, the callback may not run again.
func TestUnsubscribeBlocksInFlightDelivery(t *testing.T) {
	hub := realtime.NewHub()
	conversationID := uuid.New()

	inCallback := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	delivered := 0

	sub := hub.Subscribe(conversationID, func(chatModel.Message) {
		mu.Lock()
		delivered++
		count := delivered
		mu.Unlock()
		if count == 1 {
			close(inCallback)
			<-release
		}
	})

	go hub.Publish(validMessage(conversationID))
	<-inCallback

	// A second publish is now in flight behind the first delivery.
	go hub.Publish(validMessage(conversationID))
	time.Sleep(10 * time.Millisecond)

	unsubDone := make(chan struct{})
	go func() {
		sub.Unsubscribe()
		close(unsubDone)
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)
	<-unsubDone

	mu.Lock()
	atReturn := delivered
	mu.Unlock()

	// Nothing may land once Unsubscribe has returned, even events that
	// were already in flight.
	hub.Publish(validMessage(conversationID))
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if delivered != atReturn {
		t.Fatalf("callback ran after Unsubscribe returned: %d deliveries, %d at return", delivered, atReturn)
	}
}

func TestResubscribeAfterUnsubscribe(t *testing.T) {
	hub := realtime.NewHub()
	conversationID := uuid.New()

	first := hub.Subscribe(conversationID, func(chatModel.Message) {})
	first.Unsubscribe()

	delivered := 0
	second := hub.Subscribe(conversationID, func(chatModel.Message) { delivered++ })
	defer second.Unsubscribe()

	hub.Publish(validMessage(conversationID))
	if delivered != 1 {
		t.Fatalf("expected 1 delivery on the new subscription, got %d", delivered)
	}
}
