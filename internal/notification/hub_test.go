package notification

import (
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(4)
	defer cancel()

	h.Publish(Message{Type: "research_update", Data: "payload"})

	select {
	case msg := <-ch:
		if msg.Type != "research_update" {
			t.Fatalf("type = %s", msg.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("message never delivered")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	cancel()
	cancel() // safe to call twice

	if _, ok := <-ch; ok {
		t.Fatal("channel not closed after cancel")
	}

	// publishing after cancel must not panic
	h.Publish(Message{Type: "research_update"})
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Publish(Message{Type: "research_update"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
}

func TestCloseDropsAll(t *testing.T) {
	h := NewHub()
	ch, _ := h.Subscribe(1)
	h.Close()

	if _, ok := <-ch; ok {
		t.Fatal("channel not closed on hub close")
	}

	chAfter, cancel := h.Subscribe(1)
	defer cancel()
	if _, ok := <-chAfter; ok {
		t.Fatal("subscribe after close returned a live channel")
	}
}
