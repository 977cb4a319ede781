package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: TypeFragmentSwap, Data: map[string]any{"target": "stats"}})

	select {
	case e := <-ch:
		if e.Type != TypeFragmentSwap {
			t.Fatalf("event type = %q", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	// A full subscriber must not stall publishers.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: TypeChatRender})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(4)
	unsub()
	b.Publish(Event{Type: TypeActionDone})

	select {
	case _, open := <-ch:
		if open {
			t.Fatal("event delivered after unsubscribe")
		}
	case <-time.After(time.Second):
		// Channel may simply stay empty; either behavior is fine.
	}
}
