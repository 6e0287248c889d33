package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("feed.", 10)
	defer unsub()

	b.Publish(NewEvent(KindFeedChanged, "p1"))

	select {
	case evt := <-ch:
		if evt.Kind != KindFeedChanged {
			t.Errorf("got kind %q, want %s", evt.Kind, KindFeedChanged)
		}
		if evt.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("remote.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindFeedChanged})
	b.Publish(Event{Kind: KindRemoteTyping})

	select {
	case evt := <-ch:
		if evt.Kind != KindRemoteTyping {
			t.Errorf("got kind %q, want %s", evt.Kind, KindRemoteTyping)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure feed event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("reward.", 10)
	unsub()

	b.Publish(Event{Kind: KindRewardLevelUp})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 1)
	defer unsub()

	b.Publish(Event{Kind: KindMessageSendAck})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: KindMessageSendFailed})

	evt := <-ch
	if evt.Kind != KindMessageSendAck {
		t.Errorf("got %q, want %s", evt.Kind, KindMessageSendAck)
	}
	if got := b.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}

func TestUnsubscribeTwice(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("feed.", 1)
	other, unsubOther := b.Subscribe("feed.", 1)
	defer unsubOther()
	unsub()
	unsub()

	b.Publish(Event{Kind: KindFeedChanged})
	select {
	case <-other:
	case <-time.After(time.Second):
		t.Fatal("remaining subscriber lost its event")
	}
}

func TestPublishOnNilBus(t *testing.T) {
	var b *Bus
	b.Publish(Event{Kind: KindFeedChanged})
	if b.Dropped() != 0 {
		t.Error("nil bus reported drops")
	}
}
