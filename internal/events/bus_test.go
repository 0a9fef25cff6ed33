package events

import (
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return Event{}
	}
}

func TestPublishDelivers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsub := bus.Subscribe(8)
	defer unsub()

	bus.Publish(New(TypeMarketData, "tick"))
	e := recv(t, ch)
	if e.Type != TypeMarketData {
		t.Fatalf("type = %v, want %v", e.Type, TypeMarketData)
	}
	if e.Payload != "tick" {
		t.Fatalf("payload = %v, want tick", e.Payload)
	}
	if e.Timestamp.IsZero() {
		t.Fatalf("timestamp not stamped")
	}
}

func TestSubscribeFilter(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsub := bus.Subscribe(8, TypeOrderUpdate, TypeTradeUpdate)
	defer unsub()

	bus.Publish(New(TypeMarketData, nil))
	bus.Publish(New(TypeOrderUpdate, nil))

	e := recv(t, ch)
	if e.Type != TypeOrderUpdate {
		t.Fatalf("filtered subscriber got %v", e.Type)
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected extra event %v", e.Type)
	default:
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	_, unsub := bus.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(New(TypeMarketData, i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsub := bus.Subscribe(1)
	unsub()
	unsub() // second call is a no-op

	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	bus.Publish(New(TypeMarketData, nil))
}

func TestCloseClosesSubscribers(t *testing.T) {
	bus := NewBus()
	ch, _ := bus.Subscribe(1)
	bus.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after bus close")
	}
	// Subscribe after close returns a closed channel.
	ch2, _ := bus.Subscribe(1)
	if _, ok := <-ch2; ok {
		t.Fatalf("subscribe after close should return a closed channel")
	}
}
