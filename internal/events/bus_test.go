package events

import (
	"testing"
	"time"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(EventTradeConfirmed, 4)
	defer unsub()

	b.Publish(EventTradeConfirmed, TradePayload{UserID: "u1", Mint: "m", Signature: "s"})

	select {
	case msg := <-ch:
		p, ok := msg.(TradePayload)
		if !ok || p.UserID != "u1" {
			t.Errorf("payload = %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusDoesNotBlockOnSlowSubscriber(t *testing.T) {
	b := NewBus()
	_, unsub := b.Subscribe(EventPriceTick, 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(EventPriceTick, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on full subscriber")
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(EventTradeFailed, 1)
	unsub()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	b.Publish(EventTradeFailed, nil)
}

func TestBusClose(t *testing.T) {
	b := NewBus()
	ch, _ := b.Subscribe(EventSignalDetected, 1)
	b.Close()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after bus close")
	}
}
