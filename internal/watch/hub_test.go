package watch

import (
	"testing"
	"time"
)

func TestHub_PublishKeepsLatest(t *testing.T) {
	h := NewHub[int]()
	ch, cancel := h.Subscribe("u1")
	defer cancel()

	for i := 1; i <= 5; i++ {
		h.Publish("u1", i)
	}

	select {
	case v := <-ch:
		if v != 5 {
			t.Errorf("got %d, want latest value 5", v)
		}
	case <-time.After(time.Second):
		t.Fatal("no value delivered")
	}

	select {
	case v := <-ch:
		t.Errorf("unexpected extra value %d", v)
	default:
	}
}

func TestHub_KeysAreIsolated(t *testing.T) {
	h := NewHub[string]()
	a, cancelA := h.Subscribe("a")
	defer cancelA()
	b, cancelB := h.Subscribe("b")
	defer cancelB()

	h.Publish("a", "hello")

	if got := <-a; got != "hello" {
		t.Errorf("a got %q", got)
	}
	select {
	case v := <-b:
		t.Errorf("b received %q", v)
	default:
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	h := NewHub[int]()
	ch, cancel := h.Subscribe("u1")
	if h.Subscribers("u1") != 1 {
		t.Fatalf("Subscribers = %d, want 1", h.Subscribers("u1"))
	}

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}
	if h.Subscribers("u1") != 0 {
		t.Errorf("Subscribers = %d after cancel", h.Subscribers("u1"))
	}
	h.Publish("u1", 1)
}

func TestHub_Close(t *testing.T) {
	h := NewHub[int]()
	ch, cancel := h.Subscribe("u1")
	h.Close()

	if _, ok := <-ch; ok {
		t.Error("channel open after Close")
	}
	cancel()

	late, _ := h.Subscribe("u1")
	if _, ok := <-late; ok {
		t.Error("subscription after Close should be closed")
	}
}
