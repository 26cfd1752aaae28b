package hub

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSendQueuesEncodedEvent(t *testing.T) {
	h := NewHub(4)
	conn := h.Connect(7)

	if err := conn.Send(Event{Type: "chat_message", Payload: map[string]string{"message": "hi"}}); err != nil {
		t.Fatalf("send: %v", err)
	}
	var got Event
	if err := json.Unmarshal(<-conn.Messages(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != "chat_message" {
		t.Fatalf("type = %s, want chat_message", got.Type)
	}
}

func TestSendDropsWhenFull(t *testing.T) {
	h := NewHub(1)
	conn := h.Connect(1)
	if err := conn.Send(Event{Type: "a"}); err != nil {
		t.Fatalf("send a: %v", err)
	}
	if err := conn.Send(Event{Type: "b"}); err != nil {
		t.Fatalf("send b should drop silently, got %v", err)
	}
	if len(conn.Messages()) != 1 {
		t.Fatalf("queued = %d, want 1", len(conn.Messages()))
	}
}

func TestDisconnectFiresListenersOnce(t *testing.T) {
	h := NewHub(1)
	conn := h.Connect(1)
	calls := 0
	conn.OnDisconnect(func() { calls++ })
	removed := 0
	cancel := conn.OnDisconnect(func() { removed++ })
	cancel()

	h.Disconnect(conn.ID())
	h.Disconnect(conn.ID())

	if calls != 1 || removed != 0 {
		t.Fatalf("calls = %d removed = %d, want 1 and 0", calls, removed)
	}
	if _, ok := h.Conn(conn.ID()); ok {
		t.Fatal("connection should be gone")
	}
	if err := conn.Send(Event{Type: "late"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, open := <-conn.Messages(); open {
		t.Fatal("messages channel should be closed")
	}
}

func TestBroadcastReachesEveryConnection(t *testing.T) {
	h := NewHub(2)
	a := h.Connect(1)
	b := h.Connect(2)
	h.Broadcast(Event{Type: "lobby_list_changed"})

	if len(a.Messages()) != 1 || len(b.Messages()) != 1 {
		t.Fatal("expected both connections to receive the broadcast")
	}
	if h.Count() != 2 {
		t.Fatalf("count = %d, want 2", h.Count())
	}
}

func TestDisconnectAllClosesStreams(t *testing.T) {
	h := NewHub(1)
	a, b := h.Connect(1), h.Connect(2)
	fired := 0
	a.OnDisconnect(func() { fired++ })
	b.OnDisconnect(func() { fired++ })

	h.DisconnectAll()

	if fired != 2 || h.Count() != 0 {
		t.Fatalf("fired = %d, count = %d", fired, h.Count())
	}
	if _, ok := <-a.Messages(); ok {
		t.Fatalf("stream still open")
	}
	if err := b.Send(Event{Type: "late"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("send after close = %v", err)
	}
}

func TestOnDisconnectAfterCloseRunsImmediately(t *testing.T) {
	h := NewHub(1)
	conn := h.Connect(1)
	h.Disconnect(conn.ID())
	if !conn.Closed() {
		t.Fatalf("connection should report closed")
	}

	calls := 0
	cancel := conn.OnDisconnect(func() { calls++ })
	cancel()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
