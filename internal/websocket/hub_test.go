package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// adminClient is a connected admin with a buffered outbox and no socket.
func adminClient(hub *Hub, email string) *Client {
	return &Client{hub: hub, email: email, send: make(chan []byte, sendBufferSize)}
}

// next decodes the next queued message for c or fails after a short wait.
func next(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decode message for %s: %v", c.email, err)
		}
		return m
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("no message queued for %s", c.email)
	}
	return Message{}
}

func pending(c *Client) int {
	return len(c.send)
}

func TestHubTracksAdmins(t *testing.T) {
	hub := newTestHub()
	owner := adminClient(hub, "owner@brightwork.test")
	studio := adminClient(hub, "studio@brightwork.test")

	steps := []struct {
		name string
		do   func()
		want int
	}{
		{"owner joins", func() { hub.Register(owner) }, 1},
		{"studio joins", func() { hub.Register(studio) }, 2},
		{"owner leaves", func() { hub.Unregister(owner) }, 1},
		{"owner leaves again", func() { hub.Unregister(owner) }, 1},
		{"studio leaves", func() { hub.Unregister(studio) }, 0},
	}
	for _, s := range steps {
		s.do()
		if got := hub.ClientCount(); got != s.want {
			t.Errorf("after %s: ClientCount() = %d, want %d", s.name, got, s.want)
		}
	}

	if _, open := <-owner.send; open {
		t.Error("owner outbox should be closed after unregister")
	}
}

func TestQuoteEventReachesEveryAdmin(t *testing.T) {
	hub := newTestHub()
	admins := []*Client{
		adminClient(hub, "owner@brightwork.test"),
		adminClient(hub, "studio@brightwork.test"),
	}
	for _, c := range admins {
		hub.Register(c)
		defer hub.Unregister(c)
	}

	hub.Broadcast(NewMessage("quote", "accepted", 17, map[string]any{"amount": "£3,400.00"}))

	for _, c := range admins {
		m := next(t, c)
		if m.Type != "quote_accepted" {
			t.Errorf("%s: type = %q, want quote_accepted", c.email, m.Type)
		}
		if m.ID != 17 {
			t.Errorf("%s: id = %d, want 17", c.email, m.ID)
		}
		if m.Extra["amount"] != "£3,400.00" {
			t.Errorf("%s: extra amount = %v, want £3,400.00", c.email, m.Extra["amount"])
		}
	}
}

func TestContactEventWithNoAdmins(t *testing.T) {
	hub := newTestHub()
	hub.Broadcast(NewMessage("contact", "created", 3, nil))
	if got := hub.Dropped(); got != 0 {
		t.Errorf("Dropped() = %d, want 0 with nobody connected", got)
	}
}

func TestLaggingAdminMissesEvents(t *testing.T) {
	hub := newTestHub()
	slow := adminClient(hub, "slow@brightwork.test")
	hub.Register(slow)
	defer hub.Unregister(slow)

	for id := int64(1); id <= sendBufferSize; id++ {
		hub.Broadcast(NewMessage("contact", "created", id, nil))
	}
	if got := pending(slow); got != sendBufferSize {
		t.Fatalf("queued = %d, want a full outbox of %d", got, sendBufferSize)
	}

	// A second admin joining late still gets the next event.
	fresh := adminClient(hub, "fresh@brightwork.test")
	hub.Register(fresh)
	defer hub.Unregister(fresh)

	hub.Broadcast(NewMessage("quote", "declined", 8, nil))

	if got := hub.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
	if got := pending(slow); got != sendBufferSize {
		t.Errorf("slow queued = %d, want %d", got, sendBufferSize)
	}
	if m := next(t, fresh); m.Type != "quote_declined" {
		t.Errorf("fresh type = %q, want quote_declined", m.Type)
	}
	if first := next(t, slow); first.ID != 1 || first.Entity != "contact" {
		t.Errorf("slow first = %s #%d, want contact #1", first.Entity, first.ID)
	}
}

func TestNewMessageNaming(t *testing.T) {
	tests := []struct {
		entity, action string
		want           string
	}{
		{"quote", "paid", "quote_paid"},
		{"quote", "sent_to_client", "quote_sent_to_client"},
		{"contact", "created", "contact_created"},
		{"backup", "failed", "backup_failed"},
	}
	for _, tt := range tests {
		m := NewMessage(tt.entity, tt.action, 0, nil)
		if m.Type != tt.want {
			t.Errorf("NewMessage(%q, %q).Type = %q, want %q", tt.entity, tt.action, m.Type, tt.want)
		}
		if m.Entity != tt.entity || m.Action != tt.action {
			t.Errorf("NewMessage(%q, %q) = %s/%s", tt.entity, tt.action, m.Entity, m.Action)
		}
	}

	data, err := json.Marshal(NewMessage("contact", "read", 0, nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "title", "extra"} {
		if _, ok := raw[key]; ok {
			t.Errorf("zero %s should be omitted, got %s", key, data)
		}
	}
}

func TestAdminsComeAndGoDuringBroadcasts(t *testing.T) {
	hub := newTestHub()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c := adminClient(hub, "admin@brightwork.test")
			hub.Register(c)
			hub.Broadcast(NewMessage("quote", "created", id, nil))
			hub.Unregister(c)
			for range c.send {
			}
		}(int64(i))
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}
}
