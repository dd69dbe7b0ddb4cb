package subscriptions

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/systemshift/weave/internal/core"
	"github.com/systemshift/weave/internal/graph"
)

func TestPatternMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
		event   graph.Event
		want    bool
	}{
		{
			name:    "empty pattern matches everything",
			pattern: Pattern{},
			event:   graph.Event{Type: graph.EventNodeCreated},
			want:    true,
		},
		{
			name:    "event type match",
			pattern: Pattern{EventTypes: []string{graph.EventNodeCreated}},
			event:   graph.Event{Type: graph.EventNodeCreated},
			want:    true,
		},
		{
			name:    "event type mismatch",
			pattern: Pattern{EventTypes: []string{graph.EventNodeDeleted}},
			event:   graph.Event{Type: graph.EventNodeCreated},
			want:    false,
		},
		{
			name:    "node source match",
			pattern: Pattern{NodeSources: []string{"webpage"}},
			event:   graph.Event{Type: graph.EventNodeCreated, NodeSource: "webpage"},
			want:    true,
		},
		{
			name:    "node source mismatch",
			pattern: Pattern{NodeSources: []string{"webpage"}},
			event:   graph.Event{Type: graph.EventNodeCreated, NodeSource: "manual"},
			want:    false,
		},
		{
			name:    "source filter ignores sourceless events",
			pattern: Pattern{NodeSources: []string{"webpage"}},
			event:   graph.Event{Type: graph.EventEdgeCreated, EdgeType: "related"},
			want:    true,
		},
		{
			name:    "edge type mismatch",
			pattern: Pattern{EdgeTypes: []string{"insight"}},
			event:   graph.Event{Type: graph.EventEdgeCreated, EdgeType: "related"},
			want:    false,
		},
		{
			name: "all filters must pass",
			pattern: Pattern{
				EventTypes: []string{graph.EventEdgeCreated},
				EdgeTypes:  []string{"insight"},
			},
			event: graph.Event{Type: graph.EventEdgeCreated, EdgeType: "insight"},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pattern.Matches(tt.event); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManagerRegistry(t *testing.T) {
	m := NewManager(zap.NewNop())

	t.Run("Register Requires Name And Webhook", func(t *testing.T) {
		if _, err := m.Register("", "", "http://example.com/hook", Pattern{}); !core.IsValidation(err) {
			t.Errorf("expected ValidationError for empty name, got %v", err)
		}
		if _, err := m.Register("hook", "", "", Pattern{}); !core.IsValidation(err) {
			t.Errorf("expected ValidationError for empty webhook, got %v", err)
		}
	})

	t.Run("Register And Get", func(t *testing.T) {
		sub, err := m.Register("captures", "fires on captures", "http://example.com/hook", Pattern{
			EventTypes: []string{graph.EventNodeCreated},
		})
		if err != nil {
			t.Fatalf("registering: %v", err)
		}
		if sub.ID == "" {
			t.Error("id not assigned")
		}
		if !sub.Enabled {
			t.Error("new subscription not enabled")
		}

		got, err := m.Get(sub.ID)
		if err != nil {
			t.Fatalf("getting subscription: %v", err)
		}
		if got.Name != "captures" {
			t.Errorf("wrong name: %q", got.Name)
		}
	})

	t.Run("Get Missing", func(t *testing.T) {
		if _, err := m.Get("no-such-id"); !core.IsNotFound(err) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("List And Delete", func(t *testing.T) {
		before := len(m.List())
		sub, err := m.Register("temp", "", "http://example.com/hook", Pattern{})
		if err != nil {
			t.Fatalf("registering: %v", err)
		}
		if got := len(m.List()); got != before+1 {
			t.Errorf("list count: got %d, want %d", got, before+1)
		}

		if !m.Delete(sub.ID) {
			t.Error("delete reported false")
		}
		if m.Delete(sub.ID) {
			t.Error("second delete reported true")
		}
	})
}

func TestWebhookDelivery(t *testing.T) {
	received := make(chan Notification, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Weave-Event"); got != graph.EventNodeCreated {
			t.Errorf("wrong event header: %q", got)
		}
		var n Notification
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		received <- n
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewManager(zap.NewNop())
	m.Start()
	defer m.Stop()

	sub, err := m.Register("deliveries", "", srv.URL, Pattern{
		EventTypes: []string{graph.EventNodeCreated},
	})
	if err != nil {
		t.Fatalf("registering: %v", err)
	}

	m.HandleEvent(graph.Event{
		ID:     "ev1",
		Type:   graph.EventNodeCreated,
		NodeID: "n1",
	})
	// Non-matching event must not fire.
	m.HandleEvent(graph.Event{
		ID:   "ev2",
		Type: graph.EventNodeDeleted,
	})

	select {
	case n := <-received:
		if n.SubscriptionID != sub.ID {
			t.Errorf("wrong subscription id: %q", n.SubscriptionID)
		}
		if n.Event.ID != "ev1" {
			t.Errorf("wrong event delivered: %q", n.Event.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook never fired")
	}

	select {
	case n := <-received:
		t.Errorf("non-matching event delivered: %+v", n.Event)
	case <-time.After(100 * time.Millisecond):
	}

	got, err := m.Get(sub.ID)
	if err != nil {
		t.Fatalf("getting subscription: %v", err)
	}
	if got.FireCount != 1 {
		t.Errorf("fire count: got %d, want 1", got.FireCount)
	}
	if got.LastFired == nil {
		t.Error("LastFired not stamped")
	}
}

func TestNotifierRetriesAndFails(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier()
	err := n.SendWebhook(srv.URL, Notification{SubscriptionID: "s1"})
	if err == nil {
		t.Fatal("expected delivery error")
	}
	if calls != 3 {
		t.Errorf("wrong attempt count: got %d, want 3", calls)
	}
}
