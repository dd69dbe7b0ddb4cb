package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/systemshift/weave/internal/core"
	"github.com/systemshift/weave/internal/store/memory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), memory.New(), zap.NewNop())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return s
}

func mustAddNode(t *testing.T, s *Store, node core.Node) string {
	t.Helper()
	id, err := s.AddNode(context.Background(), node)
	if err != nil {
		t.Fatalf("adding node: %v", err)
	}
	return id
}

func mustAddEdge(t *testing.T, s *Store, edge core.Edge) string {
	t.Helper()
	id, err := s.AddEdge(context.Background(), edge)
	if err != nil {
		t.Fatalf("adding edge: %v", err)
	}
	return id
}

func TestAddNode(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t.Run("Defaults", func(t *testing.T) {
		id := mustAddNode(t, s, core.Node{})

		node, err := s.GetNode(ctx, id)
		if err != nil {
			t.Fatalf("getting node: %v", err)
		}
		if node.ID == "" {
			t.Error("id not assigned")
		}
		if node.Title != "Untitled" {
			t.Errorf("wrong title: got %q, want Untitled", node.Title)
		}
		if node.Source != "manual" {
			t.Errorf("wrong source: got %q, want manual", node.Source)
		}
		if node.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
		if node.CreatedAt.IsZero() || node.UpdatedAt.IsZero() {
			t.Error("lifecycle timestamps not set")
		}
	})

	t.Run("Caller Supplied ID", func(t *testing.T) {
		id := mustAddNode(t, s, core.Node{ID: "my-id", Title: "Mine"})
		if id != "my-id" {
			t.Errorf("id rewritten: got %s", id)
		}
	})

	t.Run("Preview Derived", func(t *testing.T) {
		long := strings.Repeat("x", 200)
		id := mustAddNode(t, s, core.Node{
			Title: "Preview Test",
			Content: core.Content{
				Text: long,
				Entities: []core.Entity{
					{Name: "one"}, {Name: "two"}, {Name: "three"},
					{Name: "four"}, {Name: "five"}, {Name: "six"},
				},
			},
		})

		node, err := s.GetNode(ctx, id)
		if err != nil {
			t.Fatalf("getting node: %v", err)
		}
		if node.Preview.Title != "Preview Test" {
			t.Errorf("wrong preview title: %q", node.Preview.Title)
		}
		want := strings.Repeat("x", 150) + "..."
		if node.Preview.Summary != want {
			t.Errorf("wrong preview summary: got %d chars", len(node.Preview.Summary))
		}
		if len(node.Preview.Keywords) != 5 {
			t.Errorf("wrong keyword count: got %d, want 5", len(node.Preview.Keywords))
		}
	})
}

func TestGetNode(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id := mustAddNode(t, s, core.Node{Title: "Findable"})

	t.Run("Found", func(t *testing.T) {
		node, err := s.GetNode(ctx, id)
		if err != nil {
			t.Fatalf("getting node: %v", err)
		}
		if node.Title != "Findable" {
			t.Errorf("wrong title: %q", node.Title)
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		_, err := s.GetNode(ctx, "no-such-id")
		if !core.IsNotFound(err) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	})
}

func TestUpdateNode(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id := mustAddNode(t, s, core.Node{
		Title:   "Original",
		URL:     "https://example.com",
		Tags:    []string{"keep"},
		Content: core.Content{Text: "original text"},
	})

	t.Run("Merges Fields", func(t *testing.T) {
		title := "Renamed"
		updated, err := s.UpdateNode(ctx, id, NodeUpdate{Title: &title})
		if err != nil {
			t.Fatalf("updating node: %v", err)
		}
		if updated.Title != "Renamed" {
			t.Errorf("title not merged: %q", updated.Title)
		}
		if updated.URL != "https://example.com" {
			t.Errorf("url clobbered: %q", updated.URL)
		}
		if len(updated.Tags) != 1 || updated.Tags[0] != "keep" {
			t.Errorf("tags clobbered: %v", updated.Tags)
		}
		if updated.ID != id {
			t.Errorf("id changed: %s", updated.ID)
		}
	})

	t.Run("Recomputes Preview On Content Change", func(t *testing.T) {
		updated, err := s.UpdateNode(ctx, id, NodeUpdate{
			Content: &core.Content{Text: "brand new text"},
		})
		if err != nil {
			t.Fatalf("updating node: %v", err)
		}
		if updated.Preview.Summary != "brand new text" {
			t.Errorf("preview stale: %q", updated.Preview.Summary)
		}
		if updated.Preview.Title != "Renamed" {
			t.Errorf("preview title stale: %q", updated.Preview.Title)
		}
	})

	t.Run("Stamps UpdatedAt", func(t *testing.T) {
		before, err := s.GetNode(ctx, id)
		if err != nil {
			t.Fatalf("getting node: %v", err)
		}
		time.Sleep(time.Millisecond)
		src := "webpage"
		updated, err := s.UpdateNode(ctx, id, NodeUpdate{Source: &src})
		if err != nil {
			t.Fatalf("updating node: %v", err)
		}
		if !updated.UpdatedAt.After(before.UpdatedAt) {
			t.Error("UpdatedAt not refreshed")
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		title := "x"
		_, err := s.UpdateNode(ctx, "no-such-id", NodeUpdate{Title: &title})
		if !core.IsNotFound(err) {
			t.Errorf("expected NotFoundError, got %v", err)
		}
	})
}

func TestDeleteNode(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t.Run("Idempotent On Missing", func(t *testing.T) {
		deleted, err := s.DeleteNode(ctx, "no-such-id")
		if err != nil {
			t.Fatalf("deleting node: %v", err)
		}
		if deleted {
			t.Error("delete of missing id reported true")
		}
	})

	t.Run("Cascades Edges", func(t *testing.T) {
		a := mustAddNode(t, s, core.Node{Title: "A"})
		b := mustAddNode(t, s, core.Node{Title: "B"})
		c := mustAddNode(t, s, core.Node{Title: "C"})
		mustAddEdge(t, s, core.Edge{Source: a, Target: b})
		mustAddEdge(t, s, core.Edge{Source: c, Target: a})
		kept := mustAddEdge(t, s, core.Edge{Source: b, Target: c})

		deleted, err := s.DeleteNode(ctx, a)
		if err != nil {
			t.Fatalf("deleting node: %v", err)
		}
		if !deleted {
			t.Fatal("delete reported false")
		}

		if _, err := s.GetNode(ctx, a); !core.IsNotFound(err) {
			t.Error("node still present after delete")
		}

		// Referential integrity: no surviving edge touches the deleted node.
		for _, e := range s.Edges() {
			if e.Touches(a) {
				t.Errorf("edge %s still references deleted node", e.ID)
			}
		}
		if _, err := s.GetEdge(ctx, kept); err != nil {
			t.Errorf("unrelated edge removed: %v", err)
		}
	})
}

func TestAddEdge(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := mustAddNode(t, s, core.Node{Title: "A"})
	b := mustAddNode(t, s, core.Node{Title: "B"})

	t.Run("Defaults", func(t *testing.T) {
		id := mustAddEdge(t, s, core.Edge{Source: a, Target: b})

		edge, err := s.GetEdge(ctx, id)
		if err != nil {
			t.Fatalf("getting edge: %v", err)
		}
		if edge.Type != "related" {
			t.Errorf("wrong type: got %q, want related", edge.Type)
		}
		if edge.Weight != 1.0 {
			t.Errorf("wrong weight: got %v, want 1.0", edge.Weight)
		}
		if !strings.HasPrefix(edge.ID, a+"-"+b+"-") {
			t.Errorf("unexpected generated id: %s", edge.ID)
		}
	})

	t.Run("Missing Endpoint Fails", func(t *testing.T) {
		_, err := s.AddEdge(ctx, core.Edge{Source: a, Target: "no-such-id"})
		if !core.IsValidation(err) {
			t.Errorf("expected ValidationError, got %v", err)
		}
		_, err = s.AddEdge(ctx, core.Edge{Source: "no-such-id", Target: b})
		if !core.IsValidation(err) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("Blank Endpoint Fails", func(t *testing.T) {
		_, err := s.AddEdge(ctx, core.Edge{Target: b})
		if !core.IsValidation(err) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})
}

func TestDeleteEdge(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := mustAddNode(t, s, core.Node{Title: "A"})
	b := mustAddNode(t, s, core.Node{Title: "B"})
	id := mustAddEdge(t, s, core.Edge{Source: a, Target: b})

	deleted, err := s.DeleteEdge(ctx, id)
	if err != nil {
		t.Fatalf("deleting edge: %v", err)
	}
	if !deleted {
		t.Error("delete reported false")
	}

	deleted, err = s.DeleteEdge(ctx, id)
	if err != nil {
		t.Fatalf("deleting edge again: %v", err)
	}
	if deleted {
		t.Error("second delete reported true")
	}
}

func TestEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var events []Event
	s.SetEventEmitter(func(ev Event) { events = append(events, ev) })

	a := mustAddNode(t, s, core.Node{Title: "A"})
	b := mustAddNode(t, s, core.Node{Title: "B"})
	mustAddEdge(t, s, core.Edge{Source: a, Target: b})
	if _, err := s.DeleteNode(ctx, a); err != nil {
		t.Fatalf("deleting node: %v", err)
	}

	want := []string{
		EventNodeCreated, EventNodeCreated, EventEdgeCreated,
		EventEdgeDeleted, EventNodeDeleted,
	}
	if len(events) != len(want) {
		t.Fatalf("wrong event count: got %d, want %d", len(events), len(want))
	}
	for i, ev := range events {
		if ev.Type != want[i] {
			t.Errorf("event %d: got %s, want %s", i, ev.Type, want[i])
		}
		if ev.ID == "" || ev.Timestamp.IsZero() {
			t.Errorf("event %d missing id or timestamp", i)
		}
	}

	// The delete event keeps the node's provenance so source-filtered
	// subscriptions can match it.
	last := events[len(events)-1]
	if last.NodeID != a {
		t.Errorf("node.deleted carries wrong id: %q", last.NodeID)
	}
	if last.NodeSource != "manual" {
		t.Errorf("node.deleted missing source: %q", last.NodeSource)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	keep := mustAddNode(t, s, core.Node{ID: "keep", Title: "stable record"})

	for i := 0; i < 50; i++ {
		victim := mustAddNode(t, s, core.Node{ID: fmt.Sprintf("victim%d", i)})

		stop := make(chan struct{})
		var wg sync.WaitGroup

		// Readers hammer the victim on a cold cache while it is deleted.
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					s.GetNode(ctx, victim)
					s.Search("stable", SearchOptions{})
				}
			}
		}()

		// A writer keeps the snapshot churning on an unrelated node.
		wg.Add(1)
		go func() {
			defer wg.Done()
			title := "stable record"
			for {
				select {
				case <-stop:
					return
				default:
					s.UpdateNode(ctx, keep, NodeUpdate{Title: &title})
				}
			}
		}()

		if _, err := s.DeleteNode(ctx, victim); err != nil {
			t.Fatalf("deleting node: %v", err)
		}

		// Invalidation completes before DeleteNode returns: no read
		// started after this point may serve the id, even if an in-flight
		// cache fill raced the delete.
		for j := 0; j < 100; j++ {
			if _, err := s.GetNode(ctx, victim); !core.IsNotFound(err) {
				t.Fatalf("iteration %d: deleted node served after delete returned: %v", i, err)
			}
		}

		close(stop)
		wg.Wait()
	}

	if _, err := s.GetNode(ctx, keep); err != nil {
		t.Fatalf("unrelated node lost: %v", err)
	}
}
