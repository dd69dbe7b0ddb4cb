package graph

import (
	"time"
)

// Event describes a change to the graph. Events are emitted after the
// mutation has been persisted and the snapshot swapped.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Node event fields
	NodeID     string `json:"node_id,omitempty"`
	NodeSource string `json:"node_source,omitempty"`

	// Edge event fields
	EdgeID     string `json:"edge_id,omitempty"`
	EdgeSource string `json:"edge_source,omitempty"`
	EdgeTarget string `json:"edge_target,omitempty"`
	EdgeType   string `json:"edge_type,omitempty"`
}

// Event type constants
const (
	EventNodeCreated = "node.created"
	EventNodeUpdated = "node.updated"
	EventNodeDeleted = "node.deleted"
	EventEdgeCreated = "edge.created"
	EventEdgeDeleted = "edge.deleted"
)

// SetEventEmitter registers the callback invoked for every mutation
// event. The callback must not block; delivery fan-out belongs to the
// subscription layer.
func (s *Store) SetEventEmitter(emit func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit = emit
}

func (s *Store) emitEvent(ev Event) {
	if s.emit == nil {
		return
	}
	ev.ID = newEventID()
	ev.Timestamp = time.Now()
	s.emit(ev)
}
