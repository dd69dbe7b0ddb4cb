// Package graph implements the knowledge graph engine: node and edge
// lifecycle, weighted full-text search, bounded traversal, and
// statistics aggregation over an in-memory snapshot of the persisted
// collection.
package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/systemshift/weave/internal/core"
)

// DefaultOpTimeout bounds each call into the storage backend.
const DefaultOpTimeout = 5 * time.Second

// Store is the lifecycle manager for nodes and edges. It owns the
// canonical in-memory snapshot, mirrors every mutation through the
// storage backend, and serves search, traversal, and statistics over
// the snapshot without touching storage again.
//
// Mutations take the write lock for their full duration: readers never
// observe a partially written collection. Reads run concurrently.
type Store struct {
	storage   core.Storage
	log       *zap.Logger
	opTimeout time.Duration

	mu    sync.RWMutex
	nodes []core.Node // insertion order, treated as immutable once published
	edges []core.Edge
	cache map[string]core.Node
	emit  func(Event)
}

// New creates a Store and loads the initial snapshot from storage.
func New(ctx context.Context, storage core.Storage, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Store{
		storage:   storage,
		log:       log,
		opTimeout: DefaultOpTimeout,
		cache:     make(map[string]core.Node),
	}

	if err := s.reload(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// reload replaces the snapshot with the storage backend's contents.
func (s *Store) reload(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	nodes, err := s.storage.GetNodes(ctx)
	if err != nil {
		return &core.PersistenceError{Op: "loading nodes", Err: err}
	}
	edges, err := s.storage.GetEdges(ctx)
	if err != nil {
		return &core.PersistenceError{Op: "loading edges", Err: err}
	}

	s.mu.Lock()
	s.nodes = nodes
	s.edges = edges
	s.cache = make(map[string]core.Node)
	s.mu.Unlock()

	s.log.Info("graph loaded",
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)))
	return nil
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// AddNode assigns an id if missing, fills defaults, derives the preview,
// persists the node, and returns its id.
func (s *Store) AddNode(ctx context.Context, node core.Node) (string, error) {
	now := time.Now()

	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.Title == "" {
		node.Title = core.DefaultTitle
	}
	if node.Source == "" {
		node.Source = core.DefaultSource
	}
	if node.Timestamp.IsZero() {
		node.Timestamp = now
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	if node.UpdatedAt.IsZero() {
		node.UpdatedAt = now
	}
	node.Preview = buildPreview(node)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveNode(ctx, node); err != nil {
		return "", err
	}

	nodes := make([]core.Node, len(s.nodes), len(s.nodes)+1)
	copy(nodes, s.nodes)
	if i := indexOfNode(nodes, node.ID); i >= 0 {
		nodes[i] = node
	} else {
		nodes = append(nodes, node)
	}
	s.nodes = nodes
	s.cache[node.ID] = node

	s.emitEvent(Event{Type: EventNodeCreated, NodeID: node.ID, NodeSource: node.Source})
	return node.ID, nil
}

// GetNode returns the node with the given id. A cache hit returns
// immediately; a miss scans the snapshot and populates the cache.
func (s *Store) GetNode(ctx context.Context, id string) (core.Node, error) {
	s.mu.RLock()
	if node, ok := s.cache[id]; ok {
		s.mu.RUnlock()
		return node, nil
	}
	nodes := s.nodes
	s.mu.RUnlock()

	if indexOfNode(nodes, id) < 0 {
		return core.Node{}, &core.NotFoundError{Kind: "node", ID: id}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The snapshot may be stale by now: a delete that finished between the
	// scan and this lock already evicted the id, and caching the old copy
	// would resurrect it. Only the current collection decides existence.
	i := indexOfNode(s.nodes, id)
	if i < 0 {
		return core.Node{}, &core.NotFoundError{Kind: "node", ID: id}
	}
	node := s.nodes[i]
	s.cache[id] = node
	return node, nil
}

// UpdateNode merges the update onto the existing node, recomputes the
// preview when title or content changed, stamps UpdatedAt, persists, and
// returns the merged node.
func (s *Store) UpdateNode(ctx context.Context, id string, upd NodeUpdate) (core.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOfNode(s.nodes, id)
	if i < 0 {
		return core.Node{}, &core.NotFoundError{Kind: "node", ID: id}
	}

	node, previewDirty := upd.apply(s.nodes[i])
	node.UpdatedAt = time.Now()
	if previewDirty {
		node.Preview = buildPreview(node)
	}

	if err := s.saveNode(ctx, node); err != nil {
		return core.Node{}, err
	}

	nodes := make([]core.Node, len(s.nodes))
	copy(nodes, s.nodes)
	nodes[i] = node
	s.nodes = nodes
	s.cache[id] = node

	s.emitEvent(Event{Type: EventNodeUpdated, NodeID: node.ID, NodeSource: node.Source})
	return node, nil
}

// DeleteNode removes the node and every edge referencing it. Deleting a
// missing id returns false without error.
func (s *Store) DeleteNode(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOfNode(s.nodes, id)
	if i < 0 {
		return false, nil
	}
	source := s.nodes[i].Source

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	if _, err := s.storage.DeleteNode(opCtx, id); err != nil {
		return false, &core.PersistenceError{Op: fmt.Sprintf("deleting node %s", id), Err: err}
	}

	// Cascade: an edge never outlives its endpoints.
	cascade := edgesTouching(s.edges, id)
	for _, e := range cascade {
		if _, err := s.storage.DeleteEdge(opCtx, e.ID); err != nil {
			return false, &core.PersistenceError{Op: fmt.Sprintf("deleting edge %s", e.ID), Err: err}
		}
	}

	nodes := make([]core.Node, 0, len(s.nodes)-1)
	nodes = append(nodes, s.nodes[:i]...)
	nodes = append(nodes, s.nodes[i+1:]...)
	s.nodes = nodes

	if len(cascade) > 0 {
		edges := make([]core.Edge, 0, len(s.edges)-len(cascade))
		for _, e := range s.edges {
			if !e.Touches(id) {
				edges = append(edges, e)
			}
		}
		s.edges = edges
	}

	delete(s.cache, id)

	for _, e := range cascade {
		s.emitEvent(Event{Type: EventEdgeDeleted, EdgeID: e.ID, EdgeSource: e.Source, EdgeTarget: e.Target, EdgeType: e.Type})
	}
	s.emitEvent(Event{Type: EventNodeDeleted, NodeID: id, NodeSource: source})
	return true, nil
}

// AddEdge validates that both endpoints exist, fills defaults, persists
// the edge, and returns its id.
func (s *Store) AddEdge(ctx context.Context, edge core.Edge) (string, error) {
	if edge.Source == "" {
		return "", &core.ValidationError{Field: "source", Reason: "required"}
	}
	if edge.Target == "" {
		return "", &core.ValidationError{Field: "target", Reason: "required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if indexOfNode(s.nodes, edge.Source) < 0 {
		return "", &core.ValidationError{Field: "source", Reason: "node does not exist: " + edge.Source}
	}
	if indexOfNode(s.nodes, edge.Target) < 0 {
		return "", &core.ValidationError{Field: "target", Reason: "node does not exist: " + edge.Target}
	}

	now := time.Now()
	if edge.ID == "" {
		edge.ID = fmt.Sprintf("%s-%s-%s", edge.Source, edge.Target, uuid.New().String()[:8])
	}
	if edge.Type == "" {
		edge.Type = core.DefaultEdgeType
	}
	if edge.Weight == 0 {
		edge.Weight = 1.0
	}
	if edge.Timestamp.IsZero() {
		edge.Timestamp = now
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = now
	}
	if edge.UpdatedAt.IsZero() {
		edge.UpdatedAt = now
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.storage.SaveEdge(opCtx, edge); err != nil {
		return "", &core.PersistenceError{Op: fmt.Sprintf("saving edge %s", edge.ID), Err: err}
	}

	edges := make([]core.Edge, len(s.edges), len(s.edges)+1)
	copy(edges, s.edges)
	if i := indexOfEdge(edges, edge.ID); i >= 0 {
		edges[i] = edge
	} else {
		edges = append(edges, edge)
	}
	s.edges = edges

	s.emitEvent(Event{Type: EventEdgeCreated, EdgeID: edge.ID, EdgeSource: edge.Source, EdgeTarget: edge.Target, EdgeType: edge.Type})
	return edge.ID, nil
}

// GetEdge returns the edge with the given id. Edges are not cached.
func (s *Store) GetEdge(ctx context.Context, id string) (core.Edge, error) {
	s.mu.RLock()
	edges := s.edges
	s.mu.RUnlock()

	if i := indexOfEdge(edges, id); i >= 0 {
		return edges[i], nil
	}
	return core.Edge{}, &core.NotFoundError{Kind: "edge", ID: id}
}

// DeleteEdge removes the edge. Deleting a missing id returns false
// without error.
func (s *Store) DeleteEdge(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOfEdge(s.edges, id)
	if i < 0 {
		return false, nil
	}
	removed := s.edges[i]

	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	if _, err := s.storage.DeleteEdge(opCtx, id); err != nil {
		return false, &core.PersistenceError{Op: fmt.Sprintf("deleting edge %s", id), Err: err}
	}

	edges := make([]core.Edge, 0, len(s.edges)-1)
	edges = append(edges, s.edges[:i]...)
	edges = append(edges, s.edges[i+1:]...)
	s.edges = edges

	s.emitEvent(Event{Type: EventEdgeDeleted, EdgeID: removed.ID, EdgeSource: removed.Source, EdgeTarget: removed.Target, EdgeType: removed.Type})
	return true, nil
}

// Edges returns the current edge snapshot.
func (s *Store) Edges() []core.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edges
}

// Nodes returns the current node snapshot.
func (s *Store) Nodes() []core.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes
}

// Close closes the storage backend.
func (s *Store) Close(ctx context.Context) error {
	return s.storage.Close(ctx)
}

// saveNode persists a node. Caller holds the write lock.
func (s *Store) saveNode(ctx context.Context, node core.Node) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.storage.SaveNode(opCtx, node); err != nil {
		return &core.PersistenceError{Op: fmt.Sprintf("saving node %s", node.ID), Err: err}
	}
	return nil
}

func indexOfNode(nodes []core.Node, id string) int {
	for i := range nodes {
		if nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfEdge(edges []core.Edge, id string) int {
	for i := range edges {
		if edges[i].ID == id {
			return i
		}
	}
	return -1
}

func newEventID() string {
	return uuid.New().String()
}
