// Package memory provides an in-memory Storage backend. It is the
// default for tests and ephemeral sessions; nothing survives the
// process.
package memory

import (
	"context"
	"sync"

	"github.com/systemshift/weave/internal/core"
)

// Store holds nodes and edges in insertion-ordered slices with id
// indexes. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	nodes   []core.Node
	edges   []core.Edge
	nodeIdx map[string]int
	edgeIdx map[string]int
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		nodeIdx: make(map[string]int),
		edgeIdx: make(map[string]int),
	}
}

// GetNodes returns all nodes in insertion order.
func (s *Store) GetNodes(ctx context.Context) ([]core.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Node, len(s.nodes))
	copy(out, s.nodes)
	return out, nil
}

// GetEdges returns all edges in insertion order.
func (s *Store) GetEdges(ctx context.Context) ([]core.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Edge, len(s.edges))
	copy(out, s.edges)
	return out, nil
}

// SaveNode upserts a node by id. An update keeps the node's position in
// the collection order.
func (s *Store) SaveNode(ctx context.Context, node core.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.nodeIdx[node.ID]; ok {
		s.nodes[i] = node
		return nil
	}
	s.nodeIdx[node.ID] = len(s.nodes)
	s.nodes = append(s.nodes, node)
	return nil
}

// SaveEdge upserts an edge by id.
func (s *Store) SaveEdge(ctx context.Context, edge core.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.edgeIdx[edge.ID]; ok {
		s.edges[i] = edge
		return nil
	}
	s.edgeIdx[edge.ID] = len(s.edges)
	s.edges = append(s.edges, edge)
	return nil
}

// DeleteNode removes a node, reporting whether it existed.
func (s *Store) DeleteNode(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.nodeIdx[id]
	if !ok {
		return false, nil
	}
	s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
	delete(s.nodeIdx, id)
	for j := i; j < len(s.nodes); j++ {
		s.nodeIdx[s.nodes[j].ID] = j
	}
	return true, nil
}

// DeleteEdge removes an edge, reporting whether it existed.
func (s *Store) DeleteEdge(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.edgeIdx[id]
	if !ok {
		return false, nil
	}
	s.edges = append(s.edges[:i], s.edges[i+1:]...)
	delete(s.edgeIdx, id)
	for j := i; j < len(s.edges); j++ {
		s.edgeIdx[s.edges[j].ID] = j
	}
	return true, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close(ctx context.Context) error {
	return nil
}
