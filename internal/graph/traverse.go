package graph

import (
	"go.uber.org/zap"

	"github.com/systemshift/weave/internal/core"
)

// Traversal directions.
const (
	DirectionBoth = "both"
	DirectionIn   = "in"
	DirectionOut  = "out"
)

// TraverseOptions control the breadth-first expansion.
type TraverseOptions struct {
	Depth       int      // default 1
	Limit       int      // hard result cap, default 50
	EdgeTypes   []string // nil matches every type
	Direction   string   // "both" (default), "in", or "out"
	IncludeSelf bool     // inject the seed at depth 0
}

// Connection is one traversal result: a reached node, the edge it was
// reached through, the depth it was found at, and the arrow direction
// relative to the node it was expanded from.
type Connection struct {
	Node      core.Node  `json:"node"`
	Edge      *core.Edge `json:"edge,omitempty"`
	Depth     int        `json:"depth"`
	Direction string     `json:"direction,omitempty"`
}

// ConnectedNodes expands breadth-first from the seed node up to
// opts.Depth levels, visiting each node at most once. Expansion stops
// the moment the result cap is reached, even mid-level. A missing seed
// yields an empty result: traversal is an advisory read and never fails.
func (s *Store) ConnectedNodes(nodeID string, opts TraverseOptions) []Connection {
	opts = opts.withDefaults()

	s.mu.RLock()
	nodes := s.nodes
	edges := s.edges
	s.mu.RUnlock()

	byID := make(map[string]core.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	seed, ok := byID[nodeID]
	if !ok {
		s.log.Warn("traversal seed not found", zap.String("node_id", nodeID))
		return []Connection{}
	}

	typeFilter := make(map[string]bool, len(opts.EdgeTypes))
	for _, t := range opts.EdgeTypes {
		typeFilter[t] = true
	}

	results := make([]Connection, 0, opts.Limit)
	visited := map[string]bool{nodeID: true}

	if opts.IncludeSelf {
		results = append(results, Connection{Node: seed, Depth: 0})
		if len(results) >= opts.Limit {
			return results
		}
	}

	frontier := []string{nodeID}
	for depth := 1; depth <= opts.Depth && len(frontier) > 0; depth++ {
		var next []string
		for _, current := range frontier {
			for i := range edges {
				edge := edges[i]
				neighbor, ok := follow(edge, current, opts.Direction)
				if !ok {
					continue
				}
				if len(typeFilter) > 0 && !typeFilter[edge.Type] {
					continue
				}
				if visited[neighbor] {
					continue
				}
				visited[neighbor] = true

				node, ok := byID[neighbor]
				if !ok {
					// Dangling edge; cascade delete should prevent this.
					continue
				}

				direction := DirectionIn
				if edge.Source == current {
					direction = DirectionOut
				}

				results = append(results, Connection{
					Node:      node,
					Edge:      &edge,
					Depth:     depth,
					Direction: direction,
				})
				if len(results) >= opts.Limit {
					return results
				}
				next = append(next, neighbor)
			}
		}
		frontier = next
	}

	return results
}

func (o TraverseOptions) withDefaults() TraverseOptions {
	if o.Depth <= 0 {
		o.Depth = 1
	}
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Direction == "" {
		o.Direction = DirectionBoth
	}
	return o
}

// follow reports the neighbor reached by traversing edge away from
// current under the direction filter. A bidirectional edge is
// traversable against its arrow.
func follow(edge core.Edge, current, direction string) (string, bool) {
	switch direction {
	case DirectionOut:
		if edge.Source == current {
			return edge.Target, true
		}
		if edge.Bidirectional && edge.Target == current {
			return edge.Source, true
		}
	case DirectionIn:
		if edge.Target == current {
			return edge.Source, true
		}
		if edge.Bidirectional && edge.Source == current {
			return edge.Target, true
		}
	default: // both
		if edge.Source == current {
			return edge.Target, true
		}
		if edge.Target == current {
			return edge.Source, true
		}
	}
	return "", false
}

// edgesTouching returns every edge referencing the node id as source or
// target. Shared by traversal and the delete cascade.
func edgesTouching(edges []core.Edge, nodeID string) []core.Edge {
	var out []core.Edge
	for _, e := range edges {
		if e.Touches(nodeID) {
			out = append(out, e)
		}
	}
	return out
}
