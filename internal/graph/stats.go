package graph

import (
	"time"

	"go.uber.org/zap"
)

// ConnectionStats summarizes node degree across the graph. Isolated is
// the number of nodes no edge touches.
type ConnectionStats struct {
	Min      int     `json:"min"`
	Max      int     `json:"max"`
	Avg      float64 `json:"avg"`
	Isolated int     `json:"isolated"`
}

// Statistics is an aggregate view over the whole collection.
type Statistics struct {
	NodeCount   int             `json:"node_count"`
	EdgeCount   int             `json:"edge_count"`
	Categories  map[string]int  `json:"categories"`
	Sources     map[string]int  `json:"sources"`
	Timeline    map[string]int  `json:"timeline"` // YYYY-MM buckets
	EdgeTypes   map[string]int  `json:"edge_types"`
	Connections ConnectionStats `json:"connections"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Statistics aggregates distributions and degree summary in one pass
// over nodes and one over edges. Statistics are advisory: a fault yields
// an all-zero result, never an error.
func (s *Store) Statistics() (stats Statistics) {
	stats = emptyStatistics()

	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("statistics degraded to zero result", zap.Any("fault", r))
			stats = emptyStatistics()
		}
	}()

	s.mu.RLock()
	nodes := s.nodes
	edges := s.edges
	s.mu.RUnlock()

	stats.NodeCount = len(nodes)
	stats.EdgeCount = len(edges)

	for _, n := range nodes {
		for _, c := range n.Categories {
			stats.Categories[c]++
		}
		stats.Sources[n.Source]++
		stats.Timeline[n.Timestamp.Format("2006-01")]++
	}

	// Each edge contributes to both endpoints; a self-loop counts twice.
	degree := make(map[string]int)
	for _, e := range edges {
		stats.EdgeTypes[e.Type]++
		degree[e.Source]++
		degree[e.Target]++
	}

	if len(degree) > 0 {
		min, max, sum := -1, 0, 0
		for _, d := range degree {
			if min < 0 || d < min {
				min = d
			}
			if d > max {
				max = d
			}
			sum += d
		}
		stats.Connections.Min = min
		stats.Connections.Max = max
		stats.Connections.Avg = float64(sum) / float64(len(degree))
	}

	for _, n := range nodes {
		if degree[n.ID] == 0 {
			stats.Connections.Isolated++
		}
	}

	return stats
}

func emptyStatistics() Statistics {
	return Statistics{
		Categories:  make(map[string]int),
		Sources:     make(map[string]int),
		Timeline:    make(map[string]int),
		EdgeTypes:   make(map[string]int),
		LastUpdated: time.Now(),
	}
}
