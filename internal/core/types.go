package core

import (
	"time"
)

// Default field values applied when a node is created without them.
const (
	DefaultTitle    = "Untitled"
	DefaultSource   = "manual"
	DefaultEdgeType = "related"
)

// Preview derivation limits.
const (
	PreviewSummaryLen = 150
	PreviewKeywordMax = 5
)

// Entity is a named thing recognized in captured content by the
// upstream extraction pipeline. The engine only reads Name.
type Entity struct {
	Name string         `json:"name"`
	Type string         `json:"type,omitempty"`
	Meta map[string]any `json:"meta,omitempty"`
}

// Content is the structured payload attached to a node. It is produced
// by extraction/AI components upstream; the engine treats it as data and
// only reads the fields used for search and preview derivation.
type Content struct {
	Text       string   `json:"text,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Entities   []Entity `json:"entities,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
}

// Preview is the derived summary shown in listings. It is recomputed
// whenever a node's title or content changes, never stored stale.
type Preview struct {
	Title    string    `json:"title"`
	Summary  string    `json:"summary"`
	Keywords []string  `json:"keywords,omitempty"`
	Source   string    `json:"source"`
	Date     time.Time `json:"date"`
}

// Node is a captured unit of knowledge.
type Node struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    Content   `json:"content"`
	URL        string    `json:"url,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
	Categories []string  `json:"categories,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Preview    Preview   `json:"preview"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Edge is a directed, optionally bidirectional, typed relation between
// two nodes. Source and Target must reference existing nodes at creation
// time, and an edge never outlives its endpoints.
type Edge struct {
	ID            string         `json:"id"`
	Source        string         `json:"source"`
	Target        string         `json:"target"`
	Type          string         `json:"type"`
	Weight        float64        `json:"weight"`
	Bidirectional bool           `json:"bidirectional,omitempty"`
	Label         string         `json:"label,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Touches reports whether the edge references the given node id as
// either endpoint.
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}
