package graph

import (
	"time"

	"github.com/systemshift/weave/internal/core"
)

// NodeUpdate is a partial update applied to an existing node. Nil fields
// are left unchanged; the node id is never touched. Which fields are
// mergeable is exactly the set listed here.
type NodeUpdate struct {
	Title      *string
	Content    *core.Content
	URL        *string
	Timestamp  *time.Time
	Source     *string
	Categories []string
	Tags       []string
}

// apply merges the update onto node and reports whether the preview
// needs recomputing (title or content changed).
func (u NodeUpdate) apply(node core.Node) (core.Node, bool) {
	previewDirty := false

	if u.Title != nil && *u.Title != node.Title {
		node.Title = *u.Title
		previewDirty = true
	}
	if u.Content != nil {
		node.Content = *u.Content
		previewDirty = true
	}
	if u.URL != nil {
		node.URL = *u.URL
	}
	if u.Timestamp != nil {
		node.Timestamp = *u.Timestamp
	}
	if u.Source != nil {
		node.Source = *u.Source
	}
	if u.Categories != nil {
		node.Categories = u.Categories
	}
	if u.Tags != nil {
		node.Tags = u.Tags
	}

	return node, previewDirty
}
