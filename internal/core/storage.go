package core

import (
	"context"
)

// Storage is the persistence interface the engine consumes. Backends are
// eventually consistent as a whole but individually atomic per record.
//
// GetNodes and GetEdges must return records in insertion order: search
// tie-breaking and traversal results depend on a stable collection order.
type Storage interface {
	GetNodes(ctx context.Context) ([]Node, error)
	GetEdges(ctx context.Context) ([]Edge, error)

	// SaveNode and SaveEdge upsert by id.
	SaveNode(ctx context.Context, node Node) error
	SaveEdge(ctx context.Context, edge Edge) error

	// DeleteNode and DeleteEdge report whether the id existed. A missing
	// id is not an error (idempotent delete).
	DeleteNode(ctx context.Context, id string) (bool, error)
	DeleteEdge(ctx context.Context, id string) (bool, error)

	Close(ctx context.Context) error
}
