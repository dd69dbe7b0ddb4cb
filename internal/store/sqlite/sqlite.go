// Package sqlite provides the default durable Storage backend, a single
// SQLite database file holding the node and edge collections.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/systemshift/weave/internal/core"
)

// Store implements core.Storage over SQLite. Structured fields are
// stored as JSON columns; collection order is the insert sequence.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and applies the
// schema.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}

	for _, pragma := range allPragmas() {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	for _, stmt := range allSchemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

// GetNodes returns all nodes in insertion order.
func (s *Store) GetNodes(ctx context.Context) ([]core.Node, error) {
	query := `
		SELECT id, title, content, url, timestamp, source, categories, tags, preview, created_at, updated_at
		FROM nodes
		ORDER BY seq
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var nodes []core.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

// GetEdges returns all edges in insertion order.
func (s *Store) GetEdges(ctx context.Context) ([]core.Edge, error) {
	query := `
		SELECT id, source_id, target_id, type, weight, bidirectional, label, metadata, timestamp, created_at, updated_at
		FROM edges
		ORDER BY seq
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	var edges []core.Edge
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// SaveNode upserts a node by id.
func (s *Store) SaveNode(ctx context.Context, node core.Node) error {
	contentJSON, err := json.Marshal(node.Content)
	if err != nil {
		return fmt.Errorf("marshaling content: %w", err)
	}
	categoriesJSON, err := json.Marshal(node.Categories)
	if err != nil {
		return fmt.Errorf("marshaling categories: %w", err)
	}
	tagsJSON, err := json.Marshal(node.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}
	previewJSON, err := json.Marshal(node.Preview)
	if err != nil {
		return fmt.Errorf("marshaling preview: %w", err)
	}

	query := `
		INSERT INTO nodes (id, title, content, url, timestamp, source, categories, tags, preview, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			url = excluded.url,
			timestamp = excluded.timestamp,
			source = excluded.source,
			categories = excluded.categories,
			tags = excluded.tags,
			preview = excluded.preview,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		node.ID,
		node.Title,
		string(contentJSON),
		node.URL,
		node.Timestamp.Format(time.RFC3339Nano),
		node.Source,
		string(categoriesJSON),
		string(tagsJSON),
		string(previewJSON),
		node.CreatedAt.Format(time.RFC3339Nano),
		node.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving node: %w", err)
	}
	return nil
}

// SaveEdge upserts an edge by id.
func (s *Store) SaveEdge(ctx context.Context, edge core.Edge) error {
	metadataJSON, err := json.Marshal(edge.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	query := `
		INSERT INTO edges (id, source_id, target_id, type, weight, bidirectional, label, metadata, timestamp, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			target_id = excluded.target_id,
			type = excluded.type,
			weight = excluded.weight,
			bidirectional = excluded.bidirectional,
			label = excluded.label,
			metadata = excluded.metadata,
			timestamp = excluded.timestamp,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		edge.ID,
		edge.Source,
		edge.Target,
		edge.Type,
		edge.Weight,
		boolToInt(edge.Bidirectional),
		edge.Label,
		string(metadataJSON),
		edge.Timestamp.Format(time.RFC3339Nano),
		edge.CreatedAt.Format(time.RFC3339Nano),
		edge.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving edge: %w", err)
	}
	return nil
}

// DeleteNode removes a node, reporting whether it existed.
func (s *Store) DeleteNode(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting node: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteEdge removes an edge, reporting whether it existed.
func (s *Store) DeleteEdge(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM edges WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting edge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanNode(rows *sql.Rows) (core.Node, error) {
	var node core.Node
	var contentStr, categoriesStr, tagsStr, previewStr string
	var url sql.NullString
	var timestamp, createdAt, updatedAt string

	if err := rows.Scan(&node.ID, &node.Title, &contentStr, &url, &timestamp,
		&node.Source, &categoriesStr, &tagsStr, &previewStr, &createdAt, &updatedAt); err != nil {
		return core.Node{}, fmt.Errorf("scanning node: %w", err)
	}

	if url.Valid {
		node.URL = url.String
	}
	if err := json.Unmarshal([]byte(contentStr), &node.Content); err != nil {
		return core.Node{}, fmt.Errorf("unmarshaling content: %w", err)
	}
	if err := json.Unmarshal([]byte(categoriesStr), &node.Categories); err != nil {
		return core.Node{}, fmt.Errorf("unmarshaling categories: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsStr), &node.Tags); err != nil {
		return core.Node{}, fmt.Errorf("unmarshaling tags: %w", err)
	}
	if err := json.Unmarshal([]byte(previewStr), &node.Preview); err != nil {
		return core.Node{}, fmt.Errorf("unmarshaling preview: %w", err)
	}

	node.Timestamp = parseTime(timestamp)
	node.CreatedAt = parseTime(createdAt)
	node.UpdatedAt = parseTime(updatedAt)
	return node, nil
}

func scanEdge(rows *sql.Rows) (core.Edge, error) {
	var edge core.Edge
	var bidirectional int
	var label, metadataStr sql.NullString
	var timestamp, createdAt, updatedAt string

	if err := rows.Scan(&edge.ID, &edge.Source, &edge.Target, &edge.Type, &edge.Weight,
		&bidirectional, &label, &metadataStr, &timestamp, &createdAt, &updatedAt); err != nil {
		return core.Edge{}, fmt.Errorf("scanning edge: %w", err)
	}

	edge.Bidirectional = bidirectional == 1
	if label.Valid {
		edge.Label = label.String
	}
	if metadataStr.Valid && metadataStr.String != "" && metadataStr.String != "null" {
		if err := json.Unmarshal([]byte(metadataStr.String), &edge.Metadata); err != nil {
			return core.Edge{}, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	edge.Timestamp = parseTime(timestamp)
	edge.CreatedAt = parseTime(createdAt)
	edge.UpdatedAt = parseTime(updatedAt)
	return edge, nil
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
