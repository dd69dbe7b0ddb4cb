// Package neo4j provides a Neo4j-backed Storage implementation for
// deployments that want the graph queryable outside the engine.
package neo4j

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/systemshift/weave/internal/core"
)

// Config holds Neo4j connection configuration.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Store implements core.Storage over Neo4j. Nodes are (:Node) vertices,
// edges are [:EDGE] relationships; structured payloads are stored as
// JSON string properties because Neo4j properties cannot nest. A
// monotonic seq property preserves insertion order across reloads.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}

	db := cfg.Database
	if db == "" {
		db = "neo4j"
	}

	return &Store{driver: driver, database: db}, nil
}

// Close closes the Neo4j connection.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

// GetNodes returns all nodes in insertion order.
func (s *Store) GetNodes(ctx context.Context) ([]core.Node, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n:Node) RETURN n ORDER BY n.seq`, nil)
		if err != nil {
			return nil, err
		}

		var nodes []core.Node
		for res.Next(ctx) {
			value, _ := res.Record().Get("n")
			node, err := nodeFromProps(value.(neo4j.Node).Props)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}
		return nodes, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	if result == nil {
		return nil, nil
	}
	return result.([]core.Node), nil
}

// GetEdges returns all edges in insertion order.
func (s *Store) GetEdges(ctx context.Context) ([]core.Edge, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (:Node)-[r:EDGE]->(:Node) RETURN r ORDER BY r.seq`, nil)
		if err != nil {
			return nil, err
		}

		var edges []core.Edge
		for res.Next(ctx) {
			value, _ := res.Record().Get("r")
			edge, err := edgeFromProps(value.(neo4j.Relationship).Props)
			if err != nil {
				return nil, err
			}
			edges = append(edges, edge)
		}
		return edges, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	if result == nil {
		return nil, nil
	}
	return result.([]core.Edge), nil
}

// SaveNode upserts a node by id. A new node receives the next seq value;
// an update keeps its original seq.
func (s *Store) SaveNode(ctx context.Context, node core.Node) error {
	contentJSON, err := json.Marshal(node.Content)
	if err != nil {
		return fmt.Errorf("marshaling content: %w", err)
	}
	previewJSON, err := json.Marshal(node.Preview)
	if err != nil {
		return fmt.Errorf("marshaling preview: %w", err)
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			OPTIONAL MATCH (m:Node)
			WITH coalesce(max(m.seq), 0) + 1 AS nextSeq
			MERGE (n:Node {id: $id})
			ON CREATE SET n.seq = nextSeq, n.created_at = $created_at
			SET n.title = $title,
			    n.content = $content,
			    n.url = $url,
			    n.timestamp = $timestamp,
			    n.source = $source,
			    n.categories = $categories,
			    n.tags = $tags,
			    n.preview = $preview,
			    n.updated_at = $updated_at
		`

		params := map[string]any{
			"id":         node.ID,
			"title":      node.Title,
			"content":    string(contentJSON),
			"url":        node.URL,
			"timestamp":  node.Timestamp.Format(time.RFC3339Nano),
			"source":     node.Source,
			"categories": node.Categories,
			"tags":       node.Tags,
			"preview":    string(previewJSON),
			"created_at": node.CreatedAt.Format(time.RFC3339Nano),
			"updated_at": node.UpdatedAt.Format(time.RFC3339Nano),
		}

		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
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

	session := s.session(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			OPTIONAL MATCH (:Node)-[p:EDGE]->(:Node)
			WITH coalesce(max(p.seq), 0) + 1 AS nextSeq
			MATCH (a:Node {id: $source}), (b:Node {id: $target})
			MERGE (a)-[r:EDGE {id: $id}]->(b)
			ON CREATE SET r.seq = nextSeq, r.created_at = $created_at
			SET r.source = $source,
			    r.target = $target,
			    r.type = $type,
			    r.weight = $weight,
			    r.bidirectional = $bidirectional,
			    r.label = $label,
			    r.metadata = $metadata,
			    r.timestamp = $timestamp,
			    r.updated_at = $updated_at
		`

		params := map[string]any{
			"id":            edge.ID,
			"source":        edge.Source,
			"target":        edge.Target,
			"type":          edge.Type,
			"weight":        edge.Weight,
			"bidirectional": edge.Bidirectional,
			"label":         edge.Label,
			"metadata":      string(metadataJSON),
			"timestamp":     edge.Timestamp.Format(time.RFC3339Nano),
			"created_at":    edge.CreatedAt.Format(time.RFC3339Nano),
			"updated_at":    edge.UpdatedAt.Format(time.RFC3339Nano),
		}

		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("saving edge: %w", err)
	}
	return nil
}

// DeleteNode removes a node, reporting whether it existed. Relationship
// cleanup is the engine's job, but DETACH guards against orphans left by
// external writers.
func (s *Store) DeleteNode(ctx context.Context, id string) (bool, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (n:Node {id: $id}) DETACH DELETE n RETURN count(n) AS deleted`,
			map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		deleted, _ := record.Get("deleted")
		return deleted.(int64) > 0, nil
	})
	if err != nil {
		return false, fmt.Errorf("deleting node: %w", err)
	}
	return result.(bool), nil
}

// DeleteEdge removes an edge, reporting whether it existed.
func (s *Store) DeleteEdge(ctx context.Context, id string) (bool, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH ()-[r:EDGE {id: $id}]->() DELETE r RETURN count(r) AS deleted`,
			map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		deleted, _ := record.Get("deleted")
		return deleted.(int64) > 0, nil
	})
	if err != nil {
		return false, fmt.Errorf("deleting edge: %w", err)
	}
	return result.(bool), nil
}

func nodeFromProps(props map[string]any) (core.Node, error) {
	node := core.Node{
		ID:     stringProp(props, "id"),
		Title:  stringProp(props, "title"),
		URL:    stringProp(props, "url"),
		Source: stringProp(props, "source"),
	}

	if raw := stringProp(props, "content"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &node.Content); err != nil {
			return core.Node{}, fmt.Errorf("unmarshaling content: %w", err)
		}
	}
	if raw := stringProp(props, "preview"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &node.Preview); err != nil {
			return core.Node{}, fmt.Errorf("unmarshaling preview: %w", err)
		}
	}

	node.Categories = stringListProp(props, "categories")
	node.Tags = stringListProp(props, "tags")
	node.Timestamp = timeProp(props, "timestamp")
	node.CreatedAt = timeProp(props, "created_at")
	node.UpdatedAt = timeProp(props, "updated_at")
	return node, nil
}

func edgeFromProps(props map[string]any) (core.Edge, error) {
	edge := core.Edge{
		ID:     stringProp(props, "id"),
		Source: stringProp(props, "source"),
		Target: stringProp(props, "target"),
		Type:   stringProp(props, "type"),
		Label:  stringProp(props, "label"),
	}

	if w, ok := props["weight"].(float64); ok {
		edge.Weight = w
	}
	if b, ok := props["bidirectional"].(bool); ok {
		edge.Bidirectional = b
	}
	if raw := stringProp(props, "metadata"); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &edge.Metadata); err != nil {
			return core.Edge{}, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	edge.Timestamp = timeProp(props, "timestamp")
	edge.CreatedAt = timeProp(props, "created_at")
	edge.UpdatedAt = timeProp(props, "updated_at")
	return edge, nil
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func stringListProp(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func timeProp(props map[string]any, key string) time.Time {
	if raw, ok := props[key].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
