// Package api exposes the graph engine over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/systemshift/weave/internal/core"
	"github.com/systemshift/weave/internal/graph"
	"github.com/systemshift/weave/internal/migration"
	"github.com/systemshift/weave/internal/server/subscriptions"
)

// Server holds the HTTP server dependencies.
type Server struct {
	store  *graph.Store
	subMgr *subscriptions.Manager
	log    *zap.Logger
}

// New creates a new API server.
func New(store *graph.Store, subMgr *subscriptions.Manager, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{store: store, subMgr: subMgr, log: log}
}

// Routes mounts all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/nodes", s.CreateNode)
		r.Get("/nodes/{id}", s.GetNode)
		r.Patch("/nodes/{id}", s.UpdateNode)
		r.Delete("/nodes/{id}", s.DeleteNode)
		r.Get("/nodes/{id}/connected", s.GetConnectedNodes)

		r.Post("/edges", s.CreateEdge)
		r.Get("/edges/{id}", s.GetEdge)
		r.Delete("/edges/{id}", s.DeleteEdge)

		r.Get("/search", s.Search)
		r.Get("/stats", s.GetStatistics)

		r.Get("/export", s.Export)
		r.Post("/import", s.Import)

		r.Post("/subscriptions", s.CreateSubscription)
		r.Get("/subscriptions", s.ListSubscriptions)
		r.Get("/subscriptions/{id}", s.GetSubscription)
		r.Delete("/subscriptions/{id}", s.DeleteSubscription)
	})
}

// CreateNodeResponse is the response for creating a node.
type CreateNodeResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateNode handles POST /api/nodes
func (s *Server) CreateNode(w http.ResponseWriter, r *http.Request) {
	var node core.Node
	if err := json.NewDecoder(r.Body).Decode(&node); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := s.store.AddNode(r.Context(), node)
	if err != nil {
		s.writeError(w, err)
		return
	}

	created, err := s.store.GetNode(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, CreateNodeResponse{ID: id, CreatedAt: created.CreatedAt})
}

// GetNode handles GET /api/nodes/{id}
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	node, err := s.store.GetNode(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, node)
}

// UpdateNodeRequest is the request body for a partial node update. Only
// present fields are merged.
type UpdateNodeRequest struct {
	Title      *string       `json:"title,omitempty"`
	Content    *core.Content `json:"content,omitempty"`
	URL        *string       `json:"url,omitempty"`
	Timestamp  *time.Time    `json:"timestamp,omitempty"`
	Source     *string       `json:"source,omitempty"`
	Categories []string      `json:"categories,omitempty"`
	Tags       []string      `json:"tags,omitempty"`
}

// UpdateNode handles PATCH /api/nodes/{id}
func (s *Server) UpdateNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	node, err := s.store.UpdateNode(r.Context(), id, graph.NodeUpdate{
		Title:      req.Title,
		Content:    req.Content,
		URL:        req.URL,
		Timestamp:  req.Timestamp,
		Source:     req.Source,
		Categories: req.Categories,
		Tags:       req.Tags,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, node)
}

// DeleteNode handles DELETE /api/nodes/{id}
func (s *Server) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := s.store.DeleteNode(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, map[string]bool{"deleted": deleted})
}

// CreateEdge handles POST /api/edges
func (s *Server) CreateEdge(w http.ResponseWriter, r *http.Request) {
	var edge core.Edge
	if err := json.NewDecoder(r.Body).Decode(&edge); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := s.store.AddEdge(r.Context(), edge)
	if err != nil {
		s.writeError(w, err)
		return
	}

	created, err := s.store.GetEdge(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, created)
}

// GetEdge handles GET /api/edges/{id}
func (s *Server) GetEdge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	edge, err := s.store.GetEdge(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, edge)
}

// DeleteEdge handles DELETE /api/edges/{id}
func (s *Server) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := s.store.DeleteEdge(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, map[string]bool{"deleted": deleted})
}

// Search handles GET /api/search
// Query params: q, limit, offset, sort_by, order, search_in (comma-separated).
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	opts := graph.SearchOptions{
		Limit:  intParam(query.Get("limit"), 0),
		Offset: intParam(query.Get("offset"), 0),
		SortBy: query.Get("sort_by"),
		Order:  query.Get("order"),
	}
	if raw := query.Get("search_in"); raw != "" {
		opts.SearchIn = strings.Split(raw, ",")
	}

	writeJSON(w, s.store.Search(query.Get("q"), opts))
}

// GetConnectedNodes handles GET /api/nodes/{id}/connected
// Query params: depth, limit, types (comma-separated), direction, include_self.
func (s *Server) GetConnectedNodes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	query := r.URL.Query()

	opts := graph.TraverseOptions{
		Depth:       intParam(query.Get("depth"), 0),
		Limit:       intParam(query.Get("limit"), 0),
		Direction:   query.Get("direction"),
		IncludeSelf: query.Get("include_self") == "true",
	}
	if raw := query.Get("types"); raw != "" {
		opts.EdgeTypes = strings.Split(raw, ",")
	}

	connections := s.store.ConnectedNodes(id, opts)
	writeJSON(w, map[string]any{
		"connections": connections,
		"count":       len(connections),
	})
}

// GetStatistics handles GET /api/stats
func (s *Server) GetStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.Statistics())
}

// Export handles GET /api/export
func (s *Server) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="weave-export.json"`)
	if err := migration.Export(s.store, w); err != nil {
		s.log.Error("export failed", zap.Error(err))
	}
}

// Import handles POST /api/import
func (s *Server) Import(w http.ResponseWriter, r *http.Request) {
	result, err := migration.Import(r.Context(), s.store, r.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, result)
}

// CreateSubscriptionRequest is the request body for creating a
// subscription.
type CreateSubscriptionRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Webhook     string                `json:"webhook"`
	Pattern     subscriptions.Pattern `json:"pattern"`
}

// CreateSubscription handles POST /api/subscriptions
func (s *Server) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sub, err := s.subMgr.Register(req.Name, req.Description, req.Webhook, req.Pattern)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, sub)
}

// ListSubscriptions handles GET /api/subscriptions
func (s *Server) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs := s.subMgr.List()
	writeJSON(w, map[string]any{
		"subscriptions": subs,
		"count":         len(subs),
	})
}

// GetSubscription handles GET /api/subscriptions/{id}
func (s *Server) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subMgr.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, sub)
}

// DeleteSubscription handles DELETE /api/subscriptions/{id}
func (s *Server) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	deleted := s.subMgr.Delete(chi.URLParam(r, "id"))
	writeJSON(w, map[string]bool{"deleted": deleted})
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// writeError maps engine errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case core.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case core.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		s.log.Error("request failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
