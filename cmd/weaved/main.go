// Command weaved serves a knowledge graph over HTTP: node and edge
// lifecycle, weighted search, bounded traversal, statistics, export and
// import, and mutation-event subscriptions.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/systemshift/weave/internal/core"
	"github.com/systemshift/weave/internal/graph"
	"github.com/systemshift/weave/internal/server/api"
	"github.com/systemshift/weave/internal/server/subscriptions"
	"github.com/systemshift/weave/internal/store/memory"
	"github.com/systemshift/weave/internal/store/neo4j"
	"github.com/systemshift/weave/internal/store/sqlite"
)

func main() {
	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	addr := flag.String("addr", config.Addr, "HTTP service address")
	backend := flag.String("backend", config.Backend, "storage backend: memory, sqlite, or neo4j")
	dbPath := flag.String("db", config.SQLitePath, "SQLite database path")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	storage, err := openStorage(ctx, *backend, *dbPath, config)
	if err != nil {
		log.Fatal("opening storage", zap.String("backend", *backend), zap.Error(err))
	}

	store, err := graph.New(ctx, storage, log)
	if err != nil {
		log.Fatal("loading graph", zap.Error(err))
	}
	defer store.Close(ctx)

	subMgr := subscriptions.NewManager(log)
	subMgr.Start()
	defer subMgr.Stop()
	store.SetEventEmitter(subMgr.HandleEvent)

	apiServer := api.New(store, subMgr, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	apiServer.Routes(r)
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         *addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting weave server",
			zap.String("addr", *addr),
			zap.String("backend", *backend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("forced shutdown", zap.Error(err))
	}

	log.Info("server exited")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openStorage(ctx context.Context, backend, dbPath string, config Config) (core.Storage, error) {
	switch backend {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return sqlite.New(ctx, dbPath)
	case "neo4j":
		return neo4j.New(ctx, neo4j.Config{
			URI:      config.Neo4jURI,
			Username: config.Neo4jUser,
			Password: config.Neo4jPassword,
			Database: config.Neo4jDatabase,
		})
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}
