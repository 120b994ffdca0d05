// Package server exposes loaded feeds over a small HTTP API: route
// discovery, on-demand timetable extraction, service alerts and run
// history, plus Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/theoremus-urban-solutions/gtfs-timetables/config"
	"github.com/theoremus-urban-solutions/gtfs-timetables/filter"
	"github.com/theoremus-urban-solutions/gtfs-timetables/gtfs"
	"github.com/theoremus-urban-solutions/gtfs-timetables/metrics"
	"github.com/theoremus-urban-solutions/gtfs-timetables/publisher"
	"github.com/theoremus-urban-solutions/gtfs-timetables/realtime"
	"github.com/theoremus-urban-solutions/gtfs-timetables/store"
)

// Options carries everything a Server serves besides its config. Feed
// is required; the rest may be nil.
type Options struct {
	FeedName   string
	Feed       *gtfs.Feed
	Realtime   *realtime.Snapshot
	Archive    *store.Store
	Publisher  *publisher.NATSPublisher
	Area       *filter.Polygon
	AreaPolicy filter.AreaPolicy
	Metrics    *metrics.Collector
}

type Server struct {
	cfg      *config.AppConfig
	feedName string
	feed     *gtfs.Feed
	rt       *realtime.Snapshot
	archive  *store.Store
	pub      *publisher.NATSPublisher
	area     *filter.Polygon
	policy   filter.AreaPolicy
	metrics  *metrics.Collector

	// Identical queries against an immutable feed produce identical
	// responses, so rendered bodies are memoized per query key.
	mu    sync.Mutex
	cache map[string][]byte
}

func New(cfg *config.AppConfig, opts Options) *Server {
	m := opts.Metrics
	if m == nil {
		m = metrics.NewCollector()
	}
	return &Server{
		cfg:      cfg,
		feedName: opts.FeedName,
		feed:     opts.Feed,
		rt:       opts.Realtime,
		archive:  opts.Archive,
		pub:      opts.Publisher,
		area:     opts.Area,
		policy:   opts.AreaPolicy,
		metrics:  m,
		cache:    map[string][]byte{},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	origins := s.cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/routes", s.handleRoutes)
	r.Get("/api/timetable", s.handleTimetable)
	r.Get("/api/alerts", s.handleAlerts)
	if s.archive != nil {
		r.Get("/api/runs", s.handleRuns)
	}
	r.Handle("/metrics", s.metrics.Handler())
	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()
	log.Printf("server listening on %s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Printf("shutdown signal received")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Printf("server shut down successfully")
	return nil
}

func (s *Server) cacheGet(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.cache[key]
	return buf, ok
}

func (s *Server) cachePut(key string, buf []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = buf
}
