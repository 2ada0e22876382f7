// Package server exposes layouts over HTTP.
//
// Routes:
//
//	POST   /v1/layouts                 build and solve a spec, store the layout
//	GET    /v1/layouts/{id}            stored record
//	GET    /v1/layouts/{id}/svg        rendered view (?view=stream|nodelink)
//	PATCH  /v1/layouts/{id}/params     change solver parameters, re-run ticks
//	PUT    /v1/layouts/{id}/spec       replace the spec, warm started
//	DELETE /v1/layouts/{id}
//	GET    /healthz
//	GET    /metrics                    Prometheus
//
// Requests touching the same layout are serialised; the solver itself is
// not safe for concurrent use.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/orcha/pkg/core/force"
	"github.com/matzehuels/orcha/pkg/pipeline"
	"github.com/matzehuels/orcha/pkg/store"
)

// DefaultTicks is the number of solver steps re-run after an edit.
const DefaultTicks = 50

// DefaultMaxTicks bounds the ?ticks= a single request may ask for.
const DefaultMaxTicks = 1000

// maxBodySize bounds request bodies.
const maxBodySize = 4 << 20

// Server serves the layout API.
type Server struct {
	store   store.Store
	runner  *pipeline.Runner
	log     *log.Logger
	metrics *Metrics
	ticks   int
	maxTick int
	force   force.Config
	build   store.BuildOptions

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *log.Logger) Option { return func(s *Server) { s.log = l } }

// WithMetrics exposes m on /metrics and records requests with it.
func WithMetrics(m *Metrics) Option { return func(s *Server) { s.metrics = m } }

// WithTicks sets the steps re-run after a parameter or spec change.
func WithTicks(n int) Option { return func(s *Server) { s.ticks = n } }

// WithMaxTicks caps the steps a request may ask for with ?ticks=.
func WithMaxTicks(n int) Option { return func(s *Server) { s.maxTick = n } }

// WithForceConfig sets the solver defaults for new layouts.
func WithForceConfig(cfg force.Config) Option { return func(s *Server) { s.force = cfg } }

// WithBuildDefaults sets the builder defaults for new layouts.
func WithBuildDefaults(o store.BuildOptions) Option { return func(s *Server) { s.build = o } }

// New returns a Server persisting layouts in st.
func New(st store.Store, runner *pipeline.Runner, opts ...Option) *Server {
	s := &Server{
		store:   st,
		runner:  runner,
		ticks:   DefaultTicks,
		maxTick: DefaultMaxTicks,
		force:   force.DefaultConfig(),
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = log.NewWithOptions(io.Discard, log.Options{})
	}
	if s.runner == nil {
		s.runner = pipeline.NewRunner(nil, nil, s.log)
	}
	if s.maxTick <= 0 {
		s.maxTick = DefaultMaxTicks
	}
	if s.ticks <= 0 {
		s.ticks = DefaultTicks
	}
	s.ticks = min(s.ticks, s.maxTick)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/v1/layouts", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Delete("/", s.handleDelete)
			r.Get("/svg", s.handleSVG)
			r.Patch("/params", s.handleParams)
			r.Put("/spec", s.handleSpec)
		})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// lock serialises work on one layout.
func (s *Server) lock(id string) func() {
	s.mu.Lock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.metrics != nil {
			s.metrics.observeRequest(r.Method, route, status, time.Since(start))
		}
		s.log.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
