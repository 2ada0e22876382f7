package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/orcha/pkg/buildinfo"
	"github.com/matzehuels/orcha/pkg/core/build"
	"github.com/matzehuels/orcha/pkg/core/force"
	errs "github.com/matzehuels/orcha/pkg/errors"
	"github.com/matzehuels/orcha/pkg/graph"
	"github.com/matzehuels/orcha/pkg/pipeline"
	"github.com/matzehuels/orcha/pkg/spec"
	"github.com/matzehuels/orcha/pkg/store"
)

type createRequest struct {
	Spec    spec.Spec           `json:"spec"`
	Options *store.BuildOptions `json:"options,omitempty"`
	Params  map[string]float64  `json:"params,omitempty"`
}

type layoutResponse struct {
	ID      string             `json:"id"`
	Layout  graph.Layout       `json:"layout"`
	Params  map[string]float64 `json:"params"`
	Dropped []build.Dropped    `json:"dropped,omitempty"`
	Warm    int                `json:"warm,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "build": buildinfo.Get()})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Spec.Empty() {
		s.writeError(w, r, errs.New(errs.ErrCodeInvalidSpec, "spec has no streams, tags or links"))
		return
	}
	bo := s.build
	if req.Options != nil {
		bo = *req.Options
	}
	cfg := s.force
	if err := cfg.Apply(req.Params); err != nil {
		s.writeError(w, r, err)
		return
	}

	opts := s.pipelineOptions(bo, &cfg)
	built, err := s.runner.Build(r.Context(), req.Spec, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	l, err := s.runner.Layout(r.Context(), built.Graph, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rec := &store.Record{Spec: req.Spec, Options: bo, Params: cfg.Values(), Layout: l}
	if _, err := s.store.Create(r.Context(), rec); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("created layout", "id", rec.ID, "nodes", len(l.Nodes), "steps", l.Iterations)
	writeJSON(w, http.StatusCreated, layoutResponse{
		ID:      rec.ID,
		Layout:  l,
		Params:  rec.Params,
		Dropped: built.Dropped,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	unlock := s.lock(id)
	err := s.store.Delete(r.Context(), id)
	unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = graph.ViewStream
	}
	if err := pipeline.ValidateView(view); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	opts := s.pipelineOptions(rec.Options, nil)
	opts.View = view
	opts.Formats = []string{pipeline.FormatSVG}
	opts.Labels = r.URL.Query().Get("labels") == "true"
	artifacts, err := s.runner.Render(r.Context(), rec.Layout, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifacts[pipeline.FormatSVG])
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	ticks, err := s.ticksParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var updates map[string]float64
	if err := decode(w, r, &updates); err != nil {
		s.writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	defer s.lock(id)()

	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg, err := rec.Config()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := cfg.Apply(updates); err != nil {
		s.writeError(w, r, err)
		return
	}

	opts := s.pipelineOptions(rec.Options, &cfg)
	opts.Ticks = ticks
	l, err := s.runner.Layout(r.Context(), graph.ToFlat(rec.Layout.Graph()), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rec.Params = cfg.Values()
	rec.Layout = l
	if err := s.store.Update(r.Context(), rec); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("updated parameters", "id", id, "changed", len(updates), "ticks", ticks)
	writeJSON(w, http.StatusOK, layoutResponse{ID: id, Layout: l, Params: rec.Params})
}

func (s *Server) handleSpec(w http.ResponseWriter, r *http.Request) {
	ticks, err := s.ticksParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var sp spec.Spec
	if err := decode(w, r, &sp); err != nil {
		s.writeError(w, r, err)
		return
	}
	if sp.Empty() {
		s.writeError(w, r, errs.New(errs.ErrCodeInvalidSpec, "spec has no streams, tags or links"))
		return
	}

	id := chi.URLParam(r, "id")
	defer s.lock(id)()

	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg, err := rec.Config()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	opts := s.pipelineOptions(rec.Options, &cfg)
	opts.Previous = &rec.Layout
	opts.Ticks = ticks
	built, err := s.runner.Build(r.Context(), sp, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	l, err := s.runner.Layout(r.Context(), built.Graph, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rec.Spec = sp
	rec.Layout = l
	if err := s.store.Update(r.Context(), rec); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("replaced spec", "id", id, "nodes", len(l.Nodes), "warm", built.Warm)
	writeJSON(w, http.StatusOK, layoutResponse{
		ID:      id,
		Layout:  l,
		Params:  rec.Params,
		Dropped: built.Dropped,
		Warm:    built.Warm,
	})
}

// ticksParam reads ?ticks=, defaulting to the server setting.
func (s *Server) ticksParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("ticks")
	if raw == "" {
		return s.ticks, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errs.New(errs.ErrCodeInvalidParam, "ticks must be a positive integer, got %q", raw).On("ticks")
	}
	if n > s.maxTick {
		return 0, errs.New(errs.ErrCodeInvalidParam, "ticks must be at most %d, got %d", s.maxTick, n).On("ticks")
	}
	return n, nil
}

func (s *Server) pipelineOptions(o store.BuildOptions, cfg *force.Config) pipeline.Options {
	return pipeline.Options{
		Seed:       o.Seed,
		StreamSize: o.StreamSize,
		FontSize:   o.FontSize,
		RootSize:   o.RootSize,
		Width:      o.CanvasWidth,
		Height:     o.CanvasHeight,
		Force:      cfg,
		Logger:     s.log,
	}
}
