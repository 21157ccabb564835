// Package httpapi serves the query operations of a textpool.Service as JSON
// over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/textpool/textpool/textpool"
	tperrors "github.com/textpool/textpool/textpool/errors"
	"github.com/textpool/textpool/textpool/storage"
)

type Server struct {
	svc    *textpool.Service
	log    *slog.Logger
	router chi.Router
}

func New(svc *textpool.Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{svc: svc, log: log.With("component", "http")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/pools", s.handlePools)
	r.Route("/pools/{pool}/sources/{source}", func(r chi.Router) {
		r.Get("/rows", s.handleRows)
		r.Get("/count", s.handleCount)
		r.Get("/suggest", s.handleSuggest)
		r.Get("/diff", s.handleDiff)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

type poolsResponse struct {
	Targets  []string `json:"targets"`
	Selected string   `json:"selected,omitempty"`
}

type rowsResponse struct {
	Page  int                      `json:"page"`
	Rows  []storage.Row            `json:"rows"`
	Links map[string][]storage.Row `json:"links"`
}

type countResponse struct {
	Count      int64    `json:"count"`
	Pages      int64    `json:"pages"`
	Highlights []string `json:"highlights"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	resp := poolsResponse{Targets: s.svc.Pools()}
	if resp.Targets == nil {
		resp.Targets = []string{}
	}
	if t, ok := s.svc.Selected(); ok {
		resp.Selected = t.String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func target(r *http.Request) textpool.Target {
	return textpool.Target{Pool: chi.URLParam(r, "pool"), Source: chi.URLParam(r, "source")}
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := 0
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, tperrors.New(tperrors.ErrQueryParse, "page must be a non-negative integer"))
			return
		}
		page = n
	}
	pq := textpool.PageQuery{
		Target:   target(r),
		Query:    q.Get("q"),
		Semantic: boolParam(q.Get("semantic")),
		Page:     page,
	}
	if col := q.Get("order"); col != "" {
		pq.Order = &storage.Order{Column: col, Desc: boolParam(q.Get("desc"))}
	}

	res, err := s.svc.Page(r.Context(), pq)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := rowsResponse{Page: page, Rows: res.Rows, Links: res.Links}
	if resp.Rows == nil {
		resp.Rows = []storage.Row{}
	}
	if resp.Links == nil {
		resp.Links = map[string][]storage.Row{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, err := s.svc.PageCount(r.Context(), textpool.PageQuery{
		Target:   target(r),
		Query:    q.Get("q"),
		Semantic: boolParam(q.Get("semantic")),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := countResponse{Count: c.Count, Pages: c.Pages, Highlights: c.Highlights}
	if resp.Highlights == nil {
		resp.Highlights = []string{}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	field := q.Get("field")
	if field == "" {
		s.writeError(w, tperrors.New(tperrors.ErrQueryParse, "field is required"))
		return
	}
	values := s.svc.Suggestions(r.Context(), target(r), field, q.Get("prefix"))
	if values == nil {
		values = []string{}
	}
	s.writeJSON(w, http.StatusOK, values)
}

// handleDiff compares the rows named by repeated id parameters, or the
// variant columns of the value given as variant.
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		diffs []textpool.ColumnDiff
		err   error
	)
	switch {
	case q.Has("variant"):
		diffs, err = s.svc.CompareVariants(r.Context(), target(r), q.Get("variant"))
	case len(q["id"]) > 0:
		diffs, err = s.svc.CompareRows(r.Context(), target(r), q["id"])
	default:
		err = tperrors.New(tperrors.ErrQueryParse, "id or variant is required")
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, diffs)
}

func boolParam(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: err.Error()}
	var te *tperrors.Error
	if errors.As(err, &te) {
		resp.Kind = string(te.Kind)
		switch te.Kind {
		case tperrors.ErrNotFound:
			status = http.StatusNotFound
		case tperrors.ErrQueryParse, tperrors.ErrSchema, tperrors.ErrConfig:
			status = http.StatusBadRequest
		case tperrors.ErrClosed, tperrors.ErrLocked:
			status = http.StatusServiceUnavailable
		}
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, resp)
}
