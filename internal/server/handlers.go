package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/deidaraiorek/spidey/internal/core"
	"github.com/deidaraiorek/spidey/internal/search"
)

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type searchResponse struct {
	Pages []search.Result `json:"pages"`
}

// POST /crawl?seedUrl=<url>&targetVisited=<int>
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	seed := q.Get("seedUrl")
	if seed == "" {
		s.writeError(w, r, core.Invalid("seedUrl", "is required"))
		return
	}
	target, err := strconv.Atoi(q.Get("targetVisited"))
	if err != nil {
		s.writeError(w, r, core.Invalid("targetVisited", "must be an integer"))
		return
	}

	// A crawl replaces the index, so it runs to completion even if the
	// client goes away.
	summary, err := s.engine.Crawl(context.WithoutCancel(r.Context()), seed, target)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GET /search/{query}[/{numResults}]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")
	if unescaped, err := url.PathUnescape(query); err == nil {
		query = unescaped
	}

	n := search.DefaultResults
	if raw := chi.URLParam(r, "numResults"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			s.writeError(w, r, core.Invalid("numResults", "must be a positive integer"))
			return
		}
		n = v
	}

	results, err := s.engine.Search(r.Context(), query, n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Pages: results})
}

// GET /info
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.engine.Info(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func statusOf(err error) int {
	switch {
	case core.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, core.ErrRebuilding):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrNoIndex):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Status: "error", Message: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
