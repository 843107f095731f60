package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sorare-proxy/health"
	"sorare-proxy/metrics"
	"sorare-proxy/upstream"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const (
	rootMessage     = "Sorare Proxy API is running. Use /test/:slug to query player data."
	demoSlug        = "kylian-mbappe"
	errBodySlug     = "Invalid or missing slug in request body"
	errParamSlug    = "Invalid or missing slug parameter"
	maxRequestBytes = 1 << 20
)

// Fetcher looks up a player by slug.
type Fetcher interface {
	FetchPlayer(ctx context.Context, slug string) (*upstream.Result, error)
}

type Server struct {
	fetcher Fetcher
}

// NewHandler returns the proxy's router: player routes, health probes and /metrics.
func NewHandler(f Fetcher, checks ...health.Check) http.Handler {
	s := &Server{fetcher: f}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(accessLog)
	r.Use(enableCORS)

	r.Get("/", s.Root)
	r.Post("/player", s.Player)
	r.Get("/test/{slug}", s.TestSlug)
	r.Get("/test-mbappe", s.TestMbappe)

	health.Register(r, checks...)
	metrics.Register(r)
	return r
}

func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(rootMessage))
}

// Player handles POST /player with a {"slug": "..."} body.
func (s *Server) Player(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Slug any `json:"slug"`
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&body); err != nil {
		log.Warn().Err(err).Msg("server: invalid /player request body")
		s.reject(w, errBodySlug)
		return
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		log.Warn().Err(err).Msg("server: trailing data after /player request body")
		s.reject(w, errBodySlug)
		return
	}
	slug, ok := validSlug(body.Slug)
	if !ok {
		s.reject(w, errBodySlug)
		return
	}
	s.lookup(w, r, slug)
}

// TestSlug handles GET /test/{slug}.
func (s *Server) TestSlug(w http.ResponseWriter, r *http.Request) {
	param := chi.URLParam(r, "slug")
	// chi routes on RawPath when set, leaving escapes such as %2F in the param.
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(param)
		if err != nil {
			s.reject(w, errParamSlug)
			return
		}
		param = unescaped
	}
	slug, ok := validSlug(param)
	if !ok {
		s.reject(w, errParamSlug)
		return
	}
	s.lookup(w, r, slug)
}

func (s *Server) TestMbappe(w http.ResponseWriter, r *http.Request) {
	s.lookup(w, r, demoSlug)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request, slug string) {
	res, err := s.fetcher.FetchPlayer(r.Context(), slug)
	if err == nil {
		err = res.Err()
	}
	if err != nil {
		metrics.LookupsTotal.WithLabelValues("http", "failure").Inc()
		ev := log.Error().Err(err).Str("slug", slug).Str("path", r.URL.Path)
		if res != nil {
			ev = ev.Int("status", res.StatusCode)
		}
		ev.Msg("server: player lookup failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	metrics.LookupsTotal.WithLabelValues("http", "success").Inc()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Payload)
}

func (s *Server) reject(w http.ResponseWriter, msg string) {
	metrics.LookupsTotal.WithLabelValues("http", "invalid").Inc()
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// validSlug accepts only non-blank strings and returns them trimmed.
func validSlug(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("server: response encode failed")
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, PUT, PATCH, POST, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
