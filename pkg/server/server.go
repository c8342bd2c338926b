// Package server provides the HTTP API over stored rankings and
// mentions.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/soup8732/aisentinel/internal/store"
	"github.com/soup8732/aisentinel/pkg/analysis"
	"github.com/soup8732/aisentinel/pkg/rank"
	"github.com/soup8732/aisentinel/pkg/sentiment"
	"github.com/soup8732/aisentinel/pkg/source"
	"github.com/soup8732/aisentinel/pkg/taxonomy"
)

// Server provides the HTTP API.
type Server struct {
	store   store.Store
	engine  *analysis.Engine
	sources []source.Source
	port    int
	logger  *zap.Logger
}

// New creates a new HTTP server.
func New(s store.Store, engine *analysis.Engine, sources []source.Source, port int, logger *zap.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:   s,
		engine:  engine,
		sources: sources,
		port:    port,
		logger:  logger,
	}
}

// Handler builds the full route table. Exposed so tests can drive the
// API without a listener.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed,
			map[string]string{"error": fmt.Sprintf("method %s not allowed", req.Method)})
	})

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/rankings", s.handleRankings).Methods(http.MethodGet)
	api.HandleFunc("/tools/{tool}", s.handleTool).Methods(http.MethodGet)
	api.HandleFunc("/items", s.handleItems).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/collect", s.handleCollect).Methods(http.MethodPost)
	api.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})
	return c.Handler(r)
}

// ListenAndServe starts the HTTP server and blocks until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListAggregates(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if cat := r.URL.Query().Get("category"); cat != "" {
		c := taxonomy.Category(cat)
		if !c.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown category %q", cat)})
			return
		}
		filtered := rows[:0]
		for _, row := range rows {
			if row.Category == c {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	rank.SortByRating(rows)
	if limit := intParam(r, "limit", 0); limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	if len(rows) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"data":    []rank.Aggregate{},
			"count":   0,
			"status":  "no_data",
			"message": "no rankings yet; run an analysis first",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  rows,
		"count": len(rows),
	})
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	tool := mux.Vars(r)["tool"]

	agg, err := s.store.GetAggregate(r.Context(), tool)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("no data for tool %q", tool)})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	history, err := s.store.History(r.Context(), tool, 20)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	recent, err := s.store.ListMentions(r.Context(), store.MentionOpts{
		Tool:       tool,
		ScoredOnly: true,
		Limit:      10,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":            agg,
		"rating":          rank.OutOf10(agg.Overall),
		"privacy":         rank.PrivacyOutOf10(agg.PrivacyScore),
		"mood":            rank.Mood(agg.Overall),
		"history":         history,
		"recent_mentions": recent,
	})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	opts := store.MentionOpts{Limit: intParam(r, "limit", 100)}
	if src := r.URL.Query().Get("source"); src != "" {
		opts.Source = source.Type(src)
	}
	if tool := r.URL.Query().Get("tool"); tool != "" {
		opts.Tool = tool
	}
	if label := r.URL.Query().Get("label"); label != "" {
		opts.Label = sentiment.Label(label)
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			opts.Since = t
		}
	}

	mentions, err := s.store.ListMentions(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  mentions,
		"count": len(mentions),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": st})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	results := make(map[string]int)
	var errs []string

	for _, src := range s.sources {
		items, err := src.Collect(ctx)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", src.Name(), err))
		}
		if len(items) > 0 {
			if err := s.store.SaveItems(ctx, items); err != nil {
				errs = append(errs, fmt.Sprintf("%s store: %v", src.Name(), err))
				continue
			}
		}
		results[string(src.Name())] = len(items)
	}

	resp := map[string]any{"collected": results}
	if len(errs) > 0 {
		resp["errors"] = errs
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Analyze(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  res.Aggregates,
		"count": len(res.Aggregates),
		"stats": res.Stats,
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
