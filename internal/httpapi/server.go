package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/optrank/optrank/internal/domain"
	"github.com/optrank/optrank/internal/metrics"
	"github.com/optrank/optrank/internal/pipeline"
)

// Runner triggers a fresh scan. The server stores the result it returns.
type Runner func(ctx context.Context) (*pipeline.RunResult, error)

// Server is the read-mostly HTTP API over the latest scan result.
type Server struct {
	router  *mux.Router
	server  *http.Server
	metrics *metrics.Registry
	runner  Runner

	mu       sync.RWMutex
	latest   *pipeline.RunResult
	scanning bool
}

// NewServer builds the API server. runner may be nil, which disables the
// scan trigger endpoint.
func NewServer(addr string, reg *metrics.Registry, runner Runner) *Server {
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	s := &Server{
		router:  mux.NewRouter(),
		metrics: reg,
		runner:  runner,
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/tickers", s.handleTickers).Methods("GET")
	api.HandleFunc("/tickers/{ticker}/options", s.handleTickerOptions).Methods("GET")
	api.HandleFunc("/opportunities", s.handleOpportunities).Methods("GET")
	api.HandleFunc("/scan", s.handleScan).Methods("POST")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	})
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// SetResult replaces the result served by the API.
func (s *Server) SetResult(res *pipeline.RunResult) {
	s.mu.Lock()
	s.latest = res
	s.mu.Unlock()
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status    string     `json:"status"`
	LastRunID string     `json:"last_run_id,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	Scanning  bool       `json:"scanning"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	resp := healthResponse{Status: "ok", Scanning: s.scanning}
	if s.latest != nil {
		resp.LastRunID = s.latest.RunID
		t := s.latest.FinishedAt
		resp.LastRunAt = &t
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, resp)
}

type tickerEntry struct {
	domain.TickerStatus
	Sentiment *domain.SentimentSummary `json:"sentiment,omitempty"`
}

func (s *Server) handleTickers(w http.ResponseWriter, _ *http.Request) {
	res, ok := s.result(w)
	if !ok {
		return
	}
	entries := make([]tickerEntry, 0, len(res.Statuses))
	for _, st := range res.Statuses {
		entry := tickerEntry{TickerStatus: st}
		if sum, ok := res.Summaries[st.Ticker]; ok {
			entry.Sentiment = &sum
		}
		entries = append(entries, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  res.RunID,
		"as_of":   res.AsOf,
		"tickers": entries,
	})
}

// optionEntry augments a record with a 0-100 confidence for UI consumers.
type optionEntry struct {
	domain.OpportunityRecord
	Confidence float64 `json:"confidence"`
}

func (s *Server) handleTickerOptions(w http.ResponseWriter, r *http.Request) {
	res, ok := s.result(w)
	if !ok {
		return
	}
	ticker := strings.ToUpper(mux.Vars(r)["ticker"])
	limit := queryInt(r, "limit", 0)

	var entries []optionEntry
	for _, rec := range res.Ranked {
		if rec.Ticker != ticker {
			continue
		}
		entries = append(entries, optionEntry{OpportunityRecord: rec, Confidence: confidence(rec.Score)})
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	if entries == nil {
		found := false
		for _, st := range res.Statuses {
			if st.Ticker == ticker {
				found = true
				break
			}
		}
		if !found {
			writeJSON(w, http.StatusNotFound, errorBody("ticker not in latest run"))
			return
		}
		entries = []optionEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  res.RunID,
		"ticker":  ticker,
		"options": entries,
	})
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	res, ok := s.result(w)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 50)
	ranked := res.Ranked
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	entries := make([]optionEntry, 0, len(ranked))
	for _, rec := range ranked {
		entries = append(entries, optionEntry{OpportunityRecord: rec, Confidence: confidence(rec.Score)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":        res.RunID,
		"as_of":         res.AsOf,
		"opportunities": entries,
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("scanning is not enabled"))
		return
	}

	s.mu.Lock()
	if s.scanning {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, errorBody("scan already in progress"))
		return
	}
	s.scanning = true
	s.mu.Unlock()

	res, err := s.runner(r.Context())

	s.mu.Lock()
	s.scanning = false
	if err == nil {
		s.latest = res
	}
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("scan trigger failed")
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":        res.RunID,
		"opportunities": len(res.Ranked),
	})
}

// result returns the latest run or writes a 503 when none exists yet.
func (s *Server) result(w http.ResponseWriter) (*pipeline.RunResult, bool) {
	s.mu.RLock()
	res := s.latest
	s.mu.RUnlock()
	if res == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("no scan has completed yet"))
		return nil, false
	}
	return res, true
}

// confidence rescales a [-1, 1] score to a 0-100 confidence.
func confidence(score float64) float64 {
	c := 50 + score*50
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("write response failed")
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
