package news

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/optrank/optrank/internal/domain"
)

// Request asks a source for headlines. Ticker-keyed sources use Ticker;
// free-text sources use Query and fall back to the ticker when no query is
// configured.
type Request struct {
	Ticker string
	Query  string
	Limit  int
}

// Key is the cache/log identity of a request.
func (r Request) Key() string {
	if r.Query != "" {
		return strings.ToLower(r.Query)
	}
	return strings.ToUpper(r.Ticker)
}

// Source fetches headlines in publication order. Order is fixed at fetch
// time: downstream sentiment tie-breaks depend on it.
type Source interface {
	Fetch(ctx context.Context, req Request) ([]domain.Headline, error)
	Name() string
}

// StaticSource serves fixed headlines keyed by ticker. Used by offline
// scans and tests; failure injection mirrors live-source outages.
type StaticSource struct {
	mu        sync.Mutex
	byTicker  map[string][]domain.Headline
	failWith  error
	fetchCost int
}

// NewStaticSource builds an empty static source.
func NewStaticSource() *StaticSource {
	return &StaticSource{byTicker: make(map[string][]domain.Headline)}
}

func (s *StaticSource) Name() string { return "static" }

// Add appends headlines for a ticker, preserving insertion order.
func (s *StaticSource) Add(ticker string, headlines ...domain.Headline) {
	s.mu.Lock()
	key := strings.ToUpper(ticker)
	s.byTicker[key] = append(s.byTicker[key], headlines...)
	s.mu.Unlock()
}

// SetFailure makes every Fetch return err (nil clears it).
func (s *StaticSource) SetFailure(err error) {
	s.mu.Lock()
	s.failWith = err
	s.mu.Unlock()
}

// Fetches reports how many Fetch calls were made.
func (s *StaticSource) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCost
}

func (s *StaticSource) Fetch(_ context.Context, req Request) ([]domain.Headline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCost++
	if s.failWith != nil {
		return nil, s.failWith
	}
	if req.Ticker == "" && req.Query == "" {
		return nil, fmt.Errorf("empty news request")
	}
	headlines := s.byTicker[strings.ToUpper(req.Ticker)]
	if req.Limit > 0 && len(headlines) > req.Limit {
		headlines = headlines[:req.Limit]
	}
	out := make([]domain.Headline, len(headlines))
	copy(out, headlines)
	return out, nil
}
