package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/optrank/optrank/internal/domain"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultLimit        = 20
)

// SourceConfig configures an HTTP news source.
type SourceConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	RPS         float64 `yaml:"rps"`
	Burst       int     `yaml:"burst"`
}

func (c SourceConfig) limiter() *rate.Limiter {
	rps := c.RPS
	if rps <= 0 {
		rps = 2
	}
	burst := c.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func (c SourceConfig) timeout() time.Duration {
	if c.TimeoutSecs > 0 {
		return time.Duration(c.TimeoutSecs) * time.Second
	}
	return defaultFetchTimeout
}

// wire shape shared by both endpoints
type headlineItem struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}

type headlineResponse struct {
	Headlines []headlineItem `json:"headlines"`
}

// TickerSource fetches headlines from a ticker-keyed news endpoint
// (GET {base}/v1/headlines?ticker=X&count=N). Requests are rate-limited and
// bounded by a per-fetch timeout; callers decide how to degrade.
type TickerSource struct {
	cfg     SourceConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewTickerSource builds a ticker-keyed source. A nil client gets a default
// with the configured timeout.
func NewTickerSource(cfg SourceConfig, client *http.Client) *TickerSource {
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout()}
	}
	return &TickerSource{cfg: cfg, client: client, limiter: cfg.limiter()}
}

func (s *TickerSource) Name() string { return "ticker" }

func (s *TickerSource) Fetch(ctx context.Context, req Request) ([]domain.Headline, error) {
	if req.Ticker == "" {
		return nil, fmt.Errorf("ticker source requires a ticker")
	}
	q := url.Values{}
	q.Set("ticker", req.Ticker)
	q.Set("count", strconv.Itoa(limitOrDefault(req.Limit)))
	return fetchHeadlines(ctx, s.client, s.limiter, s.cfg, "/v1/headlines", q)
}

// QuerySource fetches headlines from a free-text search endpoint
// (GET {base}/v1/search?q=...&count=N&apiKey=...). When the request has no
// query, the ticker symbol is used as the search text.
type QuerySource struct {
	cfg     SourceConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewQuerySource builds a free-text source.
func NewQuerySource(cfg SourceConfig, client *http.Client) *QuerySource {
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout()}
	}
	return &QuerySource{cfg: cfg, client: client, limiter: cfg.limiter()}
}

func (s *QuerySource) Name() string { return "query" }

func (s *QuerySource) Fetch(ctx context.Context, req Request) ([]domain.Headline, error) {
	query := req.Query
	if query == "" {
		query = req.Ticker
	}
	if query == "" {
		return nil, fmt.Errorf("query source requires a query or ticker")
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(limitOrDefault(req.Limit)))
	if s.cfg.APIKey != "" {
		q.Set("apiKey", s.cfg.APIKey)
	}
	return fetchHeadlines(ctx, s.client, s.limiter, s.cfg, "/v1/search", q)
}

func fetchHeadlines(ctx context.Context, client *http.Client, limiter *rate.Limiter, cfg SourceConfig, path string, q url.Values) ([]domain.Headline, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("news source base URL not configured")
	}
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("news rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()

	endpoint := cfg.BaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build news request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news endpoint returned status %d", resp.StatusCode)
	}

	var parsed headlineResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode news response: %w", err)
	}

	headlines := make([]domain.Headline, 0, len(parsed.Headlines))
	for _, item := range parsed.Headlines {
		if item.Title == "" {
			continue
		}
		headlines = append(headlines, domain.Headline{
			Title:       item.Title,
			Source:      item.Source,
			URL:         item.URL,
			PublishedAt: item.PublishedAt,
		})
	}
	return headlines, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}
