package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker"
)

// MethodClassifier is the MethodUsed value for classifier scoring.
const MethodClassifier = "finbert-remote"

const (
	defaultClassifierTimeout = 10 * time.Second
	maxHeadlineLen           = 512
)

// ClassifierScorer scores headlines against a remote financial-sentiment
// inference service (a FinBERT-style model behind HTTP). Requests carry a
// bounded timeout and run through a circuit breaker so a dead model server
// costs one failed call, not one per batch.
type ClassifierScorer struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	timeout  time.Duration
}

// ClassifierConfig configures the remote classifier.
type ClassifierConfig struct {
	Endpoint    string `yaml:"endpoint"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// NewClassifierScorer builds a classifier against the given endpoint.
// The HTTP client may be nil, in which case a default client is used.
func NewClassifierScorer(cfg ClassifierConfig, client *http.Client) *ClassifierScorer {
	timeout := defaultClassifierTimeout
	if cfg.TimeoutSecs > 0 {
		timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sentiment-classifier",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})
	return &ClassifierScorer{
		endpoint: cfg.Endpoint,
		client:   client,
		breaker:  breaker,
		timeout:  timeout,
	}
}

func (s *ClassifierScorer) Name() string { return MethodClassifier }

type classifyRequest struct {
	Texts []string `json:"texts"`
}

type classifyResult struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type classifyResponse struct {
	Results []classifyResult `json:"results"`
}

// ScoreBatch sends the whole batch in one request. Any transport, protocol,
// or shape failure is returned to the caller; the aggregator decides how to
// degrade.
func (s *ClassifierScorer) ScoreBatch(ctx context.Context, texts []string) ([]float64, error) {
	if s.endpoint == "" {
		return nil, fmt.Errorf("classifier endpoint not configured")
	}

	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = truncateHeadline(strings.TrimSpace(t))
	}

	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.classify(ctx, truncated)
	})
	if err != nil {
		return nil, err
	}
	return out.([]float64), nil
}

func (s *ClassifierScorer) classify(ctx context.Context, texts []string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := json.Marshal(classifyRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal classify request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	if len(parsed.Results) != len(texts) {
		return nil, fmt.Errorf("classifier returned %d results for %d texts", len(parsed.Results), len(texts))
	}

	scores := make([]float64, len(parsed.Results))
	for i, r := range parsed.Results {
		scores[i] = signedScore(r)
	}
	return scores, nil
}

// truncateHeadline caps the text at maxHeadlineLen bytes without splitting
// a multi-byte rune at the cut.
func truncateHeadline(t string) string {
	if len(t) <= maxHeadlineLen {
		return t
	}
	cut := maxHeadlineLen
	for cut > 0 && !utf8.RuneStart(t[cut]) {
		cut--
	}
	return t[:cut]
}

// signedScore maps a label/confidence pair onto [-1, 1]. Neutral and
// unknown labels score 0.
func signedScore(r classifyResult) float64 {
	conf := r.Score
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	switch strings.ToLower(r.Label) {
	case "positive":
		return conf
	case "negative":
		return -conf
	default:
		return 0
	}
}
