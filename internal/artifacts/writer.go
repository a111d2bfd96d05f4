package artifacts

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/optrank/optrank/internal/domain"
	"github.com/optrank/optrank/internal/pipeline"
)

// Writer persists scan results under a base directory. File names embed the
// run ID so successive scans never overwrite each other.
type Writer struct {
	dir string
}

// NewWriter builds a writer rooted at dir, creating it if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir %s: %w", dir, err)
	}
	return &Writer{dir: dir}, nil
}

// WriteRun persists the full CSV, the simple top-N CSV, and the sentiment
// JSON for one run and returns the paths written.
func (w *Writer) WriteRun(res *pipeline.RunResult, simpleTopN int) ([]string, error) {
	full := filepath.Join(w.dir, fmt.Sprintf("opportunities_%s.csv", res.RunID))
	if err := writeOpportunitiesCSV(full, res.Ranked); err != nil {
		return nil, err
	}
	simple := filepath.Join(w.dir, fmt.Sprintf("top_%s.csv", res.RunID))
	if err := writeSimpleCSV(simple, res.Ranked, simpleTopN); err != nil {
		return nil, err
	}
	sentiments := filepath.Join(w.dir, fmt.Sprintf("sentiment_%s.json", res.RunID))
	if err := writeSentimentJSON(sentiments, res.Summaries); err != nil {
		return nil, err
	}

	paths := []string{full, simple, sentiments}
	log.Info().Str("run_id", res.RunID).Strs("paths", paths).Msg("artifacts written")
	return paths, nil
}

var fullHeader = []string{
	"ticker", "kind", "strike", "expiration", "symbol",
	"market_price", "fair_value", "delta", "vega", "implied_volatility",
	"pricing_gap", "liquidity", "spread_penalty", "sentiment_alignment",
	"opportunity_score", "risk_flag", "side", "bucket",
}

func writeOpportunitiesCSV(path string, records []domain.OpportunityRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(fullHeader); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, r := range records {
		row := []string{
			r.Ticker,
			string(r.Kind),
			num(r.Strike),
			r.Expiration.UTC().Format("2006-01-02"),
			r.Symbol,
			num(r.MarketPrice),
			num(r.FairValue),
			num(r.Delta),
			num(r.Vega),
			num(r.ImpliedVol),
			num(r.PricingGap),
			num(r.Liquidity),
			num(r.SpreadPenalty),
			num(r.Alignment),
			num(r.Score),
			strconv.FormatBool(r.RiskFlag),
			string(r.Side),
			string(r.Bucket),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

// writeSimpleCSV emits the compact shortlist format.
func writeSimpleCSV(path string, records []domain.OpportunityRecord, topN int) error {
	if topN > 0 && topN < len(records) {
		records = records[:topN]
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"ticker", "optiontype", "price", "strike", "expiration", "score"}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, r := range records {
		row := []string{
			r.Ticker,
			string(r.Kind),
			num(r.MarketPrice),
			num(r.Strike),
			r.Expiration.UTC().Format("2006-01-02"),
			num(r.Score),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

func writeSentimentJSON(path string, summaries map[string]domain.SentimentSummary) error {
	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sentiment: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
