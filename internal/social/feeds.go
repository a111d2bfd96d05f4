package social

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"

	"github.com/optrank/optrank/internal/sentiment"
)

// DefaultFeeds are public finance feeds requiring no API keys.
var DefaultFeeds = []string{
	"https://www.reddit.com/r/stocks/.rss",
	"https://www.reddit.com/r/wallstreetbets/.rss",
	"https://www.reddit.com/r/investing/.rss",
	"https://feeds.content.dowjones.io/public/rss/mw_topstories",
	"https://feeds.bloomberg.com/markets/news.rss",
}

// Some feed servers reject the default Go user agent.
const feedUserAgent = "Mozilla/5.0 (compatible; optrank-social/1.0)"

// Item is one scored feed entry.
type Item struct {
	FetchedAt time.Time `db:"ts"`
	Source    string    `db:"source"`
	Title     string    `db:"title"`
	Sentiment float64   `db:"sentiment"`
	Tickers   string    `db:"tickers"` // comma-joined cashtags
}

// Collector pulls RSS/Atom feeds and scores each entry with the sentiment
// lexicon. Feed outages are logged and skipped; a collection run returns
// whatever it could get.
type Collector struct {
	parser *gofeed.Parser
	feeds  []string
	scorer *sentiment.LexiconScorer
	now    func() time.Time
}

// NewCollector builds a collector over the given feed URLs (DefaultFeeds
// when empty).
func NewCollector(feeds []string) *Collector {
	if len(feeds) == 0 {
		feeds = DefaultFeeds
	}
	parser := gofeed.NewParser()
	parser.UserAgent = feedUserAgent
	return &Collector{
		parser: parser,
		feeds:  feeds,
		scorer: sentiment.NewLexiconScorer(),
		now:    time.Now,
	}
}

// Collect fetches every configured feed and returns scored items.
func (c *Collector) Collect(ctx context.Context) []Item {
	var items []Item
	for _, url := range c.feeds {
		feed, err := c.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			log.Warn().Err(err).Str("feed", url).Msg("feed fetch failed, skipping")
			continue
		}
		source := feed.Title
		if source == "" {
			source = url
		}
		for _, entry := range feed.Items {
			items = append(items, c.itemFromEntry(source, entry))
		}
	}
	return items
}

func (c *Collector) itemFromEntry(source string, entry *gofeed.Item) Item {
	text := entryText(entry)
	return Item{
		FetchedAt: c.now().UTC(),
		Source:    source,
		Title:     truncate(entry.Title, 500),
		Sentiment: c.scorer.ScoreText(text),
		Tickers:   strings.Join(ExtractCashtags(text), ","),
	}
}

var (
	htmlTagRe = regexp.MustCompile(`<[^>]+>`)
	spaceRe   = regexp.MustCompile(`\s+`)
	cashtagRe = regexp.MustCompile(`\$([A-Za-z]{1,5})\b`)
)

// entryText combines title and summary, with HTML crudely stripped for
// word-level scoring.
func entryText(entry *gofeed.Item) string {
	parts := []string{entry.Title}
	if entry.Description != "" {
		parts = append(parts, entry.Description)
	}
	if entry.Content != "" {
		parts = append(parts, entry.Content)
	}
	text := htmlTagRe.ReplaceAllString(strings.Join(parts, " "), " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

// ExtractCashtags returns the unique $TICKER symbols in order of first
// appearance, uppercased.
func ExtractCashtags(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range cashtagRe.FindAllStringSubmatch(text, -1) {
		ticker := strings.ToUpper(m[1])
		if _, ok := seen[ticker]; ok {
			continue
		}
		seen[ticker] = struct{}{}
		out = append(out, ticker)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
