package social

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	source TEXT NOT NULL,
	title TEXT NOT NULL,
	sentiment REAL NOT NULL,
	tickers TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_ts ON items(ts);
CREATE INDEX IF NOT EXISTS idx_items_tickers ON items(tickers);
`

const tsLayout = "2006-01-02 15:04:05"

// Store keeps scored social items in SQLite and answers rolling-window
// sentiment queries. Timestamps are stored as UTC ISO strings so window
// queries are plain string comparisons.
type Store struct {
	db *sqlx.DB
}

// OpenStore opens (and initializes) the store at path. ":memory:" works for
// tests.
func OpenStore(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open social store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init social store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert writes the items in one transaction.
func (s *Store) Insert(items []Item) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin social insert: %w", err)
	}
	for _, item := range items {
		_, err := tx.Exec(
			`INSERT INTO items (ts, source, title, sentiment, tickers) VALUES (?, ?, ?, ?, ?)`,
			item.FetchedAt.UTC().Format(tsLayout), item.Source, item.Title, item.Sentiment, item.Tickers,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert social item: %w", err)
		}
	}
	return tx.Commit()
}

// RollingSentiment averages all item sentiment within the window ending
// now. The second return is false when the window holds no items.
func (s *Store) RollingSentiment(window time.Duration, now time.Time) (float64, bool, error) {
	since := now.UTC().Add(-window).Format(tsLayout)
	var avg *float64
	if err := s.db.Get(&avg, `SELECT AVG(sentiment) FROM items WHERE ts >= ?`, since); err != nil {
		return 0, false, fmt.Errorf("rolling sentiment query: %w", err)
	}
	if avg == nil {
		return 0, false, nil
	}
	return *avg, true, nil
}

// TickerSentiment averages sentiment of items mentioning the ticker's
// cashtag within the window. False when nothing mentioned it.
func (s *Store) TickerSentiment(ticker string, window time.Duration, now time.Time) (float64, bool, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return 0, false, fmt.Errorf("ticker is required")
	}
	since := now.UTC().Add(-window).Format(tsLayout)

	// tickers is a comma-joined list; match whole symbols only.
	var avg *float64
	err := s.db.Get(&avg,
		`SELECT AVG(sentiment) FROM items
		 WHERE ts >= ? AND (',' || tickers || ',') LIKE ?`,
		since, "%,"+ticker+",%",
	)
	if err != nil {
		return 0, false, fmt.Errorf("ticker sentiment query: %w", err)
	}
	if avg == nil {
		return 0, false, nil
	}
	return *avg, true, nil
}

// Blend mixes news sentiment with social sentiment using weight w in
// [0, 1]: (1-w)*news + w*social.
func Blend(news, social, w float64) float64 {
	if w < 0 {
		w = 0
	}
	if w > 1 {
		w = 1
	}
	return (1-w)*news + w*social
}
