package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "poos-backtester/internal/errors"
	"poos-backtester/internal/models"
)

// BarCache stores fetched daily bars in a local SQLite database so
// repeated runs do not hit the provider.
type BarCache struct {
	db *sql.DB
}

// NewBarCache opens (or creates) the cache database at dbPath.
func NewBarCache(dbPath string) (*BarCache, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.Wrap(err, "opening bar cache")
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	cache := &BarCache{db: db}
	if err := cache.initSchema(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, "initializing bar cache schema")
	}
	return cache, nil
}

func (c *BarCache) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bars (
		symbol TEXT NOT NULL,
		date TEXT NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (symbol, date)
	);
	CREATE INDEX IF NOT EXISTS idx_bars_symbol ON bars(symbol);
	`
	_, err := c.db.Exec(schema)
	return err
}

// SaveBars upserts a ticker's bars in one transaction.
func (c *BarCache) SaveBars(ctx context.Context, symbol string, bars []models.Bar) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, "beginning cache transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return apperrors.Wrap(err, "preparing cache insert")
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, b.Date.Format("2006-01-02"),
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return apperrors.Wrapf(err, "inserting bar %s %s", symbol, b.Date.Format("2006-01-02"))
		}
	}
	return tx.Commit()
}

// GetBars returns a ticker's cached bars with start <= date <= end,
// ordered by date ascending. An empty result is not an error.
func (c *BarCache) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`,
		symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return nil, apperrors.Wrapf(err, "querying bars for %s", symbol)
	}
	defer rows.Close()

	var bars []models.Bar
	for rows.Next() {
		var dateStr string
		var b models.Bar
		if err := rows.Scan(&dateStr, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, apperrors.Wrapf(err, "scanning bar for %s", symbol)
		}
		d, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, apperrors.Wrapf(err, "parsing cached date %q", dateStr)
		}
		b.Date = d
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// HasBars reports whether any bars exist for a symbol.
func (c *BarCache) HasBars(ctx context.Context, symbol string) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM bars WHERE symbol = ? LIMIT 1`, symbol).Scan(&n)
	if err != nil {
		return false, apperrors.Wrapf(err, "checking cache for %s", symbol)
	}
	return n > 0, nil
}

// Freshness returns the most recent fetch time for a symbol, or the
// zero time when the symbol is not cached.
func (c *BarCache) Freshness(ctx context.Context, symbol string) (time.Time, error) {
	var ts sql.NullString
	err := c.db.QueryRowContext(ctx,
		`SELECT MAX(fetched_at) FROM bars WHERE symbol = ?`, symbol).Scan(&ts)
	if err != nil {
		return time.Time{}, apperrors.Wrapf(err, "checking freshness for %s", symbol)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", ts.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing freshness %q: %w", ts.String, err)
	}
	return t, nil
}

// Close closes the underlying database.
func (c *BarCache) Close() error {
	return c.db.Close()
}
