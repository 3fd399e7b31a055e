// Package marketdata provides the historical daily-bar provider client
// and the local bar cache.
package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "poos-backtester/internal/errors"
	"poos-backtester/internal/models"
)

const (
	stooqBaseURL = "https://stooq.com/q/d/l/"
	userAgent    = "poos-backtester/0.1"
)

// StooqClient fetches daily OHLCV series from Stooq's CSV endpoint.
type StooqClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewStooqClient creates a Stooq client with a sane request timeout.
func NewStooqClient() *StooqClient {
	return &StooqClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    stooqBaseURL,
	}
}

// NewStooqClientWithBaseURL creates a client against a custom endpoint.
// Used by tests to point at a local server.
func NewStooqClientWithBaseURL(baseURL string) *StooqClient {
	c := NewStooqClient()
	c.baseURL = baseURL
	return c
}

type stooqRow struct {
	Date   string  `csv:"Date"`
	Open   float64 `csv:"Open"`
	High   float64 `csv:"High"`
	Low    float64 `csv:"Low"`
	Close  float64 `csv:"Close"`
	Volume int64   `csv:"Volume"`
}

// FetchDaily fetches the full daily history for a US ticker. Stooq
// symbols are lower-case with a ".us" suffix.
func (c *StooqClient) FetchDaily(ctx context.Context, ticker string) ([]models.Bar, error) {
	sym := strings.ToLower(ticker) + ".us"
	url := fmt.Sprintf("%s?s=%s&i=d", c.baseURL, sym)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewDataError("stooq", ticker, "building request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewDataError("stooq", ticker, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewDataError("stooq", ticker,
			fmt.Sprintf("HTTP %d", resp.StatusCode), apperrors.ErrProviderUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewDataError("stooq", ticker, "reading response", err)
	}

	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "404") || strings.Contains(text, "No data") || len(text) < 50 {
		return nil, apperrors.NewDataError("stooq", ticker, "no data", apperrors.ErrNoData)
	}

	var rows []stooqRow
	if err := gocsv.UnmarshalString(text, &rows); err != nil {
		return nil, apperrors.NewDataError("stooq", ticker, "parsing CSV", err)
	}

	bars := make([]models.Bar, 0, len(rows))
	for _, r := range rows {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(r.Date))
		if err != nil {
			continue
		}
		if r.Close <= 0 {
			continue
		}
		bars = append(bars, models.Bar{
			Date:   d,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	if len(bars) == 0 {
		return nil, apperrors.NewDataError("stooq", ticker, "no usable rows", apperrors.ErrNoData)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// ClipRange returns the bars with start <= date <= end.
func ClipRange(bars []models.Bar, start, end time.Time) []models.Bar {
	out := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
