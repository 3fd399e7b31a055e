package series

import (
	"math"
	"sort"
	"time"

	apperrors "poos-backtester/internal/errors"
	"poos-backtester/internal/indicators"
	"poos-backtester/internal/models"
)

// Store holds the aligned universe for one simulation run: the index
// series (which defines the trading calendar), sector ETF series, stock
// series, and the ticker→sector mapping. All derived views are memoized
// for the life of the run.
type Store struct {
	Calendar []time.Time
	Index    *Series
	Sectors  map[string]*Series
	Stocks   map[string]*Series
	SectorOf map[string]string

	// Dropped records tickers excluded during alignment.
	Dropped []models.Skip

	sectorRSEMA map[string][]float64
	stockRS     map[string][]float64
}

// Build aligns raw bar series on the index ticker's trading calendar.
// Tickers with any missing or invalid bar inside the calendar are
// dropped and recorded, never fatal; a missing index series is fatal.
func Build(indexSymbol string, raw map[string][]models.Bar, sectorETFs []string, sectorOf map[string]string) (*Store, error) {
	indexBars, ok := raw[indexSymbol]
	if !ok || len(indexBars) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrIndexMissing, "no bars for %s", indexSymbol)
	}

	calendar := make([]time.Time, len(indexBars))
	for i, b := range indexBars {
		calendar[i] = b.Date
	}

	st := &Store{
		Calendar:    calendar,
		Index:       New(indexSymbol, indexBars),
		Sectors:     make(map[string]*Series),
		Stocks:      make(map[string]*Series),
		SectorOf:    sectorOf,
		sectorRSEMA: make(map[string][]float64),
		stockRS:     make(map[string][]float64),
	}

	isSector := make(map[string]bool, len(sectorETFs))
	for _, s := range sectorETFs {
		isSector[s] = true
	}

	tickers := make([]string, 0, len(raw))
	for t := range raw {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	for _, t := range tickers {
		if t == indexSymbol {
			continue
		}
		aligned, ok := align(raw[t], calendar)
		if !ok {
			st.Dropped = append(st.Dropped, models.Skip{
				Ticker: t,
				Date:   calendar[0],
				Reason: "gaps in aligned series",
			})
			continue
		}
		if isSector[t] {
			st.Sectors[t] = New(t, aligned)
		} else {
			st.Stocks[t] = New(t, aligned)
		}
	}

	return st, nil
}

// align reindexes bars onto the calendar. Returns false when any
// calendar day is missing or carries an unusable bar.
func align(bars []models.Bar, calendar []time.Time) ([]models.Bar, bool) {
	byDate := make(map[time.Time]models.Bar, len(bars))
	for _, b := range bars {
		byDate[b.Date] = b
	}

	out := make([]models.Bar, 0, len(calendar))
	for _, d := range calendar {
		b, ok := byDate[d]
		if !ok || b.Close <= 0 || b.High < b.Low {
			return nil, false
		}
		out = append(out, b)
	}
	return out, true
}

// DayIndex returns the calendar index for a date, or -1 when the date
// is not a trading day.
func (st *Store) DayIndex(date time.Time) int {
	// Calendar is sorted ascending.
	i := sort.Search(len(st.Calendar), func(i int) bool {
		return !st.Calendar[i].Before(date)
	})
	if i < len(st.Calendar) && st.Calendar[i].Equal(date) {
		return i
	}
	return -1
}

// SectorRSEMA returns the memoized EMA20 of (sector close / index close)
// for a sector ETF, or nil when the sector is unknown.
func (st *Store) SectorRSEMA(sector string) []float64 {
	if v, ok := st.sectorRSEMA[sector]; ok {
		return v
	}
	sec, ok := st.Sectors[sector]
	if !ok {
		return nil
	}
	rs := indicators.Ratio(sec.Closes(), st.Index.Closes())
	v := emaSkipNaN(rs, 20)
	st.sectorRSEMA[sector] = v
	return v
}

// StockRS returns the memoized (stock close / sector close) ratio for a
// ticker, or nil when the ticker has no mapped sector series.
func (st *Store) StockRS(ticker string) []float64 {
	if v, ok := st.stockRS[ticker]; ok {
		return v
	}
	stock, ok := st.Stocks[ticker]
	if !ok {
		return nil
	}
	sec, ok := st.Sectors[st.SectorOf[ticker]]
	if !ok {
		return nil
	}
	v := indicators.Ratio(stock.Closes(), sec.Closes())
	st.stockRS[ticker] = v
	return v
}

// emaSkipNaN applies an EMA that seeds on the first finite value and
// propagates NaN until then.
func emaSkipNaN(values []float64, period int) []float64 {
	result := make([]float64, len(values))
	multiplier := 2.0 / float64(period+1)

	seeded := false
	var prev float64
	for i, v := range values {
		if !seeded {
			if indicators.Valid(v) {
				seeded = true
				prev = v
				result[i] = v
			} else {
				result[i] = math.NaN()
			}
			continue
		}
		if !indicators.Valid(v) {
			result[i] = prev
			continue
		}
		prev = (v-prev)*multiplier + prev
		result[i] = prev
	}
	return result
}

// StockTickers returns the stock symbols in lexical order, the
// iteration order used everywhere determinism matters.
func (st *Store) StockTickers() []string {
	out := make([]string, 0, len(st.Stocks))
	for t := range st.Stocks {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
