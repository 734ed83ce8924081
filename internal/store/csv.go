// Package store loads market snapshot data from CSV chain files and
// persists backtest results to SQLite.
package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"options-backtester/internal/errors"
	"options-backtester/internal/models"
)

// chainRow is one option quote row in a per-ticker chain CSV.
type chainRow struct {
	Date         string  `csv:"date"`
	Underlying   float64 `csv:"underlying"`
	Strike       float64 `csv:"strike"`
	Expiration   string  `csv:"expiration"`
	Right        string  `csv:"right"`
	Bid          float64 `csv:"bid"`
	Ask          float64 `csv:"ask"`
	Last         float64 `csv:"last"`
	Volume       int64   `csv:"volume"`
	OpenInterest int64   `csv:"open_interest"`
	IV           float64 `csv:"iv"`
	Delta        float64 `csv:"delta"`
	Gamma        float64 `csv:"gamma"`
	Theta        float64 `csv:"theta"`
	Vega         float64 `csv:"vega"`
}

var requiredColumns = []string{
	"date", "underlying", "strike", "expiration", "right",
	"bid", "ask", "volume", "open_interest", "iv",
}

const dateLayout = "2006-01-02"

// LoadTickerSnapshots reads one ticker's chain CSV and groups rows into
// daily snapshots, sorted chronologically. Rows outside [start, end]
// are dropped.
func LoadTickerSnapshots(path, ticker string, start, end time.Time) ([]*models.MarketSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening chain file %s", path)
	}
	defer f.Close()

	if err := checkSchema(f); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, errors.Wrap(err, "rewinding chain file")
	}

	var rows []*chainRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, errors.Wrapf(err, "parsing chain file %s", path)
	}

	byDate := make(map[time.Time]*models.MarketSnapshot)
	for _, row := range rows {
		date, err := time.Parse(dateLayout, row.Date)
		if err != nil {
			return nil, errors.Wrapf(err, "bad date %q in %s", row.Date, path)
		}
		if date.Before(start) || date.After(end) {
			continue
		}
		exp, err := time.Parse(dateLayout, row.Expiration)
		if err != nil {
			return nil, errors.Wrapf(err, "bad expiration %q in %s", row.Expiration, path)
		}

		snap, ok := byDate[date]
		if !ok {
			snap = &models.MarketSnapshot{Date: date, Ticker: ticker, Underlying: row.Underlying}
			byDate[date] = snap
		}
		snap.Quotes = append(snap.Quotes, models.OptionQuote{
			Ticker:       ticker,
			Strike:       row.Strike,
			Expiration:   exp,
			Right:        parseRight(row.Right),
			Bid:          row.Bid,
			Ask:          row.Ask,
			Last:         row.Last,
			Volume:       row.Volume,
			OpenInterest: row.OpenInterest,
			IV:           row.IV,
			Greeks: models.Greeks{
				Delta: row.Delta,
				Gamma: row.Gamma,
				Theta: row.Theta,
				Vega:  row.Vega,
			},
			Stale: row.Bid <= 0 || row.Ask <= 0,
		})
	}

	snapshots := make([]*models.MarketSnapshot, 0, len(byDate))
	for _, snap := range byDate {
		snapshots = append(snapshots, snap)
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Date.Before(snapshots[j].Date) })
	return snapshots, nil
}

// LoadUniverseSnapshots loads <ticker>.csv for every requested ticker
// from dir. A missing file fails the load: a backtest over a universe
// with silently absent tickers would not be reproducible.
func LoadUniverseSnapshots(dir string, tickers []string, start, end time.Time) (map[string][]*models.MarketSnapshot, error) {
	out := make(map[string][]*models.MarketSnapshot, len(tickers))
	for _, ticker := range tickers {
		path := filepath.Join(dir, ticker+".csv")
		snaps, err := LoadTickerSnapshots(path, ticker, start, end)
		if err != nil {
			return nil, err
		}
		out[ticker] = snaps
	}
	return out, nil
}

// checkSchema verifies the header row carries every required column.
func checkSchema(f *os.File) error {
	buf := make([]byte, 4096)
	n, err := f.Read(buf)
	if err != nil {
		return errors.Wrap(errors.ErrMissingSchema, "reading header")
	}
	header := string(buf[:n])
	if i := strings.IndexByte(header, '\n'); i >= 0 {
		header = header[:i]
	}
	header = strings.ToLower(strings.TrimSpace(header))

	present := make(map[string]bool)
	for _, col := range strings.Split(header, ",") {
		present[strings.TrimSpace(col)] = true
	}
	for _, col := range requiredColumns {
		if !present[col] {
			return errors.Wrapf(errors.ErrMissingSchema, "column %q", col)
		}
	}
	return nil
}

func parseRight(s string) models.OptionRight {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "call":
		return models.RightCall
	default:
		return models.RightPut
	}
}
