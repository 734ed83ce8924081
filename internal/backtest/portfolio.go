// Package backtest replays historical market snapshots through the
// position lifecycle: per tick it evaluates exits on open positions,
// scans the chain for new candidates, opens the best eligible ones and
// tracks portfolio capital.
package backtest

import (
	"time"

	"options-backtester/internal/errors"
	"options-backtester/internal/models"
)

// Portfolio owns every open position and the closed-trade ledger. All
// writes happen on the single tick loop; the type itself is not
// goroutine-safe.
type Portfolio struct {
	initialCapital float64
	cash           float64 // capital available to commit
	committed      float64 // capital locked by open positions
	realized       float64 // booked PnL across closed trades

	maxPositions int
	open         map[string]*models.Position // keyed by ticker
	closed       []models.ClosedTrade
	equity       []models.EquityPoint
}

// NewPortfolio starts a portfolio with all capital available.
func NewPortfolio(initialCapital float64, maxPositions int) *Portfolio {
	return &Portfolio{
		initialCapital: initialCapital,
		cash:           initialCapital,
		maxPositions:   maxPositions,
		open:           make(map[string]*models.Position),
	}
}

// Cash returns the capital available to commit.
func (p *Portfolio) Cash() float64 { return p.cash }

// Committed returns the capital locked by open positions.
func (p *Portfolio) Committed() float64 { return p.committed }

// OpenPositions returns the open positions in no particular order.
func (p *Portfolio) OpenPositions() []*models.Position {
	out := make([]*models.Position, 0, len(p.open))
	for _, pos := range p.open {
		out = append(out, pos)
	}
	return out
}

// OpenByTicker returns the open position for a ticker, if any.
func (p *Portfolio) OpenByTicker(ticker string) (*models.Position, bool) {
	pos, ok := p.open[ticker]
	return pos, ok
}

// ClosedTrades returns the append-only ledger.
func (p *Portfolio) ClosedTrades() []models.ClosedTrade { return p.closed }

// EquityCurve returns the per-tick equity series.
func (p *Portfolio) EquityCurve() []models.EquityPoint { return p.equity }

// CanOpen checks the admission rules for a new position: one position
// per ticker, the position cap, and sufficient available capital.
// Violations block only this open attempt.
func (p *Portfolio) CanOpen(ticker string, requiredCapital float64) error {
	if _, held := p.open[ticker]; held {
		return errors.ErrTickerHeld
	}
	if len(p.open) >= p.maxPositions {
		return errors.ErrPositionLimit
	}
	if requiredCapital > p.cash {
		return errors.NewCapitalExceededError(ticker, requiredCapital, p.cash)
	}
	return nil
}

// Open commits capital to a position and takes ownership of it. The
// position must already be in the open state with its max risk set.
func (p *Portfolio) Open(pos *models.Position) error {
	required := absDollars(pos.MaxRisk)
	if err := p.CanOpen(pos.Ticker, required); err != nil {
		return err
	}
	p.cash -= required
	p.committed += required
	p.open[pos.Ticker] = pos
	return nil
}

// Close releases a position's committed capital, books its realized
// PnL into cash and appends the ledger row. The position must already
// carry its exit fields.
func (p *Portfolio) Close(pos *models.Position) {
	required := absDollars(pos.MaxRisk)
	p.committed -= required
	p.cash += required + pos.RealizedPnL
	p.realized += pos.RealizedPnL
	delete(p.open, pos.Ticker)

	p.closed = append(p.closed, models.ClosedTrade{
		PositionID:       pos.ID,
		Ticker:           pos.Ticker,
		Strategy:         pos.Strategy,
		EntryDate:        pos.EntryDate,
		ExitDate:         pos.ExitDate,
		EntryPrice:       pos.EntryPremium,
		ExitPrice:        pos.ExitValue,
		PremiumCollected: pos.EntryPremium,
		RealizedPnL:      pos.RealizedPnL,
		ExitReason:       pos.ExitReason,
		PoP:              pos.PoP,
		DTEAtEntry:       pos.DTEAtEntry,
		DaysHeld:         pos.DaysHeld,
	})
}

// MarkEquity records the tick's equity point. Equity counts cash,
// committed capital and the unrealized PnL of open positions.
func (p *Portfolio) MarkEquity(date time.Time, unrealized float64) models.EquityPoint {
	point := models.EquityPoint{
		Date:            date,
		Equity:          p.cash + p.committed + unrealized,
		Cash:            p.cash,
		Committed:       p.committed,
		Unrealized:      unrealized,
		OpenPositions:   len(p.open),
		ClosedPositions: len(p.closed),
	}
	p.equity = append(p.equity, point)
	return point
}

// MarkSettlement restates the equity point for a date after end-of-data
// settlement has force-closed positions and zeroed their unrealized
// PnL. The curve keeps one point per date, so a point already marked
// for the date is rewritten rather than duplicated.
func (p *Portfolio) MarkSettlement(date time.Time) models.EquityPoint {
	point := models.EquityPoint{
		Date:            date,
		Equity:          p.cash + p.committed,
		Cash:            p.cash,
		Committed:       p.committed,
		OpenPositions:   len(p.open),
		ClosedPositions: len(p.closed),
	}
	if n := len(p.equity); n > 0 && p.equity[n-1].Date.Equal(date) {
		p.equity[n-1] = point
		return point
	}
	p.equity = append(p.equity, point)
	return point
}

// CheckInvariant verifies the capital identity: available plus
// committed always equals initial capital plus booked PnL.
func (p *Portfolio) CheckInvariant() bool {
	const tolerance = 1e-6
	diff := p.cash + p.committed - (p.initialCapital + p.realized)
	return diff < tolerance && diff > -tolerance
}

func absDollars(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
