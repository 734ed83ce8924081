package backtest

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"options-backtester/internal/config"
	"options-backtester/internal/errors"
	"options-backtester/internal/execution"
	"options-backtester/internal/logging"
	"options-backtester/internal/models"
	"options-backtester/internal/probability"
	"options-backtester/internal/quant"
	"options-backtester/internal/risk"
	"options-backtester/internal/scoring"
)

// Tick is one trading day's snapshots across the backtest universe.
type Tick struct {
	Date      time.Time
	Snapshots map[string]*models.MarketSnapshot
}

// Result is the full backtest output: the ledger, the equity curve,
// the rejection audit and summary metrics.
type Result struct {
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64
	FinalEquity    float64

	Trades      []models.ClosedTrade
	EquityCurve []models.EquityPoint
	Rejections  []models.RejectedCandidate
	Metrics     Metrics

	// FallbackValuations counts leg valuations that fell back to the
	// model price because the quote was stale or one-sided.
	FallbackValuations int
	SkippedTicks       int
}

// Engine drives the sequential replay. Construct with NewEngine; the
// zero value is unusable.
type Engine struct {
	cfg       *config.Config
	valuation *quant.Engine
	risk      *risk.Manager
	pipeline  *scoring.Pipeline
	scorer    *scoring.Scorer
	sim       *execution.Simulator
	log       zerolog.Logger

	portfolio *Portfolio
	iv        *ivTracker

	// lastValue carries each open position's most recent fair value so
	// equity marks survive days with no usable snapshot.
	lastValue map[string]float64

	fallbackCount int
	skippedTicks  int
	rejections    []models.RejectedCandidate
}

// NewEngine wires the engine from configuration. The risk manager is
// injected so one universe can serve several runs.
func NewEngine(cfg *config.Config, riskMgr *risk.Manager, log zerolog.Logger) *Engine {
	criteria := scoring.FilterCriteria{
		MinVolume:       cfg.Filters.MinVolume,
		MinOpenInterest: cfg.Filters.MinOpenInterest,
		MinIVRank:       cfg.Filters.MinIVRank,
		ShortDeltaMin:   cfg.Filters.ShortDeltaMin,
		ShortDeltaMax:   cfg.Filters.ShortDeltaMax,
		LongDeltaMin:    cfg.Filters.LongDeltaMin,
		LongDeltaMax:    cfg.Filters.LongDeltaMax,
	}
	weights := scoring.Weights{
		PremiumRisk:  cfg.Scoring.PremiumRisk,
		DTEBias:      cfg.Scoring.DTEBias,
		Liquidity:    cfg.Scoring.Liquidity,
		IVRank:       cfg.Scoring.IVRank,
		Premium:      cfg.Scoring.Premium,
		DeltaBalance: cfg.Scoring.DeltaBalance,
	}
	return &Engine{
		cfg:       cfg,
		valuation: quant.NewEngine(cfg.Valuation.RiskFreeRate, cfg.Valuation.DefaultIV),
		risk:      riskMgr,
		pipeline:  scoring.NewPipeline(criteria),
		scorer:    scoring.NewScorer(weights, criteria),
		sim: execution.NewSimulator(
			cfg.Execution.Slippage,
			cfg.Execution.CommissionPerContract,
			cfg.Execution.MaxSpreadPct,
		),
		log:       log,
		portfolio: NewPortfolio(cfg.Backtest.InitialCapital, cfg.Backtest.MaxPositions),
		iv:        newIVTracker(),
		lastValue: make(map[string]float64),
	}
}

// Run replays ticks in order. Ticks must already be chronologically
// sorted; each tick's decisions depend on portfolio state carried from
// every prior tick. The context stops the replay between ticks.
func (e *Engine) Run(ctx context.Context, ticks []Tick) (*Result, error) {
	if len(ticks) == 0 {
		return nil, errors.ErrDataNotFound
	}

	for i, tick := range ticks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if i > 0 && tick.Date.Before(ticks[i-1].Date) {
			return nil, errors.NewInvalidInputError("ticks", 0, "ticks out of chronological order")
		}
		e.processTick(tick)
	}

	endDate := ticks[len(ticks)-1].Date
	if e.settleRemaining(endDate) {
		e.portfolio.MarkSettlement(endDate)
	}

	result := &Result{
		StartDate:          ticks[0].Date,
		EndDate:            endDate,
		InitialCapital:     e.cfg.Backtest.InitialCapital,
		Trades:             e.portfolio.ClosedTrades(),
		EquityCurve:        e.portfolio.EquityCurve(),
		Rejections:         e.rejections,
		FallbackValuations: e.fallbackCount,
		SkippedTicks:       e.skippedTicks,
	}
	if curve := result.EquityCurve; len(curve) > 0 {
		result.FinalEquity = curve[len(curve)-1].Equity
	}
	result.Metrics = computeMetrics(result)
	return result, nil
}

func (e *Engine) processTick(tick Tick) {
	snapshots := e.usableSnapshots(tick)

	for ticker, snap := range snapshots {
		if iv := snap.MedianIV(); iv > 0 {
			e.iv.Observe(ticker, iv)
			e.risk.RefreshCategory(ticker, e.iv.History(ticker))
		}
	}

	unrealized := e.evaluateExits(tick.Date, snapshots)
	e.openCandidates(tick.Date, snapshots)
	e.portfolio.MarkEquity(tick.Date, unrealized)

	if !e.portfolio.CheckInvariant() {
		e.log.Error().Time("date", tick.Date).Msg("capital invariant violated")
	}
}

// usableSnapshots drops snapshots missing required fields, surfacing a
// diagnostic for each. The remaining tickers still trade this tick.
func (e *Engine) usableSnapshots(tick Tick) map[string]*models.MarketSnapshot {
	out := make(map[string]*models.MarketSnapshot, len(tick.Snapshots))
	for ticker, snap := range tick.Snapshots {
		if snap == nil || snap.Underlying <= 0 || snap.Date.IsZero() || len(snap.Quotes) == 0 {
			e.skippedTicks++
			logging.LogSkippedTick(e.log, ticker, tick.Date, errors.ErrMissingSchema)
			continue
		}
		out[ticker] = snap
	}
	return out
}

// evaluateExits walks open positions in ticker order, closing any that
// trigger an exit, and returns the total unrealized PnL of the
// positions that stay open.
func (e *Engine) evaluateExits(date time.Time, snapshots map[string]*models.MarketSnapshot) float64 {
	open := e.portfolio.OpenPositions()
	sort.Slice(open, func(i, j int) bool { return open[i].Ticker < open[j].Ticker })

	var unrealized float64
	for _, pos := range open {
		snap, ok := snapshots[pos.Ticker]
		if !ok {
			// No data today. Expiration still fires; otherwise carry the
			// last mark.
			if daysTo(date, pos.Expiration) <= 0 {
				e.closeAtExpiration(pos, date, nil)
				continue
			}
			unrealized += pos.EntryPremium - e.lastValue[pos.ID]
			continue
		}

		legs := refreshLegs(pos.Legs, snap)
		value, fallbacks := e.spreadFairValue(pos, legs, snap)
		e.fallbackCount += fallbacks
		e.lastValue[pos.ID] = value

		if reason, ok := exitTrigger(pos, value, date); ok {
			e.closePosition(pos, date, reason, value, legs, snap)
			continue
		}
		unrealized += pos.EntryPremium - value
	}
	return unrealized
}

// exitTrigger applies the exit rules in priority order. Loss control
// always wins when several conditions fire on the same tick.
func exitTrigger(pos *models.Position, value float64, date time.Time) (models.ExitReason, bool) {
	loss := value - pos.EntryPremium
	profit := pos.EntryPremium - value

	switch {
	case loss >= pos.StopLoss:
		return models.ExitStopLoss, true
	case profit >= pos.ProfitTarget:
		return models.ExitProfitTarget, true
	case daysTo(date, pos.Expiration) <= 0:
		return models.ExitExpiration, true
	}
	return "", false
}

// spreadFairValue values the position's legs, falling back to model
// prices for stale quotes, and reports how many legs fell back. At or
// past expiration the value collapses to intrinsic.
func (e *Engine) spreadFairValue(pos *models.Position, legs []models.SpreadLeg, snap *models.MarketSnapshot) (float64, int) {
	if daysTo(snap.Date, pos.Expiration) <= 0 {
		return e.valuation.ExpirationValue(legs, snap.Underlying), 0
	}
	sv, err := e.valuation.SpreadValue(legs, snap)
	if err != nil {
		// Valuation is total over well-formed legs; reaching this means
		// the leg data itself is broken. Hold the last known mark.
		plog := logging.WithPosition(e.log, pos.ID)
		plog.Warn().Err(err).Msg("valuation failed, holding last mark")
		return e.lastValue[pos.ID], 0
	}
	return sv.Value, sv.FallbackLegs
}

func (e *Engine) closePosition(pos *models.Position, date time.Time, reason models.ExitReason, fairValue float64, legs []models.SpreadLeg, snap *models.MarketSnapshot) {
	if reason == models.ExitExpiration {
		e.closeAtExpiration(pos, date, snap)
		return
	}

	exitCost := fairValue
	fill, err := e.sim.SimulateClose(legs)
	if err != nil {
		// The market is too wide to cross but the exit must still
		// happen: settle at fair value. Early closure is a risk rule,
		// not an optional order.
		plog := logging.WithPosition(e.log, pos.ID)
		plog.Warn().Err(err).Msg("close fill rejected, settling at fair value")
	} else {
		exitCost = -fill.Net
	}

	pnl := pos.EntryPremium - exitCost
	if err := pos.Close(date, reason, exitCost, pnl); err != nil {
		e.log.Error().Err(err).Str("position", pos.ID).Msg("close transition rejected")
		return
	}
	e.portfolio.Close(pos)
	delete(e.lastValue, pos.ID)
	logging.LogClose(e.log, pos.Ticker, string(reason), pnl, pos.DaysHeld)
}

// closeAtExpiration settles at intrinsic value with no fill friction.
// snap may be nil when the expiry day itself had no data; settlement
// then uses the last mark.
func (e *Engine) closeAtExpiration(pos *models.Position, date time.Time, snap *models.MarketSnapshot) {
	settle := e.lastValue[pos.ID]
	if snap != nil {
		settle = e.valuation.ExpirationValue(pos.Legs, snap.Underlying)
	}
	pnl := pos.EntryPremium - settle
	if err := pos.Close(date, models.ExitExpiration, settle, pnl); err != nil {
		e.log.Error().Err(err).Str("position", pos.ID).Msg("close transition rejected")
		return
	}
	e.portfolio.Close(pos)
	delete(e.lastValue, pos.ID)
	logging.LogClose(e.log, pos.Ticker, string(models.ExitExpiration), pnl, pos.DaysHeld)
}

// settleRemaining force-closes positions still open when the data runs
// out, settling each at its last known fair value. They appear in the
// ledger as expiration closes.
func (e *Engine) settleRemaining(date time.Time) bool {
	open := e.portfolio.OpenPositions()
	sort.Slice(open, func(i, j int) bool { return open[i].Ticker < open[j].Ticker })

	for _, pos := range open {
		settle := e.lastValue[pos.ID]
		pnl := pos.EntryPremium - settle
		if err := pos.Close(date, models.ExitExpiration, settle, pnl); err != nil {
			e.log.Error().Err(err).Str("position", pos.ID).Msg("close transition rejected")
			continue
		}
		e.portfolio.Close(pos)
		delete(e.lastValue, pos.ID)
		logging.LogClose(e.log, pos.Ticker, string(models.ExitExpiration), pnl, pos.DaysHeld)
	}
	return len(open) > 0
}

// openCandidates scans every usable snapshot, ranks survivors across
// the whole universe and opens the best eligible ones.
func (e *Engine) openCandidates(date time.Time, snapshots map[string]*models.MarketSnapshot) {
	var eligible []models.CandidateSpread

	tickers := make([]string, 0, len(snapshots))
	for t := range snapshots {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		snap := snapshots[ticker]
		profile := e.risk.Lookup(ticker)
		candidates := buildCandidates(snap, profile, e.iv.Rank(ticker))
		survivors, rejected := e.pipeline.Apply(candidates, profile)
		e.annotatePoP(survivors, snap)
		for _, r := range rejected {
			e.rejections = append(e.rejections, models.RejectedCandidate{
				Date: date, Ticker: r.Candidate.Ticker, Stage: r.Stage, Reason: r.Reason,
			})
		}
		for _, c := range survivors {
			// The gate only judges candidates that actually got an
			// estimate; annotation failures pass through unjudged.
			if e.cfg.Filters.MinPoP > 0 && c.PoP > 0 && c.PoP < e.cfg.Filters.MinPoP {
				e.rejections = append(e.rejections, models.RejectedCandidate{
					Date: date, Ticker: c.Ticker, Stage: "pop",
					Reason: fmt.Sprintf("PoP %.1f%% below %.1f%%", c.PoP*100, e.cfg.Filters.MinPoP*100),
				})
				continue
			}
			eligible = append(eligible, c)
		}
	}

	for _, sc := range e.scorer.Rank(eligible) {
		required := absDollars(sc.MaxRisk)
		if err := e.portfolio.CanOpen(sc.Ticker, required); err != nil {
			// Blocks only this attempt; lower-ranked candidates on other
			// tickers may still fit.
			continue
		}
		e.openPosition(date, sc)
	}
}

func (e *Engine) openPosition(date time.Time, sc scoring.ScoredCandidate) {
	fill, err := e.sim.SimulateOpen(sc.Legs)
	if err != nil {
		e.rejections = append(e.rejections, models.RejectedCandidate{
			Date: date, Ticker: sc.Ticker, Stage: "execution", Reason: err.Error(),
		})
		return
	}
	if fill.Net <= 0 {
		e.rejections = append(e.rejections, models.RejectedCandidate{
			Date: date, Ticker: sc.Ticker, Stage: "execution", Reason: "no net credit after costs",
		})
		return
	}

	profile := e.risk.Lookup(sc.Ticker)
	premium := fill.Net
	maxRisk := sc.MaxRisk - (sc.NetCredit - premium)

	pos := &models.Position{
		ID:           uuid.NewString(),
		Ticker:       sc.Ticker,
		Strategy:     sc.Strategy,
		EntryDate:    date,
		Expiration:   sc.Expiration,
		DTEAtEntry:   sc.DTE,
		Legs:         sc.Legs,
		EntryPremium: premium,
		MaxRisk:      maxRisk,
		EntryGreeks:  sc.NetGreeks,
		PoP:          sc.PoP,
		Profile:      profile.CapturedProfile(),
		ProfitTarget: premium * profile.ProfitTargetPct / 100,
		StopLoss:     absDollars(maxRisk) * profile.StopLossPct / 100,
		State:        models.StateCandidate,
	}
	if err := pos.Transition(models.StateOpen); err != nil {
		e.log.Error().Err(err).Msg("open transition rejected")
		return
	}
	if err := e.portfolio.Open(pos); err != nil {
		e.log.Warn().Err(err).Str("ticker", sc.Ticker).Msg("open blocked")
		return
	}
	e.lastValue[pos.ID] = premium
	logging.LogOpen(e.log, pos.Ticker, pos.Strategy, premium, maxRisk)
}

// popTrials balances estimate noise against per-candidate cost; at this
// size the standard error of a PoP near 0.8 is under one point.
const popTrials = 2000

// annotatePoP attaches a Monte Carlo probability of profit to each
// candidate. The estimate feeds the min-PoP entry gate and is carried
// onto the opened position for the trade ledger. The seed derives from
// the ticker and date so reruns reproduce identical estimates.
func (e *Engine) annotatePoP(candidates []models.CandidateSpread, snap *models.MarketSnapshot) {
	sigma := snap.MedianIV()
	if sigma <= 0 {
		sigma = e.cfg.Valuation.DefaultIV
	}
	for i := range candidates {
		c := &candidates[i]
		r, ok := profitableRange(c)
		if !ok {
			continue
		}
		res, err := probability.MonteCarlo(snap.Underlying, sigma, e.valuation.RiskFreeRate(),
			quant.DaysToYears(c.DTE), r, popTrials, popSeed(c.Ticker, snap.Date))
		if err != nil {
			continue
		}
		c.PoP = res.PoP
	}
}

// profitableRange is the terminal underlying interval where the credit
// kept exceeds the settlement owed: beyond breakeven on the short side.
func profitableRange(c *models.CandidateSpread) (probability.Range, bool) {
	shorts := c.ShortLegs()
	if len(shorts) != 1 {
		return probability.Range{}, false
	}
	breakeven := c.NetCredit / models.ContractMultiplier
	strike := shorts[0].Quote.Strike
	if shorts[0].Quote.Right == models.RightPut {
		return probability.Range{Lower: strike - breakeven, Upper: math.Inf(1)}, true
	}
	return probability.Range{Lower: 0, Upper: strike + breakeven}, true
}

func popSeed(ticker string, date time.Time) int64 {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	return int64(h.Sum64()) ^ date.Unix()
}

// refreshLegs swaps each leg's entry quote for the current day's quote,
// marking legs stale when today's chain no longer carries the contract.
func refreshLegs(legs []models.SpreadLeg, snap *models.MarketSnapshot) []models.SpreadLeg {
	out := make([]models.SpreadLeg, len(legs))
	for i, leg := range legs {
		out[i] = leg
		if q, ok := snap.FindQuote(leg.Quote.Strike, leg.Quote.Right, leg.Quote.Expiration); ok {
			out[i].Quote = q
		} else {
			out[i].Quote.Stale = true
		}
	}
	return out
}

func daysTo(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
