package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"options-backtester/internal/backtest"
	"options-backtester/internal/errors"
)

// ResultStore persists backtest outputs to SQLite: one row per run plus
// the full trade ledger, equity curve and rejection audit.
type ResultStore struct {
	db *sql.DB
}

// NewResultStore opens (or creates) the results database.
func NewResultStore(dbPath string) (*ResultStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "opening results database")
	}

	s := &ResultStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing schema")
	}
	return s, nil
}

func (s *ResultStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		start_date DATETIME NOT NULL,
		end_date DATETIME NOT NULL,
		initial_capital REAL NOT NULL,
		final_equity REAL NOT NULL,
		total_trades INTEGER NOT NULL,
		win_rate REAL,
		total_return REAL,
		sharpe_ratio REAL,
		max_drawdown REAL,
		fallback_valuations INTEGER,
		skipped_ticks INTEGER
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		position_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		strategy TEXT NOT NULL,
		entry_date DATETIME NOT NULL,
		exit_date DATETIME NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		premium_collected REAL NOT NULL,
		realized_pnl REAL NOT NULL,
		exit_reason TEXT NOT NULL,
		pop REAL,
		dte_at_entry INTEGER NOT NULL,
		days_held INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS equity_curve (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		date DATETIME NOT NULL,
		equity REAL NOT NULL,
		cash REAL NOT NULL,
		committed REAL NOT NULL,
		unrealized REAL NOT NULL,
		open_positions INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS rejections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		date DATETIME NOT NULL,
		ticker TEXT NOT NULL,
		stage TEXT NOT NULL,
		reason TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
	CREATE INDEX IF NOT EXISTS idx_equity_run ON equity_curve(run_id);
	CREATE INDEX IF NOT EXISTS idx_rejections_run ON rejections(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun writes a completed backtest atomically and returns its run
// id.
func (s *ResultStore) SaveRun(ctx context.Context, result *backtest.Result) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "starting transaction")
	}
	defer tx.Rollback()

	m := result.Metrics
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, start_date, end_date, initial_capital, final_equity,
			total_trades, win_rate, total_return, sharpe_ratio, max_drawdown,
			fallback_valuations, skipped_ticks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, result.StartDate, result.EndDate, result.InitialCapital, result.FinalEquity,
		m.TotalTrades, m.WinRate, m.TotalReturn, m.SharpeRatio, m.MaxDrawdown,
		result.FallbackValuations, result.SkippedTicks,
	); err != nil {
		return "", errors.Wrap(err, "inserting run")
	}

	for _, t := range result.Trades {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO trades (run_id, position_id, ticker, strategy, entry_date, exit_date,
				entry_price, exit_price, premium_collected, realized_pnl, exit_reason,
				pop, dte_at_entry, days_held)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, t.PositionID, t.Ticker, t.Strategy, t.EntryDate, t.ExitDate,
			t.EntryPrice, t.ExitPrice, t.PremiumCollected, t.RealizedPnL, string(t.ExitReason),
			t.PoP, t.DTEAtEntry, t.DaysHeld,
		); err != nil {
			return "", errors.Wrap(err, "inserting trade")
		}
	}

	for _, p := range result.EquityCurve {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO equity_curve (run_id, date, equity, cash, committed, unrealized, open_positions)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, p.Date, p.Equity, p.Cash, p.Committed, p.Unrealized, p.OpenPositions,
		); err != nil {
			return "", errors.Wrap(err, "inserting equity point")
		}
	}

	for _, r := range result.Rejections {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rejections (run_id, date, ticker, stage, reason)
			VALUES (?, ?, ?, ?, ?)`,
			runID, r.Date, r.Ticker, r.Stage, r.Reason,
		); err != nil {
			return "", errors.Wrap(err, "inserting rejection")
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "committing run")
	}
	return runID, nil
}

// RunSummary is one row of the saved-runs listing.
type RunSummary struct {
	ID          string
	CreatedAt   time.Time
	StartDate   time.Time
	EndDate     time.Time
	TotalTrades int
	WinRate     float64
	TotalReturn float64
}

// ListRuns returns saved runs, newest first.
func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, start_date, end_date, total_trades, win_rate, total_return
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying runs")
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.StartDate, &r.EndDate,
			&r.TotalTrades, &r.WinRate, &r.TotalReturn); err != nil {
			return nil, errors.Wrap(err, "scanning run")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TradeCount returns the number of trades stored for a run.
func (s *ResultStore) TradeCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trades WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "counting trades")
	}
	return n, nil
}

// Close releases the underlying database handle.
func (s *ResultStore) Close() error {
	return s.db.Close()
}
