package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"SwingScanner/internal/model"
)

// SQLiteRecorder persists scan results to a SQLite database.
type SQLiteRecorder struct {
	db  *sqlx.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agent_runs (
			id                    INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id               TEXT UNIQUE NOT NULL,
			scan_timestamp        DATETIME NOT NULL,
			scan_type             TEXT NOT NULL,
			scan_date             TEXT,
			account               TEXT,
			universe_size         INTEGER,
			stocks_fetched        INTEGER,
			setups_detected       INTEGER,
			setups_evaluated      INTEGER,
			high_confidence_count INTEGER,
			duration_seconds      REAL,
			status                TEXT NOT NULL,
			error_message         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_runs_timestamp ON agent_runs(scan_timestamp DESC)`,

		`CREATE TABLE IF NOT EXISTS stock_snapshots (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id        TEXT NOT NULL,
			symbol         TEXT NOT NULL,
			timeframe      TEXT NOT NULL,
			snapshot_date  TEXT NOT NULL,
			source         TEXT,
			open           REAL NOT NULL,
			high           REAL NOT NULL,
			low            REAL NOT NULL,
			close          REAL NOT NULL,
			volume         INTEGER NOT NULL,
			ema_20         REAL,
			ema_50         REAL,
			ema_200        REAL,
			rsi_14         REAL,
			macd           REAL,
			macd_signal    REAL,
			macd_histogram REAL,
			atr_14         REAL,
			volume_sma_20  REAL,
			volume_ratio   REAL,
			bb_upper       REAL,
			bb_middle      REAL,
			bb_lower       REAL,
			UNIQUE(scan_id, symbol, timeframe, snapshot_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_symbol_date ON stock_snapshots(symbol, snapshot_date DESC)`,

		`CREATE TABLE IF NOT EXISTS trade_setups (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id        TEXT NOT NULL,
			symbol         TEXT NOT NULL,
			setup_type     TEXT NOT NULL,
			timeframe      TEXT NOT NULL,
			detection_date TEXT NOT NULL,
			current_price  REAL NOT NULL,
			setup_score    REAL,
			trigger_price  REAL,
			strength       REAL,
			conditions_met TEXT,
			raw_data       TEXT,
			UNIQUE(scan_id, symbol, setup_type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_setups_symbol_date ON trade_setups(symbol, detection_date DESC)`,

		`CREATE TABLE IF NOT EXISTS evaluation_results (
			id                    INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id               TEXT NOT NULL,
			setup_id              INTEGER NOT NULL,
			symbol                TEXT NOT NULL,
			evaluation_timestamp  DATETIME NOT NULL,
			setup_quality         TEXT NOT NULL,
			breakout_confirmation TEXT NOT NULL,
			trend_strength        TEXT NOT NULL,
			confidence_score      REAL,
			reasoning             TEXT,
			entry_range_low       REAL,
			entry_range_high      REAL,
			stop_loss             REAL,
			target_1              REAL,
			target_2              REAL,
			risk_reward_ratio     REAL,
			position_size         INTEGER,
			position_value        REAL,
			llm_model             TEXT,
			llm_response_raw      TEXT,
			FOREIGN KEY (setup_id) REFERENCES trade_setups(id),
			UNIQUE(scan_id, setup_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_confidence ON evaluation_results(confidence_score DESC)`,

		`CREATE TABLE IF NOT EXISTS alert_history (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id          TEXT NOT NULL,
			evaluation_id    INTEGER,
			symbol           TEXT NOT NULL,
			alert_type       TEXT NOT NULL,
			confidence_score REAL,
			sent_at          DATETIME NOT NULL,
			success          INTEGER,
			error_message    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_symbol ON alert_history(symbol, sent_at DESC)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

type runRow struct {
	ScanID          string         `db:"scan_id"`
	ScanTimestamp   time.Time      `db:"scan_timestamp"`
	ScanType        string         `db:"scan_type"`
	ScanDate        string         `db:"scan_date"`
	Account         string         `db:"account"`
	UniverseSize    int            `db:"universe_size"`
	StocksFetched   int            `db:"stocks_fetched"`
	SetupsDetected  int            `db:"setups_detected"`
	SetupsEvaluated int            `db:"setups_evaluated"`
	HighConfidence  int            `db:"high_confidence_count"`
	DurationSeconds float64        `db:"duration_seconds"`
	Status          string         `db:"status"`
	ErrorMessage    sql.NullString `db:"error_message"`
}

type snapshotRow struct {
	ScanID        string  `db:"scan_id"`
	Symbol        string  `db:"symbol"`
	Timeframe     string  `db:"timeframe"`
	SnapshotDate  string  `db:"snapshot_date"`
	Source        string  `db:"source"`
	Open          float64 `db:"open"`
	High          float64 `db:"high"`
	Low           float64 `db:"low"`
	Close         float64 `db:"close"`
	Volume        int64   `db:"volume"`
	EMA20         float64 `db:"ema_20"`
	EMA50         float64 `db:"ema_50"`
	EMA200        float64 `db:"ema_200"`
	RSI14         float64 `db:"rsi_14"`
	MACD          float64 `db:"macd"`
	MACDSignal    float64 `db:"macd_signal"`
	MACDHistogram float64 `db:"macd_histogram"`
	ATR14         float64 `db:"atr_14"`
	VolumeSMA20   float64 `db:"volume_sma_20"`
	VolumeRatio   float64 `db:"volume_ratio"`
	BBUpper       float64 `db:"bb_upper"`
	BBMiddle      float64 `db:"bb_middle"`
	BBLower       float64 `db:"bb_lower"`
}

type setupRow struct {
	ScanID        string  `db:"scan_id"`
	Symbol        string  `db:"symbol"`
	SetupType     string  `db:"setup_type"`
	Timeframe     string  `db:"timeframe"`
	DetectionDate string  `db:"detection_date"`
	CurrentPrice  float64 `db:"current_price"`
	SetupScore    float64 `db:"setup_score"`
	TriggerPrice  float64 `db:"trigger_price"`
	Strength      float64 `db:"strength"`
	Conditions    string  `db:"conditions_met"`
	RawData       string  `db:"raw_data"`
}

type evaluationRow struct {
	ScanID               string    `db:"scan_id"`
	SetupID              int64     `db:"setup_id"`
	Symbol               string    `db:"symbol"`
	EvaluationTimestamp  time.Time `db:"evaluation_timestamp"`
	SetupQuality         string    `db:"setup_quality"`
	BreakoutConfirmation string    `db:"breakout_confirmation"`
	TrendStrength        string    `db:"trend_strength"`
	ConfidenceScore      float64   `db:"confidence_score"`
	Reasoning            string    `db:"reasoning"`
	EntryRangeLow        float64   `db:"entry_range_low"`
	EntryRangeHigh       float64   `db:"entry_range_high"`
	StopLoss             float64   `db:"stop_loss"`
	Target1              float64   `db:"target_1"`
	Target2              float64   `db:"target_2"`
	RiskRewardRatio      float64   `db:"risk_reward_ratio"`
	PositionSize         int64     `db:"position_size"`
	PositionValue        float64   `db:"position_value"`
	LLMModel             string    `db:"llm_model"`
	LLMResponseRaw       string    `db:"llm_response_raw"`
}

type alertRow struct {
	ScanID          string        `db:"scan_id"`
	EvaluationID    sql.NullInt64 `db:"evaluation_id"`
	Symbol          string        `db:"symbol"`
	AlertType       string        `db:"alert_type"`
	ConfidenceScore float64       `db:"confidence_score"`
	SentAt          time.Time     `db:"sent_at"`
	Success         bool          `db:"success"`
	ErrorMessage    string        `db:"error_message"`
}

// RecordRun writes the run and its snapshots, setups and evaluations in one
// transaction. Recording the same run twice leaves one copy.
func (r *SQLiteRecorder) RecordRun(ctx context.Context, run *model.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := insertRun(ctx, tx, run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := insertSnapshots(ctx, tx, run); err != nil {
		return fmt.Errorf("insert snapshots: %w", err)
	}
	setupIDs, err := insertSetups(ctx, tx, run)
	if err != nil {
		return fmt.Errorf("insert setups: %w", err)
	}
	if err := r.insertEvaluations(ctx, tx, run, setupIDs); err != nil {
		return fmt.Errorf("insert evaluations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Info().Str("scan_id", run.ID).Int("snapshots", len(run.Snapshots)).
		Int("setups", len(run.Setups)).Int("evaluations", len(run.Evaluated)).Msg("run persisted")
	return nil
}

func insertRun(ctx context.Context, tx *sqlx.Tx, run *model.RunRecord) error {
	row := runRow{
		ScanID:          run.ID,
		ScanTimestamp:   run.StartedAt.UTC(),
		ScanType:        string(run.Mode),
		Account:         run.Account,
		UniverseSize:    len(run.Universe),
		StocksFetched:   len(run.Fetched),
		SetupsDetected:  len(run.Setups),
		SetupsEvaluated: len(run.Evaluated),
		HighConfidence:  len(run.Alerts),
		DurationSeconds: run.Duration.Seconds(),
		Status:          run.Status(),
	}
	if !run.AsOf.IsZero() {
		row.ScanDate = run.AsOf.Format(model.DateLayout)
	}
	if len(run.Errors) > 0 {
		data, _ := json.Marshal(run.Errors)
		row.ErrorMessage = sql.NullString{String: string(data), Valid: true}
	}
	_, err := tx.NamedExecContext(ctx, `INSERT OR REPLACE INTO agent_runs
		(scan_id, scan_timestamp, scan_type, scan_date, account, universe_size, stocks_fetched,
		 setups_detected, setups_evaluated, high_confidence_count, duration_seconds, status, error_message)
		VALUES (:scan_id, :scan_timestamp, :scan_type, :scan_date, :account, :universe_size, :stocks_fetched,
		 :setups_detected, :setups_evaluated, :high_confidence_count, :duration_seconds, :status, :error_message)`, row)
	return err
}

func insertSnapshots(ctx context.Context, tx *sqlx.Tx, run *model.RunRecord) error {
	for symbol, snap := range run.Snapshots {
		f, ok := run.Fetched[symbol]
		if !ok || f.Series.Len() == 0 {
			continue
		}
		last := f.Series.Last()
		row := snapshotRow{
			ScanID:        run.ID,
			Symbol:        symbol,
			Timeframe:     string(f.Series.Timeframe),
			SnapshotDate:  last.Date.Format(model.DateLayout),
			Source:        f.Source,
			Open:          last.Open,
			High:          last.High,
			Low:           last.Low,
			Close:         last.Close,
			Volume:        int64(last.Volume),
			EMA20:         snap.EMAShort,
			EMA50:         snap.EMAMedium,
			EMA200:        snap.EMALong,
			RSI14:         snap.RSI,
			MACD:          snap.MACD,
			MACDSignal:    snap.MACDSignal,
			MACDHistogram: snap.MACDHistogram,
			ATR14:         snap.ATR,
			VolumeSMA20:   snap.VolumeSMA,
			VolumeRatio:   snap.VolumeRatio,
			BBUpper:       snap.BBUpper,
			BBMiddle:      snap.BBMid,
			BBLower:       snap.BBLower,
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT OR IGNORE INTO stock_snapshots
			(scan_id, symbol, timeframe, snapshot_date, source, open, high, low, close, volume,
			 ema_20, ema_50, ema_200, rsi_14, macd, macd_signal, macd_histogram,
			 atr_14, volume_sma_20, volume_ratio, bb_upper, bb_middle, bb_lower)
			VALUES (:scan_id, :symbol, :timeframe, :snapshot_date, :source, :open, :high, :low, :close, :volume,
			 :ema_20, :ema_50, :ema_200, :rsi_14, :macd, :macd_signal, :macd_histogram,
			 :atr_14, :volume_sma_20, :volume_ratio, :bb_upper, :bb_middle, :bb_lower)`, row); err != nil {
			return fmt.Errorf("%s: %w", symbol, err)
		}
	}
	return nil
}

func insertSetups(ctx context.Context, tx *sqlx.Tx, run *model.RunRecord) (map[string]int64, error) {
	ids := make(map[string]int64, len(run.Setups))
	for _, s := range run.Setups {
		raw, _ := json.Marshal(s)
		conds, _ := json.Marshal(s.Conditions)
		row := setupRow{
			ScanID:        run.ID,
			Symbol:        s.Symbol,
			SetupType:     string(s.Type),
			Timeframe:     string(s.Timeframe),
			DetectionDate: s.DetectedAt.Format(model.DateLayout),
			CurrentPrice:  s.CurrentPrice,
			SetupScore:    s.Score,
			TriggerPrice:  s.TriggerPrice,
			Strength:      s.Strength,
			Conditions:    string(conds),
			RawData:       string(raw),
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT OR IGNORE INTO trade_setups
			(scan_id, symbol, setup_type, timeframe, detection_date, current_price,
			 setup_score, trigger_price, strength, conditions_met, raw_data)
			VALUES (:scan_id, :symbol, :setup_type, :timeframe, :detection_date, :current_price,
			 :setup_score, :trigger_price, :strength, :conditions_met, :raw_data)`, row); err != nil {
			return nil, fmt.Errorf("%s: %w", s.Key(), err)
		}
		var id int64
		if err := tx.GetContext(ctx, &id,
			`SELECT id FROM trade_setups WHERE scan_id = ? AND symbol = ? AND setup_type = ?`,
			run.ID, s.Symbol, string(s.Type)); err != nil {
			return nil, fmt.Errorf("%s: %w", s.Key(), err)
		}
		ids[s.Key()] = id
	}
	return ids, nil
}

func (r *SQLiteRecorder) insertEvaluations(ctx context.Context, tx *sqlx.Tx, run *model.RunRecord, setupIDs map[string]int64) error {
	plans := make(map[string]model.Plan, len(run.Candidates))
	for _, c := range run.Candidates {
		plans[c.Setup.Key()] = c.Plan
	}
	for _, e := range run.Evaluated {
		key := e.Setup.Key()
		setupID, ok := setupIDs[key]
		if !ok {
			log.Warn().Str("setup", key).Msg("no stored setup for evaluation")
			continue
		}
		plan := plans[key]
		row := evaluationRow{
			ScanID:               run.ID,
			SetupID:              setupID,
			Symbol:               e.Setup.Symbol,
			EvaluationTimestamp:  r.now().UTC(),
			SetupQuality:         e.Verdict.Quality,
			BreakoutConfirmation: e.Verdict.BreakoutConfirmed,
			TrendStrength:        e.Verdict.TrendStrength,
			ConfidenceScore:      e.Verdict.Confidence,
			Reasoning:            e.Verdict.Rationale,
			EntryRangeLow:        plan.EntryLow,
			EntryRangeHigh:       plan.EntryHigh,
			StopLoss:             plan.StopLoss,
			Target1:              plan.Target1,
			Target2:              plan.Target2,
			RiskRewardRatio:      plan.RewardRisk,
			PositionSize:         plan.Shares,
			PositionValue:        plan.PositionValue,
			LLMModel:             e.Verdict.Model,
			LLMResponseRaw:       e.Verdict.Raw,
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT OR IGNORE INTO evaluation_results
			(scan_id, setup_id, symbol, evaluation_timestamp, setup_quality, breakout_confirmation,
			 trend_strength, confidence_score, reasoning, entry_range_low, entry_range_high, stop_loss,
			 target_1, target_2, risk_reward_ratio, position_size, position_value, llm_model, llm_response_raw)
			VALUES (:scan_id, :setup_id, :symbol, :evaluation_timestamp, :setup_quality, :breakout_confirmation,
			 :trend_strength, :confidence_score, :reasoning, :entry_range_low, :entry_range_high, :stop_loss,
			 :target_1, :target_2, :risk_reward_ratio, :position_size, :position_value, :llm_model, :llm_response_raw)`, row); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// RecordAlerts appends one alert_history row per delivery attempt.
func (r *SQLiteRecorder) RecordAlerts(ctx context.Context, runID string, results []model.AlertResult) error {
	if len(results) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, res := range results {
		row := alertRow{
			ScanID:          runID,
			Symbol:          res.Symbol,
			AlertType:       res.Channel,
			ConfidenceScore: res.Confidence,
			SentAt:          res.SentAt.UTC(),
			Success:         res.Success,
			ErrorMessage:    res.Error,
		}
		var evalID int64
		err := tx.GetContext(ctx, &evalID, `SELECT e.id FROM evaluation_results e
			JOIN trade_setups s ON s.id = e.setup_id
			WHERE e.scan_id = ? AND s.symbol = ? AND s.setup_type = ?`,
			runID, res.Symbol, string(res.SetupType))
		switch {
		case err == nil:
			row.EvaluationID = sql.NullInt64{Int64: evalID, Valid: true}
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("lookup evaluation: %w", err)
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO alert_history
			(scan_id, evaluation_id, symbol, alert_type, confidence_score, sent_at, success, error_message)
			VALUES (:scan_id, :evaluation_id, :symbol, :alert_type, :confidence_score, :sent_at, :success, :error_message)`,
			row); err != nil {
			return fmt.Errorf("insert alert: %w", err)
		}
	}
	return tx.Commit()
}

// LastRun returns the most recent run, or nil when none is stored.
func (r *SQLiteRecorder) LastRun(ctx context.Context) (*RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s RunSummary
	err := r.db.GetContext(ctx, &s, `SELECT scan_id, scan_timestamp, scan_type, COALESCE(scan_date, '') AS scan_date,
		universe_size, stocks_fetched, setups_detected, setups_evaluated,
		high_confidence_count, duration_seconds, status
		FROM agent_runs ORDER BY scan_timestamp DESC, id DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last run: %w", err)
	}
	return &s, nil
}

// Count returns the number of rows in table. Used by tests and diagnostics.
func (r *SQLiteRecorder) Count(ctx context.Context, table string) (int, error) {
	switch table {
	case "agent_runs", "stock_snapshots", "trade_setups", "evaluation_results", "alert_history":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
