package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SwingScanner/internal/model"
)

func newRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "scanner.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func sampleRun() *model.RunRecord {
	day := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	setup := model.Setup{
		Symbol: "INFY.NS", Type: model.SetupBreakout, Timeframe: model.Daily,
		DetectedAt: day, CurrentPrice: 1550, TriggerPrice: 1520, Strength: 1.97,
		Conditions: []string{"close_above_20d_high"}, Score: 90,
	}
	verdict := model.Verdict{
		Quality: "HIGH", BreakoutConfirmed: "YES", TrendStrength: "STRONG",
		Confidence: 86, Rationale: "ok", Model: "llama3.1:8b", Raw: "{}",
	}
	cand := model.TradeCandidate{
		Setup: setup, Verdict: verdict,
		Plan: model.Plan{EntryLow: 1534.5, EntryHigh: 1565.5, EntryMid: 1550, StopLoss: 1500,
			Target1: 1650, Target2: 1700, RewardRisk: 2, Shares: 40, PositionValue: 62000},
	}
	return &model.RunRecord{
		ID:        "scan_0123456789ab",
		StartedAt: time.Date(2024, 6, 28, 16, 0, 0, 0, time.UTC),
		Mode:      model.ModeLive,
		AsOf:      day,
		Account:   "default",
		Universe:  []string{"INFY.NS", "TCS.NS"},
		Fetched: map[string]model.Fetched{
			"INFY.NS": {
				Series: model.Series{Symbol: "INFY.NS", Timeframe: model.Daily, Bars: []model.Bar{
					{Date: day, Open: 1530, High: 1560, Low: 1525, Close: 1550, Volume: 900000},
				}},
				Provenance: model.FromPrimary, Source: "nse",
			},
		},
		Snapshots: map[string]model.Snapshot{
			"INFY.NS": {Close: 1550, EMAShort: 1500, EMAMedium: 1480, RSI: 62},
		},
		Setups:     []model.Setup{setup},
		Evaluated:  []model.EvaluatedSetup{{Setup: setup, Verdict: verdict}},
		Candidates: []model.TradeCandidate{cand},
		Alerts:     []model.TradeCandidate{cand},
		Errors:     []string{"TCS.NS: market data unavailable"},
		Duration:   42 * time.Second,
	}
}

func TestRecordRun(t *testing.T) {
	ctx := context.Background()
	r := newRecorder(t)
	run := sampleRun()

	require.NoError(t, r.RecordRun(ctx, run))
	for table, want := range map[string]int{
		"agent_runs": 1, "stock_snapshots": 1, "trade_setups": 1, "evaluation_results": 1,
	} {
		n, err := r.Count(ctx, table)
		require.NoError(t, err)
		assert.Equal(t, want, n, table)
	}

	var plan struct {
		StopLoss float64 `db:"stop_loss"`
		Shares   int64   `db:"position_size"`
	}
	require.NoError(t, r.db.Get(&plan, `SELECT stop_loss, position_size FROM evaluation_results`))
	assert.Equal(t, 1500.0, plan.StopLoss)
	assert.Equal(t, int64(40), plan.Shares)
}

func TestRecordRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	r := newRecorder(t)
	run := sampleRun()

	require.NoError(t, r.RecordRun(ctx, run))
	require.NoError(t, r.RecordRun(ctx, run))
	for _, table := range []string{"agent_runs", "stock_snapshots", "trade_setups", "evaluation_results"} {
		n, err := r.Count(ctx, table)
		require.NoError(t, err)
		assert.Equal(t, 1, n, table)
	}
}

func TestLastRun(t *testing.T) {
	ctx := context.Background()
	r := newRecorder(t)

	last, err := r.LastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	run := sampleRun()
	require.NoError(t, r.RecordRun(ctx, run))
	later := sampleRun()
	later.ID = "scan_ba9876543210"
	later.StartedAt = run.StartedAt.Add(24 * time.Hour)
	later.Errors = nil
	require.NoError(t, r.RecordRun(ctx, later))

	last, err = r.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "scan_ba9876543210", last.ScanID)
	assert.Equal(t, "success", last.Status)
	assert.Equal(t, "live", last.ScanType)
	assert.Equal(t, "2024-06-28", last.ScanDate)
	assert.Equal(t, 2, last.UniverseSize)
	assert.Equal(t, 1, last.HighConfidence)
	assert.InDelta(t, 42.0, last.DurationSeconds, 1e-9)
}

func TestRecordRun_PartialStatus(t *testing.T) {
	ctx := context.Background()
	r := newRecorder(t)
	require.NoError(t, r.RecordRun(ctx, sampleRun()))

	last, err := r.LastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "partial", last.Status)
}

func TestRecordAlerts(t *testing.T) {
	ctx := context.Background()
	r := newRecorder(t)
	run := sampleRun()
	require.NoError(t, r.RecordRun(ctx, run))

	sent := time.Date(2024, 6, 28, 16, 1, 0, 0, time.UTC)
	require.NoError(t, r.RecordAlerts(ctx, run.ID, []model.AlertResult{
		{Symbol: "INFY.NS", SetupType: model.SetupBreakout, Channel: "telegram", Confidence: 86, Success: true, SentAt: sent},
		{Symbol: "INFY.NS", SetupType: model.SetupBreakout, Channel: "webhook", Confidence: 86, Error: "status 500", SentAt: sent},
		{Symbol: "TCS.NS", SetupType: model.SetupPullback, Channel: "log", Confidence: 81, Success: true, SentAt: sent},
	}))

	n, err := r.Count(ctx, "alert_history")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var linked int
	require.NoError(t, r.db.Get(&linked, `SELECT COUNT(*) FROM alert_history WHERE evaluation_id IS NOT NULL`))
	assert.Equal(t, 2, linked)
}

func TestCount_UnknownTable(t *testing.T) {
	r := newRecorder(t)
	_, err := r.Count(context.Background(), "sqlite_master; DROP TABLE agent_runs")
	assert.Error(t, err)
}

func TestNoopRecorder(t *testing.T) {
	var rec Recorder = NewNoopRecorder()
	ctx := context.Background()
	assert.NoError(t, rec.RecordRun(ctx, sampleRun()))
	assert.NoError(t, rec.RecordAlerts(ctx, "x", nil))
	last, err := rec.LastRun(ctx)
	assert.NoError(t, err)
	assert.Nil(t, last)
	assert.NoError(t, rec.Close())
}
