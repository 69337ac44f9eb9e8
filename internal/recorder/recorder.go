package recorder

import (
	"context"
	"time"

	"SwingScanner/internal/model"
)

// RunSummary is the stored headline of one scan.
type RunSummary struct {
	ScanID          string    `db:"scan_id"`
	ScanTimestamp   time.Time `db:"scan_timestamp"`
	ScanType        string    `db:"scan_type"`
	ScanDate        string    `db:"scan_date"`
	UniverseSize    int       `db:"universe_size"`
	StocksFetched   int       `db:"stocks_fetched"`
	SetupsDetected  int       `db:"setups_detected"`
	SetupsEvaluated int       `db:"setups_evaluated"`
	HighConfidence  int       `db:"high_confidence_count"`
	DurationSeconds float64   `db:"duration_seconds"`
	Status          string    `db:"status"`
}

// Recorder persists scan results for later analysis.
type Recorder interface {
	RecordRun(ctx context.Context, run *model.RunRecord) error
	RecordAlerts(ctx context.Context, runID string, results []model.AlertResult) error
	LastRun(ctx context.Context) (*RunSummary, error)
	Close() error
}
