package recorder

import (
	"context"

	"SwingScanner/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ context.Context, _ *model.RunRecord) error { return nil }
func (n *NoopRecorder) RecordAlerts(_ context.Context, _ string, _ []model.AlertResult) error {
	return nil
}
func (n *NoopRecorder) LastRun(_ context.Context) (*RunSummary, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                     { return nil }
