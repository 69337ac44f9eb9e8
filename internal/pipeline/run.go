// Package pipeline sequences one scan: universe, acquisition, indicators,
// detection, evaluation, risk, persistence and alerting.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"SwingScanner/internal/indicator"
	"SwingScanner/internal/model"
)

// Branch is the outcome of detection: HasSetups or NoSetups.
type Branch interface{ isBranch() }

// HasSetups routes the run through evaluation and risk.
type HasSetups struct{ Setups []model.Setup }

// NoSetups skips evaluation and risk.
type NoSetups struct{}

func (HasSetups) isBranch() {}
func (NoSetups) isBranch()  {}

// Run is the state of one scan. A stage receives a Run and returns a new one;
// it never writes into the maps or slices of the Run it was given.
type Run struct {
	ID        string
	StartedAt time.Time
	Mode      model.ScanMode
	AsOf      time.Time
	Account   model.Account

	Universe   []string
	Fetched    map[string]model.Fetched
	Frames     map[string]indicator.Frame
	Snapshots  map[string]model.Snapshot
	Setups     []model.Setup
	Branch     Branch
	Evaluated  []model.EvaluatedSetup
	Candidates []model.TradeCandidate
	Alerts     []model.TradeCandidate
	Deliveries []model.AlertResult

	Errors   []string
	Timings  map[string]time.Duration
	Duration time.Duration
}

// NewRunID returns "scan_" followed by 12 hex characters of a random UUID.
func NewRunID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return "scan_" + strings.ReplaceAll(u.String(), "-", "")[:12], nil
}

// Status is "success" without recorded errors, "partial" otherwise.
func (r Run) Status() string {
	if len(r.Errors) > 0 {
		return "partial"
	}
	return "success"
}

func (r Run) withError(msg string) Run {
	errs := make([]string, len(r.Errors), len(r.Errors)+1)
	copy(errs, r.Errors)
	r.Errors = append(errs, msg)
	return r
}

func (r Run) withTiming(stage string, d time.Duration) Run {
	t := make(map[string]time.Duration, len(r.Timings)+1)
	for k, v := range r.Timings {
		t[k] = v
	}
	t[stage] = d
	r.Timings = t
	return r
}

// Record converts the run into the plain record handed to persistence.
func (r Run) Record() *model.RunRecord {
	return &model.RunRecord{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		Mode:       r.Mode,
		AsOf:       r.AsOf,
		Account:    r.Account.Name,
		Universe:   r.Universe,
		Fetched:    r.Fetched,
		Snapshots:  r.Snapshots,
		Setups:     r.Setups,
		Evaluated:  r.Evaluated,
		Candidates: r.Candidates,
		Alerts:     r.Alerts,
		Errors:     r.Errors,
		Timings:    r.Timings,
		Duration:   r.Duration,
	}
}
