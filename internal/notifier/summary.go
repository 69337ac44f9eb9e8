package notifier

import (
	"context"

	"github.com/rs/zerolog/log"

	"SwingScanner/internal/model"
)

// LogChannel writes alerts to the structured log. Always available.
type LogChannel struct{}

func (LogChannel) Name() string { return "log" }

func (LogChannel) Deliver(_ context.Context, a Alert) error {
	c := a.Candidate
	log.Info().
		Str("scan_id", a.RunID).
		Str("symbol", c.Setup.Symbol).
		Str("setup", string(c.Setup.Type)).
		Float64("confidence", c.Confidence()).
		Float64("entry_low", c.Plan.EntryLow).
		Float64("entry_high", c.Plan.EntryHigh).
		Float64("stop_loss", c.Plan.StopLoss).
		Float64("target_1", c.Plan.Target1).
		Float64("reward_risk", c.Plan.RewardRisk).
		Int64("shares", c.Plan.Shares).
		Msg("trade alert")
	return nil
}

// LogSummary logs the headline numbers of a run and each alerted candidate.
func LogSummary(run *model.RunRecord) {
	ev := log.Info()
	if len(run.Errors) > 0 {
		ev = log.Warn().Int("errors", len(run.Errors))
	}
	ev.Str("scan_id", run.ID).
		Str("mode", string(run.Mode)).
		Int("universe", len(run.Universe)).
		Int("fetched", len(run.Fetched)).
		Int("setups", len(run.Setups)).
		Int("evaluated", len(run.Evaluated)).
		Int("candidates", len(run.Candidates)).
		Int("high_confidence", len(run.Alerts)).
		Dur("duration", run.Duration).
		Str("status", run.Status()).
		Msg("scan summary")

	for _, c := range run.Alerts {
		log.Info().Str("symbol", c.Setup.Symbol).Msg(FormatText(c))
	}
}
