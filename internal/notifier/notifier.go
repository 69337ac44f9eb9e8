// Package notifier delivers trade alerts over Telegram, webhooks, email, Kafka
// and the log.
package notifier

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"SwingScanner/internal/metrics"
	"SwingScanner/internal/model"
)

// Alert is one candidate to announce, tagged with its scan.
type Alert struct {
	RunID     string
	Candidate model.TradeCandidate
	At        time.Time
}

// Channel delivers alerts over one medium.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, alert Alert) error
}

// FilterAlerts keeps candidates whose confidence is at least threshold,
// preserving order.
func FilterAlerts(candidates []model.TradeCandidate, threshold float64) []model.TradeCandidate {
	var out []model.TradeCandidate
	for _, c := range candidates {
		if c.Confidence() >= threshold {
			out = append(out, c)
		}
	}
	return out
}

// Dispatcher fans alerts out to every configured channel. A failing channel
// never stops the others.
type Dispatcher struct {
	channels []Channel
	metrics  *metrics.Registry
	now      func() time.Time
}

// NewDispatcher creates a dispatcher over channels.
func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels, now: time.Now}
}

// WithMetrics attaches a metrics registry.
func (d *Dispatcher) WithMetrics(m *metrics.Registry) *Dispatcher {
	d.metrics = m
	return d
}

// Channels returns the configured channel names.
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.channels))
	for i, ch := range d.channels {
		names[i] = ch.Name()
	}
	return names
}

// Dispatch sends every alert on every channel and reports each attempt.
func (d *Dispatcher) Dispatch(ctx context.Context, runID string, alerts []model.TradeCandidate) []model.AlertResult {
	var results []model.AlertResult
	for _, c := range alerts {
		a := Alert{RunID: runID, Candidate: c, At: d.now()}
		for _, ch := range d.channels {
			res := model.AlertResult{
				Symbol:     c.Setup.Symbol,
				SetupType:  c.Setup.Type,
				Channel:    ch.Name(),
				Confidence: c.Confidence(),
				SentAt:     a.At,
			}
			if err := ch.Deliver(ctx, a); err != nil {
				res.Error = err.Error()
				log.Error().Err(err).Str("symbol", res.Symbol).Str("channel", res.Channel).Msg("alert failed")
			} else {
				res.Success = true
				log.Info().Str("symbol", res.Symbol).Str("channel", res.Channel).Msg("alert sent")
			}
			d.metrics.AlertSent(res.Channel, res.Success)
			results = append(results, res)
		}
	}
	return results
}
