package model

import "time"

// ScanMode distinguishes live scans from as-of backtests.
type ScanMode string

const (
	ModeLive     ScanMode = "live"
	ModeBacktest ScanMode = "backtest"
)

// RunRecord is the plain record of a finished scan handed to persistence.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	Mode       ScanMode
	AsOf       time.Time
	Account    string
	Universe   []string
	Fetched    map[string]Fetched
	Snapshots  map[string]Snapshot
	Setups     []Setup
	Evaluated  []EvaluatedSetup
	Candidates []TradeCandidate
	Alerts     []TradeCandidate
	Errors     []string
	Timings    map[string]time.Duration
	Duration   time.Duration
}

// Status is "success" for a clean run and "partial" when errors were recorded.
func (r *RunRecord) Status() string {
	if len(r.Errors) > 0 {
		return "partial"
	}
	return "success"
}

// AlertResult is the outcome of delivering one alert on one channel.
type AlertResult struct {
	Symbol     string
	SetupType  SetupType
	Channel    string
	Confidence float64
	Success    bool
	Error      string
	SentAt     time.Time
}

// Account holds the run-scoped sizing inputs. Zero percentages fall back to
// the risk engine defaults.
type Account struct {
	Name                string  `json:"name" yaml:"name" validate:"required"`
	Size                float64 `json:"account_size" yaml:"account_size" validate:"gt=0"`
	RiskPerTradePercent float64 `json:"risk_per_trade_percent" yaml:"risk_per_trade_percent" validate:"gte=0,lte=100"`
	MaxPositionPercent  float64 `json:"max_position_percent" yaml:"max_position_percent" validate:"gte=0,lte=100"`
	AlertThreshold      float64 `json:"alert_threshold" yaml:"alert_threshold" validate:"gte=0,lte=100"`
}
