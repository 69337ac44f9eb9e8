package model

import "time"

// SetupType names a detected price-action pattern.
type SetupType string

const (
	SetupBreakout      SetupType = "BREAKOUT"
	SetupPullback      SetupType = "PULLBACK"
	SetupMomentum      SetupType = "MOMENTUM"
	SetupConsolidation SetupType = "CONSOLIDATION"
)

// Setup is a candidate swing trade produced by the detector. Immutable once built.
type Setup struct {
	Symbol       string             `json:"symbol"`
	Type         SetupType          `json:"setup_type"`
	Timeframe    Timeframe          `json:"timeframe"`
	DetectedAt   time.Time          `json:"detection_date"`
	CurrentPrice float64            `json:"current_price"`
	TriggerPrice float64            `json:"trigger_price"`
	Strength     float64            `json:"strength"`
	Details      map[string]float64 `json:"details"`
	Conditions   []string           `json:"conditions_met"`
	Score        float64            `json:"setup_score"`
}

// Key identifies a setup within one scan.
func (s Setup) Key() string { return s.Symbol + "/" + string(s.Type) }

// Verdict is the qualitative assessment returned by the evaluator.
type Verdict struct {
	Quality           string  `json:"setup_quality" validate:"required,oneof=HIGH MEDIUM LOW"`
	BreakoutConfirmed string  `json:"breakout_confirmation" validate:"required,oneof=YES NO"`
	TrendStrength     string  `json:"trend_strength" validate:"required,oneof=STRONG MODERATE WEAK"`
	Confidence        float64 `json:"confidence_score" validate:"gte=0,lte=100"`
	Rationale         string  `json:"reasoning" validate:"required,max=500"`

	Model string `json:"llm_model,omitempty" validate:"-"`
	Raw   string `json:"llm_response_raw,omitempty" validate:"-"`
}

// EvaluatedSetup pairs a setup with its verdict.
type EvaluatedSetup struct {
	Setup   Setup   `json:"setup"`
	Verdict Verdict `json:"verdict"`
}

// Plan is the actionable risk plan for one setup.
type Plan struct {
	EntryLow       float64   `json:"entry_range_low"`
	EntryHigh      float64   `json:"entry_range_high"`
	EntryMid       float64   `json:"entry_mid"`
	StopLoss       float64   `json:"stop_loss"`
	Target1        float64   `json:"target_1"`
	Target2        float64   `json:"target_2"`
	Targets        []float64 `json:"targets"`
	RiskPerShare   float64   `json:"risk_amount"`
	RewardRisk     float64   `json:"risk_reward_ratio"`
	RiskPercent    float64   `json:"risk_percent"`
	Shares         int64     `json:"position_size"`
	PositionValue  float64   `json:"position_value"`
	MaxLoss        float64   `json:"max_loss"`
	MaxLossPercent float64   `json:"max_loss_percent"`
	PotentialGain1 float64   `json:"potential_gain_1"`
	PotentialGain2 float64   `json:"potential_gain_2"`
}

// TradeCandidate is a fully evaluated and sized setup.
type TradeCandidate struct {
	Setup   Setup   `json:"setup"`
	Verdict Verdict `json:"verdict"`
	Plan    Plan    `json:"plan"`
}

// Confidence is shorthand for the verdict confidence.
func (c TradeCandidate) Confidence() float64 { return c.Verdict.Confidence }
