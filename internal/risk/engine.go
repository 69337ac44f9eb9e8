// Package risk turns a detected setup into a sized trade plan.
package risk

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"SwingScanner/internal/model"
)

// ErrDegenerateRisk is returned when the stop is not below entry or the
// account cannot afford a single share within its risk budget.
var ErrDegenerateRisk = errors.New("degenerate risk")

// Params are the sizing rules. Percentages are in percent units (2 = 2%).
type Params struct {
	RiskPerTradePercent float64   `yaml:"risk_per_trade_percent" validate:"gt=0,lte=100"`
	MaxPositionPercent  float64   `yaml:"max_position_percent" validate:"gt=0,lte=100"`
	StopATRMultiplier   float64   `yaml:"stop_loss_atr_multiplier" validate:"gt=0"`
	StopMinPercent      float64   `yaml:"stop_loss_min_percent" validate:"gt=0"`
	StopMaxPercent      float64   `yaml:"stop_loss_max_percent" validate:"gtefield=StopMinPercent,lt=100"`
	TargetRatios        []float64 `yaml:"target_ratios" validate:"min=1,dive,gt=0"`
	EntryRangePercent   float64   `yaml:"entry_range_percent" validate:"gte=0,lt=100"`
}

// DefaultParams returns the standard risk rules.
func DefaultParams() Params {
	return Params{
		RiskPerTradePercent: 2,
		MaxPositionPercent:  20,
		StopATRMultiplier:   2,
		StopMinPercent:      2,
		StopMaxPercent:      8,
		TargetRatios:        []float64{2, 3},
		EntryRangePercent:   1,
	}
}

// Engine computes plans. It is a pure function of its inputs.
type Engine struct {
	Params Params
}

// NewEngine creates an Engine.
func NewEngine(p Params) *Engine {
	return &Engine{Params: p}
}

// Plan sizes a trade for setup using the latest snapshot and the account.
func (e *Engine) Plan(setup model.Setup, snap model.Snapshot, acct model.Account) (model.Plan, error) {
	riskPct := acct.RiskPerTradePercent
	if riskPct <= 0 {
		riskPct = e.Params.RiskPerTradePercent
	}
	maxPct := acct.MaxPositionPercent
	if maxPct <= 0 {
		maxPct = e.Params.MaxPositionPercent
	}

	low, high := e.EntryRange(setup.CurrentPrice)
	mid := (low + high) / 2
	stop := e.StopLoss(mid, snap)
	targets := Targets(mid, stop, e.Params.TargetRatios)
	risk := mid - stop

	plan := model.Plan{
		EntryLow:     low,
		EntryHigh:    high,
		EntryMid:     mid,
		StopLoss:     stop,
		Targets:      targets,
		RiskPerShare: risk,
		RewardRisk:   RewardRisk(mid, stop, targets[0]),
	}
	plan.Target1 = targets[0]
	plan.Target2 = targets[0]
	if len(targets) > 1 {
		plan.Target2 = targets[1]
	}
	if risk <= 0 || mid <= 0 {
		return plan, fmt.Errorf("%s: entry %.2f stop %.2f: %w", setup.Symbol, mid, stop, ErrDegenerateRisk)
	}

	shares, value := SizePosition(acct.Size, riskPct, maxPct, mid, stop)
	if shares == 0 {
		return plan, fmt.Errorf("%s: zero shares for account %.0f: %w", setup.Symbol, acct.Size, ErrDegenerateRisk)
	}
	plan.Shares = shares
	plan.PositionValue = value
	plan.RiskPercent = risk / mid * 100
	plan.MaxLoss = float64(shares) * risk
	plan.MaxLossPercent = plan.MaxLoss / acct.Size * 100
	plan.PotentialGain1 = (plan.Target1 - mid) * float64(shares)
	if len(targets) > 1 {
		plan.PotentialGain2 = (plan.Target2 - mid) * float64(shares)
	}

	log.Info().Str("symbol", setup.Symbol).Float64("entry", mid).Float64("stop", stop).
		Float64("t1", plan.Target1).Float64("rr", plan.RewardRisk).Int64("shares", shares).Msg("risk plan")
	return plan, nil
}

// EntryRange is price ± the configured band.
func (e *Engine) EntryRange(price float64) (low, high float64) {
	band := e.Params.EntryRangePercent / 100
	return price * (1 - band), price * (1 + band)
}

// StopLoss is entry − multiplier×ATR, clamped to the configured distance
// range. Without a defined ATR the minimum distance is used.
func (e *Engine) StopLoss(entry float64, snap model.Snapshot) float64 {
	p := e.Params
	floor := entry * (1 - p.StopMinPercent/100)
	if !snap.Has(model.FieldATR) {
		log.Warn().Msg("atr not available, using percentage stop loss")
		return floor
	}
	stop := entry - p.StopATRMultiplier*snap.ATR
	pct := (entry - stop) / entry * 100
	switch {
	case pct < p.StopMinPercent:
		return floor
	case pct > p.StopMaxPercent:
		return entry * (1 - p.StopMaxPercent/100)
	}
	return stop
}

// Targets returns entry + risk×ratio for each ratio.
func Targets(entry, stop float64, ratios []float64) []float64 {
	risk := entry - stop
	out := make([]float64, len(ratios))
	for i, r := range ratios {
		out[i] = entry + risk*r
	}
	return out
}

// RewardRisk is (target − entry) / (entry − stop), 0 when risk is not positive.
func RewardRisk(entry, stop, target float64) float64 {
	risk := entry - stop
	if risk <= 0 {
		return 0
	}
	return (target - entry) / risk
}

// RawShares is floor(account × riskPct% / riskPerShare) before any cap.
func RawShares(account, riskPct, riskPerShare float64) int64 {
	if riskPerShare <= 0 || account <= 0 {
		return 0
	}
	budget := decimal.NewFromFloat(account).Mul(decimal.NewFromFloat(riskPct)).Div(decimal.NewFromInt(100))
	return budget.Div(decimal.NewFromFloat(riskPerShare)).Floor().IntPart()
}

// SizePosition caps RawShares so the position value stays within maxPct% of
// the account, and returns the final share count and value.
func SizePosition(account, riskPct, maxPct, entry, stop float64) (shares int64, value float64) {
	shares = RawShares(account, riskPct, entry-stop)
	if shares == 0 || entry <= 0 {
		return 0, 0
	}
	price := decimal.NewFromFloat(entry)
	maxValue := decimal.NewFromFloat(account).Mul(decimal.NewFromFloat(maxPct)).Div(decimal.NewFromInt(100))
	if price.Mul(decimal.NewFromInt(shares)).GreaterThan(maxValue) {
		shares = maxValue.Div(price).Floor().IntPart()
	}
	value, _ = price.Mul(decimal.NewFromInt(shares)).Float64()
	return shares, value
}

// MinRewardRisk is the smallest configured target ratio.
func (e *Engine) MinRewardRisk() float64 {
	if len(e.Params.TargetRatios) == 0 {
		return 0
	}
	m := e.Params.TargetRatios[0]
	for _, r := range e.Params.TargetRatios[1:] {
		if r < m {
			m = r
		}
	}
	return m
}

// AcceptableRewardRisk reports whether ratio meets MinRewardRisk.
func (e *Engine) AcceptableRewardRisk(ratio float64) bool {
	if ratio < e.MinRewardRisk() {
		log.Warn().Float64("rr", ratio).Float64("min", e.MinRewardRisk()).Msg("reward:risk below minimum")
		return false
	}
	return true
}
