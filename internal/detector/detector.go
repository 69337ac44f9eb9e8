// Package detector flags swing-trade setups on an indicator frame using fixed rules.
package detector

import (
	"github.com/rs/zerolog/log"

	"SwingScanner/internal/indicator"
	"SwingScanner/internal/model"
)

// Rules are the detection thresholds.
type Rules struct {
	MinBars              int     `yaml:"min_bars" validate:"gt=0"`
	PriceAboveEMA        []int   `yaml:"price_above_ema" validate:"dive,gt=0"`
	RSIMin               float64 `yaml:"rsi_min" validate:"gte=0,lte=100"`
	RSIMax               float64 `yaml:"rsi_max" validate:"gtefield=RSIMin,lte=100"`
	MinATRPercent        float64 `yaml:"min_atr_percent" validate:"gte=0"`
	VolumeSpike          float64 `yaml:"volume_spike_multiplier" validate:"gt=0"`
	BreakoutLookback     int     `yaml:"breakout_lookback" validate:"gt=0"`
	BreakoutVolume       float64 `yaml:"breakout_volume" validate:"gt=0"`
	PullbackTolerance    float64 `yaml:"pullback_tolerance_percent" validate:"gt=0"`
	PullbackTouchPercent float64 `yaml:"pullback_touch_percent" validate:"gte=0"`
	MomentumBars         int     `yaml:"momentum_bars" validate:"gt=1"`
	MomentumMinCount     int     `yaml:"momentum_min_count" validate:"gt=0,ltefield=MomentumBars"`
	ConsolidationRange   float64 `yaml:"consolidation_range_percent" validate:"gt=0"`
	ConsolidationPeriods int     `yaml:"consolidation_periods" validate:"gt=0"`
	ConsolidationVolume  float64 `yaml:"consolidation_volume" validate:"gt=0"`
}

// DefaultRules returns the standard detection thresholds.
func DefaultRules() Rules {
	return Rules{
		MinBars:              50,
		PriceAboveEMA:        []int{50, 200},
		RSIMin:               55,
		RSIMax:               70,
		MinATRPercent:        1.0,
		VolumeSpike:          1.5,
		BreakoutLookback:     20,
		BreakoutVolume:       1.3,
		PullbackTolerance:    2.0,
		PullbackTouchPercent: 1.0,
		MomentumBars:         3,
		MomentumMinCount:     2,
		ConsolidationRange:   5.0,
		ConsolidationPeriods: 10,
		ConsolidationVolume:  1.2,
	}
}

// Detector evaluates rules against frames. It keeps no state between calls.
type Detector struct {
	Rules Rules
	// EMAMedium is the EMA period a pullback is measured against.
	EMAMedium int
}

// New creates a Detector.
func New(rules Rules, emaMedium int) *Detector {
	return &Detector{Rules: rules, EMAMedium: emaMedium}
}

// Detect returns every setup found on the latest bar of the frame, in the
// fixed order BREAKOUT, PULLBACK, MOMENTUM, CONSOLIDATION. A frame that is
// too short or fails the baseline yields none.
func (d *Detector) Detect(symbol string, f indicator.Frame) []model.Setup {
	if f.Len() < d.Rules.MinBars {
		log.Debug().Str("symbol", symbol).Int("bars", f.Len()).Msg("insufficient data for setup detection")
		return nil
	}
	base := d.Baseline(f)
	if !base.Passed {
		log.Debug().Str("symbol", symbol).Strs("failures", base.Failures).Msg("failed baseline filters")
		return nil
	}

	snap := f.Snapshot()
	score := Score(snap)
	var setups []model.Setup
	for _, rule := range []func(indicator.Frame, model.Snapshot) (model.Setup, bool){
		d.breakout, d.pullback, d.momentum, d.consolidation,
	} {
		s, ok := rule(f, snap)
		if !ok {
			continue
		}
		last := f.Bars[f.Len()-1]
		s.Symbol = symbol
		s.Timeframe = f.Timeframe
		s.DetectedAt = last.Date
		s.CurrentPrice = last.Close
		s.Score = score
		setups = append(setups, s)
		log.Info().Str("symbol", symbol).Str("setup", string(s.Type)).
			Float64("trigger", s.TriggerPrice).Float64("strength", s.Strength).Msg("setup detected")
	}
	return setups
}

// BaselineResult is the outcome of the baseline filter. Failures is empty
// when Passed is true.
type BaselineResult struct {
	Passed   bool
	Failures []string
}

// Baseline checks the filters every setup must pass on the latest bar:
// close above each configured EMA, RSI in range, minimum ATR% and a volume
// spike. All failures are recorded. An undefined input fails its check.
func (d *Detector) Baseline(f indicator.Frame) BaselineResult {
	var failures []string
	if f.Len() == 0 {
		return BaselineResult{Failures: []string{"no_data"}}
	}
	i := f.Len() - 1
	price := f.Bars[i].Close
	snap := f.Snapshot()

	for _, period := range d.Rules.PriceAboveEMA {
		ema := f.EMAAt(period, i)
		switch {
		case !defined(ema):
			failures = append(failures, failure("ema_%d_undefined", period))
		case !(price > ema):
			failures = append(failures, failure("price_below_ema_%d", period))
		}
	}

	switch {
	case !snap.Has(model.FieldRSI):
		failures = append(failures, "rsi_undefined")
	case snap.RSI < d.Rules.RSIMin || snap.RSI > d.Rules.RSIMax:
		failures = append(failures, failure("rsi_out_of_range_%.1f", snap.RSI))
	}

	switch {
	case !snap.Has(model.FieldATRPercent):
		failures = append(failures, "atr_undefined")
	case snap.ATRPercent < d.Rules.MinATRPercent:
		failures = append(failures, failure("atr_too_low_%.2f%%", snap.ATRPercent))
	}

	switch {
	case !snap.Has(model.FieldVolumeRatio):
		failures = append(failures, "volume_ratio_undefined")
	case snap.VolumeRatio < d.Rules.VolumeSpike:
		failures = append(failures, failure("volume_low_%.2fx", snap.VolumeRatio))
	}

	return BaselineResult{Passed: len(failures) == 0, Failures: failures}
}
