package detector

import (
	"fmt"
	"math"

	"SwingScanner/internal/indicator"
	"SwingScanner/internal/model"
)

// breakout: close above the previous bar's rolling high with volume.
func (d *Detector) breakout(f indicator.Frame, snap model.Snapshot) (model.Setup, bool) {
	n := f.Len()
	lookback := d.Rules.BreakoutLookback
	if n-1 < lookback {
		return model.Setup{}, false
	}
	prevHigh, _, err := indicator.WindowRange(f.Bars[n-1-lookback : n-1])
	if err != nil || prevHigh <= 0 {
		return model.Setup{}, false
	}
	price := f.Bars[n-1].Close
	if price <= prevHigh {
		return model.Setup{}, false
	}
	if !snap.Has(model.FieldVolumeRatio) || snap.VolumeRatio < d.Rules.BreakoutVolume {
		return model.Setup{}, false
	}

	pct := (price - prevHigh) / prevHigh * 100
	return model.Setup{
		Type:         model.SetupBreakout,
		TriggerPrice: prevHigh,
		Strength:     pct,
		Details: map[string]float64{
			"breakout_percent": pct,
			"volume_ratio":     snap.VolumeRatio,
		},
		Conditions: []string{"price_above_ema", "volume_spike", "breakout_confirmed"},
	}, true
}

// pullback: close near the medium EMA after a short decline, with the bar's
// low touching the EMA.
func (d *Detector) pullback(f indicator.Frame, snap model.Snapshot) (model.Setup, bool) {
	n := f.Len()
	if n < 5 {
		return model.Setup{}, false
	}
	ema := f.EMAAt(d.EMAMedium, n-1)
	if !defined(ema) || ema <= 0 {
		return model.Setup{}, false
	}
	last := f.Bars[n-1]
	distance := (last.Close - ema) / ema * 100
	if math.Abs(distance) > d.Rules.PullbackTolerance {
		return model.Setup{}, false
	}
	if !(f.Bars[n-2].Close < f.Bars[n-5].Close) {
		return model.Setup{}, false
	}
	if last.Low > ema*(1+d.Rules.PullbackTouchPercent/100) {
		return model.Setup{}, false
	}

	return model.Setup{
		Type:         model.SetupPullback,
		TriggerPrice: ema,
		Strength:     distance,
		Details: map[string]float64{
			"distance_from_ema": distance,
			"ema_value":         ema,
		},
		Conditions: []string{"price_near_ema50", "pullback_structure", "potential_bounce"},
	}, true
}

// momentum: at least MomentumMinCount higher highs and higher lows over the
// last MomentumBars bars, MACD histogram positive.
func (d *Detector) momentum(f indicator.Frame, snap model.Snapshot) (model.Setup, bool) {
	n := f.Len()
	bars := d.Rules.MomentumBars
	if n < bars {
		return model.Setup{}, false
	}
	hh, hl := 0, 0
	for i := n - bars; i < n; i++ {
		if f.HigherHigh[i] {
			hh++
		}
		if f.HigherLow[i] {
			hl++
		}
	}
	need := d.Rules.MomentumMinCount
	if hh < need || hl < need {
		return model.Setup{}, false
	}
	if !snap.Has(model.FieldMACDHistogram) || snap.MACDHistogram <= 0 {
		return model.Setup{}, false
	}
	base := f.Bars[n-bars].Close
	if base <= 0 {
		return model.Setup{}, false
	}
	change := (f.Bars[n-1].Close - base) / base * 100

	return model.Setup{
		Type:         model.SetupMomentum,
		TriggerPrice: f.Bars[n-1].Close,
		Strength:     change,
		Details: map[string]float64{
			"price_change_percent": change,
			"higher_highs":         float64(hh),
			"higher_lows":          float64(hl),
			"macd_histogram":       snap.MACDHistogram,
		},
		Conditions: []string{"higher_highs", "higher_lows", "macd_positive"},
	}, true
}

// consolidation: a tight range over the bars before the current one, then a
// close above that range on volume.
func (d *Detector) consolidation(f indicator.Frame, snap model.Snapshot) (model.Setup, bool) {
	n := f.Len()
	periods := d.Rules.ConsolidationPeriods
	if n < periods+5 {
		return model.Setup{}, false
	}
	high, low, err := indicator.WindowRange(f.Bars[n-1-periods : n-1])
	if err != nil {
		return model.Setup{}, false
	}
	width, err := indicator.RangePercent(high, low)
	if err != nil || width > d.Rules.ConsolidationRange {
		return model.Setup{}, false
	}
	price := f.Bars[n-1].Close
	if price <= high {
		return model.Setup{}, false
	}
	if !snap.Has(model.FieldVolumeRatio) || snap.VolumeRatio < d.Rules.ConsolidationVolume {
		return model.Setup{}, false
	}

	pct := (price - high) / high * 100
	return model.Setup{
		Type:         model.SetupConsolidation,
		TriggerPrice: high,
		Strength:     pct,
		Details: map[string]float64{
			"consolidation_high": high,
			"consolidation_low":  low,
			"range_percent":      width,
			"breakout_percent":   pct,
		},
		Conditions: []string{"tight_consolidation", "breakout_confirmed", "volume_spike"},
	}, true
}

func defined(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func failure(format string, args ...any) string { return fmt.Sprintf(format, args...) }
