package detector

import (
	"math"

	"SwingScanner/internal/model"
)

// Score is the preliminary 0..100 heuristic attached to every setup of a
// symbol. Undefined inputs contribute nothing.
func Score(s model.Snapshot) float64 {
	score := 50.0

	// Volume: up to 20
	if s.Has(model.FieldVolumeRatio) {
		score += math.Min(s.VolumeRatio*10, 20)
	}

	// Trend alignment: 20 when fully stacked, 10 when short > medium
	if s.Has(model.FieldEMAShort) && s.Has(model.FieldEMAMedium) {
		switch {
		case s.Has(model.FieldEMALong) && s.EMAShort > s.EMAMedium && s.EMAMedium > s.EMALong:
			score += 20
		case s.EMAShort > s.EMAMedium:
			score += 10
		}
	}

	// RSI: up to 10
	if s.Has(model.FieldRSI) {
		switch {
		case s.RSI >= 60 && s.RSI <= 70:
			score += 10
		case s.RSI >= 55 && s.RSI <= 75:
			score += 5
		}
	}

	// MACD: 10
	if s.Has(model.FieldMACDHistogram) && s.MACDHistogram > 0 {
		score += 10
	}

	return math.Min(score, 100)
}
