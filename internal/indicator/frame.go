package indicator

import (
	"math"

	"SwingScanner/internal/model"
)

// Frame is a series with every indicator column aligned to its bars.
// NaN marks an undefined value.
type Frame struct {
	Symbol    string
	Timeframe model.Timeframe
	Bars      []model.Bar

	EMA         map[int][]float64
	RSI         []float64
	MACD        []float64
	MACDSignal  []float64
	MACDHist    []float64
	ATR         []float64
	ATRPercent  []float64
	VolumeSMA   []float64
	VolumeRatio []float64
	BBLower     []float64
	BBMid       []float64
	BBUpper     []float64
	RollingHigh []float64
	RollingLow  []float64

	AboveEMAMedium []bool
	AboveEMALong   []bool
	VolumeSpike    []bool
	HigherHigh     []bool
	HigherLow      []bool

	params Params
}

// Len returns the number of bars.
func (f Frame) Len() int { return len(f.Bars) }

// Closes returns the close column.
func (f Frame) Closes() []float64 {
	out := make([]float64, len(f.Bars))
	for i, b := range f.Bars {
		out[i] = b.Close
	}
	return out
}

// EMAAt returns the EMA of the given period at bar i, NaN when undefined or
// when the period was not computed.
func (f Frame) EMAAt(period, i int) float64 {
	col, ok := f.EMA[period]
	if !ok || i < 0 || i >= len(col) {
		return math.NaN()
	}
	return col[i]
}

// Snapshot extracts the latest value of every indicator.
func (f Frame) Snapshot() model.Snapshot {
	snap := model.Snapshot{Defined: map[string]bool{}}
	n := len(f.Bars)
	if n == 0 {
		return snap
	}
	i := n - 1
	last := f.Bars[i]
	p := f.params

	set := func(dst *float64, field string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		*dst = v
		snap.Defined[field] = true
	}
	set(&snap.Close, model.FieldClose, last.Close)
	set(&snap.Volume, model.FieldVolume, last.Volume)
	set(&snap.EMAShort, model.FieldEMAShort, f.EMAAt(p.EMAShort, i))
	set(&snap.EMAMedium, model.FieldEMAMedium, f.EMAAt(p.EMAMedium, i))
	set(&snap.EMALong, model.FieldEMALong, f.EMAAt(p.EMALong, i))
	set(&snap.RSI, model.FieldRSI, at(f.RSI, i))
	set(&snap.MACD, model.FieldMACD, at(f.MACD, i))
	set(&snap.MACDSignal, model.FieldMACDSignal, at(f.MACDSignal, i))
	set(&snap.MACDHistogram, model.FieldMACDHistogram, at(f.MACDHist, i))
	set(&snap.ATR, model.FieldATR, at(f.ATR, i))
	set(&snap.ATRPercent, model.FieldATRPercent, at(f.ATRPercent, i))
	set(&snap.VolumeSMA, model.FieldVolumeSMA, at(f.VolumeSMA, i))
	set(&snap.VolumeRatio, model.FieldVolumeRatio, at(f.VolumeRatio, i))
	set(&snap.BBLower, model.FieldBBLower, at(f.BBLower, i))
	set(&snap.BBMid, model.FieldBBMid, at(f.BBMid, i))
	set(&snap.BBUpper, model.FieldBBUpper, at(f.BBUpper, i))
	set(&snap.RollingHigh, model.FieldRollingHigh, at(f.RollingHigh, i))
	set(&snap.RollingLow, model.FieldRollingLow, at(f.RollingLow, i))
	return snap
}

// Undefined lists the snapshot fields whose column has no defined value at
// all, i.e. the series is shorter than that indicator's warm-up.
func (f Frame) Undefined() []string {
	p := f.params
	cols := []struct {
		name string
		col  []float64
	}{
		{model.FieldEMAShort, f.EMA[p.EMAShort]},
		{model.FieldEMAMedium, f.EMA[p.EMAMedium]},
		{model.FieldEMALong, f.EMA[p.EMALong]},
		{model.FieldRSI, f.RSI},
		{model.FieldMACD, f.MACD},
		{model.FieldMACDSignal, f.MACDSignal},
		{model.FieldMACDHistogram, f.MACDHist},
		{model.FieldATR, f.ATR},
		{model.FieldATRPercent, f.ATRPercent},
		{model.FieldVolumeSMA, f.VolumeSMA},
		{model.FieldVolumeRatio, f.VolumeRatio},
		{model.FieldBBLower, f.BBLower},
		{model.FieldBBMid, f.BBMid},
		{model.FieldBBUpper, f.BBUpper},
		{model.FieldRollingHigh, f.RollingHigh},
		{model.FieldRollingLow, f.RollingLow},
	}
	var missing []string
	for _, c := range cols {
		if allUndefined(c.col) {
			missing = append(missing, c.name)
		}
	}
	return missing
}

func allUndefined(col []float64) bool {
	for _, v := range col {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func at(col []float64, i int) float64 {
	if i < 0 || i >= len(col) {
		return math.NaN()
	}
	return col[i]
}
