package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SwingScanner/internal/model"
)

func makeSeries(closes []float64) model.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000 + float64(i%7)*100,
		}
	}
	return model.Series{Symbol: "TEST.NS", Timeframe: model.Daily, Bars: bars}
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 10*math.Sin(float64(i)/5) + float64(i)*0.1
	}
	return out
}

func TestCompute_ColumnsMatchInputLength(t *testing.T) {
	e := NewEngine(DefaultParams())
	f := e.Compute(makeSeries(wave(250)))

	require.Equal(t, 250, f.Len())
	for _, col := range [][]float64{f.RSI, f.MACD, f.MACDSignal, f.MACDHist, f.ATR, f.ATRPercent,
		f.VolumeSMA, f.VolumeRatio, f.BBLower, f.BBMid, f.BBUpper, f.RollingHigh, f.RollingLow} {
		assert.Len(t, col, 250)
	}
	for _, p := range []int{20, 50, 200} {
		assert.Len(t, f.EMA[p], 250)
	}
	assert.Len(t, f.HigherHigh, 250)
	assert.Len(t, f.VolumeSpike, 250)
}

func TestCompute_EMAOfConstantIsConstant(t *testing.T) {
	e := NewEngine(DefaultParams())
	f := e.Compute(makeSeries(constant(220, 250)))

	for _, p := range []int{20, 50, 200} {
		col := f.EMA[p]
		for i := 0; i < p-1; i++ {
			assert.True(t, math.IsNaN(col[i]), "ema%d[%d] should be undefined", p, i)
		}
		for i := p - 1; i < len(col); i++ {
			assert.InDelta(t, 250.0, col[i], 1e-9, "ema%d[%d]", p, i)
		}
	}
}

func TestCompute_RSIOfMonotonicRiseIs100(t *testing.T) {
	e := NewEngine(DefaultParams())
	f := e.Compute(makeSeries(rising(60)))

	for i := 0; i < 14; i++ {
		assert.True(t, math.IsNaN(f.RSI[i]))
	}
	for i := 14; i < 60; i++ {
		assert.InDelta(t, 100.0, f.RSI[i], 1e-9)
	}
}

func TestCompute_MACDWarmUp(t *testing.T) {
	e := NewEngine(DefaultParams())
	f := e.Compute(makeSeries(wave(80)))

	assert.True(t, math.IsNaN(f.MACD[24]))
	assert.False(t, math.IsNaN(f.MACD[25]))
	assert.True(t, math.IsNaN(f.MACDSignal[32]))
	assert.False(t, math.IsNaN(f.MACDSignal[33]))
	for i := 33; i < 80; i++ {
		assert.InDelta(t, f.MACD[i]-f.MACDSignal[i], f.MACDHist[i], 1e-9)
	}
}

func TestCompute_MACDOfConstantIsZero(t *testing.T) {
	e := NewEngine(DefaultParams())
	f := e.Compute(makeSeries(constant(60, 42)))

	for i := 33; i < 60; i++ {
		assert.InDelta(t, 0, f.MACD[i], 1e-9)
		assert.InDelta(t, 0, f.MACDSignal[i], 1e-9)
		assert.InDelta(t, 0, f.MACDHist[i], 1e-9)
	}
}

func TestCompute_BollingerOrdering(t *testing.T) {
	e := NewEngine(DefaultParams())
	f := e.Compute(makeSeries(wave(100)))

	for i := 19; i < 100; i++ {
		assert.LessOrEqual(t, f.BBLower[i], f.BBMid[i])
		assert.LessOrEqual(t, f.BBMid[i], f.BBUpper[i])
	}
}

func TestCompute_RollingExtremes(t *testing.T) {
	e := NewEngine(DefaultParams())
	s := makeSeries(rising(40))
	f := e.Compute(s)

	assert.True(t, math.IsNaN(f.RollingHigh[18]))
	assert.InDelta(t, s.Bars[39].High, f.RollingHigh[39], 1e-9)
	assert.InDelta(t, s.Bars[20].Low, f.RollingLow[39], 1e-9)
}

func TestCompute_FlagsOnRisingSeries(t *testing.T) {
	e := NewEngine(DefaultParams())
	f := e.Compute(makeSeries(rising(60)))

	assert.False(t, f.HigherHigh[0])
	assert.False(t, f.HigherLow[0])
	assert.True(t, f.HigherHigh[59])
	assert.True(t, f.HigherLow[59])
	assert.True(t, f.AboveEMAMedium[59])
	assert.False(t, f.AboveEMALong[59], "ema200 undefined on 60 bars")
}

func TestCompute_ShortSeriesLeavesLongIndicatorsUndefined(t *testing.T) {
	e := NewEngine(DefaultParams())
	f := e.Compute(makeSeries(wave(30)))

	snap := f.Snapshot()
	assert.True(t, snap.Has(model.FieldEMAShort))
	assert.False(t, snap.Has(model.FieldEMAMedium))
	assert.False(t, snap.Has(model.FieldEMALong))
	assert.False(t, snap.Has(model.FieldMACDSignal))
	assert.Zero(t, snap.EMALong)

	missing := f.Undefined()
	assert.Contains(t, missing, model.FieldEMAMedium)
	assert.Contains(t, missing, model.FieldEMALong)
	assert.NotContains(t, missing, model.FieldRSI)
}

func TestCompute_EmptySeries(t *testing.T) {
	e := NewEngine(DefaultParams())
	f := e.Compute(model.Series{Symbol: "EMPTY.NS"})

	assert.Zero(t, f.Len())
	snap := f.Snapshot()
	assert.Empty(t, snap.Defined)
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	e := NewEngine(DefaultParams())
	s := makeSeries(wave(100))
	before := append([]model.Bar(nil), s.Bars...)

	f := e.Compute(s)
	f.Bars[0].Close = -1

	assert.Equal(t, before, s.Bars)
}

func TestSnapshot_AllDefinedAfterWarmUp(t *testing.T) {
	e := NewEngine(DefaultParams())
	require.Equal(t, 200, e.WarmUp())

	f := e.Compute(makeSeries(wave(260)))
	snap := f.Snapshot()
	for field := range snap.Map() {
		assert.True(t, snap.Has(field), field)
	}
	assert.Empty(t, f.Undefined())
	assert.InDelta(t, snap.ATR/snap.Close*100, snap.ATRPercent, 1e-9)
	assert.InDelta(t, snap.Volume/snap.VolumeSMA, snap.VolumeRatio, 1e-9)
}

func TestSnapshot_ZeroVolumeAverageIsUndefined(t *testing.T) {
	e := NewEngine(DefaultParams())
	s := makeSeries(wave(60))
	for i := range s.Bars {
		s.Bars[i].Volume = 0
	}
	snap := e.Compute(s).Snapshot()

	assert.True(t, snap.Has(model.FieldVolumeSMA))
	assert.False(t, snap.Has(model.FieldVolumeRatio))
}
