// Package indicator derives technical indicators from an OHLCV series.
//
// Every column of a Frame has the same length as the input series. Positions
// inside an indicator's warm-up window hold NaN; Frame.Snapshot turns those into
// zeros and records which fields were actually defined.
package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog/log"

	"SwingScanner/internal/model"
)

// Params are the indicator periods. All of them are configurable.
type Params struct {
	EMAShort        int     `yaml:"ema_short" validate:"gt=0"`
	EMAMedium       int     `yaml:"ema_medium" validate:"gt=0"`
	EMALong         int     `yaml:"ema_long" validate:"gt=0"`
	RSIPeriod       int     `yaml:"rsi_period" validate:"gt=1"`
	MACDFast        int     `yaml:"macd_fast" validate:"gt=0"`
	MACDSlow        int     `yaml:"macd_slow" validate:"gtfield=MACDFast"`
	MACDSignal      int     `yaml:"macd_signal" validate:"gt=0"`
	ATRPeriod       int     `yaml:"atr_period" validate:"gt=1"`
	VolumeSMA       int     `yaml:"volume_sma" validate:"gt=0"`
	BollingerPeriod int     `yaml:"bollinger_period" validate:"gt=1"`
	BollingerStd    float64 `yaml:"bollinger_std" validate:"gt=0"`
	RollingWindow   int     `yaml:"rolling_window" validate:"gt=0"`
	VolumeSpike     float64 `yaml:"volume_spike" validate:"gt=0"`
}

// DefaultParams returns the standard swing-trading parameterisation.
func DefaultParams() Params {
	return Params{
		EMAShort:        20,
		EMAMedium:       50,
		EMALong:         200,
		RSIPeriod:       14,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		ATRPeriod:       14,
		VolumeSMA:       20,
		BollingerPeriod: 20,
		BollingerStd:    2,
		RollingWindow:   20,
		VolumeSpike:     1.5,
	}
}

// Engine computes indicator frames. It holds no per-series state.
type Engine struct {
	Params Params
}

// NewEngine creates an Engine with the given parameters.
func NewEngine(p Params) *Engine {
	return &Engine{Params: p}
}

// WarmUp is the number of bars after which every indicator is defined.
func (e *Engine) WarmUp() int {
	p := e.Params
	n := maxInt(p.EMAShort-1, p.EMAMedium-1, p.EMALong-1, p.RSIPeriod, p.MACDSlow+p.MACDSignal-2,
		p.ATRPeriod, p.VolumeSMA-1, p.BollingerPeriod-1, p.RollingWindow-1)
	return n + 1
}

// Compute derives all indicators for the series. The input is not modified.
func (e *Engine) Compute(s model.Series) Frame {
	f := Frame{Symbol: s.Symbol, Timeframe: s.Timeframe, Bars: append([]model.Bar(nil), s.Bars...), EMA: map[int][]float64{}}
	n := len(f.Bars)
	if n == 0 {
		log.Warn().Str("symbol", s.Symbol).Msg("cannot compute indicators on empty series")
		return f
	}
	p := e.Params
	highs, lows, closes, volumes := columns(f.Bars)

	// Moving averages
	for _, period := range []int{p.EMAShort, p.EMAMedium, p.EMALong} {
		if _, done := f.EMA[period]; done {
			continue
		}
		f.EMA[period] = guarded(n, period-1, func() []float64 { return talib.Ema(closes, period) })
	}

	// RSI
	f.RSI = guarded(n, p.RSIPeriod, func() []float64 { return talib.Rsi(closes, p.RSIPeriod) })

	// MACD
	f.MACD, f.MACDSignal, f.MACDHist = macd(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)

	// ATR
	f.ATR = guarded(n, p.ATRPeriod, func() []float64 { return talib.Atr(highs, lows, closes, p.ATRPeriod) })
	f.ATRPercent = make([]float64, n)
	for i := range f.ATRPercent {
		f.ATRPercent[i] = ratio(f.ATR[i], closes[i]) * 100
	}

	// Volume
	f.VolumeSMA = guarded(n, p.VolumeSMA-1, func() []float64 { return talib.Sma(volumes, p.VolumeSMA) })
	f.VolumeRatio = make([]float64, n)
	for i := range f.VolumeRatio {
		f.VolumeRatio[i] = ratio(volumes[i], f.VolumeSMA[i])
	}

	// Bollinger bands
	f.BBUpper, f.BBMid, f.BBLower = nanColumn(n), nanColumn(n), nanColumn(n)
	if n >= p.BollingerPeriod {
		up, mid, lo := talib.BBands(closes, p.BollingerPeriod, p.BollingerStd, p.BollingerStd, talib.SMA)
		f.BBUpper = mask(up, p.BollingerPeriod-1)
		f.BBMid = mask(mid, p.BollingerPeriod-1)
		f.BBLower = mask(lo, p.BollingerPeriod-1)
	}

	// Breakout reference
	f.RollingHigh = guarded(n, p.RollingWindow-1, func() []float64 { return talib.Max(highs, p.RollingWindow) })
	f.RollingLow = guarded(n, p.RollingWindow-1, func() []float64 { return talib.Min(lows, p.RollingWindow) })

	// Derived flags
	f.AboveEMAMedium = make([]bool, n)
	f.AboveEMALong = make([]bool, n)
	f.VolumeSpike = make([]bool, n)
	f.HigherHigh = make([]bool, n)
	f.HigherLow = make([]bool, n)
	for i := 0; i < n; i++ {
		f.AboveEMAMedium[i] = closes[i] > f.EMA[p.EMAMedium][i]
		f.AboveEMALong[i] = closes[i] > f.EMA[p.EMALong][i]
		f.VolumeSpike[i] = f.VolumeRatio[i] > p.VolumeSpike
		if i > 0 {
			f.HigherHigh[i] = highs[i] > highs[i-1]
			f.HigherLow[i] = lows[i] > lows[i-1]
		}
	}

	f.params = p
	log.Debug().Str("symbol", s.Symbol).Int("bars", n).Msg("computed indicators")
	return f
}

// macd builds the MACD line from two EMAs and seeds the signal EMA on the
// first defined MACD value, so warm-up zeros never leak into the signal line.
func macd(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	n := len(closes)
	line, sig, hist = nanColumn(n), nanColumn(n), nanColumn(n)
	if n < slow {
		return
	}
	fastEMA := talib.Ema(closes, fast)
	slowEMA := talib.Ema(closes, slow)
	for i := slow - 1; i < n; i++ {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	defined := line[slow-1:]
	if len(defined) < signal {
		return
	}
	sigEMA := talib.Ema(defined, signal)
	for j := signal - 1; j < len(defined); j++ {
		i := slow - 1 + j
		sig[i] = sigEMA[j]
		hist[i] = line[i] - sig[i]
	}
	return
}

// guarded runs fn only when the series is long enough for the indicator and
// masks the first `lookback` values as undefined.
func guarded(n, lookback int, fn func() []float64) []float64 {
	if n <= lookback {
		return nanColumn(n)
	}
	return mask(fn(), lookback)
}

func mask(col []float64, lookback int) []float64 {
	out := make([]float64, len(col))
	for i, v := range col {
		if i < lookback {
			out[i] = math.NaN()
			continue
		}
		out[i] = v
	}
	return out
}

func nanColumn(n int) []float64 {
	col := make([]float64, n)
	for i := range col {
		col[i] = math.NaN()
	}
	return col
}

// ratio returns a/b, or NaN when either input is undefined or b is zero.
func ratio(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) || b == 0 {
		return math.NaN()
	}
	return a / b
}

func columns(bars []model.Bar) (highs, lows, closes, volumes []float64) {
	n := len(bars)
	highs, lows = make([]float64, n), make([]float64, n)
	closes, volumes = make([]float64, n), make([]float64, n)
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
		volumes[i] = b.Volume
	}
	return
}

func maxInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
