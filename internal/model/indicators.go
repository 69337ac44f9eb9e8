package model

// Indicator field names used in snapshots, prompts and persistence.
const (
	FieldClose         = "close"
	FieldVolume        = "volume"
	FieldEMAShort      = "ema_20"
	FieldEMAMedium     = "ema_50"
	FieldEMALong       = "ema_200"
	FieldRSI           = "rsi_14"
	FieldMACD          = "macd"
	FieldMACDSignal    = "macd_signal"
	FieldMACDHistogram = "macd_histogram"
	FieldATR           = "atr_14"
	FieldATRPercent    = "atr_percent"
	FieldVolumeSMA     = "volume_sma_20"
	FieldVolumeRatio   = "volume_ratio"
	FieldBBLower       = "bb_lower"
	FieldBBMid         = "bb_mid"
	FieldBBUpper       = "bb_upper"
	FieldRollingHigh   = "rolling_high_20"
	FieldRollingLow    = "rolling_low_20"
)

// Snapshot holds the latest indicator values of a series.
//
// A value that could not be computed (not enough history) reads as 0. Use Has
// to tell a missing indicator from one that is legitimately zero.
type Snapshot struct {
	Close         float64 `json:"close"`
	Volume        float64 `json:"volume"`
	EMAShort      float64 `json:"ema_20"`
	EMAMedium     float64 `json:"ema_50"`
	EMALong       float64 `json:"ema_200"`
	RSI           float64 `json:"rsi_14"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	ATR           float64 `json:"atr_14"`
	ATRPercent    float64 `json:"atr_percent"`
	VolumeSMA     float64 `json:"volume_sma_20"`
	VolumeRatio   float64 `json:"volume_ratio"`
	BBLower       float64 `json:"bb_lower"`
	BBMid         float64 `json:"bb_mid"`
	BBUpper       float64 `json:"bb_upper"`
	RollingHigh   float64 `json:"rolling_high_20"`
	RollingLow    float64 `json:"rolling_low_20"`

	Defined map[string]bool `json:"defined"`
}

// Has reports whether the named field was computed from enough history.
func (s Snapshot) Has(field string) bool { return s.Defined[field] }

// Map flattens the snapshot into name → value.
func (s Snapshot) Map() map[string]float64 {
	return map[string]float64{
		FieldClose:         s.Close,
		FieldVolume:        s.Volume,
		FieldEMAShort:      s.EMAShort,
		FieldEMAMedium:     s.EMAMedium,
		FieldEMALong:       s.EMALong,
		FieldRSI:           s.RSI,
		FieldMACD:          s.MACD,
		FieldMACDSignal:    s.MACDSignal,
		FieldMACDHistogram: s.MACDHistogram,
		FieldATR:           s.ATR,
		FieldATRPercent:    s.ATRPercent,
		FieldVolumeSMA:     s.VolumeSMA,
		FieldVolumeRatio:   s.VolumeRatio,
		FieldBBLower:       s.BBLower,
		FieldBBMid:         s.BBMid,
		FieldBBUpper:       s.BBUpper,
		FieldRollingHigh:   s.RollingHigh,
		FieldRollingLow:    s.RollingLow,
	}
}
