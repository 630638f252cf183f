package models

import "time"

// Regime labels produced by the prediction oracle. The vocabulary is open ended.
const (
	RegimeTrend   = "trend"
	RegimeRange   = "range"
	RegimeHighVol = "high_vol"
	RegimeUnknown = "unknown"
)

// Direction labels.
const (
	DirectionLong    = "long"
	DirectionShort   = "short"
	DirectionNeutral = "neutral"
)

type Regime struct {
	Label      string  `json:"regime"`
	Confidence float64 `json:"confidence"`
}

type DirectionalPrediction struct {
	Direction      string  `json:"direction"`
	Probability    float64 `json:"probability"`
	ExpectedR      float64 `json:"expected_r"`
	ExpectedValue  float64 `json:"expected_value"`
	SignalStrength float64 `json:"signal_strength"`
}

// Prediction is the oracle's combined answer.
type Prediction struct {
	Regime      Regime                `json:"regime_model"`
	Directional DirectionalPrediction `json:"directional_model"`
}

// NeutralPrediction is substituted whenever the oracle cannot answer.
func NeutralPrediction() Prediction {
	return Prediction{
		Regime:      Regime{Label: RegimeUnknown},
		Directional: DirectionalPrediction{Direction: DirectionNeutral},
	}
}

// Indicators holds the raw indicator values for the latest bar.
type Indicators struct {
	RSI            float64 `json:"rsi"`
	MACD           float64 `json:"macd"`
	MACDSignal     float64 `json:"macd_signal"`
	SMA50          float64 `json:"sma_50"`
	SMA200         float64 `json:"sma_200"`
	ADX            float64 `json:"adx"`
	BollUpper      float64 `json:"boll_upper"`
	BollLower      float64 `json:"boll_lower"`
	BollWidth      float64 `json:"boll_width"`
	ATR            float64 `json:"atr"`
	ATRMedian      float64 `json:"atr_median"`
	VolumeZScore   float64 `json:"volume_z_score"`
	ROC5           float64 `json:"roc_5"`
	ROC10          float64 `json:"roc_10"`
	ROC20          float64 `json:"roc_20"`
	OBV            float64 `json:"obv"`
	VWAPDist       float64 `json:"vwap_dist"`
	SMADistancePct float64 `json:"sma_distance_pct"`
	RangePos       float64 `json:"range_pos"`
	HTFRSI         float64 `json:"htf_rsi"`
	HTFSMA50       float64 `json:"htf_sma_50"`
	HTFSMA200      float64 `json:"htf_sma_200"`
}

// Features are the bounded, normalized views of the raw indicators.
type Features struct {
	RSINorm       float64 `json:"rsi_norm"`
	MACDNorm      float64 `json:"macd_norm"`
	MACDHistNorm  float64 `json:"macd_hist_norm"`
	ROCNorm       float64 `json:"roc_norm"`
	ADXNorm       float64 `json:"adx_norm"`
	SMADistNorm   float64 `json:"sma_dist_norm"`
	BollWidthNorm float64 `json:"bollinger_width_norm"`
	VolumeZNorm   float64 `json:"volume_z_norm"`
	ATRNorm       float64 `json:"atr_norm"`
}

// State is the three-axis composite for one bar.
type State struct {
	Momentum   float64 `json:"x"`
	Trend      float64 `json:"y"`
	Volatility float64 `json:"z"`
}

// StatePoint is a State pinned to a bar time.
type StatePoint struct {
	State
	Time time.Time `json:"t"`
}

type RiskLevels struct {
	Entry             float64 `json:"entry"`
	StopLoss          float64 `json:"stop_loss"`
	TakeProfit        float64 `json:"take_profit"`
	TrailingStop      float64 `json:"trailing_sl"`
	PartialTakeProfit float64 `json:"partial_tp"`
}

// AnalysisResult is built once per engine invocation and owned by the caller.
type AnalysisResult struct {
	IsStock    bool                  `json:"is_stock"`
	Indicators Indicators            `json:"indicators"`
	Features   Features              `json:"features"`
	State      State                 `json:"state"`
	Regime     Regime                `json:"regime"`
	Direction  DirectionalPrediction `json:"direction"`
	Levels     RiskLevels            `json:"trading_levels"`
	History    []StatePoint          `json:"history"`
}

// AnalysisEvent is published after an analysis has been persisted.
type AnalysisEvent struct {
	Ticker     string    `json:"ticker"`
	AnalysisID string    `json:"analysis_id"`
	Current    State     `json:"current"`
	Regime     string    `json:"regime"`
	Direction  string    `json:"direction"`
	Time       time.Time `json:"t"`
}

// MACDSnapshot is the persisted form of an incremental MACD state.
type MACDSnapshot struct {
	EMA12    float64   `json:"ema12"`
	EMA26    float64   `json:"ema26"`
	Signal   float64   `json:"signal"`
	Count    int       `json:"count"`
	LastTime time.Time `json:"last_time"`
}
