package api

import (
	"time"

	"MarketState/internal/domain/models"
	"MarketState/internal/usecase"
)

type stateVector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type statePoint struct {
	X float64   `json:"x"`
	Y float64   `json:"y"`
	Z float64   `json:"z"`
	T time.Time `json:"t"`
}

type quantumState struct {
	Current stateVector  `json:"current"`
	History []statePoint `json:"history"`
}

type indicatorView struct {
	RSI        float64 `json:"rsi"`
	HTFRSI     float64 `json:"htf_rsi"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	ADX        float64 `json:"adx"`
	BollWidth  float64 `json:"boll_width"`
	ATRMedian  float64 `json:"atr_median"`
	VolZ       float64 `json:"vol_z"`
	ROC20      float64 `json:"roc_20"`
	VWAPDist   float64 `json:"vwap_dist"`
	SMA50      float64 `json:"sma_50"`
	SMA200     float64 `json:"sma_200"`
}

// AnalyzeResponse is the payload of POST /api/analyze.
type AnalyzeResponse struct {
	Ticker           string                 `json:"ticker"`
	CandleCount      int                    `json:"candleCount"`
	AnalysisID       string                 `json:"analysis_id"`
	Summary          string                 `json:"summary"`
	QuantumState     quantumState           `json:"quantum_state"`
	Regime           string                 `json:"regime"`
	RegimeConfidence float64                `json:"regime_confidence"`
	MLDirection      string                 `json:"ml_direction"`
	MLProbability    float64                `json:"ml_probability"`
	MLExpectedR      float64                `json:"ml_expected_r"`
	ExpectedValue    float64                `json:"expected_value"`
	SignalStrength   float64                `json:"signal_strength"`
	Candles          []models.Bar           `json:"candles"`
	Indicators       indicatorView          `json:"indicators"`
	TradingLevels    models.RiskLevels      `json:"trading_levels"`
	News             []models.NewsItem      `json:"news"`
	EconomicEvents   []models.EconomicEvent `json:"economic_events"`
	AIPrediction     string                 `json:"ai_prediction"`
	RiskManagement   models.PositionSize    `json:"risk_management"`
}

func newAnalyzeResponse(r *usecase.AnalysisReport) AnalyzeResponse {
	res := r.Result
	ind := res.Indicators
	hist := make([]statePoint, len(res.History))
	for i, p := range res.History {
		hist[i] = statePoint{X: p.Momentum, Y: p.Trend, Z: p.Volatility, T: p.Time}
	}
	return AnalyzeResponse{
		Ticker:      r.Ticker,
		CandleCount: r.CandleCount,
		AnalysisID:  r.AnalysisID,
		Summary:     r.Summary,
		QuantumState: quantumState{
			Current: stateVector{X: res.State.Momentum, Y: res.State.Trend, Z: res.State.Volatility},
			History: hist,
		},
		Regime:           res.Regime.Label,
		RegimeConfidence: res.Regime.Confidence,
		MLDirection:      res.Direction.Direction,
		MLProbability:    res.Direction.Probability,
		MLExpectedR:      res.Direction.ExpectedR,
		ExpectedValue:    res.Direction.ExpectedValue,
		SignalStrength:   res.Direction.SignalStrength,
		Candles:          r.Candles,
		Indicators: indicatorView{
			RSI:        ind.RSI,
			HTFRSI:     ind.HTFRSI,
			MACD:       ind.MACD,
			MACDSignal: ind.MACDSignal,
			ADX:        ind.ADX,
			BollWidth:  ind.BollWidth,
			ATRMedian:  ind.ATRMedian,
			VolZ:       ind.VolumeZScore,
			ROC20:      ind.ROC20,
			VWAPDist:   ind.VWAPDist,
			SMA50:      ind.SMA50,
			SMA200:     ind.SMA200,
		},
		TradingLevels:  res.Levels,
		News:           r.News,
		EconomicEvents: r.Events,
		AIPrediction:   r.AIPrediction,
		RiskManagement: r.Risk,
	}
}
