package models

import "fmt"

// OracleFeatures is the feature payload sent to the prediction oracle.
type OracleFeatures struct {
	MomentumState   float64 `json:"momentum_state"`
	TrendState      float64 `json:"trend_state"`
	VolatilityState float64 `json:"volatility_state"`
	RSINorm         float64 `json:"rsi_norm"`
	ROCNorm         float64 `json:"roc_norm"`
	VolZNorm        float64 `json:"vol_z_norm"`
	SMADistNorm     float64 `json:"sma_dist_norm"`
	RSI             float64 `json:"rsi"`
	ADX             float64 `json:"adx"`
	IsStock         bool    `json:"is_stock"`
}

type OracleRequest struct {
	Features OracleFeatures `json:"features"`
}

// OracleResponse mirrors the oracle wire format. Missing sections decode to nil.
type OracleResponse struct {
	RegimeModel      *Regime                `json:"regime_model"`
	DirectionalModel *DirectionalPrediction `json:"directional_model"`
	Error            string                 `json:"error,omitempty"`
}

// NewOracleRequest builds the payload from an engine result in progress.
func NewOracleRequest(res AnalysisResult) OracleRequest {
	return OracleRequest{Features: OracleFeatures{
		MomentumState:   res.State.Momentum,
		TrendState:      res.State.Trend,
		VolatilityState: res.State.Volatility,
		RSINorm:         res.Features.RSINorm,
		ROCNorm:         res.Features.ROCNorm,
		VolZNorm:        res.Features.VolumeZNorm,
		SMADistNorm:     res.Features.SMADistNorm,
		RSI:             res.Indicators.RSI,
		ADX:             res.Indicators.ADX,
		IsStock:         res.IsStock,
	}}
}

// Prediction validates the response and extracts the combined prediction.
func (r OracleResponse) Prediction() (Prediction, error) {
	if r.Error != "" {
		return Prediction{}, fmt.Errorf("oracle error: %s", r.Error)
	}
	if r.RegimeModel == nil || r.RegimeModel.Label == "" {
		return Prediction{}, fmt.Errorf("oracle response missing regime_model")
	}
	if r.DirectionalModel == nil || r.DirectionalModel.Direction == "" {
		return Prediction{}, fmt.Errorf("oracle response missing directional_model")
	}
	return Prediction{Regime: *r.RegimeModel, Directional: *r.DirectionalModel}, nil
}
