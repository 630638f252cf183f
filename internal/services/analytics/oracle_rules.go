package analytics

import (
	"context"
	"math"

	"github.com/shopspring/decimal"

	"MarketState/internal/domain/models"
	domsvc "MarketState/internal/domain/service"
)

// RuleOracle is an in-process heuristic regime classifier and directional model
// over the composite state axes. It never fails.
type RuleOracle struct{}

func NewRuleOracle() *RuleOracle { return &RuleOracle{} }

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func (RuleOracle) Predict(_ context.Context, req models.OracleRequest) (models.Prediction, error) {
	f := req.Features
	regime := classifyRegime(f.TrendState, f.VolatilityState)
	return models.Prediction{
		Regime:      regime,
		Directional: predictDirection(f.MomentumState, f.TrendState, regime),
	}, nil
}

func classifyRegime(trend, vol float64) models.Regime {
	switch {
	case vol > 0.7:
		return models.Regime{Label: models.RegimeHighVol, Confidence: round2(vol)}
	case math.Abs(trend) > 0.4:
		return models.Regime{Label: models.RegimeTrend, Confidence: round2(math.Min(0.95, math.Abs(trend)*1.5))}
	default:
		return models.Regime{Label: models.RegimeRange, Confidence: round2(1 - math.Abs(trend))}
	}
}

func predictDirection(momentum, trend float64, regime models.Regime) models.DirectionalPrediction {
	score := 0.5 + momentum*0.3 + trend*0.2
	if regime.Label == models.RegimeTrend {
		score += trend * 0.2
	}
	score = math.Max(0, math.Min(1, score))
	p := 1 / (1 + math.Exp(-(score-0.5)*8))

	dir, prob := models.DirectionNeutral, 0.5
	switch {
	case p > 0.6:
		dir, prob = models.DirectionLong, p
	case p < 0.4:
		dir, prob = models.DirectionShort, 1-p
	}

	r := 1.0
	switch regime.Label {
	case models.RegimeTrend:
		r = 2.5
	case models.RegimeRange:
		r = 1.5
	case models.RegimeHighVol:
		r = 3.0
	}
	ev := prob*r - (1 - prob)

	return models.DirectionalPrediction{
		Direction:      dir,
		Probability:    round2(prob),
		ExpectedR:      r,
		ExpectedValue:  round2(ev),
		SignalStrength: round2(ev * regime.Confidence),
	}
}

var _ domsvc.PredictionOracle = (*RuleOracle)(nil)
