// Package risk turns a directional prediction into concrete price levels.
package risk

import "MarketState/internal/domain/models"

// MinExpectedValue is the conviction threshold below which a directional call is suppressed.
const MinExpectedValue = 0.2

// Multipliers scale stop and target distances by volatility state.
type Multipliers struct {
	SL float64
	TP float64
}

// MultipliersFor picks stop/target multipliers for a volatility state in [0,1].
func MultipliersFor(vol float64) Multipliers {
	switch {
	case vol > 0.7:
		return Multipliers{SL: 1.5, TP: 2.0}
	case vol < 0.3:
		return Multipliers{SL: 0.8, TP: 2.5}
	default:
		return Multipliers{SL: 1.0, TP: 1.5}
	}
}

// ApplyConvictionFilter neutralizes a prediction whose expected value is below
// MinExpectedValue. Other fields are kept.
func ApplyConvictionFilter(d models.DirectionalPrediction) models.DirectionalPrediction {
	if d.ExpectedValue < MinExpectedValue {
		d.Direction = models.DirectionNeutral
		d.Probability = 0
	}
	return d
}

// Levels computes entry, stop, target, trailing stop and partial target.
// Anything other than "long" uses the short-side signs. Ordering of the
// levels relative to entry is not validated.
func Levels(price, atr float64, direction, regime string, vol float64) models.RiskLevels {
	sign := -1.0
	if direction == models.DirectionLong {
		sign = 1
	}
	m := MultipliersFor(vol)

	var stopDist, targetDist float64
	switch regime {
	case models.RegimeTrend:
		stopDist, targetDist = atr*1.0*m.SL, atr*3.0*m.TP
	case models.RegimeRange:
		stopDist, targetDist = atr*1.0*m.SL, atr*2.0
	default:
		stopDist, targetDist = atr*1.5, atr*2.0
	}

	return models.RiskLevels{
		Entry:             price,
		StopLoss:          price - sign*stopDist,
		TakeProfit:        price + sign*targetDist,
		TrailingStop:      price + sign*atr,
		PartialTakeProfit: price + sign*atr*1.0,
	}
}
