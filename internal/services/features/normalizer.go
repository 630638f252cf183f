package features

import (
	"math"

	"MarketState/internal/domain/models"
)

// Clamp bounds v to [lo, hi]. NaN is treated as 0.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		v = 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// Normalize maps raw indicators onto bounded scales using fixed divisors.
// close is the last closing price and atr the current average true range.
func Normalize(ind models.Indicators, close, atr float64) models.Features {
	return models.Features{
		RSINorm:       Clamp((ind.RSI-50)/50, -1, 1),
		MACDHistNorm:  Clamp(ratio(ind.MACD-ind.MACDSignal, close)*100, -1, 1),
		MACDNorm:      Clamp(ratio(ind.MACD, close)*100, -1, 1),
		ROCNorm:       Clamp(ind.ROC20/5, -1, 1),
		ADXNorm:       Clamp(ind.ADX/50, 0, 1),
		SMADistNorm:   Clamp(ind.SMADistancePct/10, -1, 1),
		BollWidthNorm: Clamp(ind.BollWidth/0.10, 0, 1),
		VolumeZNorm:   Clamp(ind.VolumeZScore/3, -1, 1),
		ATRNorm:       Clamp((ratio(atr, close)-0.005)/0.015, 0, 1),
	}
}
