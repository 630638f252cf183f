package features

import (
	"MarketState/internal/domain/models"
	"MarketState/internal/services/indicators"
)

// Trajectory windows.
const (
	HistoryLen    = 50
	HistoryWarmup = 50
	trajRSI       = 14
	trajROC       = 5
	trajSMA       = 50
	trajRange     = 20
)

// Composite combines normalized features into the momentum, trend and
// volatility axes. htfSMA200 <= 0 means the higher timeframe is unavailable.
func Composite(f models.Features, close, htfSMA200 float64) models.State {
	momentum := (f.RSINorm + f.ROCNorm + f.MACDHistNorm) / 3

	align := 0.0
	if htfSMA200 > 0 {
		if close > htfSMA200 {
			align = 0.5
		} else {
			align = -0.5
		}
	}
	dir := -1.0
	if momentum > 0 {
		dir = 1
	}
	return models.State{
		Momentum:   momentum,
		Trend:      (f.SMADistNorm + f.ADXNorm*dir + align) / 3,
		Volatility: (f.ATRNorm + f.BollWidthNorm) / 2,
	}
}

// Trajectory approximates the composite state for up to the last HistoryLen
// bars using short local windows. Bars before HistoryWarmup are skipped. The
// last point is replaced by current so it agrees with the exact state.
func Trajectory(bars []models.Bar, current models.State) []models.StatePoint {
	start := len(bars) - HistoryLen
	if start < HistoryWarmup {
		start = HistoryWarmup
	}
	if start >= len(bars) {
		return nil
	}
	closes := models.Closes(bars)
	out := make([]models.StatePoint, 0, len(bars)-start)
	for i := start; i < len(bars); i++ {
		out = append(out, models.StatePoint{State: approxState(closes, i), Time: bars[i].Time})
	}
	out[len(out)-1] = models.StatePoint{State: current, Time: bars[len(bars)-1].Time}
	return out
}

func approxState(c []float64, i int) models.State {
	var gain, loss float64
	for k := 0; k < trajRSI; k++ {
		d := c[i-k] - c[i-k-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= trajRSI
	loss /= trajRSI
	rs := 100.0
	if loss != 0 {
		rs = gain / loss
	}
	rsiN := (100 - 100/(1+rs) - 50) / 50
	rocN := Clamp(ratio(c[i]-c[i-trajROC], c[i-trajROC])*100/5, -1, 1)

	sma := indicators.SMA(c[:i+1], trajSMA)
	trend := Clamp(ratio(c[i]-sma, sma)*100/10, -1, 1)

	hi, lo := c[i], c[i]
	for k := 0; k < trajRange; k++ {
		hi = max(hi, c[i-k])
		lo = min(lo, c[i-k])
	}
	vol := Clamp(ratio(hi-lo, c[i])/0.10, 0, 1)

	return models.State{
		Momentum:   Clamp((rsiN+rocN)/2, -1, 1),
		Trend:      trend,
		Volatility: vol,
	}
}
