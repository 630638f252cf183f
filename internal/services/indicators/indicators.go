// Package indicators computes technical indicators over closing-price and bar series.
//
// Every function guards its own minimum window and returns a neutral value
// (0, 50 or a zero pair) instead of failing on short or degenerate input.
package indicators

import (
	"math"
	"sort"

	"github.com/markcheno/go-talib"

	"MarketState/internal/domain/models"
)

// Standard periods used by the engine.
const (
	RSIPeriod       = 14
	ADXPeriod       = 14
	ATRPeriod       = 14
	ATRWindow       = 50
	BollingerPeriod = 20
	BollingerK      = 2.0
	VWAPPeriod      = 20
	VolumeZPeriod   = 20
	RangeWindow     = 50
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
	MACDWindow      = 50
)

func tail(p []float64, n int) []float64 {
	if n >= len(p) {
		return p
	}
	return p[len(p)-n:]
}

// isFlat reports whether every value in p is identical.
func isFlat(p []float64) bool {
	for _, v := range p {
		if v != p[0] {
			return false
		}
	}
	return true
}

// SMA returns the mean of the last n values, or 0 when fewer than n exist.
func SMA(p []float64, n int) float64 {
	if n <= 0 || len(p) < n {
		return 0
	}
	out := talib.Sma(tail(p, n), n)
	return out[len(out)-1]
}

// EMAStep advances an exponential moving average by one price.
func EMAStep(price, prev float64, n int) float64 {
	k := 2.0 / float64(n+1)
	return (price-prev)*k + prev
}

// RSI is the Wilder relative strength index. The first n deltas seed the
// averages, the rest are smoothed as (avg*(n-1)+x)/n.
// Returns 50 with n or fewer prices and for a series that never moves.
func RSI(p []float64, n int) float64 {
	if n <= 0 || len(p) <= n {
		return 50
	}
	var gain, loss float64
	for i := 1; i <= n; i++ {
		d := p[i] - p[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(n)
	loss /= float64(n)
	for i := n + 1; i < len(p); i++ {
		d := p[i] - p[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		gain = (gain*float64(n-1) + g) / float64(n)
		loss = (loss*float64(n-1) + l) / float64(n)
	}
	switch {
	case gain == 0 && loss == 0:
		return 50
	case loss == 0:
		return 100
	}
	return 100 - 100/(1+gain/loss)
}

// ROC is the percent change of the last price against the price n bars earlier.
func ROC(p []float64, n int) float64 {
	if n <= 0 || len(p) <= n {
		return 0
	}
	base := p[len(p)-1-n]
	if base == 0 {
		return 0
	}
	return (p[len(p)-1] - base) / base * 100
}

// OBV accumulates volume signed by the close-to-close direction.
func OBV(bars []models.Bar) float64 {
	if len(bars) < 2 {
		return 0
	}
	var obv float64
	for i := 1; i < len(bars); i++ {
		switch {
		case bars[i].Close > bars[i-1].Close:
			obv += bars[i].Volume
		case bars[i].Close < bars[i-1].Close:
			obv -= bars[i].Volume
		}
	}
	return obv
}

// VWAPDistance is the percent distance of the last close from the
// volume-weighted average close of the last n bars.
func VWAPDistance(bars []models.Bar, n int) float64 {
	if n <= 0 || len(bars) < n {
		return 0
	}
	var pv, v float64
	for _, b := range bars[len(bars)-n:] {
		pv += b.Close * b.Volume
		v += b.Volume
	}
	if v == 0 {
		return 0
	}
	vwap := pv / v
	if vwap == 0 {
		return 0
	}
	return (bars[len(bars)-1].Close - vwap) / vwap * 100
}

// Bollinger returns the upper and lower bands SMA(n) ± k·σ with population σ.
func Bollinger(p []float64, n int, k float64) (upper, lower float64) {
	if n < 2 || len(p) < n {
		return 0, 0
	}
	w := tail(p, n)
	// talib's one-pass variance leaves a residue on constant input.
	if isFlat(w) {
		return w[0], w[0]
	}
	up, _, lo := talib.BBands(w, n, k, k, talib.SMA)
	return up[len(up)-1], lo[len(lo)-1]
}

// TrueRange of cur given the previous bar's close.
func TrueRange(cur models.Bar, prevClose float64) float64 {
	return math.Max(cur.High-cur.Low, math.Max(math.Abs(cur.High-prevClose), math.Abs(cur.Low-prevClose)))
}

// ATR averages the last n true ranges out of a trailing window of at most
// ATRWindow bars; median is the middle element of the sorted window.
// Both are 0 with fewer than n bars.
func ATR(bars []models.Bar, n int) (atr, median float64) {
	if n <= 0 || len(bars) < n {
		return 0, 0
	}
	start := len(bars) - ATRWindow
	if start < 1 {
		start = 1
	}
	trs := make([]float64, 0, len(bars)-start)
	for i := start; i < len(bars); i++ {
		trs = append(trs, TrueRange(bars[i], bars[i-1].Close))
	}
	// n bars give only n-1 ranges; average what exists.
	last := tail(trs, n)
	var sum float64
	for _, v := range last {
		sum += v
	}
	if len(last) > 0 {
		atr = sum / float64(len(last))
	}
	sort.Float64s(trs)
	if len(trs) > 0 {
		median = trs[len(trs)/2]
	}
	return atr, median
}

// ADX is a simplified directional index: TR, +DM and -DM are smoothed with a
// plain SMA(n) rather than Wilder smoothing. Requires 2n bars.
func ADX(bars []models.Bar, n int) float64 {
	if n <= 0 || len(bars) < 2*n {
		return 0
	}
	tr := make([]float64, 0, len(bars)-1)
	plus := make([]float64, 0, len(bars)-1)
	minus := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		cur, prev := bars[i], bars[i-1]
		tr = append(tr, TrueRange(cur, prev.Close))
		up := cur.High - prev.High
		down := prev.Low - cur.Low
		if up > down && up > 0 {
			plus = append(plus, up)
		} else {
			plus = append(plus, 0)
		}
		if down > up && down > 0 {
			minus = append(minus, down)
		} else {
			minus = append(minus, 0)
		}
	}
	str := SMA(tr, n)
	if str == 0 {
		return 0
	}
	pdi := 100 * SMA(plus, n) / str
	mdi := 100 * SMA(minus, n) / str
	if pdi+mdi == 0 {
		return 0
	}
	return 100 * math.Abs(pdi-mdi) / (pdi + mdi)
}

// MACD returns the MACD line and its signal. The line warms EMA12 and EMA26
// over the whole series from the first price. The signal is an EMA9 over a
// MACD history rebuilt from the trailing MACDWindow prices, dropping the
// first MACDSlow warm-up points. An empty history yields signal == macd.
// Both are 0 with MACDSlow or fewer prices.
func MACD(p []float64) (macd, signal float64) {
	if len(p) <= MACDSlow {
		return 0, 0
	}
	fast, slow := p[0], p[0]
	for _, v := range p[1:] {
		fast = EMAStep(v, fast, MACDFast)
		slow = EMAStep(v, slow, MACDSlow)
	}
	macd = fast - slow

	hist := macdHistory(p)
	if len(hist) == 0 {
		return macd, macd
	}
	signal = hist[0]
	for _, v := range hist[1:] {
		signal = EMAStep(v, signal, MACDSignal)
	}
	return macd, signal
}

func macdHistory(p []float64) []float64 {
	start := len(p) - MACDWindow
	if start < 0 {
		start = 0
	}
	fast, slow := p[start], p[start]
	var hist []float64
	for i := start; i < len(p); i++ {
		fast = EMAStep(p[i], fast, MACDFast)
		slow = EMAStep(p[i], slow, MACDSlow)
		if i >= start+MACDSlow {
			hist = append(hist, fast-slow)
		}
	}
	return hist
}

// VolumeZScore is the z-score of the last volume against the last n volumes.
func VolumeZScore(bars []models.Bar, n int) float64 {
	if n < 2 || len(bars) < n {
		return 0
	}
	vols := models.Volumes(bars[len(bars)-n:])
	if isFlat(vols) {
		return 0
	}
	mean := talib.Sma(vols, n)[n-1]
	std := talib.StdDev(vols, n, 1.0)[n-1]
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return (vols[n-1] - mean) / std
}

// RangePosition locates the last price within the high-low range of the
// trailing n prices. Returns 0.5 for a flat range.
func RangePosition(p []float64, n int) float64 {
	if len(p) == 0 {
		return 0.5
	}
	w := tail(p, n)
	last := p[len(p)-1]
	lo, hi := last, last
	for _, v := range w {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return 0.5
	}
	return (last - lo) / (hi - lo)
}
