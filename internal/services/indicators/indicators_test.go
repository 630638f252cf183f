package indicators

import (
	"math"
	"testing"
	"time"

	"MarketState/internal/domain/models"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func barsFromCloses(closes []float64) []models.Bar {
	out := make([]models.Bar, len(closes))
	for i, c := range closes {
		out[i] = models.Bar{
			Time:   epoch.Add(time.Duration(i) * 24 * time.Hour),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return out
}

func flat(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestSMA(t *testing.T) {
	p := []float64{10, 11, 12, 13, 14, 15, 16}
	assertClose(t, "SMA(5)", SMA(p, 5), 14, 1e-9)
	assertClose(t, "SMA(7)", SMA(p, 7), 13, 1e-9)
	if got := SMA(p, 8); got != 0 {
		t.Fatalf("SMA with short input = %v, want 0", got)
	}
}

func TestEMAStep(t *testing.T) {
	// k = 2/(3+1) = 0.5
	assertClose(t, "EMAStep", EMAStep(12, 10, 3), 11, 1e-12)
}

func TestRSI_ShortInputIsNeutral(t *testing.T) {
	for n := 0; n <= 14; n++ {
		if got := RSI(ramp(n, 100, 1), 14); got != 50 {
			t.Fatalf("RSI with %d prices = %v, want 50", n, got)
		}
	}
}

func TestRSI_Extremes(t *testing.T) {
	if got := RSI(ramp(30, 100, 1), 14); got != 100 {
		t.Fatalf("RSI of rising series = %v, want 100", got)
	}
	if got := RSI(ramp(30, 100, -1), 14); got != 0 {
		t.Fatalf("RSI of falling series = %v, want 0", got)
	}
	if got := RSI(flat(30, 100), 14); got != 50 {
		t.Fatalf("RSI of flat series = %v, want 50", got)
	}
}

func TestRSI_HandComputed(t *testing.T) {
	// period 2: deltas +2, -1 seed gain=1, loss=0.5; next delta +1
	// gain=(1*1+1)/2=1, loss=(0.5*1+0)/2=0.25, rs=4, rsi=80
	p := []float64{10, 12, 11, 12}
	assertClose(t, "RSI(2)", RSI(p, 2), 80, 1e-9)
}

func TestRSIBounded(t *testing.T) {
	p := make([]float64, 200)
	for i := range p {
		p[i] = 100 + 10*math.Sin(float64(i)*0.3) + float64(i%7)
	}
	for n := 15; n <= len(p); n += 5 {
		v := RSI(p[:n], 14)
		if v < 0 || v > 100 {
			t.Fatalf("RSI out of range: %v", v)
		}
	}
}

func TestROC(t *testing.T) {
	p := []float64{100, 101, 102, 103, 104, 110}
	assertClose(t, "ROC(5)", ROC(p, 5), 10, 1e-9)
	if ROC(p, 6) != 0 {
		t.Fatalf("ROC with len <= n must be 0")
	}
	if ROC(flat(30, 50), 20) != 0 {
		t.Fatalf("ROC of flat series must be 0")
	}
}

func TestOBV(t *testing.T) {
	bars := barsFromCloses([]float64{10, 11, 11, 9, 12})
	bars[1].Volume, bars[2].Volume, bars[3].Volume, bars[4].Volume = 100, 50, 30, 70
	// +100, 0, -30, +70
	assertClose(t, "OBV", OBV(bars), 140, 1e-9)
	if OBV(bars[:1]) != 0 {
		t.Fatalf("OBV of one bar must be 0")
	}
}

func TestVWAPDistance(t *testing.T) {
	bars := barsFromCloses([]float64{100, 100, 110})
	bars[2].Volume = 2000
	// vwap = (100*1000+100*1000+110*2000)/4000 = 105
	assertClose(t, "VWAPDistance", VWAPDistance(bars, 3), (110.0-105)/105*100, 1e-9)

	for i := range bars {
		bars[i].Volume = 0
	}
	if VWAPDistance(bars, 3) != 0 {
		t.Fatalf("zero volume must give 0")
	}
	if VWAPDistance(bars, 4) != 0 {
		t.Fatalf("short input must give 0")
	}
}

func TestBollinger(t *testing.T) {
	up, lo := Bollinger(flat(30, 100), 20, 2)
	assertClose(t, "flat upper", up, 100, 1e-9)
	assertClose(t, "flat lower", lo, 100, 1e-9)

	for _, price := range []float64{123.456789, 98765.4321, 0.0731} {
		if up, lo := Bollinger(flat(30, price), 20, 2); up != price || lo != price {
			t.Fatalf("flat %v: bands (%v,%v) must collapse exactly", price, up, lo)
		}
	}

	if up, lo := Bollinger(flat(19, 100), 20, 2); up != 0 || lo != 0 {
		t.Fatalf("short input must give (0,0), got (%v,%v)", up, lo)
	}

	// alternating 99/101: mean 100, population sigma 1
	p := make([]float64, 20)
	for i := range p {
		p[i] = 99 + 2*float64(i%2)
	}
	up, lo = Bollinger(p, 20, 2)
	assertClose(t, "upper", up, 102, 1e-6)
	assertClose(t, "lower", lo, 98, 1e-6)
}

func TestATR(t *testing.T) {
	if atr, med := ATR(barsFromCloses(flat(13, 100)), 14); atr != 0 || med != 0 {
		t.Fatalf("ATR with 13 bars = (%v,%v), want zeros", atr, med)
	}
	// every bar spans 2 with equal closes, so every true range is 2
	atr, med := ATR(barsFromCloses(flat(80, 100)), 14)
	assertClose(t, "atr", atr, 2, 1e-12)
	assertClose(t, "median", med, 2, 1e-12)
}

func TestATR_UsesTrailingWindow(t *testing.T) {
	bars := barsFromCloses(flat(100, 100))
	// inflate an old bar outside the 50-bar window
	bars[10].High = 200
	atr, med := ATR(bars, 14)
	assertClose(t, "atr", atr, 2, 1e-12)
	assertClose(t, "median", med, 2, 1e-12)
}

func TestADX(t *testing.T) {
	if got := ADX(barsFromCloses(ramp(27, 100, 1)), 14); got != 0 {
		t.Fatalf("ADX with fewer than 2n bars = %v, want 0", got)
	}
	if got := ADX(barsFromCloses(flat(60, 100)), 14); got != 0 {
		t.Fatalf("ADX of flat series = %v, want 0", got)
	}
	// a steady uptrend has only +DM, so ADX saturates
	assertClose(t, "uptrend ADX", ADX(barsFromCloses(ramp(60, 100, 1)), 14), 100, 1e-9)
}

func TestMACD(t *testing.T) {
	if m, s := MACD(ramp(26, 100, 1)); m != 0 || s != 0 {
		t.Fatalf("MACD with 26 prices = (%v,%v), want zeros", m, s)
	}
	if m, s := MACD(flat(100, 100)); m != 0 || s != 0 {
		t.Fatalf("MACD of flat series = (%v,%v), want zeros", m, s)
	}
	m, s := MACD(ramp(120, 100, 1))
	if m <= 0 || s <= 0 {
		t.Fatalf("MACD of uptrend should be positive, got (%v,%v)", m, s)
	}
}

func TestMACD_SignalIsSmoothedHistory(t *testing.T) {
	p := ramp(40, 100, 0.5)
	p[39] = 130
	// with fewer than MACDWindow prices the history window starts at 0
	fast, slow := p[0], p[0]
	var hist []float64
	for i := range p {
		fast = EMAStep(p[i], fast, 12)
		slow = EMAStep(p[i], slow, 26)
		if i >= 26 {
			hist = append(hist, fast-slow)
		}
	}
	sig := hist[0]
	for _, v := range hist[1:] {
		sig = EMAStep(v, sig, 9)
	}
	m, s := MACD(p)
	assertClose(t, "signal", s, sig, 1e-9)
	if math.Abs(m-s) < 1e-6 {
		t.Fatalf("signal should lag a price jump, macd=%v signal=%v", m, s)
	}
}

func TestVolumeZScore(t *testing.T) {
	bars := barsFromCloses(flat(20, 100))
	if VolumeZScore(bars, 20) != 0 {
		t.Fatalf("constant volume must give 0")
	}
	for i := range bars {
		bars[i].Volume = 123456.789
	}
	if z := VolumeZScore(bars, 20); z != 0 {
		t.Fatalf("constant fractional volume: z = %v", z)
	}
	if VolumeZScore(bars[:19], 20) != 0 {
		t.Fatalf("short input must give 0")
	}
	for i := range bars {
		bars[i].Volume = 100 + 20*float64(i%2)
	}
	// mean 110, sigma 10, last volume 120
	assertClose(t, "z", VolumeZScore(bars, 20), 1, 1e-6)
}

func TestRangePosition(t *testing.T) {
	assertClose(t, "flat", RangePosition(flat(60, 5), 50), 0.5, 0)
	assertClose(t, "top", RangePosition(ramp(60, 1, 1), 50), 1, 1e-12)
	p := []float64{10, 20, 15}
	assertClose(t, "middle", RangePosition(p, 50), 0.5, 1e-12)
}
