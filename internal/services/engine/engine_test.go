package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"MarketState/internal/domain/models"
	"MarketState/internal/services/analytics"
	"MarketState/internal/services/indicators"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// mkTrend builds n daily bars drifting by step per bar with a small oscillation.
func mkTrend(n int, start, step float64) []models.Bar {
	out := make([]models.Bar, n)
	for i := range out {
		c := start + step*float64(i) + math.Sin(float64(i)*0.7)
		out[i] = models.Bar{
			Time:   t0.AddDate(0, 0, i),
			Open:   c - 0.3,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000 + float64(i%5)*100,
		}
	}
	return out
}

func mkFlat(n int, price float64) []models.Bar {
	out := make([]models.Bar, n)
	for i := range out {
		out[i] = models.Bar{Time: t0.AddDate(0, 0, i), Open: price, High: price, Low: price, Close: price, Volume: 500}
	}
	return out
}

type stubOracle struct {
	pred models.Prediction
	err  error
	got  models.OracleRequest
}

func (s *stubOracle) Predict(_ context.Context, req models.OracleRequest) (models.Prediction, error) {
	s.got = req
	return s.pred, s.err
}

type barCounter struct {
	mu   sync.Mutex
	bars int
}

func (b *barCounter) RecordBarsProcessed(n int) {
	b.mu.Lock()
	b.bars += n
	b.mu.Unlock()
}
func (b *barCounter) RecordOracleFallback(string)   {}
func (b *barCounter) RecordError(string)            {}
func (b *barCounter) RecordLatency(string, float64) {}
func (b *barCounter) RecordThroughput(float64)      {}

func TestAnalyze_EmptyInput(t *testing.T) {
	o := &stubOracle{pred: models.NeutralPrediction()}
	res := New(o).Analyze(context.Background(), Input{IsStock: true})
	if !res.IsStock {
		t.Fatalf("asset flag lost")
	}
	if res.Indicators != (models.Indicators{}) || res.State != (models.State{}) || res.History != nil {
		t.Fatalf("empty input must give a zeroed result: %+v", res)
	}
	if o.got != (models.OracleRequest{}) {
		t.Fatalf("oracle must not be called for empty input")
	}
}

func TestAnalyze_BoundsAndLastPoint(t *testing.T) {
	m := &barCounter{}
	e := New(analytics.NewRuleOracle(), WithMetrics(m))
	for _, bars := range [][]models.Bar{
		mkTrend(260, 100, 0.5),
		mkTrend(260, 300, -0.8),
		mkTrend(75, 50, 0.1),
		mkTrend(12, 50, 1),
	} {
		res := e.Analyze(context.Background(), Input{Bars: bars, HTFBars: bars[:len(bars)/5]})
		f := res.Features
		for name, v := range map[string]float64{
			"rsi_norm": f.RSINorm, "roc": f.ROCNorm, "macd": f.MACDNorm, "hist": f.MACDHistNorm,
			"sma": f.SMADistNorm, "volz": f.VolumeZNorm, "momentum": res.State.Momentum, "trend": res.State.Trend,
		} {
			if v < -1 || v > 1 || math.IsNaN(v) {
				t.Fatalf("%s out of [-1,1]: %v", name, v)
			}
		}
		for name, v := range map[string]float64{
			"adx": f.ADXNorm, "width": f.BollWidthNorm, "atr": f.ATRNorm, "vol": res.State.Volatility,
		} {
			if v < 0 || v > 1 || math.IsNaN(v) {
				t.Fatalf("%s out of [0,1]: %v", name, v)
			}
		}
		if res.Indicators.RSI < 0 || res.Indicators.RSI > 100 {
			t.Fatalf("rsi out of range: %v", res.Indicators.RSI)
		}
		if len(bars) >= 51 {
			lastPt := res.History[len(res.History)-1]
			if lastPt.State != res.State || !lastPt.Time.Equal(bars[len(bars)-1].Time) {
				t.Fatalf("last trajectory point %+v != current %+v", lastPt, res.State)
			}
		}
		if res.Levels.Entry != bars[len(bars)-1].Close {
			t.Fatalf("entry = %v", res.Levels.Entry)
		}
	}
	if m.bars != 260+260+75+12 {
		t.Fatalf("bars processed = %d", m.bars)
	}
}

func TestAnalyze_FlatSeries(t *testing.T) {
	for _, price := range []float64{42, 123.456789, 98765.4321, 0.0731} {
		res := New(nil).Analyze(context.Background(), Input{Bars: mkFlat(260, price)})
		ind := res.Indicators
		if ind.RSI != 50 || ind.ROC20 != 0 || ind.BollWidth != 0 || ind.ADX != 0 {
			t.Fatalf("price %v: rsi=%v roc=%v width=%v adx=%v", price, ind.RSI, ind.ROC20, ind.BollWidth, ind.ADX)
		}
		if ind.RangePos != 0.5 || ind.VolumeZScore != 0 || ind.HTFRSI != 50 {
			t.Fatalf("price %v: neutral values: %+v", price, ind)
		}
		if res.Features.BollWidthNorm != 0 || res.State.Volatility != 0 {
			t.Fatalf("price %v: width norm=%v volatility=%v", price, res.Features.BollWidthNorm, res.State.Volatility)
		}
	}
}

func TestAnalyze_OracleFailureYieldsNeutralDefaults(t *testing.T) {
	o := &stubOracle{
		pred: models.Prediction{Regime: models.Regime{Label: "trend", Confidence: 0.9}},
		err:  errors.New("connection refused"),
	}
	res := New(o).Analyze(context.Background(), Input{Bars: mkTrend(120, 100, 1)})
	if res.Regime.Label != models.RegimeUnknown || res.Regime.Confidence != 0 {
		t.Fatalf("regime = %+v", res.Regime)
	}
	d := res.Direction
	if d.Direction != models.DirectionNeutral || d.Probability != 0 || d.ExpectedValue != 0 || d.SignalStrength != 0 || d.ExpectedR != 0 {
		t.Fatalf("direction = %+v", d)
	}
	// default regime: short-side signs, 1.5 ATR stop, 2 ATR target
	atr := res.Indicators.ATR
	if math.Abs(res.Levels.StopLoss-(res.Levels.Entry+1.5*atr)) > 1e-9 {
		t.Fatalf("stop = %v, entry=%v atr=%v", res.Levels.StopLoss, res.Levels.Entry, atr)
	}
}

func TestAnalyze_ConvictionFilterAndPayload(t *testing.T) {
	o := &stubOracle{pred: models.Prediction{
		Regime:      models.Regime{Label: models.RegimeTrend, Confidence: 0.8},
		Directional: models.DirectionalPrediction{Direction: models.DirectionLong, Probability: 0.9, ExpectedR: 2.5, ExpectedValue: 0.1, SignalStrength: 0.08},
	}}
	res := New(o).Analyze(context.Background(), Input{Bars: mkTrend(120, 100, 1), IsStock: true})
	if res.Direction.Direction != models.DirectionNeutral || res.Direction.Probability != 0 {
		t.Fatalf("weak signal not suppressed: %+v", res.Direction)
	}
	if res.Direction.ExpectedR != 2.5 || res.Regime.Label != models.RegimeTrend {
		t.Fatalf("non-direction fields altered: %+v", res)
	}
	f := o.got.Features
	if !f.IsStock || f.MomentumState != res.State.Momentum || f.RSI != res.Indicators.RSI || f.VolZNorm != res.Features.VolumeZNorm {
		t.Fatalf("payload mismatch: %+v", f)
	}
}

func TestAnalyze_HTFAlignment(t *testing.T) {
	bars := mkTrend(120, 100, 0.2)
	htf := mkFlat(210, 50)
	res := New(nil).Analyze(context.Background(), Input{Bars: bars, HTFBars: htf})
	if res.Indicators.HTFSMA200 != 50 || res.Indicators.HTFSMA50 != 50 {
		t.Fatalf("htf sma = %v/%v", res.Indicators.HTFSMA50, res.Indicators.HTFSMA200)
	}
	dir := -1.0
	if res.State.Momentum > 0 {
		dir = 1
	}
	want := (res.Features.SMADistNorm + res.Features.ADXNorm*dir + 0.5) / 3
	if math.Abs(res.State.Trend-want) > 1e-12 {
		t.Fatalf("trend = %v, want %v", res.State.Trend, want)
	}
}

type memMACDStore struct {
	mu    sync.Mutex
	snaps map[string]models.MACDSnapshot
}

func (m *memMACDStore) Load(_ context.Context, key string) (*models.MACDSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[key]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memMACDStore) Store(_ context.Context, key string, s models.MACDSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[key] = s
	return nil
}

func TestIncrementalMACD(t *testing.T) {
	store := &memMACDStore{snaps: map[string]models.MACDSnapshot{}}
	e := New(nil, WithIncrementalMACD(store))
	if e.MACDMode() != MACDIncremental {
		t.Fatalf("mode = %s", e.MACDMode())
	}
	all := mkTrend(45, 100, 0.4)

	// first call: no state, cold answer, state seeded from closed bars
	first := e.Analyze(context.Background(), Input{Key: "AAPL:1d", Bars: all[:40]})
	coldM, coldS := indicators.MACD(models.Closes(all[:40]))
	if first.Indicators.MACD != coldM || first.Indicators.MACDSignal != coldS {
		t.Fatalf("first call should use the cold path")
	}
	if snap := store.snaps["AAPL:1d"]; snap.Count != 39 || !snap.LastTime.Equal(all[38].Time) {
		t.Fatalf("seeded snapshot = %+v", snap)
	}

	// second call: state advanced by the new closed bars, last bar peeked.
	// Within a 50-bar window this agrees with the cold path.
	second := e.Analyze(context.Background(), Input{Key: "AAPL:1d", Bars: all})
	wantM, wantS := indicators.MACD(models.Closes(all))
	if math.Abs(second.Indicators.MACD-wantM) > 1e-9 || math.Abs(second.Indicators.MACDSignal-wantS) > 1e-9 {
		t.Fatalf("incremental (%v,%v) != cold (%v,%v)", second.Indicators.MACD, second.Indicators.MACDSignal, wantM, wantS)
	}
	if snap := store.snaps["AAPL:1d"]; snap.Count != 44 {
		t.Fatalf("snapshot count = %d, want 44", snap.Count)
	}
}

func TestMarketSummary(t *testing.T) {
	if MarketSummary(nil, models.AnalysisResult{}) != "No Data" {
		t.Fatalf("empty bars must give No Data")
	}
	r := models.AnalysisResult{
		Indicators: models.Indicators{RSI: 61.234, MACD: 0.5, ADX: 25, BollWidth: 0.04, SMA50: 101.5, SMA200: 99},
		State:      models.State{Momentum: 0.3, Trend: -0.2, Volatility: 0.45},
		Regime:     models.Regime{Label: "trend", Confidence: 0.757},
		Direction:  models.DirectionalPrediction{Direction: "long", Probability: 0.71, ExpectedValue: 0.9},
	}
	got := MarketSummary(mkFlat(1, 1), r)
	want := strings.Join([]string{
		"### Technical Summary ###",
		"Regime: trend (75%)",
		"ML Prediction: long (Prob: 0.71)",
		"RSI: 61.23 | MACD: 0.50",
		"ADX: 25.00 | Bollinger Width: 0.04",
		"SMA 50/200: 101.50 / 99.00",
		"Momentum State: 0.30 | Trend State: -0.20",
		"Vol State: 0.45 | Exp. Value: 0.90",
		"",
	}, "\n")
	if got != want {
		t.Fatalf("summary =\n%s\nwant\n%s", got, want)
	}
}
