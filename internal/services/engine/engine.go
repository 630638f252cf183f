// Package engine turns bar series into a complete market-state assessment.
package engine

import (
	"context"

	"MarketState/internal/domain/models"
	"MarketState/internal/domain/repository"
	domsvc "MarketState/internal/domain/service"
	"MarketState/internal/services/features"
	"MarketState/internal/services/indicators"
	"MarketState/internal/services/risk"
	applogger "MarketState/pkg/logger"
)

// MACD modes.
const (
	MACDCold        = "cold"
	MACDIncremental = "incremental"
)

// Input is one engine invocation.
type Input struct {
	// Key identifies the (ticker, interval) series for incremental state.
	Key     string
	Bars    []models.Bar
	HTFBars []models.Bar
	IsStock bool
}

// Engine is safe for concurrent use; each Analyze call is independent.
type Engine struct {
	oracle    domsvc.PredictionOracle
	metrics   repository.Metrics
	macdMode  string
	macdStore repository.MACDStateStore
	logger    *applogger.Logger
}

type Option func(*Engine)

func WithMetrics(m repository.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIncrementalMACD keeps MACD state per series key in store between calls.
func WithIncrementalMACD(store repository.MACDStateStore) Option {
	return func(e *Engine) {
		if store != nil {
			e.macdMode = MACDIncremental
			e.macdStore = store
		}
	}
}

// New builds an engine. The oracle is expected to handle its own failures
// (see analytics.FallbackOracle); errors that still escape are neutralized here.
func New(oracle domsvc.PredictionOracle, opts ...Option) *Engine {
	e := &Engine{
		oracle:   oracle,
		metrics:  repository.NopMetrics{},
		macdMode: MACDCold,
		logger:   applogger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) MACDMode() string { return e.macdMode }

// Analyze runs the full pipeline. It never fails: short input degrades each
// indicator to its neutral value and an empty series yields a zeroed result
// carrying only the asset-class flag.
func (e *Engine) Analyze(ctx context.Context, in Input) models.AnalysisResult {
	res := models.AnalysisResult{IsStock: in.IsStock}
	if len(in.Bars) == 0 {
		return res
	}
	e.metrics.RecordBarsProcessed(len(in.Bars))

	closes := models.Closes(in.Bars)
	last := closes[len(closes)-1]

	ind, atr := e.computeIndicators(ctx, in, closes)
	res.Indicators = ind
	res.Features = features.Normalize(ind, last, atr)
	res.State = features.Composite(res.Features, last, ind.HTFSMA200)
	res.History = features.Trajectory(in.Bars, res.State)

	pred := e.predict(ctx, models.NewOracleRequest(res))
	res.Regime = pred.Regime
	res.Direction = risk.ApplyConvictionFilter(pred.Directional)
	res.Levels = risk.Levels(last, atr, res.Direction.Direction, res.Regime.Label, res.State.Volatility)
	return res
}

func (e *Engine) predict(ctx context.Context, req models.OracleRequest) models.Prediction {
	if e.oracle == nil {
		return models.NeutralPrediction()
	}
	pred, err := e.oracle.Predict(ctx, req)
	if err != nil {
		e.logger.Warn("oracle error reached engine", applogger.Error(err))
		return models.NeutralPrediction()
	}
	return pred
}

func (e *Engine) computeIndicators(ctx context.Context, in Input, closes []float64) (models.Indicators, float64) {
	bars := in.Bars
	last := closes[len(closes)-1]

	var ind models.Indicators
	ind.SMA50 = indicators.SMA(closes, 50)
	ind.SMA200 = indicators.SMA(closes, 200)
	ind.RSI = indicators.RSI(closes, indicators.RSIPeriod)
	ind.MACD, ind.MACDSignal = e.macd(ctx, in.Key, bars, closes)
	ind.ADX = indicators.ADX(bars, indicators.ADXPeriod)
	ind.BollUpper, ind.BollLower = indicators.Bollinger(closes, indicators.BollingerPeriod, indicators.BollingerK)
	if last != 0 {
		ind.BollWidth = (ind.BollUpper - ind.BollLower) / last
	}
	atr, median := indicators.ATR(bars, indicators.ATRPeriod)
	ind.ATR, ind.ATRMedian = atr, median
	ind.ROC5 = indicators.ROC(closes, 5)
	ind.ROC10 = indicators.ROC(closes, 10)
	ind.ROC20 = indicators.ROC(closes, 20)
	ind.OBV = indicators.OBV(bars)
	ind.VWAPDist = indicators.VWAPDistance(bars, indicators.VWAPPeriod)
	if ind.SMA200 > 0 {
		ind.SMADistancePct = (last - ind.SMA200) / ind.SMA200 * 100
	}
	ind.RangePos = indicators.RangePosition(closes, indicators.RangeWindow)
	ind.VolumeZScore = indicators.VolumeZScore(bars, indicators.VolumeZPeriod)

	ind.HTFRSI = 50
	if len(in.HTFBars) > 0 {
		htf := models.Closes(in.HTFBars)
		ind.HTFRSI = indicators.RSI(htf, indicators.RSIPeriod)
		ind.HTFSMA50 = indicators.SMA(htf, 50)
		ind.HTFSMA200 = indicators.SMA(htf, 200)
	}
	return ind, atr
}
