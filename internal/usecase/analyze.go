package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"MarketState/internal/domain/models"
	domrepo "MarketState/internal/domain/repository"
	domsvc "MarketState/internal/domain/service"
	"MarketState/internal/services/engine"
	"MarketState/internal/services/risk"
	applogger "MarketState/pkg/logger"
)

// ErrUpstream marks a market data failure other than an empty series.
var ErrUpstream = errors.New("market data unavailable")

const (
	candleLimit   = 100
	feedbackLimit = 5
)

type AnalyzeConfig struct {
	Primary      domrepo.Interval
	Higher       domrepo.Interval
	DefaultModel string
	// CandleLimit caps the candles returned with a report.
	CandleLimit int
}

// AnalysisReport is everything one analysis produced, in response order.
type AnalysisReport struct {
	Ticker       string
	CandleCount  int
	AnalysisID   string
	Summary      string
	Result       models.AnalysisResult
	Candles      []models.Bar
	News         []models.NewsItem
	Events       []models.EconomicEvent
	AIPrediction string
	Risk         models.PositionSize
}

// AnalyzeUsecase runs one end-to-end analysis: fetch, engine, reasoner, persist, publish.
type AnalyzeUsecase struct {
	cfg       AnalyzeConfig
	market    domrepo.MarketData
	news      domrepo.NewsSource
	engine    *engine.Engine
	reasoner  domsvc.Reasoner
	store     domrepo.AnalysisStore
	settings  domrepo.SettingsStore
	publisher domrepo.EventPublisher
	metrics   domrepo.Metrics
	logger    *applogger.Logger
}

func NewAnalyzeUsecase(
	cfg AnalyzeConfig,
	market domrepo.MarketData,
	news domrepo.NewsSource,
	eng *engine.Engine,
	reasoner domsvc.Reasoner,
	store domrepo.AnalysisStore,
	settings domrepo.SettingsStore,
	publisher domrepo.EventPublisher,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *AnalyzeUsecase {
	if cfg.Primary == "" {
		cfg.Primary = domrepo.Interval1d
	}
	if cfg.Higher == "" {
		cfg.Higher = domrepo.HigherInterval(cfg.Primary)
	}
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = candleLimit
	}
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &AnalyzeUsecase{
		cfg: cfg, market: market, news: news, engine: eng, reasoner: reasoner,
		store: store, settings: settings, publisher: publisher, metrics: metrics,
		logger: l.With(applogger.String("component", "analyze")),
	}
}

// IsStock reports whether ticker is an equity. Futures ("=F") and BTC-USD are not.
func IsStock(ticker string) bool {
	return !(strings.Contains(ticker, "=F") || ticker == "BTC-USD")
}

func (u *AnalyzeUsecase) Analyze(ctx context.Context, req models.AnalyzeRequest) (*AnalysisReport, error) {
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		ticker = "AAPL"
	}
	model := req.Model
	if model == "" {
		model = u.cfg.DefaultModel
	}
	start := time.Now()

	bars, htf, err := u.fetchBars(ctx, ticker)
	if err != nil {
		return nil, err
	}

	res := u.engine.Analyze(ctx, engine.Input{
		Key:     ticker + ":" + string(u.cfg.Primary),
		Bars:    bars,
		HTFBars: htf,
		IsStock: IsStock(ticker),
	})
	elapsed := time.Since(start).Seconds()
	u.metrics.RecordLatency("analysis", elapsed)
	if elapsed > 0 {
		u.metrics.RecordThroughput(float64(len(bars)) / elapsed)
	}
	u.logger.Info("analysis computed",
		applogger.String("ticker", ticker),
		applogger.Int("bars", len(bars)),
		applogger.Int("htf_bars", len(htf)),
		applogger.Duration("duration_ms", time.Since(start)),
	)

	report := &AnalysisReport{
		Ticker:      ticker,
		CandleCount: len(bars),
		Summary:     engine.MarketSummary(bars, res),
		Result:      res,
		Candles:     lastBars(bars, u.cfg.CandleLimit),
	}
	report.News, report.Events = u.fetchContext(ctx, ticker)

	mc := domsvc.MetaContext{Ticker: ticker, Result: res, Events: report.Events}
	mc.Successful, mc.Failed = u.feedback(ctx)
	report.AIPrediction = u.reasoner.MetaAnalysis(ctx, model, mc)

	last, _ := models.Last(bars)
	id, err := u.store.Save(ctx, models.NewAnalysisRecord(ticker, model, last.Close, res, report.AIPrediction))
	if err != nil {
		u.metrics.RecordError("analysis_save")
		return nil, fmt.Errorf("save analysis: %w", err)
	}
	report.AnalysisID = id

	settings, err := u.settings.Get(ctx)
	if err != nil {
		u.logger.Warn("settings unavailable, using defaults", applogger.Error(err))
		settings = models.DefaultSettings()
	}
	report.Risk = risk.SizePosition(settings, res.Levels.Entry, res.Levels.StopLoss)

	u.publish(ctx, report)
	return report, nil
}

// fetchBars loads the primary and higher timeframe series concurrently.
// A missing higher timeframe only degrades the HTF features.
func (u *AnalyzeUsecase) fetchBars(ctx context.Context, ticker string) ([]models.Bar, []models.Bar, error) {
	var (
		wg              sync.WaitGroup
		bars, htf       []models.Bar
		barsErr, htfErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		bars, barsErr = u.market.Bars(ctx, ticker, u.cfg.Primary)
	}()
	go func() {
		defer wg.Done()
		htf, htfErr = u.market.Bars(ctx, ticker, u.cfg.Higher)
	}()
	wg.Wait()

	if htfErr != nil && !errors.Is(htfErr, domrepo.ErrNoData) {
		u.logger.Warn("higher timeframe unavailable",
			applogger.String("ticker", ticker),
			applogger.String("interval", string(u.cfg.Higher)),
			applogger.Error(htfErr),
		)
	}
	if barsErr != nil {
		if errors.Is(barsErr, domrepo.ErrNoData) {
			return nil, nil, domrepo.ErrNoData
		}
		u.metrics.RecordError("market_data")
		return nil, nil, fmt.Errorf("%w: %v", ErrUpstream, barsErr)
	}
	if len(bars) == 0 {
		return nil, nil, domrepo.ErrNoData
	}
	return bars, htf, nil
}

func (u *AnalyzeUsecase) fetchContext(ctx context.Context, ticker string) ([]models.NewsItem, []models.EconomicEvent) {
	var (
		wg     sync.WaitGroup
		news   []models.NewsItem
		events []models.EconomicEvent
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		news = u.news.TickerNews(ctx, ticker)
	}()
	go func() {
		defer wg.Done()
		events = u.news.EconomicCalendar(ctx)
	}()
	wg.Wait()
	if news == nil {
		news = []models.NewsItem{}
	}
	if events == nil {
		events = []models.EconomicEvent{}
	}
	return news, events
}

func (u *AnalyzeUsecase) feedback(ctx context.Context) (ok, failed []models.AnalysisRecord) {
	var err error
	if ok, err = u.store.Successful(ctx, feedbackLimit); err != nil {
		u.logger.Warn("load successful analyses", applogger.Error(err))
	}
	if failed, err = u.store.Failed(ctx, feedbackLimit); err != nil {
		u.logger.Warn("load failed analyses", applogger.Error(err))
	}
	return ok, failed
}

func (u *AnalyzeUsecase) publish(ctx context.Context, r *AnalysisReport) {
	if u.publisher == nil {
		return
	}
	ev := models.AnalysisEvent{
		Ticker:     r.Ticker,
		AnalysisID: r.AnalysisID,
		Current:    r.Result.State,
		Regime:     r.Result.Regime.Label,
		Direction:  r.Result.Direction.Direction,
		Time:       time.Now().UTC(),
	}
	if err := u.publisher.PublishAnalysis(ctx, ev); err != nil {
		u.metrics.RecordError("analysis_publish")
		u.logger.Error("publish analysis failed",
			applogger.String("ticker", r.Ticker),
			applogger.String("analysis_id", r.AnalysisID),
			applogger.Error(err),
		)
	}
}

func lastBars(bars []models.Bar, n int) []models.Bar {
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	out := make([]models.Bar, len(bars))
	copy(out, bars)
	return out
}
