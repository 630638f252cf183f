package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"MarketState/internal/domain/models"
	domrepo "MarketState/internal/domain/repository"
	domsvc "MarketState/internal/domain/service"
	"MarketState/internal/repository"
	"MarketState/internal/services/analytics"
	"MarketState/internal/services/engine"
	"MarketState/pkg/cache"
)

func mkTrend(n int, start, step float64) []models.Bar {
	bars := make([]models.Bar, n)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		c := start + step*float64(i)
		bars[i] = models.Bar{
			Time:   t0.AddDate(0, 0, i),
			Open:   c - step/2,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000 + float64(i%7)*50,
		}
	}
	return bars
}

type fakeMarket struct {
	mu     sync.Mutex
	series map[domrepo.Interval][]models.Bar
	errs   map[domrepo.Interval]error
	calls  []domrepo.Interval
}

func (f *fakeMarket) Bars(_ context.Context, _ string, iv domrepo.Interval) ([]models.Bar, error) {
	f.mu.Lock()
	f.calls = append(f.calls, iv)
	f.mu.Unlock()
	if err := f.errs[iv]; err != nil {
		return nil, err
	}
	bars, ok := f.series[iv]
	if !ok || len(bars) == 0 {
		return nil, domrepo.ErrNoData
	}
	return bars, nil
}

type fakeNews struct{}

func (fakeNews) TickerNews(_ context.Context, ticker string) []models.NewsItem {
	return []models.NewsItem{{Title: "Latest market analysis for " + ticker}}
}

func (fakeNews) EconomicCalendar(context.Context) []models.EconomicEvent {
	return []models.EconomicEvent{{Event: "CPI", Impact: "high"}, {Event: "PMI", Impact: "medium"}}
}

type fakeReasoner struct {
	mu    sync.Mutex
	model string
	mc    domsvc.MetaContext
	chat  string
}

func (r *fakeReasoner) MetaAnalysis(_ context.Context, model string, mc domsvc.MetaContext) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.model, r.mc = model, mc
	return `{"decision":"veto"}`
}

func (r *fakeReasoner) Chat(_ context.Context, model, question string, s models.ChatState) string {
	r.chat = fmt.Sprintf("%s|%s|%s", model, question, s.Ticker)
	return "answer"
}

type recordingPublisher struct {
	events []models.AnalysisEvent
	err    error
}

func (p *recordingPublisher) PublishAnalysis(_ context.Context, ev models.AnalysisEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	uc        *AnalyzeUsecase
	market    *fakeMarket
	reasoner  *fakeReasoner
	store     *repository.FileAnalysisStore
	publisher *recordingPublisher
	settings  *repository.CacheSettingsStore
}

func newFixture(t *testing.T, bars, htf []models.Bar) *fixture {
	t.Helper()
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })

	f := &fixture{
		market: &fakeMarket{series: map[domrepo.Interval][]models.Bar{
			domrepo.Interval1d:  bars,
			domrepo.Interval1wk: htf,
		}},
		reasoner:  &fakeReasoner{},
		store:     repository.NewFileAnalysisStore(filepath.Join(t.TempDir(), "analyses.json"), nil),
		publisher: &recordingPublisher{},
		settings:  repository.NewCacheSettingsStore(mem),
	}
	f.uc = NewAnalyzeUsecase(
		AnalyzeConfig{Primary: domrepo.Interval1d, Higher: domrepo.Interval1wk, DefaultModel: "llama3"},
		f.market, fakeNews{}, engine.New(analytics.NewRuleOracle()), f.reasoner,
		f.store, f.settings, f.publisher, nil, nil,
	)
	return f
}

func TestIsStock(t *testing.T) {
	cases := map[string]bool{
		"AAPL":    true,
		"GC=F":    false,
		"ES=F":    false,
		"BTC-USD": false,
		"ETH-USD": true,
	}
	for ticker, want := range cases {
		if got := IsStock(ticker); got != want {
			t.Errorf("IsStock(%q) = %v, want %v", ticker, got, want)
		}
	}
}

func TestAnalyzeEndToEnd(t *testing.T) {
	f := newFixture(t, mkTrend(260, 100, 0.5), mkTrend(60, 90, 2))
	ctx := context.Background()

	rep, err := f.uc.Analyze(ctx, models.AnalyzeRequest{Ticker: "AAPL"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if rep.CandleCount != 260 || len(rep.Candles) != 100 {
		t.Fatalf("candles: count=%d returned=%d", rep.CandleCount, len(rep.Candles))
	}
	if rep.Candles[99].Close != 100+0.5*259 {
		t.Errorf("last candle close = %v", rep.Candles[99].Close)
	}
	if rep.AnalysisID == "" {
		t.Fatal("analysis id not assigned")
	}
	if !rep.Result.IsStock {
		t.Error("AAPL should be a stock")
	}
	if rep.Summary == "" || rep.Summary == "No Data" {
		t.Errorf("summary = %q", rep.Summary)
	}
	if f.reasoner.model != "llama3" {
		t.Errorf("default model not applied: %q", f.reasoner.model)
	}
	if len(f.reasoner.mc.Events) != 2 {
		t.Errorf("events not passed to reasoner: %+v", f.reasoner.mc.Events)
	}
	if len(rep.News) != 1 || len(rep.Events) != 2 {
		t.Errorf("context: news=%d events=%d", len(rep.News), len(rep.Events))
	}

	wantRisk := models.DefaultSettings().AccountBalance * models.DefaultSettings().RiskPerTradePct / 100
	if rep.Risk.RiskAmount != wantRisk || rep.Risk.Balance != 10000 {
		t.Errorf("risk = %+v", rep.Risk)
	}

	recent, _ := f.store.Recent(ctx, 10)
	if len(recent) != 1 || recent[0].ID != rep.AnalysisID || recent[0].AIPrediction != `{"decision":"veto"}` {
		t.Fatalf("record not persisted: %+v", recent)
	}
	if recent[0].Indicators.CurrentPrice != 100+0.5*259 {
		t.Errorf("current price = %v", recent[0].Indicators.CurrentPrice)
	}

	if len(f.publisher.events) != 1 {
		t.Fatalf("want 1 event, got %d", len(f.publisher.events))
	}
	ev := f.publisher.events[0]
	if ev.Ticker != "AAPL" || ev.AnalysisID != rep.AnalysisID || ev.Current != rep.Result.State {
		t.Errorf("event = %+v", ev)
	}
}

func TestAnalyzeUsesSettingsAndFeedback(t *testing.T) {
	f := newFixture(t, mkTrend(120, 50, -0.2), nil)
	ctx := context.Background()
	if err := f.settings.Save(ctx, models.Settings{AccountBalance: 5000, RiskPerTradePct: 2, MaxLeverage: 3}); err != nil {
		t.Fatalf("settings: %v", err)
	}
	first, err := f.uc.Analyze(ctx, models.AnalyzeRequest{Ticker: "GC=F", Model: "mistral"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if first.Result.IsStock {
		t.Error("GC=F is not a stock")
	}
	if first.Risk.RiskAmount != 100 {
		t.Errorf("risk amount = %v, want 100", first.Risk.RiskAmount)
	}
	if err := f.store.UpdateFeedback(ctx, first.AnalysisID, true, "good call"); err != nil {
		t.Fatalf("feedback: %v", err)
	}

	if _, err := f.uc.Analyze(ctx, models.AnalyzeRequest{Ticker: "GC=F", Model: "mistral"}); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if f.reasoner.model != "mistral" {
		t.Errorf("model = %q", f.reasoner.model)
	}
	if len(f.reasoner.mc.Successful) != 1 || f.reasoner.mc.Successful[0].ID != first.AnalysisID {
		t.Errorf("feedback context missing: %+v", f.reasoner.mc.Successful)
	}
}

func TestAnalyzeNoData(t *testing.T) {
	f := newFixture(t, nil, mkTrend(10, 1, 1))
	_, err := f.uc.Analyze(context.Background(), models.AnalyzeRequest{Ticker: "NOPE"})
	if !errors.Is(err, domrepo.ErrNoData) {
		t.Fatalf("want ErrNoData, got %v", err)
	}
	if len(f.publisher.events) != 0 {
		t.Error("nothing should be published without data")
	}
}

func TestAnalyzeUpstreamError(t *testing.T) {
	f := newFixture(t, mkTrend(50, 10, 0.1), nil)
	f.market.errs = map[domrepo.Interval]error{domrepo.Interval1d: errors.New("timeout")}
	_, err := f.uc.Analyze(context.Background(), models.AnalyzeRequest{Ticker: "AAPL"})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("want ErrUpstream, got %v", err)
	}
}

func TestAnalyzePublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, mkTrend(80, 10, 0.1), nil)
	f.publisher.err = errors.New("broker down")
	rep, err := f.uc.Analyze(context.Background(), models.AnalyzeRequest{Ticker: "MSFT"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if rep.AnalysisID == "" {
		t.Error("analysis should still be saved")
	}
}

func TestAnalysesAndChat(t *testing.T) {
	f := newFixture(t, mkTrend(40, 10, 0.1), nil)
	ctx := context.Background()
	rep, err := f.uc.Analyze(ctx, models.AnalyzeRequest{Ticker: "AAPL"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	au := NewAnalysesUsecase(f.store)
	if err := au.Feedback(ctx, models.FeedbackRequest{AnalysisID: "missing"}); !errors.Is(err, domrepo.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := au.Feedback(ctx, models.FeedbackRequest{AnalysisID: rep.AnalysisID, Success: true}); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if err := au.Delete(ctx, rep.AnalysisID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if recs, _ := au.Recent(ctx, 50); len(recs) != 0 {
		t.Fatalf("want no records, got %d", len(recs))
	}

	cu := NewChatUsecase(f.reasoner, "llama3")
	if got := cu.Ask(ctx, models.ChatRequest{Question: "why?", State: models.ChatState{Ticker: "AAPL"}}); got != "answer" {
		t.Fatalf("answer = %q", got)
	}
	if f.reasoner.chat != "llama3|why?|AAPL" {
		t.Errorf("chat call = %q", f.reasoner.chat)
	}
}

func TestKafkaAnalyzeHandler(t *testing.T) {
	f := newFixture(t, mkTrend(60, 10, 0.1), nil)
	h := NewKafkaAnalyzeHandler("marketstate.analysis.requests", f.uc, nil, nil)
	if h.Topic() != "marketstate.analysis.requests" {
		t.Fatalf("topic = %s", h.Topic())
	}
	if err := h.Handle(context.Background(), []byte(`{"ticker":"AAPL"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(f.publisher.events) != 1 {
		t.Fatalf("want 1 event, got %d", len(f.publisher.events))
	}
	if err := h.Handle(context.Background(), []byte(`not json`)); err == nil {
		t.Fatal("malformed payload should fail")
	}

	empty := newFixture(t, nil, nil)
	h = NewKafkaAnalyzeHandler("t", empty.uc, nil, nil)
	if err := h.Handle(context.Background(), []byte(`{"ticker":"NOPE"}`)); err != nil {
		t.Fatalf("no-data requests are dropped, got %v", err)
	}
}
