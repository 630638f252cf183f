package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"MarketState/internal/domain/models"
	domsvc "MarketState/internal/domain/service"
)

func TestRuleOracle(t *testing.T) {
	cases := []struct {
		name       string
		mom, trend float64
		vol        float64
		regime     string
		conf       float64
		dir        string
		prob, ev   float64
	}{
		{"trend long", 0.5, 0.5, 0.2, models.RegimeTrend, 0.75, models.DirectionLong, 0.94, 2.30},
		{"flat range", 0, 0, 0.2, models.RegimeRange, 1, models.DirectionNeutral, 0.5, 0.25},
		{"high vol short", -0.5, -0.5, 0.8, models.RegimeHighVol, 0.8, models.DirectionShort, 0.88, 2.52},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := models.OracleRequest{Features: models.OracleFeatures{
				MomentumState: tc.mom, TrendState: tc.trend, VolatilityState: tc.vol,
			}}
			p, err := NewRuleOracle().Predict(context.Background(), req)
			if err != nil {
				t.Fatalf("Predict: %v", err)
			}
			if p.Regime.Label != tc.regime || p.Regime.Confidence != tc.conf {
				t.Fatalf("regime = %+v, want %s/%v", p.Regime, tc.regime, tc.conf)
			}
			d := p.Directional
			if d.Direction != tc.dir || d.Probability != tc.prob || d.ExpectedValue != tc.ev {
				t.Fatalf("direction = %+v", d)
			}
		})
	}
}

type failingOracle struct{ err error }

func (f failingOracle) Predict(context.Context, models.OracleRequest) (models.Prediction, error) {
	return models.Prediction{Regime: models.Regime{Label: "trend", Confidence: 0.9}}, f.err
}

type panickingOracle struct{}

func (panickingOracle) Predict(context.Context, models.OracleRequest) (models.Prediction, error) {
	panic("boom")
}

type slowOracle struct{}

func (slowOracle) Predict(ctx context.Context, _ models.OracleRequest) (models.Prediction, error) {
	<-ctx.Done()
	return models.Prediction{}, ctx.Err()
}

type countingMetrics struct {
	fallbacks int
}

func (m *countingMetrics) RecordBarsProcessed(int) {}
func (m *countingMetrics) RecordOracleFallback(string) { m.fallbacks++ }
func (m *countingMetrics) RecordError(string) {}
func (m *countingMetrics) RecordLatency(string, float64) {}
func (m *countingMetrics) RecordThroughput(float64) {}

func TestFallbackOracle(t *testing.T) {
	inner := map[string]domsvc.PredictionOracle{
		"error":   failingOracle{err: errors.New("unreachable")},
		"panic":   panickingOracle{},
		"timeout": slowOracle{},
		"nil":     nil,
	}
	for name, o := range inner {
		t.Run(name, func(t *testing.T) {
			m := &countingMetrics{}
			f := NewFallbackOracle(o, "test", 20*time.Millisecond, m, nil)
			p, err := f.Predict(context.Background(), models.OracleRequest{})
			if err != nil {
				t.Fatalf("fallback returned error: %v", err)
			}
			if p != models.NeutralPrediction() {
				t.Fatalf("prediction = %+v, want neutral defaults", p)
			}
			if m.fallbacks != 1 {
				t.Fatalf("fallbacks = %d, want 1", m.fallbacks)
			}
		})
	}
}

func TestFallbackOraclePassesThrough(t *testing.T) {
	m := &countingMetrics{}
	f := NewFallbackOracle(NewRuleOracle(), "rules", time.Second, m, nil)
	p, _ := f.Predict(context.Background(), models.OracleRequest{})
	if p.Regime.Label != models.RegimeRange || m.fallbacks != 0 {
		t.Fatalf("unexpected fallback: %+v", p)
	}
}

const oracleReply = `{"regime_model":{"regime":"trend","confidence":0.8},"directional_model":{"direction":"long","probability":0.7,"expected_r":2.5,"expected_value":0.75,"signal_strength":0.6}}`

func TestHTTPOracle(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path != "/predict" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req models.OracleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Features.RSI != 61 {
			t.Errorf("bad payload: %v %+v", err, req)
		}
		_, _ = w.Write([]byte(oracleReply))
	}))
	defer srv.Close()

	o := NewHTTPOracle(srv.URL, "/predict", time.Second, 2)
	p, err := o.Predict(context.Background(), models.OracleRequest{Features: models.OracleFeatures{RSI: 61}})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if p.Regime.Label != "trend" || p.Directional.Direction != "long" || p.Directional.SignalStrength != 0.6 {
		t.Fatalf("prediction = %+v", p)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestPostJSONWithRetryDiscardsFailedAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// label decodes, score does not
			_, _ = w.Write([]byte(`{"label":"stale","score":"high"}`))
			return
		}
		_, _ = w.Write([]byte(`{"score":0.7}`))
	}))
	defer srv.Close()

	var out struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	b := NewHTTPServiceBase(srv.URL, time.Second)
	if err := b.PostJSONWithRetry(context.Background(), "/x", map[string]int{}, &out, 2); err != nil {
		t.Fatalf("PostJSONWithRetry: %v", err)
	}
	if out.Label != "" || out.Score != 0.7 {
		t.Fatalf("out = %+v, want only the second reply", out)
	}

	if err := b.PostJSONWithRetry(context.Background(), "/x", nil, out, 2); err == nil {
		t.Fatal("non-pointer dest must fail")
	}
}

func TestHTTPOracleMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"missing directional": `{"regime_model":{"regime":"trend","confidence":0.8}}`,
		"error field":         `{"error":"model not loaded"}`,
		"not json":            `<html>`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()
			if _, err := NewHTTPOracle(srv.URL, "", time.Second, 0).Predict(context.Background(), models.OracleRequest{}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestExecOracle(t *testing.T) {
	o := NewExecOracle([]string{"sh", "-c", "cat >/dev/null; echo '" + oracleReply + "'"}, time.Second)
	p, err := o.Predict(context.Background(), models.OracleRequest{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if p.Directional.ExpectedR != 2.5 {
		t.Fatalf("prediction = %+v", p)
	}

	bad := NewExecOracle([]string{"sh", "-c", "exit 3"}, time.Second)
	if _, err := bad.Predict(context.Background(), models.OracleRequest{}); err == nil {
		t.Fatalf("expected error from failing command")
	}
}

func TestOllamaReasoner(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		got = generateRequest{}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"response":"{\"decision\":\"veto\"}"}`))
	}))
	defer srv.Close()

	r := NewOllamaReasoner(srv.URL, "llama3", time.Second, nil)
	mc := domsvc.MetaContext{
		Ticker: "AAPL",
		Events: []models.EconomicEvent{{Event: "CPI", Impact: "high"}, {Event: "PMI", Impact: "medium"}},
	}
	out := r.MetaAnalysis(context.Background(), "", mc)
	if out != `{"decision":"veto"}` {
		t.Fatalf("output = %q", out)
	}
	if got.Model != "llama3" || got.Format != "json" || got.Stream {
		t.Fatalf("request = %+v", got)
	}

	if answer := r.Chat(context.Background(), "m", "why?", models.ChatState{Ticker: "BTC-USD"}); answer != `{"decision":"veto"}` {
		t.Fatalf("chat answer = %q", answer)
	}
	if got.Format != "" {
		t.Fatalf("chat must not force json format")
	}
}

func TestOllamaReasonerFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"done":true}`))
	}))
	defer srv.Close()

	r := NewOllamaReasoner(srv.URL, "llama3", time.Second, nil)
	if out := r.MetaAnalysis(context.Background(), "", domsvc.MetaContext{}); out != metaAnalysisFailed {
		t.Fatalf("meta = %q", out)
	}
	if out := r.Chat(context.Background(), "", "q", models.ChatState{}); out != chatFailed {
		t.Fatalf("chat = %q", out)
	}
}

func TestMetaContextJSON(t *testing.T) {
	mc := domsvc.MetaContext{
		Result: models.AnalysisResult{
			Regime:     models.Regime{Label: "range"},
			Indicators: models.Indicators{RSI: 44, HTFRSI: 51},
		},
		Events: []models.EconomicEvent{{Event: "FOMC", Impact: "high"}},
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(MetaContextJSON(mc)), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	ind := decoded["indicators"].(map[string]interface{})
	if ind["RSI"] != 44.0 || ind["HTF_RSI"] != 51.0 {
		t.Fatalf("indicators = %v", ind)
	}
	if ev := decoded["events"].([]interface{}); len(ev) != 1 || ev[0] != "FOMC" {
		t.Fatalf("events = %v", ev)
	}
}

func TestFeedbackContext(t *testing.T) {
	if FeedbackContext(nil, nil) != "" {
		t.Fatalf("empty history must give empty context")
	}
	ok := []models.AnalysisRecord{{Ticker: "AAPL", Feedback: models.Feedback{Submitted: true, Success: true, Remark: "clean breakout"}}}
	got := FeedbackContext(ok, nil)
	if want := "Past analyses that worked:\n- AAPL  RSI=0.0 ADX=0.0 remark=\"clean breakout\""; got != want {
		t.Fatalf("context = %q, want %q", got, want)
	}
}
