package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	drepo "MarketState/internal/domain/repository"
	"MarketState/pkg/cache"
	xhttp "MarketState/pkg/http"
)

const chartBody = `{"chart":{"result":[{
  "timestamp":[1704067200,1704153600,1704240000,1704326400],
  "indicators":{"quote":[{
    "open":  [10, null, 12, 13],
    "high":  [11, 12,   null, 14],
    "low":   [9,  10,   11, 12],
    "close": [10.5, 11, 12.5, null],
    "volume":[100, 200, null, 400]
  }]}
}],"error":null}}`

func newServer(t *testing.T, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path != "/v8/finance/chart/GC=F" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("interval") != "1d" || r.URL.Query().Get("range") != "3mo" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBars_ParsesAndSkipsNulls(t *testing.T) {
	var hits int32
	srv := newServer(t, chartBody, &hits)
	c := New(srv.URL, "3mo", "test-agent", time.Second)

	bars, err := c.Bars(context.Background(), "GC=F", drepo.Interval1d)
	if err != nil {
		t.Fatalf("bars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("want 2 bars (null open and null close skipped), got %d", len(bars))
	}
	if bars[0].Close != 10.5 || bars[0].Volume != 100 || !bars[0].Time.Equal(time.Unix(1704067200, 0)) {
		t.Fatalf("bar0 = %+v", bars[0])
	}
	// third sample: null high falls back to max(open, close), null volume to 0
	if bars[1].High != 12.5 || bars[1].Volume != 0 {
		t.Fatalf("bar1 = %+v", bars[1])
	}
}

func TestBars_CachedPerTickerAndInterval(t *testing.T) {
	var hits int32
	srv := newServer(t, chartBody, &hits)
	mc := cache.NewMemoryCache()
	defer mc.Close()
	c := New(srv.URL, "3mo", "test-agent", time.Second, WithCache(mc, time.Minute))

	for i := 0; i < 3; i++ {
		bars, err := c.Bars(context.Background(), "GC=F", drepo.Interval1d)
		if err != nil || len(bars) != 2 {
			t.Fatalf("bars=%d err=%v", len(bars), err)
		}
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("upstream hits = %d, want 1", hits)
	}
}

func TestBars_EmptyAndErrors(t *testing.T) {
	var hits int32
	empty := newServer(t, `{"chart":{"result":[{"timestamp":[],"indicators":{"quote":[{}]}}],"error":null}}`, &hits)
	c := New(empty.URL, "3mo", "test-agent", time.Second)
	if _, err := c.Bars(context.Background(), "GC=F", drepo.Interval1d); !errors.Is(err, drepo.ErrNoData) {
		t.Fatalf("empty series: err = %v", err)
	}

	bad := newServer(t, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, &hits)
	c = New(bad.URL, "3mo", "test-agent", time.Second)
	if _, err := c.Bars(context.Background(), "GC=F", drepo.Interval1d); err == nil || errors.Is(err, drepo.ErrNoData) {
		t.Fatalf("chart error should surface, got %v", err)
	}
}

func TestBars_UnknownSymbolIsNoData(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "3mo", "test-agent", time.Second)
	if _, err := c.Bars(context.Background(), "NOPE", drepo.Interval1d); !errors.Is(err, drepo.ErrNoData) {
		t.Fatalf("404: err = %v, want ErrNoData", err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(down.Close)
	c = New(down.URL, "3mo", "test-agent", time.Second)
	_, err := c.Bars(context.Background(), "AAPL", drepo.Interval1d)
	var se *xhttp.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
		t.Fatalf("502: err = %v", err)
	}
}
