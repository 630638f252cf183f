// Package yahoo fetches OHLCV bars from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"MarketState/internal/domain/models"
	drepo "MarketState/internal/domain/repository"
	"MarketState/pkg/cache"
	xhttp "MarketState/pkg/http"
	applogger "MarketState/pkg/logger"
)

// Client implements repository.MarketData.
type Client struct {
	http      *xhttp.Client
	baseURL   string
	rng       string
	userAgent string
	cache     cache.Service
	ttl       time.Duration
	log       *applogger.Logger
}

type Option func(*Client)

// WithCache caches parsed series per (ticker, interval) for ttl.
func WithCache(c cache.Service, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		cl.ttl = ttl
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.log = l
		}
	}
}

// New creates a chart client. rng is the lookback window, e.g. "3mo".
func New(baseURL, rng, userAgent string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http:      xhttp.NewClient(xhttp.WithTimeout(timeout)),
		baseURL:   strings.TrimRight(baseURL, "/"),
		rng:       rng,
		userAgent: userAgent,
		log:       applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ drepo.MarketData = (*Client)(nil)

// Bars returns the series oldest first. An empty series is reported as
// repository.ErrNoData and is not cached.
func (c *Client) Bars(ctx context.Context, ticker string, interval drepo.Interval) ([]models.Bar, error) {
	key := cache.GenerateKeyWithParams("bars", ticker, interval, c.rng)
	return cache.GetOrLoad(ctx, c.cache, key, c.ttl, func(ctx context.Context) ([]models.Bar, error) {
		start := time.Now()
		bars, err := c.fetch(ctx, ticker, interval)
		if err != nil {
			c.log.Warn("yahoo chart fetch failed",
				applogger.String("ticker", ticker),
				applogger.String("interval", string(interval)),
				applogger.Error(err),
			)
			return nil, err
		}
		c.log.Debug("yahoo chart fetched",
			applogger.String("ticker", ticker),
			applogger.String("interval", string(interval)),
			applogger.Int("bars", len(bars)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
		if len(bars) == 0 {
			return nil, drepo.ErrNoData
		}
		return bars, nil
	})
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *Client) fetch(ctx context.Context, ticker string, interval drepo.Interval) ([]models.Bar, error) {
	var resp chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/v8/finance/chart/" + url.PathEscape(ticker),
		Headers: map[string]string{
			"User-Agent": c.userAgent,
			"Accept":     "application/json",
		},
		QueryParams: map[string][]string{
			"range":    {c.rng},
			"interval": {string(interval)},
		},
	}, &resp)
	var se *xhttp.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		// Unknown symbol.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chart %s: %w", ticker, err)
	}
	return resp.bars()
}

// bars skips samples with a null open or close; a null volume counts as 0
// and a null high or low falls back to the larger or smaller of open and close.
func (r chartResponse) bars() ([]models.Bar, error) {
	if e := r.Chart.Error; e != nil {
		return nil, fmt.Errorf("chart error %s: %s", e.Code, e.Description)
	}
	if len(r.Chart.Result) == 0 || len(r.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}
	res := r.Chart.Result[0]
	q := res.Indicators.Quote[0]

	out := make([]models.Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		open, okO := at(q.Open, i)
		closePx, okC := at(q.Close, i)
		if !okO || !okC {
			continue
		}
		high, ok := at(q.High, i)
		if !ok {
			high = max(open, closePx)
		}
		low, ok := at(q.Low, i)
		if !ok {
			low = min(open, closePx)
		}
		vol, _ := at(q.Volume, i)
		out = append(out, models.Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePx,
			Volume: vol,
		})
	}
	return out, nil
}

func at(vals []*float64, i int) (float64, bool) {
	if i >= len(vals) || vals[i] == nil {
		return 0, false
	}
	return *vals[i], true
}
