// Package finnhub provides ticker news and the economic calendar.
package finnhub

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"MarketState/internal/domain/models"
	drepo "MarketState/internal/domain/repository"
	xhttp "MarketState/pkg/http"
	applogger "MarketState/pkg/logger"
)

const (
	dateLayout   = "2006-01-02"
	calendarDays = 7
)

// Client implements repository.NewsSource. Failures never propagate: the
// caller always gets a (possibly empty) list.
type Client struct {
	http      *xhttp.Client
	baseURL   string
	apiKey    string
	maxEvents int
	now       func() time.Time
	log       *applogger.Logger
}

// New creates a client for the Finnhub REST API.
func New(baseURL, apiKey string, maxEvents int, timeout time.Duration, l *applogger.Logger) *Client {
	if l == nil {
		l = applogger.Nop()
	}
	if maxEvents <= 0 {
		maxEvents = 10
	}
	return &Client{
		http:      xhttp.NewClient(xhttp.WithTimeout(timeout)),
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		maxEvents: maxEvents,
		now:       time.Now,
		log:       l,
	}
}

var _ drepo.NewsSource = (*Client)(nil)

// TickerNews returns a single pointer to the ticker's quote page.
func (c *Client) TickerNews(_ context.Context, ticker string) []models.NewsItem {
	return []models.NewsItem{{
		Title:       "Latest market analysis for " + ticker,
		Source:      "Yahoo Finance",
		PublishedAt: c.now().Format(dateLayout),
		Summary:     "Technical and fundamental analysis available",
		URL:         "https://finance.yahoo.com/quote/" + ticker,
	}}
}

type calendarResponse struct {
	EconomicCalendar []struct {
		Event    string          `json:"event"`
		Country  string          `json:"country"`
		Time     string          `json:"time"`
		Impact   string          `json:"impact"`
		Actual   json.RawMessage `json:"actual"`
		Estimate json.RawMessage `json:"estimate"`
		Prev     json.RawMessage `json:"prev"`
	} `json:"economicCalendar"`
}

// EconomicCalendar returns up to maxEvents high or medium impact events for
// the next week. A missing impact counts as medium.
func (c *Client) EconomicCalendar(ctx context.Context) []models.EconomicEvent {
	if c.apiKey == "" {
		c.log.Debug("finnhub api key not set, skipping economic calendar")
		return []models.EconomicEvent{}
	}
	now := c.now()
	var resp calendarResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/calendar/economic",
		QueryParams: map[string][]string{
			"from":  {now.Format(dateLayout)},
			"to":    {now.AddDate(0, 0, calendarDays).Format(dateLayout)},
			"token": {c.apiKey},
		},
	}, &resp)
	if err != nil {
		c.log.Warn("finnhub economic calendar failed", applogger.Error(err))
		return []models.EconomicEvent{}
	}

	out := make([]models.EconomicEvent, 0, c.maxEvents)
	for _, it := range resp.EconomicCalendar {
		if len(out) >= c.maxEvents {
			break
		}
		impact := strings.ToLower(it.Impact)
		if impact == "" {
			impact = "medium"
		}
		if impact != "high" && impact != "medium" {
			continue
		}
		name := it.Event
		if name == "" {
			name = "Unknown Event"
		}
		out = append(out, models.EconomicEvent{
			Event:    name,
			Country:  it.Country,
			Time:     it.Time,
			Impact:   impact,
			Actual:   rawString(it.Actual),
			Estimate: rawString(it.Estimate),
			Previous: rawString(it.Prev),
		})
	}
	return out
}

// rawString renders a JSON scalar as text; null becomes "".
func rawString(r json.RawMessage) string {
	r = bytes.TrimSpace(r)
	if len(r) == 0 || bytes.Equal(r, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(r, &s); err == nil {
		return s
	}
	return string(r)
}
