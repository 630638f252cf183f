package repository

import (
	"context"
	"errors"

	"MarketState/internal/domain/models"
)

var (
	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoData is returned when a provider has no bars for a ticker.
	ErrNoData = errors.New("no data")
)

// MarketData provides bar series for a ticker at a given interval.
type MarketData interface {
	Bars(ctx context.Context, ticker string, interval Interval) ([]models.Bar, error)
}

// NewsSource provides headlines and the economic calendar.
type NewsSource interface {
	TickerNews(ctx context.Context, ticker string) []models.NewsItem
	EconomicCalendar(ctx context.Context) []models.EconomicEvent
}

type AnalysisStore interface {
	Save(ctx context.Context, rec models.AnalysisRecord) (string, error)
	Recent(ctx context.Context, limit int) ([]models.AnalysisRecord, error)
	UpdateFeedback(ctx context.Context, id string, success bool, remark string) error
	Delete(ctx context.Context, id string) error
	Successful(ctx context.Context, limit int) ([]models.AnalysisRecord, error)
	Failed(ctx context.Context, limit int) ([]models.AnalysisRecord, error)
	Close() error
}

type SettingsStore interface {
	Get(ctx context.Context) (models.Settings, error)
	Save(ctx context.Context, s models.Settings) error
}

// MACDStateStore keeps incremental MACD state per (ticker, interval).
type MACDStateStore interface {
	Load(ctx context.Context, key string) (*models.MACDSnapshot, error)
	Store(ctx context.Context, key string, snap models.MACDSnapshot) error
}

// EventPublisher emits completed analyses to downstream consumers.
type EventPublisher interface {
	PublishAnalysis(ctx context.Context, ev models.AnalysisEvent) error
	Close() error
}

type Metrics interface {
	RecordBarsProcessed(n int)
	RecordOracleFallback(mode string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordThroughput(barsPerSecond float64)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RecordBarsProcessed(int) {}
func (NopMetrics) RecordOracleFallback(string) {}
func (NopMetrics) RecordError(string) {}
func (NopMetrics) RecordLatency(string, float64) {}
func (NopMetrics) RecordThroughput(float64) {}

var _ Metrics = NopMetrics{}
