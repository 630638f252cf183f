package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"MarketState/internal/domain/models"
	domrepo "MarketState/internal/domain/repository"
	pkgkafka "MarketState/pkg/kafka"
	applogger "MarketState/pkg/logger"
)

// KafkaAnalyzeHandler consumes analysis requests and runs them through the analyze use case.
type KafkaAnalyzeHandler struct {
	topic   string
	analyze *AnalyzeUsecase
	metrics domrepo.Metrics
	logger  *applogger.Logger
}

func NewKafkaAnalyzeHandler(topic string, analyze *AnalyzeUsecase, metrics domrepo.Metrics, l *applogger.Logger) *KafkaAnalyzeHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaAnalyzeHandler{topic: topic, analyze: analyze, metrics: metrics, logger: l}
}

func (h *KafkaAnalyzeHandler) Topic() string { return h.topic }

// incoming message schema: {ticker, model}
func (h *KafkaAnalyzeHandler) Handle(ctx context.Context, b []byte) error {
	var req models.AnalyzeRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	start := time.Now()
	report, err := h.analyze.Analyze(ctx, req)
	h.metrics.RecordLatency("kafka_analysis", time.Since(start).Seconds())
	if errors.Is(err, domrepo.ErrNoData) {
		// retrying cannot produce bars; drop the request
		h.logger.Warn("analysis request without data",
			applogger.String("ticker", req.Ticker),
			applogger.String("trace_id", pkgkafka.TraceID(ctx)),
		)
		return nil
	}
	if err != nil {
		h.metrics.RecordError("consumer_analysis")
		return err
	}
	h.logger.Info("analysis request handled",
		applogger.String("ticker", report.Ticker),
		applogger.String("analysis_id", report.AnalysisID),
		applogger.String("trace_id", pkgkafka.TraceID(ctx)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaAnalyzeHandler)(nil)
