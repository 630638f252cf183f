package analytics

import (
	"context"
	"fmt"
	"time"

	"MarketState/internal/domain/models"
	"MarketState/internal/domain/repository"
	domsvc "MarketState/internal/domain/service"
	applogger "MarketState/pkg/logger"
)

// FallbackOracle wraps another oracle and substitutes the neutral prediction on
// any error, panic or timeout. Its Predict never returns an error.
type FallbackOracle struct {
	next    domsvc.PredictionOracle
	mode    string
	timeout time.Duration
	metrics repository.Metrics
	logger  *applogger.Logger
}

func NewFallbackOracle(next domsvc.PredictionOracle, mode string, timeout time.Duration, m repository.Metrics, l *applogger.Logger) *FallbackOracle {
	if m == nil {
		m = repository.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &FallbackOracle{next: next, mode: mode, timeout: timeout, metrics: m, logger: l}
}

func (o *FallbackOracle) Predict(ctx context.Context, req models.OracleRequest) (models.Prediction, error) {
	start := time.Now()
	pred, err := o.call(ctx, req)
	o.metrics.RecordLatency("oracle_"+o.mode, time.Since(start).Seconds())
	if err != nil {
		o.metrics.RecordOracleFallback(o.mode)
		o.logger.Warn("oracle unavailable, using neutral prediction",
			applogger.String("mode", o.mode),
			applogger.Duration("duration_ms", time.Since(start)),
			applogger.Error(err),
		)
		return models.NeutralPrediction(), nil
	}
	return pred, nil
}

func (o *FallbackOracle) call(ctx context.Context, req models.OracleRequest) (pred models.Prediction, err error) {
	if o.next == nil {
		return pred, fmt.Errorf("no oracle configured")
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("oracle panic: %v", r)
		}
	}()
	return o.next.Predict(ctx, req)
}

var _ domsvc.PredictionOracle = (*FallbackOracle)(nil)
