package analytics

import (
	"context"
	"fmt"
	"time"

	"MarketState/internal/domain/models"
	domsvc "MarketState/internal/domain/service"
)

// HTTPOracle posts the feature payload to a model service.
type HTTPOracle struct {
	base     *HTTPServiceBase
	path     string
	attempts int
}

func NewHTTPOracle(url, path string, timeout time.Duration, retries int) *HTTPOracle {
	return &HTTPOracle{base: NewHTTPServiceBase(url, timeout), path: path, attempts: retries + 1}
}

func (o *HTTPOracle) Predict(ctx context.Context, req models.OracleRequest) (models.Prediction, error) {
	var resp models.OracleResponse
	if err := o.base.PostJSONWithRetry(ctx, o.path, req, &resp, o.attempts); err != nil {
		return models.Prediction{}, fmt.Errorf("post oracle: %w", err)
	}
	return resp.Prediction()
}

var _ domsvc.PredictionOracle = (*HTTPOracle)(nil)
