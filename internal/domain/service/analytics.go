package service

import (
	"context"

	"MarketState/internal/domain/models"
)

// PredictionOracle classifies the regime and predicts direction from a feature payload.
type PredictionOracle interface {
	Predict(ctx context.Context, req models.OracleRequest) (models.Prediction, error)
}

// Reasoner produces natural-language analysis from engine output.
type Reasoner interface {
	MetaAnalysis(ctx context.Context, model string, mc MetaContext) string
	Chat(ctx context.Context, model, question string, state models.ChatState) string
}

// MetaContext is the structured context handed to the reasoner for one analysis.
type MetaContext struct {
	Ticker     string
	Result     models.AnalysisResult
	Events     []models.EconomicEvent
	Successful []models.AnalysisRecord
	Failed     []models.AnalysisRecord
}
