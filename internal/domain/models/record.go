package models

// RecordTimeLayout formats AnalysisRecord.Timestamp in local time.
const RecordTimeLayout = "2006-01-02 15:04:05"

type Feedback struct {
	Submitted bool   `json:"submitted"`
	Success   bool   `json:"success"`
	Remark    string `json:"remark"`
}

// RecordIndicators is the indicator subset persisted with every analysis.
type RecordIndicators struct {
	Indicators
	CurrentPrice float64 `json:"current_price"`
	IsStock      bool    `json:"is_stock"`
}

// AnalysisRecord is one persisted analysis. ID and Timestamp are assigned by the store.
type AnalysisRecord struct {
	ID           string           `json:"id"`
	Timestamp    string           `json:"timestamp"`
	Ticker       string           `json:"ticker"`
	Model        string           `json:"model"`
	Indicators   RecordIndicators `json:"indicators"`
	Levels       RiskLevels       `json:"trading_levels"`
	AIPrediction string           `json:"ai_prediction"`
	StateHistory []StatePoint     `json:"state_history"`
	Feedback     Feedback         `json:"feedback"`
}

// NewAnalysisRecord captures the persisted view of an engine result.
func NewAnalysisRecord(ticker, model string, price float64, res AnalysisResult, prediction string) AnalysisRecord {
	return AnalysisRecord{
		Ticker: ticker,
		Model:  model,
		Indicators: RecordIndicators{
			Indicators:   res.Indicators,
			CurrentPrice: price,
			IsStock:      res.IsStock,
		},
		Levels:       res.Levels,
		AIPrediction: prediction,
		StateHistory: res.History,
	}
}
