package models

// Requests for the HTTP and Kafka entry points. Tags drive defaults and validation.

type AnalyzeRequest struct {
	Ticker string `json:"ticker" default:"AAPL" validate:"required,max=32"`
	Model  string `json:"model"`
}

type RecentAnalysesRequest struct {
	Limit int `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type FeedbackRequest struct {
	AnalysisID string `json:"analysis_id" validate:"required"`
	Success    bool   `json:"success"`
	Remark     string `json:"remark" validate:"max=2000"`
}

type ChatState struct {
	Ticker     string  `json:"ticker"`
	Momentum   float64 `json:"momentum"`
	Trend      float64 `json:"trend"`
	Volatility float64 `json:"volatility"`
	Regime     string  `json:"regime"`
}

type ChatRequest struct {
	Question string    `json:"question" validate:"required"`
	Model    string    `json:"model"`
	State    ChatState `json:"state"`
}
