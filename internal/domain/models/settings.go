package models

// Settings are the user's account parameters used for position sizing.
type Settings struct {
	AccountBalance  float64 `json:"account_balance" default:"10000" validate:"gt=0"`
	RiskPerTradePct float64 `json:"risk_per_trade_pct" default:"1.0" validate:"gt=0,lte=100"`
	MaxLeverage     int     `json:"max_leverage" default:"10" validate:"gte=1,lte=125"`
}

func DefaultSettings() Settings {
	return Settings{AccountBalance: 10000, RiskPerTradePct: 1.0, MaxLeverage: 10}
}

// PositionSize is the sizing recommendation derived from Settings and risk levels.
type PositionSize struct {
	Balance           float64 `json:"balance"`
	RiskAmount        float64 `json:"risk_amount"`
	RecommendedUnits  float64 `json:"recommended_units"`
	NotionalValue     float64 `json:"notional_value"`
	SuggestedLeverage float64 `json:"suggested_leverage"`
	RiskPct           float64 `json:"risk_pct"`
}
