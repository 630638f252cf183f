package engine

import (
	"fmt"
	"strings"

	"MarketState/internal/domain/models"
)

// MarketSummary formats the headline figures of an analysis as fixed-order text lines.
func MarketSummary(bars []models.Bar, r models.AnalysisResult) string {
	if len(bars) == 0 {
		return "No Data"
	}
	var sb strings.Builder
	sb.WriteString("### Technical Summary ###\n")
	fmt.Fprintf(&sb, "Regime: %s (%d%%)\n", r.Regime.Label, int(r.Regime.Confidence*100))
	fmt.Fprintf(&sb, "ML Prediction: %s (Prob: %.2f)\n", r.Direction.Direction, r.Direction.Probability)
	fmt.Fprintf(&sb, "RSI: %.2f | MACD: %.2f\n", r.Indicators.RSI, r.Indicators.MACD)
	fmt.Fprintf(&sb, "ADX: %.2f | Bollinger Width: %.2f\n", r.Indicators.ADX, r.Indicators.BollWidth)
	fmt.Fprintf(&sb, "SMA 50/200: %.2f / %.2f\n", r.Indicators.SMA50, r.Indicators.SMA200)
	fmt.Fprintf(&sb, "Momentum State: %.2f | Trend State: %.2f\n", r.State.Momentum, r.State.Trend)
	fmt.Fprintf(&sb, "Vol State: %.2f | Exp. Value: %.2f\n", r.State.Volatility, r.Direction.ExpectedValue)
	return sb.String()
}
