package risk

import (
	"github.com/shopspring/decimal"

	"MarketState/internal/domain/models"
)

// SizePosition derives the position size that risks RiskPerTradePct of the
// balance between entry and stop. Amounts are rounded to cents, units to 4 places.
func SizePosition(s models.Settings, entry, stop float64) models.PositionSize {
	balance := decimal.NewFromFloat(s.AccountBalance)
	riskPct := decimal.NewFromFloat(s.RiskPerTradePct)
	riskAmount := balance.Mul(riskPct).Div(decimal.NewFromInt(100))
	perUnit := decimal.NewFromFloat(entry).Sub(decimal.NewFromFloat(stop)).Abs()

	out := models.PositionSize{
		Balance:           s.AccountBalance,
		RiskAmount:        riskAmount.Round(2).InexactFloat64(),
		SuggestedLeverage: 1,
		RiskPct:           s.RiskPerTradePct,
	}
	if !perUnit.IsPositive() {
		return out
	}

	units := riskAmount.Div(perUnit)
	notional := units.Mul(decimal.NewFromFloat(entry))
	out.RecommendedUnits = units.Round(4).InexactFloat64()
	out.NotionalValue = notional.Round(2).InexactFloat64()
	if balance.IsPositive() {
		out.SuggestedLeverage = notional.Div(balance).Round(2).InexactFloat64()
	}
	return out
}
