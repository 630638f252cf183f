package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"MarketState/internal/domain/models"
	domsvc "MarketState/internal/domain/service"
	applogger "MarketState/pkg/logger"
)

const (
	metaAnalysisFailed = "Error: Meta-Analysis failed."
	chatFailed         = "Error: Chat failed."
)

const metaAnalystPrompt = `You are the Meta-Analyst, a trading strategist reviewing the output of a regime classifier and a directional model.

Work through these steps:
1. Regime: judge the label and its confidence, and look for signs of a transition.
2. Timeframes: compare the higher-timeframe RSI with the primary RSI and note any divergence.
3. Indicators: weigh RSI, ADX, SMA distance, ROC and VWAP distance together.
4. Risks: extreme RSI (above 80 or below 20), volatility spikes, high-impact calendar events.
5. Model check: a probability above 60% and expected R above 1.5 are needed for high confidence.
6. Contradictions: veto a long with RSI above 85, a short with RSI below 15, or a signal against the higher timeframe.

INPUT DATA (JSON):
`

const metaAnalystOutput = `

OUTPUT FORMAT (strict JSON, no markdown):
{
  "decision": "trade_allowed" | "veto",
  "confidence": 0.0-1.0,
  "reason": "regime, timeframe alignment, indicators, risks and verdict",
  "htf_confirmation": "confirmed" | "not_confirmed" | "divergent",
  "annotation": "at most two sentences",
  "risk_level": "low" | "medium" | "high",
  "regime_alignment": "perfect" | "good" | "weak" | "contradictory",
  "key_factors": ["3-5 factors"],
  "warnings": ["empty if none"]
}`

// OllamaReasoner produces natural-language analysis through an Ollama server.
type OllamaReasoner struct {
	base         *HTTPServiceBase
	defaultModel string
	logger       *applogger.Logger
}

func NewOllamaReasoner(url, defaultModel string, timeout time.Duration, l *applogger.Logger) *OllamaReasoner {
	if l == nil {
		l = applogger.Nop()
	}
	return &OllamaReasoner{base: NewHTTPServiceBase(url, timeout), defaultModel: defaultModel, logger: l}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response *string `json:"response"`
}

func (r *OllamaReasoner) generate(ctx context.Context, req generateRequest) (string, error) {
	if req.Model == "" {
		req.Model = r.defaultModel
	}
	var resp generateResponse
	if err := r.base.PostJSON(ctx, "/api/generate", req, &resp); err != nil {
		return "", err
	}
	if resp.Response == nil {
		return "", fmt.Errorf("ollama response has no 'response' field")
	}
	return *resp.Response, nil
}

type metaIndicators struct {
	RSI      float64 `json:"RSI"`
	HTFRSI   float64 `json:"HTF_RSI"`
	ADX      float64 `json:"ADX"`
	SMADist  float64 `json:"SMA_Dist"`
	ROC20    float64 `json:"ROC_20"`
	VWAPDist float64 `json:"VWAP_Dist"`
}

type metaDirection struct {
	Direction   string  `json:"direction"`
	Probability float64 `json:"probability"`
}

type metaPayload struct {
	Regime      string         `json:"regime"`
	Directional metaDirection  `json:"directional_model"`
	Indicators  metaIndicators `json:"indicators"`
	Events      []string       `json:"events"`
}

// MetaContextJSON renders the structured context block sent to the model.
func MetaContextJSON(mc domsvc.MetaContext) string {
	res := mc.Result
	p := metaPayload{
		Regime: res.Regime.Label,
		Directional: metaDirection{
			Direction:   res.Direction.Direction,
			Probability: res.Direction.Probability,
		},
		Indicators: metaIndicators{
			RSI:      res.Indicators.RSI,
			HTFRSI:   res.Indicators.HTFRSI,
			ADX:      res.Indicators.ADX,
			SMADist:  res.Indicators.SMADistancePct,
			ROC20:    res.Indicators.ROC20,
			VWAPDist: res.Indicators.VWAPDist,
		},
		Events: []string{},
	}
	for _, e := range mc.Events {
		if e.Impact == "high" {
			p.Events = append(p.Events, e.Event)
		}
	}
	b, _ := json.Marshal(p)
	return string(b)
}

// FeedbackContext summarizes past graded analyses so the model can learn from them.
func FeedbackContext(successful, failed []models.AnalysisRecord) string {
	if len(successful) == 0 && len(failed) == 0 {
		return ""
	}
	var sb strings.Builder
	write := func(title string, recs []models.AnalysisRecord) {
		if len(recs) == 0 {
			return
		}
		sb.WriteString(title)
		sb.WriteString(":\n")
		for _, rec := range recs {
			fmt.Fprintf(&sb, "- %s %s RSI=%.1f ADX=%.1f", rec.Ticker, rec.Timestamp, rec.Indicators.RSI, rec.Indicators.ADX)
			if rec.Feedback.Remark != "" {
				fmt.Fprintf(&sb, " remark=%q", rec.Feedback.Remark)
			}
			sb.WriteString("\n")
		}
	}
	write("Past analyses that worked", successful)
	write("Past analyses that failed", failed)
	return strings.TrimRight(sb.String(), "\n")
}

func (r *OllamaReasoner) MetaAnalysis(ctx context.Context, model string, mc domsvc.MetaContext) string {
	prompt := metaAnalystPrompt + MetaContextJSON(mc)
	if fc := FeedbackContext(mc.Successful, mc.Failed); fc != "" {
		prompt += "\n\nCONTEXT & EVENTS:\n" + fc
	}
	prompt += metaAnalystOutput

	start := time.Now()
	out, err := r.generate(ctx, generateRequest{Model: model, Prompt: prompt, Format: "json"})
	if err != nil {
		r.logger.Error("meta-analysis failed",
			applogger.String("ticker", mc.Ticker),
			applogger.String("model", model),
			applogger.Duration("duration_ms", time.Since(start)),
			applogger.Error(err),
		)
		return metaAnalysisFailed
	}
	r.logger.Info("meta-analysis done",
		applogger.String("ticker", mc.Ticker),
		applogger.String("model", model),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out
}

// ChatSystemPrompt explains the three state axes as a physical landscape.
func ChatSystemPrompt(s models.ChatState) string {
	ticker := s.Ticker
	if ticker == "" {
		ticker = "Unknown"
	}
	regime := s.Regime
	if regime == "" {
		regime = models.DirectionNeutral
	}
	var sb strings.Builder
	sb.WriteString("You are a market physicist. You explain market states with the 'Market Potential Field' model.\n")
	fmt.Fprintf(&sb, "Current state for %s:\n", ticker)
	fmt.Fprintf(&sb, "- Momentum (direction): %g (range -1 to 1)\n", s.Momentum)
	fmt.Fprintf(&sb, "- Trend energy (depth): %g (range -1 to 1)\n", s.Trend)
	fmt.Fprintf(&sb, "- Volatility (entropy): %g (range 0 to 1)\n", s.Volatility)
	fmt.Fprintf(&sb, "- Regime: %s\n\n", regime)
	sb.WriteString("The user sees a 3D view: X is momentum (tilt), Y is trend (valleys are stable, bowls are ranges), Z is volatility (ripples).\n")
	sb.WriteString("Explain the situation with these metaphors in at most 3 sentences.")
	return sb.String()
}

func (r *OllamaReasoner) Chat(ctx context.Context, model, question string, state models.ChatState) string {
	prompt := ChatSystemPrompt(state) + "\n\nUser: " + question + "\n\nAssistant:"
	out, err := r.generate(ctx, generateRequest{Model: model, Prompt: prompt})
	if err != nil {
		r.logger.Error("chat failed", applogger.String("model", model), applogger.Error(err))
		return chatFailed
	}
	return out
}

var _ domsvc.Reasoner = (*OllamaReasoner)(nil)
