package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"MarketState/internal/domain/models"
	domrepo "MarketState/internal/domain/repository"
	"MarketState/internal/usecase"
	xhttp "MarketState/pkg/http"
	xlogger "MarketState/pkg/logger"
)

type analyzer interface {
	Analyze(ctx context.Context, req models.AnalyzeRequest) (*usecase.AnalysisReport, error)
}

type analysisRecords interface {
	Recent(ctx context.Context, limit int) ([]models.AnalysisRecord, error)
	Feedback(ctx context.Context, req models.FeedbackRequest) error
	Delete(ctx context.Context, id string) error
}

type settingsService interface {
	Get(ctx context.Context) (models.Settings, error)
	Save(ctx context.Context, s models.Settings) (models.Settings, error)
}

type chatService interface {
	Ask(ctx context.Context, req models.ChatRequest) string
}

// AnalysisEchoHandler serves the /api group.
type AnalysisEchoHandler struct {
	logger    *xlogger.Logger
	analyze   analyzer
	analyses  analysisRecords
	settings  settingsService
	chat      chatService
	analyzeMW []echo.MiddlewareFunc
}

// NewAnalysisEchoHandler builds the handler. analyzeMW wraps only POST /api/analyze.
func NewAnalysisEchoHandler(
	logger *xlogger.Logger,
	analyze analyzer,
	analyses analysisRecords,
	settings settingsService,
	chat chatService,
	analyzeMW ...echo.MiddlewareFunc,
) *AnalysisEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &AnalysisEchoHandler{
		logger:    logger,
		analyze:   analyze,
		analyses:  analyses,
		settings:  settings,
		chat:      chat,
		analyzeMW: analyzeMW,
	}
}

func (h *AnalysisEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/analyze", h.Analyze, h.analyzeMW...)
	g.GET("/recent-analyses", h.RecentAnalyses)
	g.POST("/feedback", h.Feedback)
	g.DELETE("/analysis/:id", h.DeleteAnalysis)
	g.GET("/settings", h.GetSettings)
	g.POST("/settings", h.SaveSettings)
	g.POST("/chat_quantum", h.ChatQuantum)
}

// toAppError maps domain failures onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, domrepo.ErrNoData):
		return xhttp.NotFoundError("No data found for ticker").WithError(err)
	case errors.Is(err, domrepo.ErrNotFound):
		return xhttp.NotFoundError("Analysis not found").WithError(err)
	case errors.Is(err, usecase.ErrUpstream):
		return xhttp.ServiceUnavailableError("Market data provider unavailable").WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}

func (h *AnalysisEchoHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" usecase error", xlogger.Error(err))
	} else {
		h.logger.Debug(op+" rejected", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *AnalysisEchoHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))

	report, err := h.analyze.Analyze(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "analyze", err)
	}
	return xhttp.SuccessResponse(c, newAnalyzeResponse(report))
}

func (h *AnalysisEchoHandler) RecentAnalyses(c echo.Context) error {
	req := &models.RecentAnalysesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	recs, err := h.analyses.Recent(c.Request().Context(), req.Limit)
	if err != nil {
		return h.fail(c, "recent analyses", err)
	}
	return xhttp.SuccessResponse(c, recs)
}

func (h *AnalysisEchoHandler) Feedback(c echo.Context) error {
	req := &models.FeedbackRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.analyses.Feedback(c.Request().Context(), *req); err != nil {
		return h.fail(c, "feedback", err)
	}
	return xhttp.SuccessResponse(c, map[string]string{"analysis_id": req.AnalysisID})
}

func (h *AnalysisEchoHandler) DeleteAnalysis(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("analysis id is required"))
	}
	if err := h.analyses.Delete(c.Request().Context(), id); err != nil {
		return h.fail(c, "delete analysis", err)
	}
	return xhttp.SuccessResponse(c, map[string]string{"analysis_id": id})
}

func (h *AnalysisEchoHandler) GetSettings(c echo.Context) error {
	s, err := h.settings.Get(c.Request().Context())
	if err != nil {
		return h.fail(c, "get settings", err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *AnalysisEchoHandler) SaveSettings(c echo.Context) error {
	req := &models.Settings{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	s, err := h.settings.Save(c.Request().Context(), *req)
	if err != nil {
		if verrs := xhttp.ValidationErrors(err); len(verrs) > 0 {
			return xhttp.BadRequestResponse(c, verrs)
		}
		return h.fail(c, "save settings", err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *AnalysisEchoHandler) ChatQuantum(c echo.Context) error {
	req := &models.ChatRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	answer := h.chat.Ask(c.Request().Context(), *req)
	return xhttp.SuccessResponse(c, map[string]string{"answer": answer})
}

// Routes combines several route sets into one server handler.
type Routes []xhttp.Handler

func (r Routes) RegisterRoutes(e *echo.Echo) {
	for _, h := range r {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
}
