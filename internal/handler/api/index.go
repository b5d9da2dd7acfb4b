package api

import (
	"net/http"
	"time"

	models "IndexPulse/internal/domain/models"
	"IndexPulse/internal/usecase"
	xhttp "IndexPulse/pkg/http"
	xlogger "IndexPulse/pkg/logger"
	"IndexPulse/pkg/queue"

	"github.com/labstack/echo/v4"
)

// IndexHandler exposes the index read API and the refresh trigger.
type IndexHandler struct {
	logger *xlogger.Logger
	query  *usecase.Query
	jobs   queue.QueueService
}

func NewIndexHandler(logger *xlogger.Logger, query *usecase.Query, jobs queue.QueueService) *IndexHandler {
	return &IndexHandler{logger: logger, query: query, jobs: jobs}
}

func (h *IndexHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/index", h.IndexSeries)
	g.GET("/allocations", h.Allocations)
	g.GET("/performance", h.Performance)
	g.GET("/quotes", h.Quotes)
	g.GET("/health", h.Health)
	g.POST("/refresh", h.Refresh)
}

func (h *IndexHandler) IndexSeries(c echo.Context) error {
	req := &models.IndexSeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, _ := parseDate(req.From)
	to, _ := parseDate(req.To)

	series, err := h.query.IndexSeries(c.Request().Context(), from, to)
	if err != nil {
		h.logger.Error("index series query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, series)
}

func (h *IndexHandler) Allocations(c echo.Context) error {
	req := &models.AllocationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, _ := parseDate(req.Date)

	allocs, err := h.query.Allocations(c.Request().Context(), date)
	if err != nil {
		h.logger.Error("allocations query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, allocs)
}

func (h *IndexHandler) Performance(c echo.Context) error {
	m, err := h.query.LatestMetrics(c.Request().Context())
	if err != nil {
		h.logger.Error("performance query error", xlogger.Error(err))
		return xhttp.NotFoundResponse(c, map[string]string{"message": "no metrics computed yet"})
	}
	return xhttp.SuccessResponse(c, m)
}

func (h *IndexHandler) Quotes(c echo.Context) error {
	req := &models.QuotesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	quotes, err := h.query.Quotes(c.Request().Context(), req.Symbols)
	if err != nil {
		h.logger.Error("quotes query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, quotes)
}

func (h *IndexHandler) Health(c echo.Context) error {
	status := h.query.Health(c.Request().Context())
	code := http.StatusOK
	if status.Status == models.HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return xhttp.DataResponse(c, code, status)
}

// Refresh enqueues one refresh cycle; the response acknowledges the
// request, it does not wait for the cycle.
func (h *IndexHandler) Refresh(c echo.Context) error {
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("refresh queue not configured"))
	}
	if err := h.jobs.PublishMessage(c.Request().Context(), usecase.RefreshMsgType, map[string]string{
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		h.logger.Error("refresh enqueue error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"status": "queued"})
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
