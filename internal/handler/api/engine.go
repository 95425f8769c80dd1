package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"MarketSweep/internal/domain/models"
	svcmetrics "MarketSweep/internal/service/metrics"
	"MarketSweep/internal/services/setups"
	"MarketSweep/internal/usecase"
	xhttp "MarketSweep/pkg/http"
	"MarketSweep/pkg/logger"
)

// EngineHandler exposes the scan/backtest/analysis endpoints.
type EngineHandler struct {
	scan     *usecase.ScanUsecase
	backtest *usecase.BacktestUsecase
	analysis *usecase.AnalysisUsecase
	optimize *usecase.OptimizeUsecase
	registry *setups.Registry
	hub      *ProgressHub
	health   func(ctx context.Context) error
	log      *logger.Logger
}

func NewEngineHandler(scan *usecase.ScanUsecase, backtest *usecase.BacktestUsecase,
	analysis *usecase.AnalysisUsecase, optimize *usecase.OptimizeUsecase,
	registry *setups.Registry, hub *ProgressHub,
	health func(ctx context.Context) error, log *logger.Logger) *EngineHandler {
	svcmetrics.Register()
	return &EngineHandler{
		scan: scan, backtest: backtest, analysis: analysis, optimize: optimize,
		registry: registry, hub: hub, health: health, log: log,
	}
}

// RegisterRoutes implements pkg/http.Handler.
func (h *EngineHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/scan", h.Scan)
	g.POST("/backtest", h.Backtest)
	g.POST("/validate", h.Validate)
	g.POST("/montecarlo", h.MonteCarlo)
	g.POST("/optimize", h.Optimize)
	g.POST("/optimize/async", h.OptimizeAsync)
	g.GET("/optimize/progress", h.hub.Serve)
	g.GET("/results/:ref", h.Result)
	g.GET("/setups", h.Setups)
	e.GET("/healthz", h.Health)
}

func (h *EngineHandler) Scan(c echo.Context) error {
	defer observe("scan", time.Now())
	req := new(models.ScanRequest)
	if verrs := xhttp.ReadAndValidateRequest(c, req); verrs != nil {
		return xhttp.BadRequestResponse(c, verrs)
	}
	if !req.DateRange.Valid() {
		return badRange(c)
	}

	resp, err := h.scan.Execute(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "scan", err)
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *EngineHandler) Backtest(c echo.Context) error {
	defer observe("backtest", time.Now())
	req := new(models.BacktestRequest)
	if verrs := xhttp.ReadAndValidateRequest(c, req); verrs != nil {
		return xhttp.BadRequestResponse(c, verrs)
	}
	if !req.DateRange.Valid() {
		return badRange(c)
	}

	resp, err := h.backtest.Execute(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "backtest", err)
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *EngineHandler) Validate(c echo.Context) error {
	defer observe("validate", time.Now())
	req := new(models.ValidateRequest)
	if verrs := xhttp.ReadAndValidateRequest(c, req); verrs != nil {
		return xhttp.BadRequestResponse(c, verrs)
	}
	if !req.InSample.Valid() || !req.OutOfSample.Valid() {
		return badRange(c)
	}
	if req.OutOfSample.Start.Before(req.InSample.End) {
		return xhttp.BadRequestResponse(c, echo.Map{
			"error": "out_of_sample_range must start after in_sample_range ends",
		})
	}

	resp, err := h.analysis.Validate(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "validate", err)
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *EngineHandler) MonteCarlo(c echo.Context) error {
	defer observe("montecarlo", time.Now())
	req := new(models.MonteCarloRequest)
	if verrs := xhttp.ReadAndValidateRequest(c, req); verrs != nil {
		return xhttp.BadRequestResponse(c, verrs)
	}

	resp, err := h.analysis.MonteCarlo(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "montecarlo", err)
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *EngineHandler) Optimize(c echo.Context) error {
	defer observe("optimize", time.Now())
	req := new(models.OptimizeRequest)
	if verrs := xhttp.ReadAndValidateRequest(c, req); verrs != nil {
		return xhttp.BadRequestResponse(c, verrs)
	}
	if !req.Scan.DateRange.Valid() {
		return badRange(c)
	}

	resp, err := h.optimize.Execute(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "optimize", err)
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *EngineHandler) OptimizeAsync(c echo.Context) error {
	defer observe("optimize_async", time.Now())
	if !h.optimize.AsyncEnabled() {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, echo.Map{
			"error": "async optimization requires the job queue to be enabled",
		})
	}
	req := new(models.OptimizeRequest)
	if verrs := xhttp.ReadAndValidateRequest(c, req); verrs != nil {
		return xhttp.BadRequestResponse(c, verrs)
	}
	if !req.Scan.DateRange.Valid() {
		return badRange(c)
	}

	jobID, err := h.optimize.Enqueue(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "optimize_async", err)
	}
	return xhttp.CreatedResponse(c, echo.Map{"job_id": jobID, "status": "queued"})
}

func (h *EngineHandler) Result(c echo.Context) error {
	defer observe("result", time.Now())
	res, err := h.backtest.Lookup(c.Request().Context(), c.Param("ref"))
	if err != nil {
		return h.fail(c, "result", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *EngineHandler) Setups(c echo.Context) error {
	return xhttp.SuccessResponse(c, echo.Map{"setups": h.registry.Names()})
}

func (h *EngineHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()
	if err := h.health(ctx); err != nil {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, echo.Map{"status": "degraded", "error": err.Error()})
	}
	return xhttp.SuccessResponse(c, echo.Map{"status": "ok"})
}

// fail maps domain errors onto HTTP statuses.
func (h *EngineHandler) fail(c echo.Context, endpoint string, err error) error {
	svcmetrics.EndpointErrors.WithLabelValues(endpoint).Inc()

	switch {
	case errors.Is(err, models.ErrResultNotFound):
		return xhttp.NotFoundResponse(c, echo.Map{"error": err.Error()})
	case errors.Is(err, models.ErrUnknownSetup), models.IsInvalidParameter(err):
		return xhttp.BadRequestResponse(c, echo.Map{"error": err.Error()})
	case models.IsInsufficientData(err):
		return xhttp.DataResponse(c, http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case models.IsDataFetch(err):
		return xhttp.DataResponse(c, http.StatusBadGateway, echo.Map{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return xhttp.DataResponse(c, http.StatusRequestTimeout, echo.Map{"error": err.Error()})
	}

	h.log.Error("endpoint failed", logger.String("endpoint", endpoint), logger.Error(err))
	return xhttp.InternalServerErrorResponse(c)
}

func badRange(c echo.Context) error {
	return xhttp.BadRequestResponse(c, echo.Map{"error": "date_range start must not be after end and both must be set"})
}

func observe(endpoint string, started time.Time) {
	svcmetrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}
