package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"golang-stock-sentiment/internal/correlator/dto"
	"golang-stock-sentiment/internal/correlator/service"
	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/logger"

	"github.com/labstack/echo/v4"
)

// CorrelationHandler handles HTTP requests for sentiment-price correlations.
type CorrelationHandler struct {
	correlationService service.CorrelationService
	logger             *logger.Logger
}

// NewCorrelationHandler creates a new CorrelationHandler.
func NewCorrelationHandler(correlationService service.CorrelationService, logger *logger.Logger) *CorrelationHandler {
	return &CorrelationHandler{correlationService: correlationService, logger: logger}
}

// RegisterRoutes registers the correlation routes to the Echo group.
func (h *CorrelationHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/correlations/:ticker", h.GetCorrelation)
	g.DELETE("/correlations/:ticker", h.InvalidateCorrelation)
	g.GET("/runs", h.GetRecentRuns)
}

// GetCorrelation godoc
// @Summary Correlate news sentiment with daily returns
// @Tags correlations
// @Produce  json
// @Param   ticker  path    string  true  "Ticker symbol"
// @Param   start   query   string  true  "First date, YYYY-MM-DD"
// @Param   end     query   string  true  "Last date, YYYY-MM-DD"
// @Success 200 {object} dto.CorrelationResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /correlations/{ticker} [get]
func (h *CorrelationHandler) GetCorrelation(c echo.Context) error {
	rng, err := parseRange(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid date range", Details: err.Error()})
	}

	out, err := h.correlationService.Run(c.Request().Context(), c.Param("ticker"), rng)
	var insufficient *entity.InsufficientDataError
	if err != nil && !errors.As(err, &insufficient) {
		return h.errorResponse(c, err)
	}

	resp := dto.CorrelationResponse{Result: out.Result, Cached: out.Cached}
	if insufficient != nil {
		resp.Warning = insufficient.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

// InvalidateCorrelation godoc
// @Summary Drop a cached correlation
// @Tags correlations
// @Param   ticker  path    string  true  "Ticker symbol"
// @Param   start   query   string  true  "First date, YYYY-MM-DD"
// @Param   end     query   string  true  "Last date, YYYY-MM-DD"
// @Success 204 {object} nil
// @Failure 400 {object} dto.ErrorResponse
// @Router /correlations/{ticker} [delete]
func (h *CorrelationHandler) InvalidateCorrelation(c echo.Context) error {
	rng, err := parseRange(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid date range", Details: err.Error()})
	}

	if err := h.correlationService.Invalidate(c.Request().Context(), c.Param("ticker"), rng); err != nil {
		return h.errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetRecentRuns godoc
// @Summary List recent correlation runs
// @Tags runs
// @Produce  json
// @Param   ticker  query   string  false  "Ticker symbol"
// @Param   limit   query   int     false  "Maximum number of runs"
// @Success 200 {array} dto.RunResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /runs [get]
func (h *CorrelationHandler) GetRecentRuns(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid limit"})
		}
		limit = n
	}

	runs, err := h.correlationService.RecentRuns(c.Request().Context(), c.QueryParam("ticker"), limit)
	if err != nil {
		return h.errorResponse(c, err)
	}

	resp := make([]dto.RunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunResponse(run))
	}
	return c.JSON(http.StatusOK, resp)
}

// HealthCheck reports liveness.
func (h *CorrelationHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (h *CorrelationHandler) errorResponse(c echo.Context, err error) error {
	var unavailable *entity.SourceUnavailableError
	switch {
	case errors.Is(err, entity.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request", Details: err.Error()})
	case errors.As(err, &unavailable):
		h.logger.Warn("Upstream source unavailable", logger.StringField("source", unavailable.Source), logger.ErrorField(err))
		return c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: "Upstream source unavailable", Details: err.Error()})
	case errors.Is(err, service.ErrRunLogDisabled):
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Run log is disabled"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Request cancelled or timed out"})
	default:
		h.logger.Error("Correlation request failed", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Internal server error"})
	}
}

func parseRange(c echo.Context) (entity.DateRange, error) {
	start, err := entity.ParseDate(c.QueryParam("start"))
	if err != nil {
		return entity.DateRange{}, fmt.Errorf("start: %w", err)
	}
	end, err := entity.ParseDate(c.QueryParam("end"))
	if err != nil {
		return entity.DateRange{}, fmt.Errorf("end: %w", err)
	}
	rng := entity.DateRange{Start: start, End: end}
	return rng, rng.Validate()
}

func toRunResponse(run entity.CorrelationRun) dto.RunResponse {
	resp := dto.RunResponse{
		RunID:        run.RunID,
		Ticker:       run.Ticker,
		Start:        entity.DateOf(run.RangeStart).String(),
		End:          entity.DateOf(run.RangeEnd).String(),
		ModelVersion: run.ModelVersion,
		NewsSource:   run.NewsSource,
		Status:       string(run.Status),
		PearsonR:     run.PearsonR.Ptr(),
		SampleSize:   run.SampleSize,
		Warnings:     run.Warnings,
		ErrorMessage: run.ErrorMessage.String,
		StartedAt:    run.StartedAt,
	}
	if run.CompletedAt.Valid {
		completed := run.CompletedAt.Time
		resp.CompletedAt = &completed
	}
	if len(run.Stats) > 0 {
		var stats map[string]int
		if err := json.Unmarshal(run.Stats, &stats); err == nil {
			resp.Stats = stats
		}
	}
	return resp
}
