package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang-stock-sentiment/internal/correlator/dto"
	"golang-stock-sentiment/internal/correlator/service"
	"golang-stock-sentiment/internal/entity"
	"golang-stock-sentiment/pkg/logger"

	"github.com/guregu/null/v6"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type stubService struct {
	out         service.RunOutput
	err         error
	gotTicker   string
	gotRange    entity.DateRange
	invalidated bool
	runs        []entity.CorrelationRun
	gotLimit    int
}

func (s *stubService) Run(_ context.Context, ticker string, rng entity.DateRange) (service.RunOutput, error) {
	s.gotTicker, s.gotRange = ticker, rng
	return s.out, s.err
}

func (s *stubService) Invalidate(_ context.Context, ticker string, rng entity.DateRange) error {
	s.gotTicker, s.gotRange = ticker, rng
	s.invalidated = true
	return s.err
}

func (s *stubService) RecentRuns(_ context.Context, ticker string, limit int) ([]entity.CorrelationRun, error) {
	s.gotTicker, s.gotLimit = ticker, limit
	return s.runs, s.err
}

func serve(t *testing.T, svc service.CorrelationService, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h := NewCorrelationHandler(svc, logger.NewNop())
	h.RegisterRoutes(e.Group("/api/v1"))
	e.GET("/healthz", h.HealthCheck)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestGetCorrelation_OK(t *testing.T) {
	svc := &stubService{out: service.RunOutput{
		Result: &entity.CorrelationResult{Ticker: "AAPL", PearsonR: null.FloatFrom(0.6), SampleSize: 10},
		Cached: true,
	}}

	rec := serve(t, svc, http.MethodGet, "/api/v1/correlations/aapl?start=2024-01-02&end=2024-01-31")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[dto.CorrelationResponse](t, rec)
	assert.True(t, resp.Cached)
	assert.Empty(t, resp.Warning)
	assert.Equal(t, 0.6, resp.Result.PearsonR.Float64)
	assert.Equal(t, "aapl", svc.gotTicker)
	assert.Equal(t, entity.MustParseDate("2024-01-31"), svc.gotRange.End)
}

func TestGetCorrelation_InsufficientDataIsAWarning(t *testing.T) {
	svc := &stubService{
		out: service.RunOutput{Result: &entity.CorrelationResult{Ticker: "XYZ", SampleSize: 1}},
		err: &entity.InsufficientDataError{Pairs: 1, Required: 3},
	}

	rec := serve(t, svc, http.MethodGet, "/api/v1/correlations/XYZ?start=2024-01-02&end=2024-01-05")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[dto.CorrelationResponse](t, rec)
	require.NotNil(t, resp.Result)
	assert.False(t, resp.Result.PearsonR.Valid)
	assert.Contains(t, resp.Warning, "insufficient data")
}

func TestGetCorrelation_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid input", entity.ErrInvalidInput, http.StatusBadRequest},
		{"source unavailable", &entity.SourceUnavailableError{Source: "price", Ticker: "XYZ", Err: errors.New("503")}, http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, &stubService{err: tt.err}, http.MethodGet, "/api/v1/correlations/XYZ?start=2024-01-02&end=2024-01-05")
			assert.Equal(t, tt.code, rec.Code)
			assert.NotEmpty(t, decode[dto.ErrorResponse](t, rec).Error)
		})
	}
}

func TestGetCorrelation_BadRange(t *testing.T) {
	for _, target := range []string{
		"/api/v1/correlations/XYZ?start=2024-01-05",
		"/api/v1/correlations/XYZ?start=2024-13-01&end=2024-01-05",
		"/api/v1/correlations/XYZ?start=2024-01-05&end=2024-01-02",
	} {
		svc := &stubService{}
		rec := serve(t, svc, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Empty(t, svc.gotTicker, "service must not be called for %s", target)
	}
}

func TestInvalidateCorrelation(t *testing.T) {
	svc := &stubService{}
	rec := serve(t, svc, http.MethodDelete, "/api/v1/correlations/XYZ?start=2024-01-02&end=2024-01-05")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, svc.invalidated)
}

func TestGetRecentRuns(t *testing.T) {
	started := time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC)
	svc := &stubService{runs: []entity.CorrelationRun{{
		RunID:      "0d6a1c1e-6f0c-4f3e-9d55-0a9c7c3e2b11",
		Ticker:     "XYZ",
		RangeStart: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Status:     entity.RunStatusCompleted,
		PearsonR:   null.FloatFrom(0.3),
		SampleSize: 3,
		Stats:      datatypes.JSON(`{"scored":4,"score_failures":1}`),
		Warnings:   pq.StringArray{"1 articles could not be scored"},
		StartedAt:  started,
	}}}

	rec := serve(t, svc, http.MethodGet, "/api/v1/runs?ticker=xyz&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, svc.gotLimit)

	runs := decode[[]dto.RunResponse](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, "2024-01-02", runs[0].Start)
	assert.Equal(t, "2024-01-05", runs[0].End)
	assert.Equal(t, 4, runs[0].Stats["scored"])
	require.NotNil(t, runs[0].PearsonR)
	assert.Equal(t, 0.3, *runs[0].PearsonR)
	assert.Nil(t, runs[0].CompletedAt)
}

func TestGetRecentRuns_Errors(t *testing.T) {
	rec := serve(t, &stubService{}, http.MethodGet, "/api/v1/runs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, &stubService{err: service.ErrRunLogDisabled}, http.MethodGet, "/api/v1/runs")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	rec := serve(t, &stubService{}, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
