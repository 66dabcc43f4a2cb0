// Package api serves the aggregation engine over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"metricsfetcher/internal/aggregator"
	"metricsfetcher/internal/fetcher"
	"metricsfetcher/internal/record"
)

// Engine is the part of aggregator.Service the handlers use.
type Engine interface {
	GetFinancialMetrics(ctx context.Context, ticker string) (*aggregator.Result, error)
	GetHistoricalPrices(ctx context.Context, ticker, period string) ([]record.Bar, error)
	GetCurrencyRate(ctx context.Context, from, to string) float64
	Stats() aggregator.StatsSnapshot
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HistoryResponse is the body of GET /api/v1/history/:ticker.
type HistoryResponse struct {
	Symbol string       `json:"symbol"`
	Period string       `json:"period"`
	Bars   []record.Bar `json:"bars"`
}

// RateResponse is the body of GET /api/v1/fx.
type RateResponse struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Rate float64 `json:"rate"`
}

// Handler handles the metrics endpoints
type Handler struct {
	engine Engine
	logger zerolog.Logger
}

// NewHandler creates a new Handler
func NewHandler(engine Engine, logger zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
	}
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.GET("/metrics/:ticker", h.Metrics)
	v1.GET("/history/:ticker", h.History)
	v1.GET("/fx", h.Rate)
	v1.GET("/stats", h.Stats)
	return router
}

// Metrics handles GET /api/v1/metrics/:ticker
func (h *Handler) Metrics(c *gin.Context) {
	res, err := h.engine.GetFinancialMetrics(c.Request.Context(), c.Param("ticker"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !res.OK() {
		c.JSON(http.StatusNotFound, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// History handles GET /api/v1/history/:ticker?period=
func (h *Handler) History(c *gin.Context) {
	ticker := strings.ToUpper(c.Param("ticker"))
	period := c.DefaultQuery("period", "1y")

	bars, err := h.engine.GetHistoricalPrices(c.Request.Context(), ticker, period)
	if err != nil {
		h.fail(c, err)
		return
	}
	if bars == nil {
		bars = []record.Bar{}
	}
	c.JSON(http.StatusOK, HistoryResponse{Symbol: ticker, Period: period, Bars: bars})
}

// Rate handles GET /api/v1/fx?from=&to=
func (h *Handler) Rate(c *gin.Context) {
	from := strings.ToUpper(c.Query("from"))
	to := strings.ToUpper(c.Query("to"))
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "bad_request",
			Message: "from and to are required",
		})
		return
	}
	c.JSON(http.StatusOK, RateResponse{
		From: from,
		To:   to,
		Rate: h.engine.GetCurrencyRate(c.Request.Context(), from, to),
	})
}

// Stats handles GET /api/v1/stats
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Stats())
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, aggregator.ErrTotalOutage):
		status, code = http.StatusServiceUnavailable, "outage"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	case fetcher.TypeOf(err) == fetcher.ErrorTypeValidation:
		status, code = http.StatusBadRequest, "bad_request"
	case fetcher.TypeOf(err) == fetcher.ErrorTypeUnavailable:
		status, code = http.StatusServiceUnavailable, "unavailable"
	case fetcher.IsOutage(err):
		status, code = http.StatusBadGateway, "upstream_error"
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request_failed")
	}
	c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	}
}
