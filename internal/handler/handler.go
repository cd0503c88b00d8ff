package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"cot-sentinel/internal/cotscore"
	"cot-sentinel/internal/domain"
	"cot-sentinel/internal/metrics"
	"cot-sentinel/internal/repository"
	"cot-sentinel/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type ScoreReader interface {
	LookBackWeeks() int
	Dashboard(ctx context.Context) (*service.Dashboard, error)
	FindExtremeSignals(ctx context.Context) (*domain.ExtremeSignals, error)
	SignalTable(ctx context.Context) (*service.SignalTable, error)
	MarketDetail(ctx context.Context, marketID int64, lookBackWeeks int) (*service.MarketDetail, error)
}

type MarketDataReader interface {
	Markets(ctx context.Context) ([]domain.Market, error)
	Market(ctx context.Context, id int64) (domain.Market, error)
	Reports(ctx context.Context, marketID int64, limit int) ([]domain.COTReport, error)
	Prices(ctx context.Context, marketID int64, limit int) ([]domain.PriceBar, error)
	Combined(ctx context.Context, marketID int64, limit int) ([]domain.CombinedRow, error)
}

type Collector interface {
	CollectAllCOT(ctx context.Context, weeks int) (map[string]domain.CollectionResult, error)
	CollectAllPrices(ctx context.Context, full bool) (map[string]domain.CollectionResult, error)
	COTStats(ctx context.Context) (domain.DataStats, error)
	PriceStats(ctx context.Context) (domain.DataStats, error)
	Coverage(ctx context.Context) ([]domain.MarketCoverage, error)
}

// Narrator turns a market's current reading into prose.
type Narrator interface {
	Narrate(ctx context.Context, market domain.Market, current domain.Score, analysis domain.MarketAnalysis) (string, error)
}

type Handler struct {
	tracer     trace.Tracer
	scores     ScoreReader
	data       MarketDataReader
	collector  Collector
	narrator   Narrator
	hub        *Hub
	metrics    *metrics.Metrics
	fetchWeeks int
}

func New(tracer trace.Tracer, scores ScoreReader, data MarketDataReader, collector Collector, fetchWeeks int) *Handler {
	return &Handler{
		tracer:     tracer,
		scores:     scores,
		data:       data,
		collector:  collector,
		fetchWeeks: fetchWeeks,
	}
}

func (h *Handler) SetNarrator(n Narrator) {
	h.narrator = n
}

func (h *Handler) SetHub(hub *Hub) {
	h.hub = hub
}

func (h *Handler) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
}

func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.Use(RequestMetrics(h.metrics))
	r.GET("/health", h.Health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
	if h.hub != nil {
		r.GET("/ws/scoreboard", h.ScoreboardStream)
	}

	api := r.Group("/api")
	api.GET("/markets", h.ListMarkets)
	api.GET("/markets/:id/combined", h.GetCombined)
	api.GET("/prices/:id", h.GetPrices)

	cot := api.Group("/cot")
	cot.GET("/dashboard", h.GetDashboard)
	cot.GET("/extremes", h.GetExtremes)
	cot.GET("/signals", h.GetSignals)
	cot.GET("/markets/:id", h.GetMarketScore)
	cot.GET("/markets/:id/narrative", h.GetNarrative)
	cot.GET("/reports/:id", h.GetReports)

	data := api.Group("/data")
	data.GET("/stats", h.GetDataStats)
	data.GET("/coverage", h.GetCoverage)

	collect := api.Group("/collect", APIKeyAuth(apiKey))
	collect.POST("/cot", h.CollectCOT)
	collect.POST("/prices", h.CollectPrices)
}

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var insufficient *cotscore.InsufficientDataError
	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     err.Error(),
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, cotscore.ErrInvalidLookBack):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPricesDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func marketID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market id: " + c.Param("id")})
		return 0, false
	}
	return id, true
}

// intQuery reads a query integer in [lo, hi], falling back to def when absent.
func intQuery(c *gin.Context, name string, def, lo, hi int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": name + " must be an integer between " + strconv.Itoa(lo) + " and " + strconv.Itoa(hi),
		})
		return 0, false
	}
	return n, true
}
