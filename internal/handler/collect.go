package handler

import (
	"net/http"
	"strconv"

	"cot-sentinel/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const maxCollectWeeks = 1040

// CollectCOT godoc
// @Summary      Collect COT reports
// @Description  Fetches recent reports for every COT market from the CFTC and rescores when new data arrives
// @Tags         collection
// @Produce      json
// @Security     ApiKeyAuth
// @Param        weeks  query  int  false  "Weeks of history to request per market"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/collect/cot [post]
func (h *Handler) CollectCOT(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.collect-cot")
	defer span.End()

	weeks, ok := intQuery(c, "weeks", h.fetchWeeks, 1, maxCollectWeeks)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("weeks", weeks))

	results, err := h.collector.CollectAllCOT(ctx, weeks)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, collectResponse(results))
}

// CollectPrices godoc
// @Summary      Collect daily prices
// @Description  Fetches daily bars for every market with a price series
// @Tags         collection
// @Produce      json
// @Security     ApiKeyAuth
// @Param        full  query  bool  false  "Request the full history instead of the compact window"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/collect/prices [post]
func (h *Handler) CollectPrices(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.collect-prices")
	defer span.End()

	full := false
	if raw := c.Query("full"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "full must be a boolean"})
			return
		}
		full = v
	}
	span.SetAttributes(attribute.Bool("full", full))

	results, err := h.collector.CollectAllPrices(ctx, full)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, collectResponse(results))
}

func collectResponse(results map[string]domain.CollectionResult) gin.H {
	newRecords, failed := 0, 0
	for _, r := range results {
		newRecords += r.NewRecords
		if !r.Success {
			failed++
		}
	}
	return gin.H{
		"results":     results,
		"new_records": newRecords,
		"failed":      failed,
	}
}

// GetDataStats godoc
// @Summary      Storage statistics
// @Description  Record counts and date ranges for stored COT reports and price bars
// @Tags         collection
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/data/stats [get]
func (h *Handler) GetDataStats(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-data-stats")
	defer span.End()

	cot, err := h.collector.COTStats(ctx)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	prices, err := h.collector.PriceStats(ctx)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cot": cot, "prices": prices})
}

// GetCoverage godoc
// @Summary      Per-market COT coverage
// @Description  Report counts and the share of weeks covered between each market's oldest and latest report
// @Tags         collection
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/data/coverage [get]
func (h *Handler) GetCoverage(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-coverage")
	defer span.End()

	coverage, err := h.collector.Coverage(ctx)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coverage": coverage})
}
