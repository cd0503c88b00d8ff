package handler

import (
	"net/http"

	"cot-sentinel/internal/cotscore"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetDashboard godoc
// @Summary      COT scoreboard
// @Description  Latest Williams score of every COT market ranked by overall score, with bias counts
// @Tags         cot
// @Produce      json
// @Success      200  {object}  service.Dashboard
// @Failure      500  {object}  map[string]string
// @Router       /api/cot/dashboard [get]
func (h *Handler) GetDashboard(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-dashboard")
	defer span.End()

	dash, err := h.scores.Dashboard(ctx)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

// GetExtremes godoc
// @Summary      Extreme COT readings
// @Description  Markets at extreme buy or sell levels and high-confidence setups
// @Tags         cot
// @Produce      json
// @Success      200  {object}  domain.ExtremeSignals
// @Failure      500  {object}  map[string]string
// @Router       /api/cot/extremes [get]
func (h *Handler) GetExtremes(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-extremes")
	defer span.End()

	ex, err := h.scores.FindExtremeSignals(ctx)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ex)
}

// GetSignals godoc
// @Summary      COT signal table
// @Description  Buy/sell/neutral action per market with setup strength and opportunity list
// @Tags         cot
// @Produce      json
// @Success      200  {object}  service.SignalTable
// @Failure      500  {object}  map[string]string
// @Router       /api/cot/signals [get]
func (h *Handler) GetSignals(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-signals")
	defer span.End()

	table, err := h.scores.SignalTable(ctx)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

// GetMarketScore godoc
// @Summary      Score history for one market
// @Description  Current score, full scored history (oldest first) and summary statistics
// @Tags         cot
// @Produce      json
// @Param        id        path   int  true   "Market ID"
// @Param        lookBack  query  int  false  "Look-back window in weeks (1-520)"  default(52)
// @Success      200  {object}  service.MarketDetail
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      422  {object}  map[string]interface{}
// @Router       /api/cot/markets/{id} [get]
func (h *Handler) GetMarketScore(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-market-score")
	defer span.End()

	id, ok := marketID(c)
	if !ok {
		return
	}
	lookBack, ok := intQuery(c, "lookBack", h.scores.LookBackWeeks(), 1, cotscore.MaxLookBackWeeks)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("market.id", id), attribute.Int("look_back_weeks", lookBack))

	detail, err := h.scores.MarketDetail(ctx, id, lookBack)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetNarrative godoc
// @Summary      Plain-language COT commentary
// @Description  LLM-written summary of the market's current positioning reading
// @Tags         cot
// @Produce      json
// @Param        id  path  int  true  "Market ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/cot/markets/{id}/narrative [get]
func (h *Handler) GetNarrative(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-narrative")
	defer span.End()

	if h.narrator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "narratives are not configured"})
		return
	}
	id, ok := marketID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("market.id", id))

	market, err := h.data.Market(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	detail, err := h.scores.MarketDetail(ctx, id, h.scores.LookBackWeeks())
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	text, err := h.narrator.Narrate(ctx, market, detail.Current, detail.Analysis)
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"market":    market.Symbol,
		"score":     detail.Current,
		"narrative": text,
	})
}
