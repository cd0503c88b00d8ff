package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultRowLimit = 52
	maxRowLimit     = 1000
)

// ListMarkets godoc
// @Summary      List tracked markets
// @Description  Every configured market with its CFTC contract code and price series
// @Tags         markets
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/markets [get]
func (h *Handler) ListMarkets(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-markets")
	defer span.End()

	markets, err := h.data.Markets(ctx)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"markets": markets, "count": len(markets)})
}

// GetReports godoc
// @Summary      Raw COT reports
// @Description  Stored weekly reports for a market, newest first
// @Tags         cot
// @Produce      json
// @Param        id     path   int  true   "Market ID"
// @Param        limit  query  int  false  "Number of reports (max 1000)"  default(52)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/cot/reports/{id} [get]
func (h *Handler) GetReports(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-reports")
	defer span.End()

	id, ok := marketID(c)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", defaultRowLimit, 1, maxRowLimit)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("market.id", id), attribute.Int("limit", limit))

	reports, err := h.data.Reports(ctx, id, limit)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"market_id": id, "reports": reports, "count": len(reports)})
}

// GetPrices godoc
// @Summary      Daily price bars
// @Description  Stored daily OHLC bars for a market, newest first
// @Tags         prices
// @Produce      json
// @Param        id     path   int  true   "Market ID"
// @Param        limit  query  int  false  "Number of bars (max 1000)"  default(52)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/prices/{id} [get]
func (h *Handler) GetPrices(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-prices")
	defer span.End()

	id, ok := marketID(c)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", defaultRowLimit, 1, maxRowLimit)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("market.id", id), attribute.Int("limit", limit))

	bars, err := h.data.Prices(ctx, id, limit)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"market_id": id, "prices": bars, "count": len(bars)})
}

// GetCombined godoc
// @Summary      COT reports joined with prices
// @Description  Each report paired with the nearest daily close within seven days, oldest first
// @Tags         markets
// @Produce      json
// @Param        id     path   int  true   "Market ID"
// @Param        limit  query  int  false  "Number of reports (max 1000)"  default(52)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/markets/{id}/combined [get]
func (h *Handler) GetCombined(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-combined")
	defer span.End()

	id, ok := marketID(c)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", defaultRowLimit, 1, maxRowLimit)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("market.id", id), attribute.Int("limit", limit))

	rows, err := h.data.Combined(ctx, id, limit)
	if err != nil {
		span.RecordError(err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"market_id": id, "rows": rows, "count": len(rows)})
}
