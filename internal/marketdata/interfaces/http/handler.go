package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zebutrade/papertrade/internal/marketdata/application"
	"github.com/zebutrade/papertrade/internal/marketdata/domain"
)

const dateLayout = "2006-01-02"

// MarketDataHandler exposes price lookups and watchlist management over HTTP.
type MarketDataHandler struct {
	prices    *application.MarketDataService
	watchlist *application.WatchlistService
	valuation *application.PortfolioValuationService
}

func NewMarketDataHandler(
	prices *application.MarketDataService,
	watchlist *application.WatchlistService,
	valuation *application.PortfolioValuationService,
) *MarketDataHandler {
	return &MarketDataHandler{prices: prices, watchlist: watchlist, valuation: valuation}
}

func (h *MarketDataHandler) RegisterRoutes(r *gin.RouterGroup) {
	v1 := r.Group("/v1/marketdata")
	{
		v1.GET("/price/:ticker", h.GetCurrentPrice)
		v1.GET("/price/:ticker/at", h.GetPriceAt)
		v1.GET("/history/:ticker", h.GetHistory)
		v1.POST("/prices/batch", h.GetBatchPrices)

		v1.GET("/watchlist", h.ListWatchlist)
		v1.POST("/watchlist", h.AddToWatchlist)
		v1.DELETE("/watchlist/:ticker", h.RemoveFromWatchlist)
	}
	if h.valuation != nil {
		r.GET("/v1/portfolio/:account/valuation", h.GetValuation)
	}
}

func (h *MarketDataHandler) GetCurrentPrice(c *gin.Context) {
	dto, err := h.prices.GetCurrentPrice(c.Request.Context(), c.Param("ticker"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (h *MarketDataHandler) GetPriceAt(c *gin.Context) {
	ts, err := time.Parse(time.RFC3339, c.Query("timestamp"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC3339"})
		return
	}
	dto, err := h.prices.GetPriceAt(c.Request.Context(), c.Param("ticker"), ts)
	if err != nil {
		respondError(c, err)
		return
	}
	if dto == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no price stored near the requested time"})
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (h *MarketDataHandler) GetHistory(c *gin.Context) {
	start, err := time.Parse(dateLayout, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be YYYY-MM-DD"})
		return
	}
	end, err := time.Parse(dateLayout, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be YYYY-MM-DD"})
		return
	}

	dto, err := h.prices.GetHistory(c.Request.Context(), c.Param("ticker"), start, end, c.Query("interval"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

type batchRequest struct {
	Tickers []string `json:"tickers" binding:"required,min=1,max=50"`
}

func (h *MarketDataHandler) GetBatchPrices(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	prices, err := h.prices.GetBatchPrices(c.Request.Context(), req.Tickers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prices": prices})
}

type addWatchlistRequest struct {
	Ticker         string `json:"ticker" binding:"required"`
	Priority       int    `json:"priority"`
	RefreshMinutes int    `json:"refresh_minutes"`
}

func (h *MarketDataHandler) AddToWatchlist(c *gin.Context) {
	var req addWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dto, err := h.watchlist.Add(c.Request.Context(), req.Ticker, req.Priority,
		time.Duration(req.RefreshMinutes)*time.Minute)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

func (h *MarketDataHandler) RemoveFromWatchlist(c *gin.Context) {
	if err := h.watchlist.Deactivate(c.Request.Context(), c.Param("ticker")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MarketDataHandler) ListWatchlist(c *gin.Context) {
	entries, err := h.watchlist.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *MarketDataHandler) GetValuation(c *gin.Context) {
	dto, err := h.valuation.ValueAccount(c.Request.Context(), c.Param("account"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// respondError maps domain errors onto HTTP statuses. Invalid tickers are
// 400, confirmed-unknown tickers 404, and total data unavailability 503 so
// callers can tell "you asked wrong" from "we cannot answer right now".
func respondError(c *gin.Context, err error) {
	switch {
	case domain.IsTickerNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case domain.IsMarketDataUnavailable(err):
		c.Header("Retry-After", "60")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case strings.Contains(err.Error(), "invalid ticker"):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case strings.Contains(err.Error(), "precedes start"),
		strings.Contains(err.Error(), "in the future"),
		strings.Contains(err.Error(), "unknown price interval"):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
