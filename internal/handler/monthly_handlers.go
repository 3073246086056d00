package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/navid-fn/ethmetrics/internal/aggregator"
	"github.com/navid-fn/ethmetrics/internal/storage/models"
)

// MonthlyService is the part of the aggregator the monthly endpoints use.
type MonthlyService interface {
	AggregateMonth(ctx context.Context, year int, month time.Month) (aggregator.MonthResult, error)
	AggregateTrailing(ctx context.Context, n int) ([]aggregator.MonthResult, error)
	List(ctx context.Context, n int) ([]models.MonthlyMetrics, error)
}

type MonthlyHandler struct {
	service MonthlyService
	logger  *slog.Logger
}

func NewMonthlyHandler(service MonthlyService, logger *slog.Logger) *MonthlyHandler {
	return &MonthlyHandler{
		service: service,
		logger:  logger.With("handler", "monthly"),
	}
}

// monthsParam reads ?months=N, defaulting to 12 and bounded to 1..24.
func monthsParam(c *gin.Context) (int, bool) {
	n := aggregator.DefaultMonths
	if raw := c.Query("months"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, false
		}
		n = v
	}
	return n, n >= 1 && n <= aggregator.MaxMonths
}

// Aggregate recomputes ?year=Y&month=M, or the last ?months=N months
// before the current one when year and month are not both given.
func (h *MonthlyHandler) Aggregate(c *gin.Context) {
	yearRaw, monthRaw := c.Query("year"), c.Query("month")
	h.logger.Info("Manual monthly aggregation triggered", "year", yearRaw, "month", monthRaw, "months", c.Query("months"))

	if yearRaw != "" && monthRaw != "" {
		h.aggregateOne(c, yearRaw, monthRaw)
		return
	}

	n, ok := monthsParam(c)
	if !ok {
		badRequest(c, aggregator.ErrMonthsOutOfRange.Error())
		return
	}

	results, err := h.service.AggregateTrailing(c.Request.Context(), n)
	if err != nil {
		h.logger.Error("Error in manual monthly aggregation", "error", err)
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "results": results})
}

func (h *MonthlyHandler) aggregateOne(c *gin.Context, yearRaw, monthRaw string) {
	year, yerr := strconv.Atoi(yearRaw)
	month, merr := strconv.Atoi(monthRaw)
	if yerr != nil || merr != nil || month < 1 || month > 12 {
		badRequest(c, aggregator.ErrInvalidMonth.Error())
		return
	}

	res, err := h.service.AggregateMonth(c.Request.Context(), year, time.Month(month))
	if errors.Is(err, aggregator.ErrInvalidMonth) {
		badRequest(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("Error in manual monthly aggregation", "year", year, "month", month, "error", err)
		internalError(c, err)
		return
	}

	if res.Data == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "results": []aggregator.MonthResult{res}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": []aggregator.MonthResult{res}})
}

// List returns monthly summaries of the last ?months=N months, oldest first.
func (h *MonthlyHandler) List(c *gin.Context) {
	n, ok := monthsParam(c)
	if !ok {
		badRequest(c, aggregator.ErrMonthsOutOfRange.Error())
		return
	}

	data, err := h.service.List(c.Request.Context(), n)
	if err != nil {
		h.logger.Error("Error fetching monthly metrics", "error", err)
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}
