package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/navid-fn/ethmetrics/internal/candle"
	"github.com/navid-fn/ethmetrics/internal/ingester"
)

// DailyService is the part of the ingester the daily endpoints use.
type DailyService interface {
	DaysAgo(day time.Time) int
	FetchDate(ctx context.Context, day time.Time) (ingester.FetchResult, error)
	Backfill(ctx context.Context, opts ingester.BackfillOptions) (*ingester.BackfillReport, error)
}

type DailyHandler struct {
	service DailyService
	logger  *slog.Logger
	now     func() time.Time
}

func NewDailyHandler(service DailyService, logger *slog.Logger) *DailyHandler {
	return &DailyHandler{
		service: service,
		logger:  logger.With("handler", "daily"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Fetch stores one day. ?date=YYYY-MM-DD defaults to two days ago.
func (h *DailyHandler) Fetch(c *gin.Context) {
	day := candle.StartOfDay(h.now()).AddDate(0, 0, -2)
	if raw := c.Query("date"); raw != "" {
		parsed, err := candle.ParseDate(raw)
		if err != nil {
			badRequest(c, "Invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	if daysAgo := h.service.DaysAgo(day); daysAgo < 1 || daysAgo > ingester.MaxDaysAgo {
		badRequest(c, "Date must be within the last 365 days and not in the future")
		return
	}

	h.logger.Info("Manual ETH data fetch triggered", "date", candle.DateKey(day))
	res, err := h.service.FetchDate(c.Request.Context(), day)
	if errors.Is(err, ingester.ErrDateOutOfRange) {
		badRequest(c, "Date must be within the last 365 days and not in the future")
		return
	}
	if err != nil {
		h.logger.Error("Error in manual ETH data fetch", "date", res.Date, "error", err)
		internalError(c, err)
		return
	}

	if !res.Found {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"date":    res.Date,
			"error":   "No data available for the specified date",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"date":    res.Date,
		"data":    res.Record,
	})
}

// Backfill stores the last ?days=N days (default 30, 1..365). A failed
// batch does not stop the run; every date is reported.
func (h *DailyHandler) Backfill(c *gin.Context) {
	days := ingester.DefaultBackfillDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "Days must be between 1 and 365")
			return
		}
		days = n
	}
	if days < 1 || days > ingester.MaxDaysAgo {
		badRequest(c, "Days must be between 1 and 365")
		return
	}

	h.logger.Info("Starting backfill", "days", days)
	report, err := h.service.Backfill(c.Request.Context(), ingester.BackfillOptions{Days: days})
	if err != nil {
		h.logger.Error("Error in backfill", "days", days, "error", err)
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"daysProcessed": report.Written,
		"report":        report,
	})
}
