// Package coingecko fetches ETH candles and daily volumes from the CoinGecko API.
//
// OHLC response format (one tuple per candle, timestamp is the candle close):
//
//	[[1717200000000, 3760, 3790, 3740, 3770], ...]
//
// Market chart response format (only total_volumes is used):
//
//	{"prices": [...], "market_caps": [...], "total_volumes": [[1717200000000, 1.2e10], ...]}
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/navid-fn/ethmetrics/configs"
	"github.com/navid-fn/ethmetrics/internal/candle"
	"github.com/navid-fn/ethmetrics/internal/metrics"

	"golang.org/x/time/rate"
)

const (
	ohlcEndpoint   = "ohlc"
	volumeEndpoint = "market_chart"

	// precision 0 asks CoinGecko for whole-dollar values.
	precision = "0"

	maxErrorBody = 512
)

// ErrEmptyPayload is returned when the OHLC endpoint answers with no candles.
var ErrEmptyPayload = errors.New("no data received from coingecko")

// APIError is a non-2xx answer from CoinGecko.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coingecko %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

// RateLimited reports whether CoinGecko rejected the call with 429.
func (e *APIError) RateLimited() bool { return e.Status == http.StatusTooManyRequests }

type marketChartResponse struct {
	TotalVolumes [][]float64 `json:"total_volumes"`
}

// Client talks to the CoinGecko public API. Safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
	metrics     *metrics.Metrics

	baseURL    string
	apiKey     string
	coinID     string
	vsCurrency string
}

// NewClient builds a client from config. m may be nil.
func NewClient(cfg *configs.CoingeckoConfigs, logger *slog.Logger, m *metrics.Metrics) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:      logger.With("driver", "coingecko"),
		metrics:     m,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		coinID:      cfg.CoinID,
		vsCurrency:  cfg.VsCurrency,
	}
}

// OHLC fetches the candles of one bucket. days must be a value accepted by
// the endpoint; see candle.ResolveDays.
func (c *Client) OHLC(ctx context.Context, days int) ([]candle.Candle, error) {
	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("days", strconv.Itoa(days))
	q.Set("precision", precision)

	var raw [][]float64
	if err := c.get(ctx, ohlcEndpoint, fmt.Sprintf("/coins/%s/ohlc", c.coinID), q, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}

	candles, err := candle.ParseCandles(raw)
	if err != nil {
		return nil, fmt.Errorf("coingecko ohlc: %w", err)
	}

	c.logger.Debug("Fetched candles", "days", days, "count", len(candles))
	return candles, nil
}

// Volumes fetches daily total volumes for the last days days.
func (c *Client) Volumes(ctx context.Context, days int) ([]candle.VolumePoint, error) {
	q := url.Values{}
	q.Set("vs_currency", c.vsCurrency)
	q.Set("days", strconv.Itoa(days))
	q.Set("interval", "daily")
	q.Set("precision", precision)

	var data marketChartResponse
	if err := c.get(ctx, volumeEndpoint, fmt.Sprintf("/coins/%s/market_chart", c.coinID), q, &data); err != nil {
		return nil, err
	}

	points := candle.ParseVolumes(data.TotalVolumes)
	if skipped := len(data.TotalVolumes) - len(points); skipped > 0 {
		c.logger.Warn("Skipped malformed volume points", "skipped", skipped)
	}
	return points, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpoint, "error", time.Since(start))
		return fmt.Errorf("coingecko %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if apiErr.RateLimited() {
			c.logger.Warn("Rate limited", "endpoint", endpoint)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("coingecko %s: decode: %w", endpoint, err)
	}
	return nil
}
