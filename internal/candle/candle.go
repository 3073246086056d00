// Package candle turns raw CoinGecko OHLC tuples into daily OHLC records.
// Everything here is pure: no I/O, no clocks.
package candle

import (
	"errors"
	"fmt"
	"math"
)

// tupleLen is the arity of a raw OHLC tuple: [closeTs, open, high, low, close].
const tupleLen = 5

// ErrMalformedCandle is returned when a raw tuple cannot be decoded.
var ErrMalformedCandle = errors.New("malformed candle")

// Candle is a single price candle as returned by the price source.
type Candle struct {
	// CloseTime is the END of the period the candle covers, in ms since epoch.
	CloseTime int64 `json:"close_time"`

	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// ParseCandle decodes a positional tuple [closeTs, open, high, low, close].
func ParseCandle(raw []float64) (Candle, error) {
	if len(raw) != tupleLen {
		return Candle{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedCandle, tupleLen, len(raw))
	}
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Candle{}, fmt.Errorf("%w: field %d is not finite", ErrMalformedCandle, i)
		}
	}

	return Candle{
		CloseTime: int64(raw[0]),
		Open:      raw[1],
		High:      raw[2],
		Low:       raw[3],
		Close:     raw[4],
	}, nil
}

// ParseCandles decodes a whole payload and stops at the first bad tuple.
func ParseCandles(raw [][]float64) ([]Candle, error) {
	candles := make([]Candle, 0, len(raw))
	for i, r := range raw {
		c, err := ParseCandle(r)
		if err != nil {
			return nil, fmt.Errorf("candle %d: %w", i, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}
