package candle

import (
	"sort"
	"time"
)

// DailyOHLC is one calendar day of price data, keyed by its UTC date.
type DailyOHLC struct {
	Date  string  `json:"date"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// AggregateDaily reduces candles of one granularity into one record per
// UTC close date, ordered by date.
//
// Coarse candles span several days and cannot be split, so each one is
// assigned whole to the date it closes on; when two close on the same date
// the later one wins. Fine and medium candles are merged per date.
func AggregateDaily(candles []Candle, g Granularity) []DailyOHLC {
	sorted := sortedByTime(candles)

	byDate := make(map[string]DailyOHLC)
	if g == Coarse {
		for _, c := range sorted {
			date := DateKeyMillis(c.CloseTime)
			byDate[date] = DailyOHLC{
				Date:  date,
				Open:  c.Open,
				High:  c.High,
				Low:   c.Low,
				Close: c.Close,
			}
		}
	} else {
		groups := make(map[string][]Candle)
		for _, c := range sorted {
			date := DateKeyMillis(c.CloseTime)
			groups[date] = append(groups[date], c)
		}
		for date, group := range groups {
			byDate[date] = reduce(date, group)
		}
	}

	out := make([]DailyOHLC, 0, len(byDate))
	for _, d := range byDate {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// AggregateDay reduces the candles closing within [day, day+24h) UTC.
// The boolean is false when no candle falls inside the window.
func AggregateDay(candles []Candle, day time.Time) (DailyOHLC, bool) {
	start := StartOfDay(day)
	from := start.UnixMilli()
	to := start.Add(Day).UnixMilli()

	var window []Candle
	for _, c := range candles {
		if c.CloseTime >= from && c.CloseTime < to {
			window = append(window, c)
		}
	}
	if len(window) == 0 {
		return DailyOHLC{}, false
	}

	return reduce(DateKey(start), sortedByTime(window)), true
}

// reduce expects a non-empty group sorted by close time.
func reduce(date string, group []Candle) DailyOHLC {
	d := DailyOHLC{
		Date:  date,
		Open:  group[0].Open,
		High:  group[0].High,
		Low:   group[0].Low,
		Close: group[len(group)-1].Close,
	}
	for _, c := range group[1:] {
		d.High = max(d.High, c.High)
		d.Low = min(d.Low, c.Low)
	}
	return d
}

func sortedByTime(candles []Candle) []Candle {
	out := make([]Candle, len(candles))
	copy(out, candles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CloseTime < out[j].CloseTime })
	return out
}
