package candle

// ValidDays are the only day values the OHLC endpoint accepts, ascending.
var ValidDays = []int{1, 7, 14, 30, 90, 180, 365}

// Granularity is the candle width the price source returns for a bucket.
type Granularity int

const (
	// Fine candles are 30 minutes wide (1 day bucket).
	Fine Granularity = iota
	// Medium candles are 4 hours wide (7 to 30 day buckets).
	Medium
	// Coarse candles are 4 days wide (90 day buckets and up).
	Coarse
)

func (g Granularity) String() string {
	switch g {
	case Fine:
		return "30-minute"
	case Medium:
		return "4-hour"
	case Coarse:
		return "4-day"
	default:
		return "unknown"
	}
}

// ResolveDays returns the smallest accepted bucket that covers daysNeeded.
// Requests beyond the largest bucket get the largest one.
func ResolveDays(daysNeeded int) int {
	for _, d := range ValidDays {
		if d >= daysNeeded {
			return d
		}
	}
	return ValidDays[len(ValidDays)-1]
}

// GranularityFor maps a resolved bucket to the candle width it yields.
func GranularityFor(days int) Granularity {
	switch {
	case days <= ValidDays[0]:
		return Fine
	case days <= 30:
		return Medium
	default:
		return Coarse
	}
}
