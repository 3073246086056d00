package candle

import (
	"math"
	"time"
)

// VolumePoint is one [timestamp, volume] pair from the market chart series.
type VolumePoint struct {
	Timestamp int64   `json:"timestamp"`
	Volume    float64 `json:"volume"`
}

// ParseVolumes converts raw pairs, skipping any that are not [ts, volume].
// Volume is secondary data, so a bad pair only costs that pair.
func ParseVolumes(raw [][]float64) []VolumePoint {
	points := make([]VolumePoint, 0, len(raw))
	for _, r := range raw {
		if len(r) != 2 || math.IsNaN(r[1]) || math.IsInf(r[1], 0) {
			continue
		}
		points = append(points, VolumePoint{Timestamp: int64(r[0]), Volume: r[1]})
	}
	return points
}

// VolumeFor returns the volume whose timestamp falls on the same UTC date
// as day, or 0 if there is none. Only exact calendar-date matches count.
func VolumeFor(points []VolumePoint, day time.Time) float64 {
	target := StartOfDay(day)
	for _, p := range points {
		if StartOfDay(time.UnixMilli(p.Timestamp)).Equal(target) {
			return p.Volume
		}
	}
	return 0
}

// VolumeIndex maps UTC date keys to volume. Later points overwrite earlier
// points on the same date.
func VolumeIndex(points []VolumePoint) map[string]float64 {
	idx := make(map[string]float64, len(points))
	for _, p := range points {
		idx[DateKeyMillis(p.Timestamp)] = p.Volume
	}
	return idx
}
