package ingester

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/navid-fn/ethmetrics/internal/candle"
	"github.com/navid-fn/ethmetrics/internal/storage"
	"github.com/navid-fn/ethmetrics/internal/storage/models"
)

type fakeSource struct {
	candles   []candle.Candle
	volumes   []candle.VolumePoint
	ohlcErr   error
	volumeErr error

	ohlcDays   []int
	volumeDays []int
}

func (s *fakeSource) OHLC(_ context.Context, days int) ([]candle.Candle, error) {
	s.ohlcDays = append(s.ohlcDays, days)
	if s.ohlcErr != nil {
		return nil, s.ohlcErr
	}
	return s.candles, nil
}

func (s *fakeSource) Volumes(_ context.Context, days int) ([]candle.VolumePoint, error) {
	s.volumeDays = append(s.volumeDays, days)
	if s.volumeErr != nil {
		return nil, s.volumeErr
	}
	return s.volumes, nil
}

// fakeStore keeps daily records in memory and records every commit.
type fakeStore struct {
	mu      sync.Mutex
	daily   map[string]models.DailyMetrics
	commits [][]string

	// failCommits fails the commit with the given 0-based index.
	failCommits map[int]error
	upsertErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{daily: make(map[string]models.DailyMetrics), failCommits: make(map[int]error)}
}

func (s *fakeStore) GetDaily(_ context.Context, date string) (*models.DailyMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.daily[date]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &rec, nil
}

func (s *fakeStore) upsert(rec *models.DailyMetrics) {
	if old, ok := s.daily[rec.Date]; ok {
		next := *rec
		next.CreatedAt = old.CreatedAt
		next.TotalSupply = old.TotalSupply
		next.MarketCap = old.MarketCap
		s.daily[rec.Date] = next
		return
	}
	s.daily[rec.Date] = *rec
}

func (s *fakeStore) UpsertDaily(_ context.Context, rec *models.DailyMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upsert(rec)
	return nil
}

func (s *fakeStore) CommitDaily(_ context.Context, recs []*models.DailyMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := len(s.commits)
	dates := make([]string, 0, len(recs))
	for _, r := range recs {
		dates = append(dates, r.Date)
	}
	s.commits = append(s.commits, dates)

	if err := s.failCommits[idx]; err != nil {
		return err
	}
	for _, r := range recs {
		s.upsert(r)
	}
	return nil
}

func (s *fakeStore) DailyInRange(_ context.Context, from, to time.Time) ([]models.DailyMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DailyMetrics
	for _, r := range s.daily {
		if !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *fakeStore) GetMonthly(context.Context, string) (*models.MonthlyMetrics, error) {
	return nil, storage.ErrNotFound
}

func (s *fakeStore) SaveMonthly(context.Context, *models.MonthlyMetrics) error {
	return errors.New("not supported")
}

func (s *fakeStore) MonthlySince(context.Context, time.Time) ([]models.MonthlyMetrics, error) {
	return nil, nil
}

func (s *fakeStore) Ping(context.Context) error { return nil }
func (s *fakeStore) Close() error               { return nil }

type fakeArchive struct {
	rows []*models.ArchivedCandle
	err  error
}

func (a *fakeArchive) ArchiveCandles(_ context.Context, rows []*models.ArchivedCandle) error {
	a.rows = append(a.rows, rows...)
	return a.err
}

func (a *fakeArchive) Close() error { return nil }

// fourHourCandles returns six 4-hour candles closing on each date, with
// prices increasing through the day from base.
func fourHourCandles(base float64, dates ...string) []candle.Candle {
	var out []candle.Candle
	for i, date := range dates {
		day, err := candle.ParseDate(date)
		if err != nil {
			panic(err)
		}
		for h := 0; h < 6; h++ {
			p := base + float64(i*100+h)
			out = append(out, candle.Candle{
				CloseTime: day.Add(time.Duration(4*h)*time.Hour + 4*time.Hour - time.Minute).UnixMilli(),
				Open:      p,
				High:      p + 10,
				Low:       p - 10,
				Close:     p + 1,
			})
		}
	}
	return out
}
