package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pulseurl/pulseurl/internal/app/model"
	"github.com/pulseurl/pulseurl/internal/app/repository"
)

// referrerCap keeps the referrer breakdown to the top entries; the other
// breakdowns have few distinct values and stay uncapped.
const referrerCap = 10

// StatsService computes analytics snapshots over the raw click log. It
// caches nothing: snapshots are recomputed per query, which is fine
// because aggregation is orders of magnitude rarer than redirects.
type StatsService interface {
	Snapshot(ctx context.Context, code string, windowDays int) (*model.StatsSnapshot, error)
}

type statsService struct {
	links repository.LinkRepository
	stats repository.StatsRepository
	now   func() time.Time
}

// NewStatsService returns a StatsService reading from the given
// repositories.
func NewStatsService(links repository.LinkRepository, stats repository.StatsRepository) StatsService {
	return &statsService{links: links, stats: stats, now: time.Now}
}

func (s *statsService) Snapshot(ctx context.Context, code string, windowDays int) (*model.StatsSnapshot, error) {
	if windowDays < 0 {
		windowDays = 0
	}

	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stats: load link: %w", err)
	}

	total, err := s.stats.TotalClicks(ctx, code)
	if err != nil {
		return nil, err
	}

	snapshot := &model.StatsSnapshot{
		Code:           link.Code,
		TargetURL:      link.TargetURL,
		Title:          link.Title,
		TotalClicks:    total,
		CreatedAt:      link.CreatedAt,
		LastAccessedAt: link.LastAccessedAt,
	}

	breakdowns := []struct {
		dimension string
		limit     int
		dest      *[]model.DimensionCount
	}{
		{repository.DimensionBrowser, 0, &snapshot.Browsers},
		{repository.DimensionOS, 0, &snapshot.Systems},
		{repository.DimensionDevice, 0, &snapshot.Devices},
		{repository.DimensionReferrer, referrerCap, &snapshot.Referrers},
	}
	for _, b := range breakdowns {
		counts, err := s.stats.DimensionCounts(ctx, code, b.dimension, b.limit)
		if err != nil {
			return nil, err
		}
		*b.dest = counts
	}

	series, err := s.dailySeries(ctx, code, windowDays)
	if err != nil {
		return nil, err
	}
	snapshot.Series = series

	return snapshot, nil
}

// dailySeries builds the zero-filled daily click series over
// [today-windowDays, today] in UTC. The result always has exactly
// windowDays+1 buckets in ascending date order so chart consumers never
// need their own gap filling.
func (s *statsService) dailySeries(ctx context.Context, code string, windowDays int) ([]model.DayCount, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -windowDays)
	to := today.AddDate(0, 0, 1)

	counts, err := s.stats.DailyCounts(ctx, code, from, to)
	if err != nil {
		return nil, err
	}

	series := make([]model.DayCount, 0, windowDays+1)
	for day := from; !day.After(today); day = day.AddDate(0, 0, 1) {
		date := day.Format("2006-01-02")
		series = append(series, model.DayCount{Date: date, Clicks: counts[date]})
	}
	return series, nil
}
