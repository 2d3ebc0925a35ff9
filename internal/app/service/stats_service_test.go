package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pulseurl/pulseurl/internal/app/model"
	"github.com/pulseurl/pulseurl/internal/app/repository"
)

type mockStatsRepository struct {
	totalFn     func(ctx context.Context, code string) (int64, error)
	dimensionFn func(ctx context.Context, code, dimension string, limit int) ([]model.DimensionCount, error)
	dailyFn     func(ctx context.Context, code string, from, to time.Time) (map[string]int64, error)
}

func (m *mockStatsRepository) TotalClicks(ctx context.Context, code string) (int64, error) {
	if m.totalFn != nil {
		return m.totalFn(ctx, code)
	}
	return 0, nil
}

func (m *mockStatsRepository) DimensionCounts(ctx context.Context, code, dimension string, limit int) ([]model.DimensionCount, error) {
	if m.dimensionFn != nil {
		return m.dimensionFn(ctx, code, dimension, limit)
	}
	return nil, nil
}

func (m *mockStatsRepository) DailyCounts(ctx context.Context, code string, from, to time.Time) (map[string]int64, error) {
	if m.dailyFn != nil {
		return m.dailyFn(ctx, code, from, to)
	}
	return map[string]int64{}, nil
}

func fixedStatsService(repo *mockLinkRepository, stats *mockStatsRepository, now time.Time) *statsService {
	return &statsService{
		links: repo,
		stats: stats,
		now:   func() time.Time { return now },
	}
}

func statsLinkRepo() *mockLinkRepository {
	return &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return &model.Link{Code: code, TargetURL: "https://example.com", CreatedAt: time.Now()}, nil
		},
	}
}

func TestStatsService_SeriesLengthInvariant(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	for _, windowDays := range []int{0, 1, 7, 30} {
		svc := fixedStatsService(statsLinkRepo(), &mockStatsRepository{}, now)
		snap, err := svc.Snapshot(context.Background(), "abc123", windowDays)
		if err != nil {
			t.Fatalf("Snapshot(%d) returned error: %v", windowDays, err)
		}
		if len(snap.Series) != windowDays+1 {
			t.Fatalf("window %d: expected %d buckets, got %d", windowDays, windowDays+1, len(snap.Series))
		}
		for i := 1; i < len(snap.Series); i++ {
			if snap.Series[i-1].Date >= snap.Series[i].Date {
				t.Fatalf("series not in ascending date order: %q then %q", snap.Series[i-1].Date, snap.Series[i].Date)
			}
		}
		if last := snap.Series[len(snap.Series)-1].Date; last != "2026-03-10" {
			t.Fatalf("expected series to end today, got %q", last)
		}
	}
}

func TestStatsService_ZeroFilledDays(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC)
	stats := &mockStatsRepository{
		dailyFn: func(ctx context.Context, code string, from, to time.Time) (map[string]int64, error) {
			return map[string]int64{"2026-03-08": 3, "2026-03-10": 1}, nil
		},
	}
	svc := fixedStatsService(statsLinkRepo(), stats, now)

	snap, err := svc.Snapshot(context.Background(), "abc123", 3)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}

	want := []model.DayCount{
		{Date: "2026-03-07", Clicks: 0},
		{Date: "2026-03-08", Clicks: 3},
		{Date: "2026-03-09", Clicks: 0},
		{Date: "2026-03-10", Clicks: 1},
	}
	if len(snap.Series) != len(want) {
		t.Fatalf("expected %d buckets, got %d", len(want), len(snap.Series))
	}
	for i, w := range want {
		if snap.Series[i] != w {
			t.Fatalf("bucket %d: expected %+v, got %+v", i, w, snap.Series[i])
		}
	}
}

func TestStatsService_ReferrerBreakdownCapped(t *testing.T) {
	limits := make(map[string]int)
	stats := &mockStatsRepository{
		dimensionFn: func(ctx context.Context, code, dimension string, limit int) ([]model.DimensionCount, error) {
			limits[dimension] = limit
			return []model.DimensionCount{{Value: "x", Count: 1}}, nil
		},
	}
	svc := fixedStatsService(statsLinkRepo(), stats, time.Now())

	if _, err := svc.Snapshot(context.Background(), "abc123", 7); err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}

	if limits[repository.DimensionReferrer] != 10 {
		t.Fatalf("expected referrer breakdown capped at 10, got %d", limits[repository.DimensionReferrer])
	}
	for _, dim := range []string{repository.DimensionBrowser, repository.DimensionOS, repository.DimensionDevice} {
		if limits[dim] != 0 {
			t.Fatalf("expected %s breakdown uncapped, got limit %d", dim, limits[dim])
		}
	}
}

func TestStatsService_BreakdownOrderPreserved(t *testing.T) {
	stats := &mockStatsRepository{
		totalFn: func(ctx context.Context, code string) (int64, error) { return 6, nil },
		dimensionFn: func(ctx context.Context, code, dimension string, limit int) ([]model.DimensionCount, error) {
			if dimension != repository.DimensionBrowser {
				return nil, nil
			}
			return []model.DimensionCount{
				{Value: "Chrome", Count: 3},
				{Value: "Firefox", Count: 2},
				{Value: "Safari", Count: 1},
			}, nil
		},
	}
	svc := fixedStatsService(statsLinkRepo(), stats, time.Now())

	snap, err := svc.Snapshot(context.Background(), "abc123", 0)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	if snap.TotalClicks != 6 {
		t.Fatalf("expected total 6, got %d", snap.TotalClicks)
	}
	if len(snap.Browsers) != 3 || snap.Browsers[0].Value != "Chrome" || snap.Browsers[2].Value != "Safari" {
		t.Fatalf("expected repository ordering to be preserved, got %+v", snap.Browsers)
	}
}

func TestStatsService_UnknownLink(t *testing.T) {
	repo := &mockLinkRepository{
		getFn: func(ctx context.Context, code string) (*model.Link, error) {
			return nil, repository.ErrLinkNotFound
		},
	}
	svc := fixedStatsService(repo, &mockStatsRepository{}, time.Now())

	if _, err := svc.Snapshot(context.Background(), "missing", 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
