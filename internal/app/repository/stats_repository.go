package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pulseurl/pulseurl/internal/app/model"
)

// StatsRepository is the read-side contract for click analytics. Grouping
// and counting are pushed into Postgres so the event log never has to fit
// in memory.
type StatsRepository interface {
	TotalClicks(ctx context.Context, code string) (int64, error)
	// DimensionCounts groups events for a link by the given dimension,
	// ordered by count descending; ties resolve to the value seen first.
	// A limit <= 0 means no cap.
	DimensionCounts(ctx context.Context, code, dimension string, limit int) ([]model.DimensionCount, error)
	// DailyCounts returns per-UTC-day click counts for days that have at
	// least one event. Zero-filling is the aggregator's job.
	DailyCounts(ctx context.Context, code string, from, to time.Time) (map[string]int64, error)
}

// Dimension columns the aggregator may group by. Anything else is
// rejected before it reaches SQL.
const (
	DimensionBrowser  = "browser"
	DimensionOS       = "os"
	DimensionDevice   = "device_type"
	DimensionReferrer = "referrer"
)

var statsDimensions = map[string]struct{}{
	DimensionBrowser:  {},
	DimensionOS:       {},
	DimensionDevice:   {},
	DimensionReferrer: {},
}

type statsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository returns a pgx-backed StatsRepository reading the
// click_events table maintained by the event consumer.
func NewStatsRepository(pool *pgxpool.Pool) StatsRepository {
	return &statsRepository{pool: pool}
}

func (r *statsRepository) TotalClicks(ctx context.Context, code string) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM click_events WHERE link_code = $1`, code,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("stats: total clicks: %w", err)
	}
	return total, nil
}

func (r *statsRepository) DimensionCounts(ctx context.Context, code, dimension string, limit int) ([]model.DimensionCount, error) {
	if _, ok := statsDimensions[dimension]; !ok {
		return nil, fmt.Errorf("stats: unknown dimension %q", dimension)
	}

	// MIN(occurred_at) breaks count ties by first appearance, keeping the
	// ordering reproducible across queries.
	query := fmt.Sprintf(
		`SELECT %s, COUNT(*) AS clicks
		 FROM click_events
		 WHERE link_code = $1
		 GROUP BY %s
		 ORDER BY clicks DESC, MIN(occurred_at) ASC`, dimension, dimension)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.pool.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("stats: %s counts: %w", dimension, err)
	}
	defer rows.Close()

	var counts []model.DimensionCount
	for rows.Next() {
		var dc model.DimensionCount
		if err := rows.Scan(&dc.Value, &dc.Count); err != nil {
			return nil, fmt.Errorf("stats: scan %s row: %w", dimension, err)
		}
		counts = append(counts, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: %s rows: %w", dimension, err)
	}
	return counts, nil
}

func (r *statsRepository) DailyCounts(ctx context.Context, code string, from, to time.Time) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT to_char(occurred_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*)
		 FROM click_events
		 WHERE link_code = $1 AND occurred_at >= $2 AND occurred_at < $3
		 GROUP BY day`, code, from, to)
	if err != nil {
		return nil, fmt.Errorf("stats: daily counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var day string
		var n int64
		if err := rows.Scan(&day, &n); err != nil {
			return nil, fmt.Errorf("stats: scan daily row: %w", err)
		}
		counts[day] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: daily rows: %w", err)
	}
	return counts, nil
}
