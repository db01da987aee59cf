package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/validatorstats/pkg/db/clickhouse"
	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
)

func (db *DB) initAnalytics(ctx context.Context) error {
	return db.createTable(ctx, statsmodels.AnalyticsTableName,
		statsmodels.ColumnsToSchemaSQL(statsmodels.AnalyticsColumns),
		db.Engine(clickhouse.ReplacingMergeTree, ""), "height")
}

func (db *DB) selectAnalytics(ctx context.Context, where string, args ...any) ([]*statsmodels.Analytics, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s FINAL
		WHERE %s
		ORDER BY height ASC
	`, statsmodels.ColumnsToInsertList(statsmodels.AnalyticsColumns), db.table(statsmodels.AnalyticsTableName), where)

	var rows []*statsmodels.Analytics
	if err := db.Select(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetAnalyticsInRange returns analytics with height in (start, end], ascending.
func (db *DB) GetAnalyticsInRange(ctx context.Context, start, end uint64) ([]*statsmodels.Analytics, error) {
	rows, err := db.selectAnalytics(ctx, "height > ? AND height <= ?", start, end)
	if err != nil {
		return nil, fmt.Errorf("analytics in (%d, %d]: %w", start, end, err)
	}
	return rows, nil
}

// GetAnalyticsByHeight returns analytics at height, or nil when absent.
func (db *DB) GetAnalyticsByHeight(ctx context.Context, height uint64) (*statsmodels.Analytics, error) {
	rows, err := db.selectAnalytics(ctx, "height = ?", height)
	if err != nil {
		return nil, fmt.Errorf("analytics %d: %w", height, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// GetAnalyticsByHeights returns analytics for the given heights. Missing heights are omitted.
func (db *DB) GetAnalyticsByHeights(ctx context.Context, heights []uint64) ([]*statsmodels.Analytics, error) {
	if len(heights) == 0 {
		return nil, nil
	}
	rows, err := db.selectAnalytics(ctx, "height IN (?)", heights)
	if err != nil {
		return nil, fmt.Errorf("analytics for %d heights: %w", len(heights), err)
	}
	return rows, nil
}

// GetAnalyticsSince returns analytics with time strictly after since.
func (db *DB) GetAnalyticsSince(ctx context.Context, since time.Time) ([]*statsmodels.Analytics, error) {
	rows, err := db.selectAnalytics(ctx, "time > ?", since)
	if err != nil {
		return nil, fmt.Errorf("analytics since %s: %w", since.Format(time.RFC3339), err)
	}
	return rows, nil
}
