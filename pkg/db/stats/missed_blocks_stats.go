package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/canopy-network/validatorstats/pkg/db/clickhouse"
	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
)

func (db *DB) initMissedBlocksStats(ctx context.Context) error {
	return db.createTable(ctx, statsmodels.MissedBlocksStatsTableName,
		statsmodels.ColumnsToSchemaSQL(statsmodels.MissedBlockStatsColumns),
		db.Engine(clickhouse.ReplacingMergeTree, "committed_at"), "(proposer, voter, updated_at)")
}

type statsRow struct {
	Voter       string    `ch:"voter"`
	Proposer    string    `ch:"proposer"`
	Count       uint64    `ch:"missed"`
	Version     uint64    `ch:"version"`
	CommittedAt time.Time `ch:"committed"`
}

// GetMissedBlockStats returns the latest per-pair count as of asOf.
func (db *DB) GetMissedBlockStats(ctx context.Context, asOf uint64) (map[statsmodels.PairKey]*statsmodels.MissedBlockStats, error) {
	query := fmt.Sprintf(`
		SELECT
			voter,
			proposer,
			argMax(miss_count, updated_at) AS missed,
			max(updated_at) AS version,
			argMax(committed_at, updated_at) AS committed
		FROM %s FINAL
		WHERE updated_at <= ?
		GROUP BY proposer, voter
	`, db.table(statsmodels.MissedBlocksStatsTableName))

	var rows []statsRow
	if err := db.Select(ctx, &rows, query, asOf); err != nil {
		return nil, fmt.Errorf("missed block stats as of %d: %w", asOf, err)
	}
	out := make(map[statsmodels.PairKey]*statsmodels.MissedBlockStats, len(rows))
	for _, r := range rows {
		out[statsmodels.PairKey{Proposer: r.Proposer, Voter: r.Voter}] = &statsmodels.MissedBlockStats{
			Voter:       r.Voter,
			Proposer:    r.Proposer,
			Count:       r.Count,
			UpdatedAt:   r.Version,
			CommittedAt: r.CommittedAt,
		}
	}
	return out, nil
}

// InsertMissedBlockStats appends a new version of the given pair counts.
func (db *DB) InsertMissedBlockStats(ctx context.Context, rows []*statsmodels.MissedBlockStats) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES`,
		db.table(statsmodels.MissedBlocksStatsTableName), statsmodels.ColumnsToInsertList(statsmodels.MissedBlockStatsColumns))
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, r := range rows {
		if err := batch.Append(r.Voter, r.Proposer, r.Count, r.UpdatedAt, r.CommittedAt); err != nil {
			return err
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert missed block stats: %w", err)
	}
	return nil
}
