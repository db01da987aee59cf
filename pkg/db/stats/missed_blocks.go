package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/canopy-network/validatorstats/pkg/db/clickhouse"
	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
)

// initMissedBlocks creates the missed_blocks event table.
// ReplacingMergeTree(committed_at) keyed by (proposer, voter, height): a retried batch
// rewrites identical keys instead of duplicating events.
func (db *DB) initMissedBlocks(ctx context.Context) error {
	return db.createTable(ctx, statsmodels.MissedBlocksTableName,
		statsmodels.ColumnsToSchemaSQL(statsmodels.MissedBlockColumns),
		db.Engine(clickhouse.ReplacingMergeTree, "committed_at"), "(proposer, voter, height)")
}

// initMissedBlocksCumulative creates the cumulative counter table, one version per batch end height.
func (db *DB) initMissedBlocksCumulative(ctx context.Context) error {
	return db.createTable(ctx, statsmodels.MissedBlocksCumulativeTableName,
		statsmodels.ColumnsToSchemaSQL(statsmodels.MissedBlockCumulativeColumns),
		db.Engine(clickhouse.ReplacingMergeTree, "committed_at"), "(proposer, voter, updated_at)")
}

type cumulativeRow struct {
	Proposer    string    `ch:"proposer"`
	Voter       string    `ch:"voter"`
	MissCount   uint64    `ch:"miss"`
	TotalCount  uint64    `ch:"total"`
	Version     uint64    `ch:"version"`
	CommittedAt time.Time `ch:"committed"`
}

// GetMissedBlockCumulatives loads the latest cumulative per pair as of asOf for the given proposers.
func (db *DB) GetMissedBlockCumulatives(ctx context.Context, proposers []string, asOf uint64) (map[statsmodels.PairKey]*statsmodels.MissedBlockCumulative, error) {
	out := make(map[statsmodels.PairKey]*statsmodels.MissedBlockCumulative)
	if len(proposers) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT
			proposer,
			voter,
			argMax(miss_count, updated_at) AS miss,
			argMax(total_count, updated_at) AS total,
			max(updated_at) AS version,
			argMax(committed_at, updated_at) AS committed
		FROM %s FINAL
		WHERE proposer IN (?) AND updated_at <= ?
		GROUP BY proposer, voter
	`, db.table(statsmodels.MissedBlocksCumulativeTableName))

	var rows []cumulativeRow
	if err := db.Select(ctx, &rows, query, proposers, asOf); err != nil {
		return nil, fmt.Errorf("missed block cumulatives as of %d: %w", asOf, err)
	}
	for _, r := range rows {
		c := &statsmodels.MissedBlockCumulative{
			Proposer:    r.Proposer,
			Voter:       r.Voter,
			MissCount:   r.MissCount,
			TotalCount:  r.TotalCount,
			UpdatedAt:   r.Version,
			CommittedAt: r.CommittedAt,
		}
		out[c.Key()] = c
	}
	return out, nil
}

// CommitMissedBlocks sends the events, then the cumulatives. Each send is one ClickHouse insert.
// A failure after the events landed leaves rows that a retry of the same range overwrites.
func (db *DB) CommitMissedBlocks(ctx context.Context, events []*statsmodels.MissedBlock, cumulatives []*statsmodels.MissedBlockCumulative) error {
	if err := db.insertMissedBlocks(ctx, events); err != nil {
		return fmt.Errorf("insert missed blocks: %w", err)
	}
	if err := db.insertCumulatives(ctx, cumulatives); err != nil {
		return fmt.Errorf("insert missed block cumulatives: %w", err)
	}
	db.Logger.Debug("Committed missed blocks",
		zap.Int("events", len(events)),
		zap.Int("cumulatives", len(cumulatives)))
	return nil
}

func (db *DB) insertMissedBlocks(ctx context.Context, events []*statsmodels.MissedBlock) error {
	if len(events) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES`,
		db.table(statsmodels.MissedBlocksTableName), statsmodels.ColumnsToInsertList(statsmodels.MissedBlockColumns))
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, e := range events {
		err = batch.Append(
			e.Voter,
			e.Proposer,
			e.Height,
			e.PrecommitsCount,
			e.ValidatorsCount,
			e.Time,
			e.Precommits,
			e.AverageBlockTime,
			e.TimeDiff,
			e.VotingPower,
			e.VotedVotingPower,
			e.UpdatedAt,
			e.MissCount,
			e.TotalCount,
			e.CommittedAt,
		)
		if err != nil {
			return err
		}
	}
	return batch.Send()
}

func (db *DB) insertCumulatives(ctx context.Context, cumulatives []*statsmodels.MissedBlockCumulative) error {
	if len(cumulatives) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES`,
		db.table(statsmodels.MissedBlocksCumulativeTableName), statsmodels.ColumnsToInsertList(statsmodels.MissedBlockCumulativeColumns))
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, c := range cumulatives {
		if err := batch.Append(c.Proposer, c.Voter, c.MissCount, c.TotalCount, c.UpdatedAt, c.CommittedAt); err != nil {
			return err
		}
	}
	return batch.Send()
}

// CountMissedBlocksByPair counts committed missed-block events with height in (start, end] per pair.
func (db *DB) CountMissedBlocksByPair(ctx context.Context, start, end uint64) ([]*statsmodels.MissedPairCount, error) {
	query := fmt.Sprintf(`
		SELECT voter, proposer, count() AS missed
		FROM %s FINAL
		WHERE height > ? AND height <= ?
		GROUP BY voter, proposer
		ORDER BY proposer, voter
	`, db.table(statsmodels.MissedBlocksTableName))

	var rows []*statsmodels.MissedPairCount
	if err := db.Select(ctx, &rows, query, start, end); err != nil {
		return nil, fmt.Errorf("count missed blocks in (%d, %d]: %w", start, end, err)
	}
	return rows, nil
}
