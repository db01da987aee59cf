package stats

import (
	"context"
	"fmt"

	"github.com/canopy-network/validatorstats/pkg/db/clickhouse"
	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
)

// initCheckpoints creates processing_checkpoints: one logical row per chain, latest updated_at wins.
func (db *DB) initCheckpoints(ctx context.Context) error {
	return db.createTable(ctx, statsmodels.CheckpointsTableName,
		statsmodels.ColumnsToSchemaSQL(statsmodels.CheckpointColumns),
		db.Engine(clickhouse.ReplacingMergeTree, "updated_at"), "chain_id")
}

// GetCheckpoint reads the chain's checkpoint row. Returns nil, nil when none was written yet.
func (db *DB) GetCheckpoint(ctx context.Context, chainID string) (*statsmodels.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s FINAL
		WHERE chain_id = ?
		LIMIT 1
	`, statsmodels.ColumnsToInsertList(statsmodels.CheckpointColumns), db.table(statsmodels.CheckpointsTableName))

	var rows []*statsmodels.Checkpoint
	if err := db.Select(ctx, &rows, query, chainID); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", chainID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// UpsertCheckpoint writes a new version of the chain's checkpoint row.
func (db *DB) UpsertCheckpoint(ctx context.Context, cp *statsmodels.Checkpoint) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?)`,
		db.table(statsmodels.CheckpointsTableName), statsmodels.ColumnsToInsertList(statsmodels.CheckpointColumns))
	err := db.Exec(ctx, query,
		cp.ChainID,
		cp.LastProcessedMissedBlockHeight,
		cp.LastProcessedMissedBlockTime,
		cp.LastProcessedMissedBlockStatsHeight,
		cp.LastProcessedMissedBlockStatsTime,
		cp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert checkpoint %s: %w", cp.ChainID, err)
	}
	return nil
}
