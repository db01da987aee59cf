package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/validatorstats/pkg/db/clickhouse"
	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
)

// initBlocks creates the blocks table written by the chain watcher.
// ReplacingMergeTree(height) keyed by height: re-delivered blocks collapse to one row.
func (db *DB) initBlocks(ctx context.Context) error {
	return db.createTable(ctx, statsmodels.BlocksTableName,
		statsmodels.ColumnsToSchemaSQL(statsmodels.BlockColumns),
		db.Engine(clickhouse.ReplacingMergeTree, "height"), "height")
}

// GetLatestBlockHeight returns the highest stored block height, 0 when the table is empty.
func (db *DB) GetLatestBlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	query := fmt.Sprintf(`SELECT max(height) FROM %s`, db.table(statsmodels.BlocksTableName))
	if err := db.QueryRow(ctx, query).Scan(&height); err != nil {
		if clickhouse.IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("latest block height: %w", err)
	}
	return height, nil
}

// GetBlocksInRange returns the blocks with height in (start, end], ascending.
func (db *DB) GetBlocksInRange(ctx context.Context, start, end uint64) ([]*statsmodels.Block, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s FINAL
		WHERE height > ? AND height <= ?
		ORDER BY height ASC
	`, statsmodels.ColumnsToInsertList(statsmodels.BlockColumns), db.table(statsmodels.BlocksTableName))

	var blocks []*statsmodels.Block
	if err := db.Select(ctx, &blocks, query, start, end); err != nil {
		return nil, fmt.Errorf("blocks in (%d, %d]: %w", start, end, err)
	}
	return blocks, nil
}

// GetBlockByHeight returns the block at height, or nil when it has not been stored.
func (db *DB) GetBlockByHeight(ctx context.Context, height uint64) (*statsmodels.Block, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s FINAL
		WHERE height = ?
		LIMIT 1
	`, statsmodels.ColumnsToInsertList(statsmodels.BlockColumns), db.table(statsmodels.BlocksTableName))

	var blocks []*statsmodels.Block
	if err := db.Select(ctx, &blocks, query, height); err != nil {
		return nil, fmt.Errorf("block %d: %w", height, err)
	}
	if len(blocks) == 0 {
		return nil, nil
	}
	return blocks[0], nil
}

// GetProposedHeightsSince returns (height, proposer) for every block with time > since.
func (db *DB) GetProposedHeightsSince(ctx context.Context, since time.Time) ([]*statsmodels.ProposedHeight, error) {
	query := fmt.Sprintf(`
		SELECT height, proposer_address
		FROM %s FINAL
		WHERE time > ?
		ORDER BY height ASC
	`, db.table(statsmodels.BlocksTableName))

	var rows []*statsmodels.ProposedHeight
	if err := db.Select(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("proposed heights since %s: %w", since.Format(time.RFC3339), err)
	}
	return rows, nil
}
