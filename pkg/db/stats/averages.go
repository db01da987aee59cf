package stats

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/canopy-network/validatorstats/pkg/db/clickhouse"
	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
)

func (db *DB) initRollingAverages(ctx context.Context) error {
	return db.createTable(ctx, statsmodels.RollingAveragesTableName,
		statsmodels.ColumnsToSchemaSQL(statsmodels.RollingAverageColumns),
		db.Engine(clickhouse.MergeTree, ""), "(window_type, created_at)")
}

func (db *DB) initChainAverages(ctx context.Context) error {
	return db.createTable(ctx, statsmodels.ChainAveragesTableName,
		statsmodels.ColumnsToSchemaSQL(statsmodels.ChainAverageColumns),
		db.Engine(clickhouse.ReplacingMergeTree, "updated_at"), "(chain_id, window_type)")
}

func (db *DB) initValidatorDailyAverages(ctx context.Context) error {
	return db.createTable(ctx, statsmodels.ValidatorDailyAveragesTableName,
		statsmodels.ColumnsToSchemaSQL(statsmodels.ValidatorDailyAverageColumns),
		db.Engine(clickhouse.MergeTree, ""), "(proposer_address, created_at)")
}

// InsertRollingAverage appends one window average.
func (db *DB) InsertRollingAverage(ctx context.Context, avg *statsmodels.RollingAverage) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?)`,
		db.table(statsmodels.RollingAveragesTableName), statsmodels.ColumnsToInsertList(statsmodels.RollingAverageColumns))
	if err := db.Exec(ctx, query, avg.Window, avg.AverageBlockTime, avg.AverageVotingPower, avg.CreatedAt); err != nil {
		return fmt.Errorf("insert rolling average %s: %w", avg.Window, err)
	}
	return nil
}

// UpsertChainAverage replaces the chain's latest value for a window.
func (db *DB) UpsertChainAverage(ctx context.Context, avg *statsmodels.ChainAverage) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?)`,
		db.table(statsmodels.ChainAveragesTableName), statsmodels.ColumnsToInsertList(statsmodels.ChainAverageColumns))
	if err := db.Exec(ctx, query, avg.ChainID, avg.Window, avg.AverageBlockTime, avg.AverageVotingPower, avg.UpdatedAt); err != nil {
		return fmt.Errorf("upsert chain average %s: %w", avg.Window, err)
	}
	return nil
}

// GetChainAverages returns the latest value of every window for the chain.
func (db *DB) GetChainAverages(ctx context.Context, chainID string) ([]*statsmodels.ChainAverage, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s FINAL
		WHERE chain_id = ?
		ORDER BY window_type
	`, statsmodels.ColumnsToInsertList(statsmodels.ChainAverageColumns), db.table(statsmodels.ChainAveragesTableName))

	var rows []*statsmodels.ChainAverage
	if err := db.Select(ctx, &rows, query, chainID); err != nil {
		return nil, fmt.Errorf("chain averages %s: %w", chainID, err)
	}
	return rows, nil
}

// InsertValidatorDailyAverages appends one row per validator.
func (db *DB) InsertValidatorDailyAverages(ctx context.Context, rows []*statsmodels.ValidatorDailyAverage) error {
	if len(rows) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES`,
		db.table(statsmodels.ValidatorDailyAveragesTableName), statsmodels.ColumnsToInsertList(statsmodels.ValidatorDailyAverageColumns))
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, r := range rows {
		if err := batch.Append(r.ProposerAddress, r.AverageBlockTime, r.Type, r.CreatedAt); err != nil {
			return err
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert validator daily averages: %w", err)
	}
	return nil
}
