package stats

import (
	"context"
	"fmt"

	"github.com/canopy-network/validatorstats/pkg/db/clickhouse"
	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
)

func (db *DB) initValidators(ctx context.Context) error {
	return db.createTable(ctx, statsmodels.ValidatorsTableName,
		statsmodels.ColumnsToSchemaSQL(statsmodels.ValidatorColumns),
		db.Engine(clickhouse.ReplacingMergeTree, "updated_at"), "address")
}

// GetValidators returns the validator roster ordered by address.
func (db *DB) GetValidators(ctx context.Context) ([]*statsmodels.Validator, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s FINAL
		ORDER BY address ASC
	`, statsmodels.ColumnsToInsertList(statsmodels.ValidatorColumns), db.table(statsmodels.ValidatorsTableName))

	var validators []*statsmodels.Validator
	if err := db.Select(ctx, &validators, query); err != nil {
		return nil, fmt.Errorf("validators: %w", err)
	}
	return validators, nil
}
