package stats

import (
	"context"
	"fmt"

	"github.com/canopy-network/validatorstats/pkg/db/clickhouse"
	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
)

func (db *DB) initValidatorSets(ctx context.Context) error {
	return db.createTable(ctx, statsmodels.ValidatorSetsTableName,
		statsmodels.ColumnsToSchemaSQL(statsmodels.ValidatorSetColumns),
		db.Engine(clickhouse.ReplacingMergeTree, ""), "(height, address)")
}

// GetValidatorSetsInRange returns the snapshots with height in (start, end] keyed by height.
// Heights without any member row are absent from the map.
func (db *DB) GetValidatorSetsInRange(ctx context.Context, start, end uint64) (map[uint64]*statsmodels.ValidatorSet, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s FINAL
		WHERE height > ? AND height <= ?
		ORDER BY height ASC, address ASC
	`, statsmodels.ColumnsToInsertList(statsmodels.ValidatorSetColumns), db.table(statsmodels.ValidatorSetsTableName))

	var members []statsmodels.ValidatorSetMember
	if err := db.Select(ctx, &members, query, start, end); err != nil {
		return nil, fmt.Errorf("validator sets in (%d, %d]: %w", start, end, err)
	}
	return groupValidatorSets(members), nil
}

// GetValidatorSetByHeight returns the snapshot at height, or nil when none is stored.
func (db *DB) GetValidatorSetByHeight(ctx context.Context, height uint64) (*statsmodels.ValidatorSet, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s FINAL
		WHERE height = ?
		ORDER BY address ASC
	`, statsmodels.ColumnsToInsertList(statsmodels.ValidatorSetColumns), db.table(statsmodels.ValidatorSetsTableName))

	var members []statsmodels.ValidatorSetMember
	if err := db.Select(ctx, &members, query, height); err != nil {
		return nil, fmt.Errorf("validator set %d: %w", height, err)
	}
	return groupValidatorSets(members)[height], nil
}

func groupValidatorSets(members []statsmodels.ValidatorSetMember) map[uint64]*statsmodels.ValidatorSet {
	sets := make(map[uint64]*statsmodels.ValidatorSet)
	for _, m := range members {
		set, ok := sets[m.Height]
		if !ok {
			set = &statsmodels.ValidatorSet{Height: m.Height}
			sets[m.Height] = set
		}
		set.Members = append(set.Members, m)
	}
	return sets
}
