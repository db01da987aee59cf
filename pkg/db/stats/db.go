package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/canopy-network/validatorstats/pkg/db/clickhouse"
)

// DB is the per-chain stats database. It implements Store.
type DB struct {
	clickhouse.Client
	Name    string
	ChainID string
}

// DatabaseName derives the per-chain database name, e.g. "canopy-1" -> "stats_canopy_1".
func DatabaseName(chainID string) string {
	return clickhouse.SanitizeName("stats_" + chainID)
}

// New connects to ClickHouse, creates the chain database and its tables, and switches the
// connection to it.
func New(ctx context.Context, logger *zap.Logger, dsn, cluster, chainID string) (*DB, error) {
	dbName := DatabaseName(chainID)
	pool := clickhouse.PoolConfigFromEnv()

	client, err := clickhouse.New(ctx, logger.With(zap.String("db", dbName)), dsn, cluster, dbName, pool)
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client, Name: dbName, ChainID: chainID}
	if err := db.InitializeDB(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.SwitchToTargetDatabase(ctx, dsn, pool); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) DatabaseName() string { return db.Name }

// InitializeDB creates the database and every table the service reads or writes.
// Upstream tables are created too, so the service can boot before the chain watcher.
func (db *DB) InitializeDB(ctx context.Context) error {
	initStart := time.Now()

	if err := db.CreateDbIfNotExists(ctx, db.Name); err != nil {
		return fmt.Errorf("failed to create database %s: %w", db.Name, err)
	}

	initOps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"blocks", db.initBlocks},
		{"validator_sets", db.initValidatorSets},
		{"analytics", db.initAnalytics},
		{"validators", db.initValidators},
		{"missed_blocks", db.initMissedBlocks},
		{"missed_blocks_cumulative", db.initMissedBlocksCumulative},
		{"missed_blocks_stats", db.initMissedBlocksStats},
		{"processing_checkpoints", db.initCheckpoints},
		{"rolling_averages", db.initRollingAverages},
		{"chain_averages", db.initChainAverages},
		{"validator_daily_averages", db.initValidatorDailyAverages},
	}

	pool := pond.NewPool(len(initOps))
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	errs := make([]error, len(initOps))
	for i, op := range initOps {
		group.Submit(func() {
			if err := op.fn(group.Context()); err != nil {
				errs[i] = fmt.Errorf("init %s: %w", op.name, err)
			}
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return err
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	db.Logger.Info("Stats database initialized",
		zap.String("database", db.Name),
		zap.Int("tables", len(initOps)),
		zap.Duration("duration", time.Since(initStart)))
	return nil
}

// createTable issues a CREATE TABLE IF NOT EXISTS with the given engine and ORDER BY.
func (db *DB) createTable(ctx context.Context, table, schema, engine, orderBy string) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" %s (
			%s
		) ENGINE = %s
		ORDER BY %s
		SETTINGS index_granularity = 8192
	`, db.Name, table, db.OnCluster(), schema, engine, orderBy)
	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}

// table returns the fully qualified, quoted table name.
func (db *DB) table(name string) string {
	return fmt.Sprintf(`"%s"."%s"`, db.Name, name)
}
