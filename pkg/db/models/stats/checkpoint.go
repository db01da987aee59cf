package stats

import "time"

const CheckpointsTableName = "processing_checkpoints"

// CheckpointColumns defines the schema for the processing_checkpoints table.
// ReplacingMergeTree(updated_at) keyed by chain_id keeps one logical row per chain.
var CheckpointColumns = []ColumnDef{
	{Name: "chain_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "last_processed_missed_block_height", Type: "UInt64"},
	{Name: "last_processed_missed_block_time", Type: "DateTime64(6)"},
	{Name: "last_processed_missed_block_stats_height", Type: "UInt64"},
	{Name: "last_processed_missed_block_stats_time", Type: "DateTime64(6)"},
	{Name: "updated_at", Type: "DateTime64(6)"},
}

// Checkpoint is the per-chain processing progress.
type Checkpoint struct {
	ChainID                             string    `ch:"chain_id" json:"chain_id"`
	LastProcessedMissedBlockHeight      uint64    `ch:"last_processed_missed_block_height" json:"last_processed_missed_block_height"`
	LastProcessedMissedBlockTime        time.Time `ch:"last_processed_missed_block_time" json:"last_processed_missed_block_time"`
	LastProcessedMissedBlockStatsHeight uint64    `ch:"last_processed_missed_block_stats_height" json:"last_processed_missed_block_stats_height"`
	LastProcessedMissedBlockStatsTime   time.Time `ch:"last_processed_missed_block_stats_time" json:"last_processed_missed_block_stats_time"`
	UpdatedAt                           time.Time `ch:"updated_at" json:"updated_at"`
}
