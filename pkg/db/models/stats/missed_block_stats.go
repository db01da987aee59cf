package stats

import "time"

const MissedBlocksStatsTableName = "missed_blocks_stats"

// MissedBlockStatsColumns defines the schema for the missed_blocks_stats table.
// Versioned by updated_at like missed_blocks_cumulative.
var MissedBlockStatsColumns = []ColumnDef{
	{Name: "voter", Type: "String", Codec: "ZSTD(1)"},
	{Name: "proposer", Type: "String", Codec: "ZSTD(1)"},
	{Name: "miss_count", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "updated_at", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "committed_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// MissedBlockStats is the number of blocks proposed by Proposer that Voter missed.
type MissedBlockStats struct {
	Voter       string    `ch:"voter" json:"voter"`
	Proposer    string    `ch:"proposer" json:"proposer"`
	Count       uint64    `ch:"miss_count" json:"count"`
	UpdatedAt   uint64    `ch:"updated_at" json:"updated_at"`
	CommittedAt time.Time `ch:"committed_at" json:"committed_at"`
}

// MissedPairCount is a grouped count of missed-block events for a pair.
type MissedPairCount struct {
	Voter    string `ch:"voter"`
	Proposer string `ch:"proposer"`
	Count    uint64 `ch:"missed"`
}

// Key returns the pair this count belongs to.
func (c *MissedPairCount) Key() PairKey {
	return PairKey{Proposer: c.Proposer, Voter: c.Voter}
}
