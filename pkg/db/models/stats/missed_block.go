package stats

import "time"

const MissedBlocksTableName = "missed_blocks"
const MissedBlocksCumulativeTableName = "missed_blocks_cumulative"

// MissedBlockColumns defines the schema for the missed_blocks table.
// One row per (proposer, voter, height) where voter was active and did not vote.
// miss_count/total_count carry the running counters of the pair as of that height.
var MissedBlockColumns = []ColumnDef{
	{Name: "voter", Type: "String", Codec: "ZSTD(1)"},
	{Name: "proposer", Type: "String", Codec: "ZSTD(1)"},
	{Name: "height", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "precommits_count", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "validators_count", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "time", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
	{Name: "precommits", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "average_block_time", Type: "Float64", Codec: "Gorilla, ZSTD(1)"},
	{Name: "time_diff", Type: "Float64", Codec: "Gorilla, ZSTD(1)"},
	{Name: "voting_power", Type: "Float64", Codec: "Gorilla, ZSTD(1)"},
	{Name: "voted_voting_power", Type: "Int64", Codec: "Delta, ZSTD(3)"},
	{Name: "updated_at", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "miss_count", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "total_count", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "committed_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// MissedBlock is an immutable missed-block event.
// UpdatedAt is the end height of the batch that produced the event.
type MissedBlock struct {
	Voter            string    `ch:"voter" json:"voter"`
	Proposer         string    `ch:"proposer" json:"proposer"`
	Height           uint64    `ch:"height" json:"height"`
	PrecommitsCount  uint32    `ch:"precommits_count" json:"precommits_count"`
	ValidatorsCount  uint32    `ch:"validators_count" json:"validators_count"`
	Time             time.Time `ch:"time" json:"time"`
	Precommits       uint32    `ch:"precommits" json:"precommits"`
	AverageBlockTime float64   `ch:"average_block_time" json:"average_block_time"`
	TimeDiff         float64   `ch:"time_diff" json:"time_diff"`
	VotingPower      float64   `ch:"voting_power" json:"voting_power"`
	VotedVotingPower int64     `ch:"voted_voting_power" json:"voted_voting_power"`
	UpdatedAt        uint64    `ch:"updated_at" json:"updated_at"`
	MissCount        uint64    `ch:"miss_count" json:"miss_count"`
	TotalCount       uint64    `ch:"total_count" json:"total_count"`
	CommittedAt      time.Time `ch:"committed_at" json:"committed_at"`
}

// MissedBlockCumulativeColumns defines the schema for the missed_blocks_cumulative table.
//
// Logically there is one sentinel row per (proposer, voter): the row with the greatest
// updated_at that does not exceed the checkpoint. Rows are versioned by updated_at (the batch
// end height) so that a batch retried after a crash between commit and checkpoint advance
// still seeds from the state as of its own start height.
var MissedBlockCumulativeColumns = []ColumnDef{
	{Name: "proposer", Type: "String", Codec: "ZSTD(1)"},
	{Name: "voter", Type: "String", Codec: "ZSTD(1)"},
	{Name: "miss_count", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "total_count", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "updated_at", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "committed_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// MissedBlockCumulative is the running counter of a (proposer, voter) pair.
type MissedBlockCumulative struct {
	Proposer    string    `ch:"proposer" json:"proposer"`
	Voter       string    `ch:"voter" json:"voter"`
	MissCount   uint64    `ch:"miss_count" json:"miss_count"`
	TotalCount  uint64    `ch:"total_count" json:"total_count"`
	UpdatedAt   uint64    `ch:"updated_at" json:"updated_at"`
	CommittedAt time.Time `ch:"committed_at" json:"committed_at"`
}

// Key returns the pair this counter belongs to.
func (c *MissedBlockCumulative) Key() PairKey {
	return PairKey{Proposer: c.Proposer, Voter: c.Voter}
}

// PairKey identifies a (proposer, voter) pair.
type PairKey struct {
	Proposer string `json:"proposer"`
	Voter    string `json:"voter"`
}

// Less orders pairs by proposer, then voter.
func (k PairKey) Less(o PairKey) bool {
	if k.Proposer != o.Proposer {
		return k.Proposer < o.Proposer
	}
	return k.Voter < o.Voter
}
