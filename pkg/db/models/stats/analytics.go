package stats

import "time"

const AnalyticsTableName = "analytics"

// AnalyticsColumns defines the schema for the analytics table, populated by the upstream enrichment stage.
var AnalyticsColumns = []ColumnDef{
	{Name: "height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "time", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
	{Name: "precommits", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "average_block_time", Type: "Float64", Codec: "Gorilla, ZSTD(1)"},
	{Name: "time_diff", Type: "Float64", Codec: "Gorilla, ZSTD(1)"},
	{Name: "voting_power", Type: "Float64", Codec: "Gorilla, ZSTD(1)"},
}

// Analytics holds the derived per-height metrics.
// TimeDiff is the inter-block time delta and VotingPower the aggregate voting power at the height.
type Analytics struct {
	Height           uint64    `ch:"height" json:"height"`
	Time             time.Time `ch:"time" json:"time"`
	Precommits       uint32    `ch:"precommits" json:"precommits"`
	AverageBlockTime float64   `ch:"average_block_time" json:"average_block_time"`
	TimeDiff         float64   `ch:"time_diff" json:"time_diff"`
	VotingPower      float64   `ch:"voting_power" json:"voting_power"`
}
