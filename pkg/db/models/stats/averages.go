package stats

import "time"

const RollingAveragesTableName = "rolling_averages"
const ChainAveragesTableName = "chain_averages"
const ValidatorDailyAveragesTableName = "validator_daily_averages"

// ValidatorDailyAverageType tags validator_daily_averages rows.
const ValidatorDailyAverageType = "ValidatorDailyAverageBlockTime"

// RollingAverageColumns defines the schema for the append-only rolling_averages table.
var RollingAverageColumns = []ColumnDef{
	{Name: "window_type", Type: "LowCardinality(String)"},
	{Name: "average_block_time", Type: "Float64", Codec: "Gorilla, ZSTD(1)"},
	{Name: "average_voting_power", Type: "Float64", Codec: "Gorilla, ZSTD(1)"},
	{Name: "created_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// RollingAverage is one aggregator invocation's average for a window.
// Window is the short code: "m", "h" or "d".
type RollingAverage struct {
	Window             string    `ch:"window_type" json:"window"`
	AverageBlockTime   float64   `ch:"average_block_time" json:"average_block_time"`
	AverageVotingPower float64   `ch:"average_voting_power" json:"average_voting_power"`
	CreatedAt          time.Time `ch:"created_at" json:"created_at"`
}

// ChainAverageColumns defines the schema for chain_averages (latest value per chain and window).
var ChainAverageColumns = []ColumnDef{
	{Name: "chain_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "window_type", Type: "LowCardinality(String)"},
	{Name: "average_block_time", Type: "Float64"},
	{Name: "average_voting_power", Type: "Float64"},
	{Name: "updated_at", Type: "DateTime64(6)"},
}

// ChainAverage is the chain-wide latest average for a window.
type ChainAverage struct {
	ChainID            string    `ch:"chain_id" json:"chain_id"`
	Window             string    `ch:"window_type" json:"window"`
	AverageBlockTime   float64   `ch:"average_block_time" json:"average_block_time"`
	AverageVotingPower float64   `ch:"average_voting_power" json:"average_voting_power"`
	UpdatedAt          time.Time `ch:"updated_at" json:"updated_at"`
}

// ValidatorDailyAverageColumns defines the schema for validator_daily_averages.
var ValidatorDailyAverageColumns = []ColumnDef{
	{Name: "proposer_address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "average_block_time", Type: "Float64", Codec: "Gorilla, ZSTD(1)"},
	{Name: "type", Type: "LowCardinality(String)"},
	{Name: "created_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// ValidatorDailyAverage is a validator's trailing 24h average block time.
type ValidatorDailyAverage struct {
	ProposerAddress  string    `ch:"proposer_address" json:"proposer_address"`
	AverageBlockTime float64   `ch:"average_block_time" json:"average_block_time"`
	Type             string    `ch:"type" json:"type"`
	CreatedAt        time.Time `ch:"created_at" json:"created_at"`
}

// ProposedHeight is a (height, proposer) projection of the blocks table.
type ProposedHeight struct {
	Height          uint64 `ch:"height"`
	ProposerAddress string `ch:"proposer_address"`
}
