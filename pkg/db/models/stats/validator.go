package stats

import "time"

const ValidatorsTableName = "validators"

// ValidatorColumns defines the schema for the validator roster.
var ValidatorColumns = []ColumnDef{
	{Name: "address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "moniker", Type: "String", Codec: "ZSTD(1)"},
	{Name: "operator_address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "updated_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// Validator is a roster entry (address -> metadata).
type Validator struct {
	Address         string    `ch:"address" json:"address"`
	Moniker         string    `ch:"moniker" json:"moniker"`
	OperatorAddress string    `ch:"operator_address" json:"operator_address"`
	UpdatedAt       time.Time `ch:"updated_at" json:"updated_at"`
}
