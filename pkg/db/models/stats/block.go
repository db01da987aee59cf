package stats

import (
	"time"
)

const BlocksTableName = "blocks"

// BlockColumns defines the schema for the blocks table.
// The table is written by the chain watcher; this service only reads it.
var BlockColumns = []ColumnDef{
	{Name: "height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "proposer_address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "validators", Type: "Array(String)", Codec: "ZSTD(1)"},
	{Name: "precommits_count", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "validators_count", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "time", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// Block is a finalized block as recorded by the chain watcher.
// Validators holds the addresses that signed (pre-committed) the block.
type Block struct {
	Height          uint64    `ch:"height" json:"height"`
	ProposerAddress string    `ch:"proposer_address" json:"proposer_address"`
	Validators      []string  `ch:"validators" json:"validators"`
	PrecommitsCount uint32    `ch:"precommits_count" json:"precommits_count"`
	ValidatorsCount uint32    `ch:"validators_count" json:"validators_count"`
	Time            time.Time `ch:"time" json:"time"`
}

// VotedSet returns the set of addresses that voted for this block.
func (b *Block) VotedSet() map[string]struct{} {
	voted := make(map[string]struct{}, len(b.Validators))
	for _, addr := range b.Validators {
		voted[addr] = struct{}{}
	}
	return voted
}
