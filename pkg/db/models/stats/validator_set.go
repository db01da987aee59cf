package stats

const ValidatorSetsTableName = "validator_sets"

// ValidatorSetColumns defines the schema for the validator_sets table.
// One row per (height, address); the rows sharing a height form that height's snapshot.
var ValidatorSetColumns = []ColumnDef{
	{Name: "height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "voting_power", Type: "Int64", Codec: "Delta, ZSTD(3)"},
}

// ValidatorSetMember is a single row of the validator_sets table.
type ValidatorSetMember struct {
	Height      uint64 `ch:"height" json:"height"`
	Address     string `ch:"address" json:"address"`
	VotingPower int64  `ch:"voting_power" json:"voting_power"`
}

// ValidatorSet is the active validator set at a height.
type ValidatorSet struct {
	Height  uint64               `json:"height"`
	Members []ValidatorSetMember `json:"members"`
}

// VotedVotingPower sums the voting power of the members present in voted.
func (vs *ValidatorSet) VotedVotingPower(voted map[string]struct{}) int64 {
	var total int64
	for _, m := range vs.Members {
		if _, ok := voted[m.Address]; ok {
			total += m.VotingPower
		}
	}
	return total
}
