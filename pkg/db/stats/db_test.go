package stats

import (
	"testing"

	"github.com/stretchr/testify/require"

	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
)

func TestDatabaseName(t *testing.T) {
	require.Equal(t, "stats_cosmoshub_4", DatabaseName("cosmoshub-4"))
	require.Equal(t, "stats_canopy_1_2", DatabaseName("Canopy.1-2"))
}

func TestGroupValidatorSets(t *testing.T) {
	sets := groupValidatorSets([]statsmodels.ValidatorSetMember{
		{Height: 10, Address: "a", VotingPower: 1},
		{Height: 10, Address: "b", VotingPower: 2},
		{Height: 12, Address: "a", VotingPower: 3},
	})
	require.Len(t, sets, 2)
	require.Len(t, sets[10].Members, 2)
	require.Equal(t, uint64(12), sets[12].Height)
	require.Nil(t, sets[11])
}

func TestTableQualifiesName(t *testing.T) {
	db := &DB{Name: "stats_c"}
	require.Equal(t, `"stats_c"."blocks"`, db.table(statsmodels.BlocksTableName))
}
