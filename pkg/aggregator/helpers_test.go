package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
)

const testChainID = "1"

var testNow = baseTime.Add(time.Hour)

func newTestService(t *testing.T, store *fakeStore, batch, start uint64) *Service {
	t.Helper()
	svc := NewService(store, zaptest.NewLogger(t), Options{
		ChainID:     testChainID,
		StartHeight: start,
		BatchSize:   batch,
		Metrics:     NewMetrics(prometheus.NewRegistry()),
		Now:         func() time.Time { return testNow },
	})
	t.Cleanup(svc.Close)
	return svc
}

// drain runs fn until a run reports no new heights and returns the number of batches.
func drain(t *testing.T, fn func(context.Context) (Result, error)) int {
	t.Helper()
	for i := 0; i < 1000; i++ {
		res, err := fn(context.Background())
		require.NoError(t, err)
		require.False(t, res.Busy)
		if res.End == res.Start {
			return i
		}
	}
	t.Fatal("aggregator did not catch up")
	return 0
}

var chainValidators = []string{"v1", "v2", "v3", "v4"}

// populateChain writes a reproducible chain over [from, to]. Every fifth height drops v4 from
// the active set, every seventh has no validator set and every eleventh has no analytics.
func populateChain(s *fakeStore, from, to uint64) {
	s.addValidators(chainValidators...)
	for h := from; h <= to; h++ {
		active := chainActive(h)
		s.addBlock(h, chainValidators[h%4], chainVoted(h, active)...)
		if h%7 != 0 {
			s.addSet(h, active...)
		}
		if h%11 != 0 {
			s.addAnalytics(h, heightTime(h), float64(h%5+1), 100)
		}
	}
}

func chainActive(h uint64) []string {
	if h%5 == 0 {
		return chainValidators[:3]
	}
	return chainValidators
}

func chainVoted(h uint64, active []string) []string {
	voted := make([]string, 0, len(active))
	for i, v := range active {
		if (h+uint64(i))%3 != 0 {
			voted = append(voted, v)
		}
	}
	return voted
}

// expectedCounters recomputes every pair's counters over [from, to] directly from the chain.
func expectedCounters(from, to uint64) map[statsmodels.PairKey]Counter {
	out := make(map[statsmodels.PairKey]Counter)
	for h := from; h <= to; h++ {
		if h%7 == 0 {
			continue
		}
		active := chainActive(h)
		voted := make(map[string]bool)
		for _, v := range chainVoted(h, active) {
			voted[v] = true
		}
		for _, v := range active {
			k := statsmodels.PairKey{Proposer: chainValidators[h%4], Voter: v}
			c := out[k]
			c.TotalCount++
			if !voted[v] {
				c.MissCount++
			}
			out[k] = c
		}
	}
	return out
}
