package controller

import (
	"time"

	"github.com/canopy-network/validatorstats/pkg/aggregator"
	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
)

// AggregateResponse is returned by every trigger route. Status is "updating..." when busy.
type AggregateResponse struct {
	Status string            `json:"status"`
	Busy   bool              `json:"busy"`
	Result aggregator.Result `json:"result"`
}

// StateResponse describes every aggregator kind of this process.
type StateResponse struct {
	ChainID string                    `json:"chain_id"`
	Kinds   []aggregator.KindSnapshot `json:"kinds"`
}

// AveragesResponse lists the latest chain-wide average of each window.
type AveragesResponse struct {
	ChainID  string                      `json:"chain_id"`
	Averages []*statsmodels.ChainAverage `json:"averages"`
}

// HealthResponse is "ok" when every dependency check passed.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	CheckedAt time.Time         `json:"checked_at"`
}
