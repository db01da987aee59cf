package activity

import (
	"go.uber.org/zap"

	"github.com/canopy-network/validatorstats/pkg/aggregator"
)

// Context holds the dependencies of the stats activities. Service is the process-wide instance.
type Context struct {
	Logger  *zap.Logger
	Service *aggregator.Service
}
