package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/canopy-network/validatorstats/pkg/aggregator"
)

// HandleMissedBlocks runs one missed-block batch.
func (c *Controller) HandleMissedBlocks(w http.ResponseWriter, r *http.Request) {
	c.runAndRespond(w, r, aggregator.KindMissedBlocks, c.App.Service.RunMissedBlocks)
}

// HandleMissedBlocksStats runs one missed-block stats batch.
func (c *Controller) HandleMissedBlocksStats(w http.ResponseWriter, r *http.Request) {
	c.runAndRespond(w, r, aggregator.KindMissedBlocksStats, c.App.Service.RunMissedBlocksStats)
}

// HandleRollingAverage recomputes the window named by {window}: m, h, d or their long names.
func (c *Controller) HandleRollingAverage(w http.ResponseWriter, r *http.Request) {
	selector := mux.Vars(r)["window"]
	win, err := aggregator.ParseWindow(selector)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c.runAndRespond(w, r, win.Kind, func(ctx context.Context) (aggregator.Result, error) {
		return c.App.Service.RunRollingAverage(ctx, win.Code)
	})
}

// HandleValidatorDaily recomputes every validator's trailing 24h average.
func (c *Controller) HandleValidatorDaily(w http.ResponseWriter, r *http.Request) {
	c.runAndRespond(w, r, aggregator.KindValidatorDaily, c.App.Service.RunValidatorDailyAverage)
}

// runAndRespond answers 200 for both finished and busy runs; busy is not a failure.
func (c *Controller) runAndRespond(w http.ResponseWriter, r *http.Request, kind aggregator.Kind, run func(ctx context.Context) (aggregator.Result, error)) {
	res, err := run(r.Context())
	if err != nil {
		c.App.Logger.Error("Aggregation failed", zap.String("kind", string(kind)), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, aggregator.ErrUnknownWindow) || errors.Is(err, aggregator.ErrUnknownKind) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, AggregateResponse{Status: res.Status(), Busy: res.Busy, Result: res})
}
