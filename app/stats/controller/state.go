package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/canopy-network/validatorstats/pkg/aggregator"
	statsmodels "github.com/canopy-network/validatorstats/pkg/db/models/stats"
)

// HandleCheckpoint returns the decoded checkpoint of the chain.
func (c *Controller) HandleCheckpoint(w http.ResponseWriter, r *http.Request) {
	progress, err := c.App.Service.Checkpoint(r.Context())
	if err != nil {
		c.App.Logger.Error("Unable to read checkpoint", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// HandleState returns the coordinator state of every kind.
func (c *Controller) HandleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StateResponse{
		ChainID: c.App.Config.ChainID,
		Kinds:   c.App.Service.Coordinator.Snapshot(),
	})
}

// HandleAverages returns the latest chain-wide averages.
func (c *Controller) HandleAverages(w http.ResponseWriter, r *http.Request) {
	rows, err := c.App.Service.Store.GetChainAverages(r.Context(), c.App.Config.ChainID)
	if err != nil {
		c.App.Logger.Error("Unable to read chain averages", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = make([]*statsmodels.ChainAverage, 0)
	}
	writeJSON(w, http.StatusOK, AveragesResponse{ChainID: c.App.Config.ChainID, Averages: rows})
}

// HandleHeight returns the merged block, analytics and validator set of one height.
func (c *Controller) HandleHeight(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseUint(mux.Vars(r)["height"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid height")
		return
	}
	view, err := c.App.Service.Height(r.Context(), height)
	if errors.Is(err, aggregator.ErrHeightNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		c.App.Logger.Error("Unable to read height", zap.Uint64("height", height), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}
