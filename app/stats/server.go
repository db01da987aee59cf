package stats

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/canopy-network/validatorstats/app/stats/controller"
	"github.com/canopy-network/validatorstats/app/stats/types"
)

// NewServer builds the trigger API server on app.Config.Addr.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := app.Config.Addr

	app.Server = &http.Server{
		Addr:              addr,
		Handler:           controller.WithCORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}
