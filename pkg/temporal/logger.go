package temporal

import (
	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// ZapAdapter is a Temporal logger adapter for Zap.
type ZapAdapter struct{ *zap.SugaredLogger }

var (
	_ log.Logger     = (*ZapAdapter)(nil)
	_ log.WithLogger = (*ZapAdapter)(nil)
)

// NewZapAdapter creates a new Temporal logger adapter from a Zap logger.
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	// Sugared so keyvals pass straight through.
	return &ZapAdapter{logger.Sugar()}
}

func (z *ZapAdapter) Debug(msg string, keyvals ...interface{}) { z.Debugw(msg, keyvals...) }
func (z *ZapAdapter) Info(msg string, keyvals ...interface{})  { z.Infow(msg, keyvals...) }
func (z *ZapAdapter) Warn(msg string, keyvals ...interface{})  { z.Warnw(msg, keyvals...) }
func (z *ZapAdapter) Error(msg string, keyvals ...interface{}) { z.Errorw(msg, keyvals...) }

// With returns an adapter that always logs keyvals.
func (z *ZapAdapter) With(keyvals ...interface{}) log.Logger {
	return &ZapAdapter{z.SugaredLogger.With(keyvals...)}
}
