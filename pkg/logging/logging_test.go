package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zap.DebugLevel, ParseLevel("debug"))
	require.Equal(t, zap.WarnLevel, ParseLevel("warn"))
	require.Equal(t, zap.ErrorLevel, ParseLevel("error"))
	require.Equal(t, zap.InfoLevel, ParseLevel("verbose"))
}

func TestNew(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_ENCODING", "console")

	l, err := New("stats", "canopy-1")
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zap.InfoLevel))
	require.True(t, l.Core().Enabled(zap.WarnLevel))
}
