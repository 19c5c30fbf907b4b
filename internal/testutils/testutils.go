package testutils

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// NewTestLogger creates a debug level logger writing to the test's log.
func NewTestLogger(t *testing.T) *zap.SugaredLogger {
	return zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel)).Sugar()
}
