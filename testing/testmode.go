// Package testing puts the process in test mode when imported and carries
// helpers shared by handler tests.
package testing

import (
	"log/slog"
	"os"
	stdtesting "testing"
)

// ModeEnv is the variable the app package reads to skip runtime side effects.
const ModeEnv = "GATEHOUSE_TEST_MODE"

func init() {
	if os.Getenv(ModeEnv) == "" {
		_ = os.Setenv(ModeEnv, "1")
	}
}

// Logger returns a debug-level logger that writes through tb.Log, so output
// only shows for failing tests or with -v.
func Logger(tb stdtesting.TB) *slog.Logger {
	return slog.New(slog.NewTextHandler(tbWriter{tb}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type tbWriter struct{ tb stdtesting.TB }

func (w tbWriter) Write(p []byte) (int, error) {
	w.tb.Helper()
	w.tb.Log(string(p))
	return len(p), nil
}
