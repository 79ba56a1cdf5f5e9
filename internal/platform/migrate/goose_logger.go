package migrate

import (
	"fmt"
	"log/slog"
	"strings"
)

// gooseSlogLogger routes goose progress output through slog. Fatalf panics
// instead of exiting so the gateway's startup path can report the failure.
type gooseSlogLogger struct {
	logger *slog.Logger
}

func (l gooseSlogLogger) Printf(format string, v ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l gooseSlogLogger) Fatalf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if l.logger != nil {
		l.logger.Error(msg, "component", "migrate")
	}
	panic("migrate: " + msg)
}
