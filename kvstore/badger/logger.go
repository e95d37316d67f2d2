package badger

import (
	"fmt"
	"log/slog"
	"strings"
)

// SlogAdapter adapts slog.Logger to badger's Logger interface.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new slog adapter.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger.With("component", "badger")}
}

// badger terminates most messages with a newline
func format(f string, v ...any) string {
	return strings.TrimRight(fmt.Sprintf(f, v...), "\n")
}

func (l *SlogAdapter) Debugf(f string, v ...any) {
	l.logger.Debug(format(f, v...))
}

func (l *SlogAdapter) Infof(f string, v ...any) {
	l.logger.Debug(format(f, v...))
}

func (l *SlogAdapter) Warningf(f string, v ...any) {
	l.logger.Warn(format(f, v...))
}

func (l *SlogAdapter) Errorf(f string, v ...any) {
	l.logger.Error(format(f, v...))
}
