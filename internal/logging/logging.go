// Package logging configures zerolog for the server, the CLI and the task queue.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clinicmgr/clinic/internal/config"
)

// New builds a logger writing to w. Pretty output uses the console writer.
func New(cfg config.Log, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Configure installs the logger built from cfg as the global logger and
// returns it.
func Configure(cfg config.Log) zerolog.Logger {
	logger := New(cfg, os.Stderr)
	zerolog.SetGlobalLevel(logger.GetLevel())
	log.Logger = logger
	return logger
}

// TaskLogger adapts zerolog to the task queue's Info/Error logger interface.
type TaskLogger struct {
	logger zerolog.Logger
}

func NewTaskLogger(logger zerolog.Logger) *TaskLogger {
	return &TaskLogger{logger: logger.With().Str("component", "tasks").Logger()}
}

func (l *TaskLogger) Info(message string, params ...any) {
	withParams(l.logger.Info(), params).Msg(message)
}

func (l *TaskLogger) Error(message string, params ...any) {
	withParams(l.logger.Error(), params).Msg(message)
}

// withParams attaches slog-style key/value pairs to an event.
func withParams(e *zerolog.Event, params []any) *zerolog.Event {
	for i := 0; i+1 < len(params); i += 2 {
		key, ok := params[i].(string)
		if !ok {
			key = fmt.Sprint(params[i])
		}
		e = e.Interface(key, params[i+1])
	}
	if len(params)%2 == 1 {
		e = e.Interface("extra", params[len(params)-1])
	}
	return e
}
