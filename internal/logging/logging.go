// Package logging configures the process-wide structured logger. All
// packages log through the global logrus logger; records are JSON lines,
// and anything at error level or above is mirrored to stderr as one terse
// operator line naming the stage and date.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
)

// Setup applies level, formatter and sink to the global logger. An empty
// file routes JSON lines to stdout.
func Setup(level, file string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return etlerr.New(etlerr.KindConfig, "invalid log level %q", level)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	out := io.Writer(os.Stdout)
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return etlerr.Wrap(etlerr.KindConfig, err, "open log file %s", file)
		}
		out = f
	}
	log.SetOutput(out)

	hooks := make(log.LevelHooks)
	hooks.Add(&stderrHook{w: os.Stderr})
	log.StandardLogger().ReplaceHooks(hooks)
	return nil
}

// stderrHook writes one terse line per error so operators see failures
// without grepping the JSON stream.
type stderrHook struct {
	w io.Writer
}

func (h *stderrHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel}
}

func (h *stderrHook) Fire(e *log.Entry) error {
	stage, hasStage := e.Data["stage"]
	date, hasDate := e.Data["date"]
	switch {
	case hasStage && hasDate:
		fmt.Fprintf(h.w, "%v %v failed: %s\n", stage, date, e.Message)
	case hasDate:
		fmt.Fprintf(h.w, "%v failed: %s\n", date, e.Message)
	default:
		fmt.Fprintf(h.w, "error: %s\n", e.Message)
	}
	return nil
}
