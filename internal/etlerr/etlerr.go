// Package etlerr defines the structured error model shared by every stage
// of the pipeline. Each failure carries a kind (for exit-code mapping and
// log classification) plus the stage and business date it occurred on.
package etlerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind string

const (
	KindConfig       Kind = "ConfigError"
	KindDownload     Kind = "DownloadError"
	KindFileTooLarge Kind = "FileTooLarge"
	KindParse        Kind = "ParseError"
	KindSchema       Kind = "SchemaError"
	KindLoad         Kind = "LoadError"
	KindValidation   Kind = "ValidationError"
	KindCleanup      Kind = "CleanupError"
	KindCancel       Kind = "CancelError"
)

// Error is the structured error surfaced by stages. Stage and Date are
// stamped by the sequencer; leaf code only sets Kind and Message.
type Error struct {
	Kind    Kind
	Stage   string
	Date    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Kind != "" {
		b.WriteString(string(e.Kind))
	} else {
		b.WriteString("error")
	}
	if e.Stage != "" || e.Date != "" {
		fmt.Fprintf(&b, " [stage=%s date=%s]", e.Stage, e.Date)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a typed error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a typed error around an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithStage returns a copy of err carrying the given stage and date. A typed
// error keeps its kind and existing stage/date stamps; anything else is
// wrapped with an empty kind so callers can still detect untyped failures.
func WithStage(err error, stage, date string) *Error {
	var e *Error
	if errors.As(err, &e) {
		clone := *e
		if clone.Stage == "" {
			clone.Stage = stage
		}
		if clone.Date == "" {
			clone.Date = date
		}
		return &clone
	}
	return &Error{Stage: stage, Date: date, Message: "unexpected failure", Cause: err}
}

// KindOf walks the chain and returns the outermost kind, or "" when the
// error carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
