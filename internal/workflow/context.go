package workflow

import (
	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/dates"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/loader"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/staging"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/store"
)

// Stage is one subprocess of a day. Stages run in declaration order.
type Stage int

const (
	StageNone Stage = iota
	StageExtract
	StageTransform
	StageLoad
	StageValidate
	StageClean
)

func (s Stage) String() string {
	switch s {
	case StageNone:
		return "NONE"
	case StageExtract:
		return "EXTRACT"
	case StageTransform:
		return "TRANSFORM"
	case StageLoad:
		return "LOAD"
	case StageValidate:
		return "VALIDATE"
	case StageClean:
		return "CLEAN"
	default:
		return "UNKNOWN"
	}
}

// TargetState binds one configured target to its per-day runtime pieces:
// the shared store connection opened by Load, the staging plan and the
// loader instance. Clean tears all three down.
type TargetState struct {
	Config *config.Target
	Conn   store.Conn
	Plan   *staging.Plan
	Loader loader.Loader
}

// Context is the mutable state of one business date, owned by the daily
// workflow. Stages mutate it strictly in order; extractor goroutines only
// ever read it.
type Context struct {
	RunID       string
	CurrentDate dates.Date
	Config      *config.Config
	TempDir     string

	CurrentStage Stage

	Extracted      []models.SourceRecord
	ExtractedCount int
	SourceCounts   map[string]int

	Transformed      []models.TargetRecord
	TransformedCount int

	LoadedCount      int
	ValidationPassed bool
	CleanupPerformed bool

	Targets []*TargetState
}

// validateInitial asserts the context has not been used: all counters
// zero, no stage run, no targets bound.
func validateInitial(ctx *Context) error {
	switch {
	case ctx.CurrentStage != StageNone:
		return etlerr.New(etlerr.KindConfig, "context reuse: stage is %s", ctx.CurrentStage)
	case ctx.ExtractedCount != 0 || ctx.Extracted != nil:
		return etlerr.New(etlerr.KindConfig, "context reuse: extraction state set")
	case ctx.TransformedCount != 0 || ctx.Transformed != nil:
		return etlerr.New(etlerr.KindConfig, "context reuse: transform state set")
	case ctx.LoadedCount != 0:
		return etlerr.New(etlerr.KindConfig, "context reuse: load state set")
	case ctx.ValidationPassed || ctx.CleanupPerformed:
		return etlerr.New(etlerr.KindConfig, "context reuse: completion flags set")
	case len(ctx.Targets) != 0:
		return etlerr.New(etlerr.KindConfig, "context reuse: targets bound")
	}
	return nil
}
