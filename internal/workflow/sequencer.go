package workflow

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/eventbus"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/extractor"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/loader"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/staging"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/store"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/transform"
)

// Deps are the engine's injected collaborators. Tests substitute fakes;
// the CLI wires the real implementations via DefaultDeps.
type Deps struct {
	Factory   ExtractorFactory
	Registry  *transform.Registry
	OpenStore func(ctx context.Context, tgt *config.Target) (store.Conn, error)
	NewLoader func() loader.Loader
	Bus       *eventbus.Bus
	DryRun    bool
}

// DefaultDeps wires the production collaborators.
func DefaultDeps() Deps {
	return Deps{
		Factory:   extractor.Factory{},
		Registry:  transform.NewRegistry(),
		OpenStore: store.Open,
		NewLoader: loader.NewColumnar,
	}
}

// stageDef couples a stage with its predecessor check and body.
type stageDef struct {
	stage Stage
	// check asserts the predecessor's postcondition is visible.
	check func(*Context) error
	// run does the work and reports how many records it handled.
	run func(context.Context, *Context) (int, error)
}

func (d Deps) stages() []stageDef {
	defs := []stageDef{
		{
			stage: StageExtract,
			check: func(*Context) error { return nil },
			run: func(ctx context.Context, wctx *Context) (int, error) {
				if err := runExtract(ctx, d.Factory, wctx); err != nil {
					return 0, err
				}
				return wctx.ExtractedCount, nil
			},
		},
		{
			stage: StageTransform,
			check: func(wctx *Context) error {
				if wctx.ExtractedCount > 0 || wctx.Extracted != nil {
					return nil
				}
				return etlerr.New(etlerr.KindConfig, "transform without extraction output")
			},
			run: func(ctx context.Context, wctx *Context) (int, error) {
				out, err := d.Registry.Apply(wctx.Extracted)
				if err != nil {
					return 0, err
				}
				wctx.Transformed = out
				wctx.TransformedCount = len(out)
				return len(out), nil
			},
		},
	}
	if d.DryRun {
		return defs
	}
	return append(defs,
		stageDef{
			stage: StageLoad,
			check: func(wctx *Context) error {
				if wctx.TransformedCount > 0 || wctx.Transformed != nil {
					return nil
				}
				return etlerr.New(etlerr.KindConfig, "load without transform output")
			},
			run: d.runLoad,
		},
		stageDef{
			stage: StageValidate,
			check: func(wctx *Context) error {
				if wctx.LoadedCount < 0 || len(wctx.Targets) == 0 {
					return etlerr.New(etlerr.KindConfig, "validate without load completion")
				}
				return nil
			},
			run: d.runValidate,
		},
		stageDef{
			stage: StageClean,
			check: func(wctx *Context) error {
				if !wctx.ValidationPassed {
					return etlerr.New(etlerr.KindConfig, "clean before validation passed")
				}
				return nil
			},
			run: d.runClean,
		},
	)
}

// RunDayStages executes the stage sequence against the context. On any
// stage failure (Clean excepted) it returns an empty result map and an
// error stamped with the failing stage and date.
func (d Deps) RunDayStages(ctx context.Context, wctx *Context) (map[string]models.SubprocessResult, error) {
	results := make(map[string]models.SubprocessResult)
	date := wctx.CurrentDate.Compact()

	for _, def := range d.stages() {
		if err := def.check(wctx); err != nil {
			return map[string]models.SubprocessResult{}, etlerr.WithStage(err, def.stage.String(), date)
		}

		wctx.CurrentStage = def.stage
		processed, err := def.run(ctx, wctx)

		result := models.SubprocessResult{
			Success:   err == nil,
			Processed: processed,
			Timestamp: time.Now(),
		}
		if err != nil {
			result.Error = err.Error()
		}
		results[def.stage.String()] = result
		d.publish(def.stage, date, result)

		if err != nil {
			// A clean failure is surfaced to the operator but does not
			// retro-fail the loaded day.
			if def.stage == StageClean {
				log.WithFields(log.Fields{
					"stage": def.stage.String(),
					"date":  date,
					"kind":  string(etlerr.KindCleanup),
				}).Errorf("staging cleanup failed, drop tables manually: %v", err)
				continue
			}
			return map[string]models.SubprocessResult{}, etlerr.WithStage(err, def.stage.String(), date)
		}
	}
	return results, nil
}

func (d Deps) publish(stage Stage, date string, r models.SubprocessResult) {
	if d.Bus == nil {
		return
	}
	d.Bus.Publish(eventbus.Event{
		Stage:     stage.String(),
		Date:      date,
		Timestamp: r.Timestamp,
		Success:   r.Success,
		Processed: r.Processed,
		Error:     r.Error,
	})
}

// runLoad opens the shared connection per target, materializes the
// staging tables and drives the loader. The connection is stored on the
// context for Validate and Clean; the loader never owns it.
func (d Deps) runLoad(ctx context.Context, wctx *Context) (int, error) {
	for _, tgt := range wctx.Config.Targets {
		conn, err := d.OpenStore(ctx, tgt)
		if err != nil {
			return wctx.LoadedCount, err
		}

		state := &TargetState{Config: tgt, Conn: conn}
		wctx.Targets = append(wctx.Targets, state)

		plan, err := staging.NewPlan(tgt, wctx.CurrentDate)
		if err != nil {
			return wctx.LoadedCount, err
		}
		state.Plan = plan

		creates, err := plan.CreateScripts()
		if err != nil {
			return wctx.LoadedCount, etlerr.Wrap(etlerr.KindLoad, err, "render create scripts")
		}
		for _, script := range creates {
			if err := conn.Exec(ctx, script); err != nil {
				return wctx.LoadedCount, etlerr.Wrap(etlerr.KindLoad, err, "create staging table")
			}
		}

		ld := d.NewLoader()
		if err := ld.Init(tgt, conn); err != nil {
			return wctx.LoadedCount, err
		}
		state.Loader = ld

		sorted, err := ld.SortData(ctx, wctx.Transformed)
		if err != nil {
			return wctx.LoadedCount, err
		}
		n, err := ld.LoadData(ctx, sorted, plan)
		if err != nil {
			return wctx.LoadedCount, err
		}
		wctx.LoadedCount += n
	}
	return wctx.LoadedCount, nil
}

func (d Deps) runValidate(ctx context.Context, wctx *Context) (int, error) {
	for _, state := range wctx.Targets {
		if err := state.Loader.ValidateLoad(ctx, state.Plan); err != nil {
			return wctx.LoadedCount, err
		}
	}
	wctx.ValidationPassed = true
	return wctx.LoadedCount, nil
}

// runClean drops the staging tables, shuts the loaders down and closes
// the shared connections. Runs only after validation passed.
func (d Deps) runClean(ctx context.Context, wctx *Context) (int, error) {
	var firstErr error
	for _, state := range wctx.Targets {
		drops, err := state.Plan.DropScripts()
		if err != nil {
			firstErr = keepFirst(firstErr, err)
		} else {
			for _, script := range drops {
				if err := state.Conn.Exec(ctx, script); err != nil {
					firstErr = keepFirst(firstErr, etlerr.Wrap(etlerr.KindCleanup, err, "drop staging table"))
				}
			}
		}
		if state.Loader != nil {
			if err := state.Loader.Shutdown(); err != nil {
				firstErr = keepFirst(firstErr, etlerr.Wrap(etlerr.KindCleanup, err, "loader shutdown"))
			}
		}
		if err := state.Conn.Close(); err != nil {
			firstErr = keepFirst(firstErr, etlerr.Wrap(etlerr.KindCleanup, err, "close store connection"))
		}
	}
	if firstErr != nil {
		return wctx.LoadedCount, firstErr
	}
	wctx.CleanupPerformed = true
	return wctx.LoadedCount, nil
}

func keepFirst(have, next error) error {
	if have != nil {
		return have
	}
	return next
}

// releaseTargets closes any store connections a failed day left open.
// Staging tables are deliberately not dropped; they stay for forensics.
func releaseTargets(wctx *Context) {
	for _, state := range wctx.Targets {
		if state.Loader != nil {
			if err := state.Loader.Shutdown(); err != nil {
				log.Warnf("loader shutdown after failure: %v", err)
			}
		}
		if state.Conn != nil {
			if err := state.Conn.Close(); err != nil {
				log.Warnf("close store connection after failure: %v", err)
			}
		}
	}
}
