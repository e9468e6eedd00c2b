package workflow

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/dates"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
)

// RunDay processes one business date end to end: fresh context, stage
// sequence, result capture. A failed day reports success=false with an
// empty stage map; its staging tables are left in the store.
func (d Deps) RunDay(ctx context.Context, cfg *config.Config, date dates.Date) models.DailyProcessResult {
	runID := uuid.NewString()

	tempRoot := cfg.TempDir
	if tempRoot == "" {
		tempRoot = os.TempDir()
	}
	tempDir := filepath.Join(tempRoot, "mdetl-"+runID)

	wctx := &Context{
		RunID:       runID,
		CurrentDate: date,
		Config:      cfg,
		TempDir:     tempDir,
	}

	result := models.DailyProcessResult{Date: date, Results: map[string]models.SubprocessResult{}}

	fail := func(err error) models.DailyProcessResult {
		releaseTargets(wctx)
		kind := etlerr.KindOf(err)
		log.WithFields(log.Fields{
			"stage":       wctx.CurrentStage.String(),
			"date":        date.Compact(),
			"run":         runID,
			"kind":        string(kind),
			"extracted":   wctx.ExtractedCount,
			"transformed": wctx.TransformedCount,
			"loaded":      wctx.LoadedCount,
		}).Errorf("day failed: %v", err)
		result.Success = false
		result.ExtractedCount = wctx.ExtractedCount
		result.LoadedCount = wctx.LoadedCount
		return result
	}

	if err := validateInitial(wctx); err != nil {
		return fail(err)
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return fail(etlerr.Wrap(etlerr.KindConfig, err, "create run temp dir"))
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			log.Warnf("remove run temp dir %s: %v", tempDir, err)
		}
	}()

	log.WithFields(log.Fields{"date": date.Compact(), "run": runID, "dryRun": d.DryRun}).
		Info("processing day")

	results, err := d.RunDayStages(ctx, wctx)
	if err != nil {
		return fail(err)
	}

	result.Success = true
	result.Results = results
	result.ExtractedCount = wctx.ExtractedCount
	result.LoadedCount = wctx.LoadedCount

	log.WithFields(log.Fields{
		"date":        date.Compact(),
		"run":         runID,
		"extracted":   wctx.ExtractedCount,
		"transformed": wctx.TransformedCount,
		"loaded":      wctx.LoadedCount,
	}).Info("day complete")
	return result
}
