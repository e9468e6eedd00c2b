// Package workflow drives the daily batch pipeline: per-day context,
// concurrent extract stage, strict stage sequencing and the date-range
// engine.
package workflow

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/dates"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
)

// Engine runs a date range, one day at a time, stopping at the first
// failed day.
type Engine struct {
	cfg  *config.Config
	deps Deps
}

// NewEngine builds an engine over a validated configuration.
func NewEngine(cfg *config.Config, deps Deps) *Engine {
	return &Engine{cfg: cfg, deps: deps}
}

// Run expands [from, to] and processes each day sequentially. The result's
// ProcessedDays counts only days actually attempted.
func (e *Engine) Run(ctx context.Context, from, to dates.Date) (models.WorkflowResult, error) {
	days, err := dates.Range(from, to)
	if err != nil {
		return models.WorkflowResult{}, err
	}

	result := models.WorkflowResult{StartDate: from, EndDate: to}
	started := time.Now()

	for _, day := range days {
		dayResult := e.deps.RunDay(ctx, e.cfg, day)
		result.PerDay = append(result.PerDay, dayResult)
		result.ProcessedDays++

		if !dayResult.Success {
			result.FailedDays++
			break
		}
		result.SuccessfulDays++
	}
	result.Success = result.FailedDays == 0

	log.WithFields(log.Fields{
		"from":       from.Compact(),
		"to":         to.Compact(),
		"processed":  result.ProcessedDays,
		"successful": result.SuccessfulDays,
		"failed":     result.FailedDays,
		"duration":   time.Since(started).String(),
	}).Info("workflow finished")
	return result, nil
}
