package workflow

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/extractor"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
)

// maxExtractWorkers bounds the extractor fan-out.
const maxExtractWorkers = 4

// ExtractorFactory builds extractors from source configs. Satisfied by
// extractor.Factory; tests substitute fakes.
type ExtractorFactory interface {
	New(src *config.Source) (extractor.Extractor, error)
}

// sourceOutcome is one extractor goroutine's result.
type sourceOutcome struct {
	source  string
	records []models.SourceRecord
	err     error
}

// runExtract fans extraction out across the configured sources, one
// goroutine per source behind a semaphore. A failing source never cancels
// its siblings; the stage fails only when every source failed (or the run
// was cancelled). Results land in the context's consolidation buffer.
func runExtract(ctx context.Context, factory ExtractorFactory, wctx *Context) error {
	sources := wctx.Config.Sources
	if len(sources) == 0 {
		return etlerr.New(etlerr.KindConfig, "no sources to extract")
	}

	workers := maxExtractWorkers
	if len(sources) < workers {
		workers = len(sources)
	}
	sem := make(chan struct{}, workers)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		buffer   []models.SourceRecord
		counts   = make(map[string]int)
		failures []sourceOutcome
	)

	for _, src := range sources {
		src := src
		sem <- struct{}{}
		wg.Add(1)

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			out := extractOne(ctx, factory, src, wctx)

			mu.Lock()
			defer mu.Unlock()
			if out.err != nil {
				failures = append(failures, out)
				return
			}
			// one append per source; batch atomicity is the lock region
			buffer = append(buffer, out.records...)
			counts[out.source] = len(out.records)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		// partial results are discarded on cancel
		return etlerr.Wrap(etlerr.KindCancel, err, "extraction cancelled")
	}

	for _, f := range failures {
		log.WithFields(log.Fields{
			"stage":  StageExtract.String(),
			"date":   wctx.CurrentDate.Compact(),
			"source": f.source,
			"kind":   string(etlerr.KindOf(f.err)),
		}).Errorf("source extraction failed: %v", f.err)
	}

	if len(failures) == len(sources) {
		agg := &multierror.Error{}
		for _, f := range failures {
			agg = multierror.Append(agg, f.err)
		}
		return etlerr.Wrap(etlerr.KindOf(failures[0].err), agg.ErrorOrNil(),
			"all %d sources failed", len(sources))
	}

	if buffer == nil {
		// zero matched files is still a successful extraction
		buffer = make([]models.SourceRecord, 0)
	}
	wctx.Extracted = buffer
	wctx.ExtractedCount = len(buffer)
	wctx.SourceCounts = counts

	log.WithFields(log.Fields{
		"stage":   StageExtract.String(),
		"date":    wctx.CurrentDate.Compact(),
		"records": len(buffer),
		"sources": len(sources) - len(failures),
		"failed":  len(failures),
	}).Info("extract stage complete")
	return nil
}

// extractOne runs a single extractor's full lifecycle.
func extractOne(ctx context.Context, factory ExtractorFactory, src *config.Source, wctx *Context) sourceOutcome {
	out := sourceOutcome{source: src.Name}

	ex, err := factory.New(src)
	if err != nil {
		out.err = err
		return out
	}

	task := &extractor.Task{Source: src, Date: wctx.CurrentDate, TempRoot: wctx.TempDir}
	if err := ex.Validate(task); err != nil {
		out.err = err
		return out
	}
	if err := ex.Setup(task); err != nil {
		out.err = err
		return out
	}
	defer func() {
		if err := ex.Cleanup(); err != nil {
			log.WithFields(log.Fields{"source": src.Name}).Warnf("extractor cleanup: %v", err)
		}
	}()

	out.records, out.err = ex.Extract(ctx, task)
	return out
}
