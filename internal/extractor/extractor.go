// Package extractor pulls source files for one business date and converts
// them into canonical source records. Every extractor runs the same
// lifecycle (Validate, Setup, Extract, Cleanup) on its own goroutine; the
// factory picks the concrete extractor from the source's type and
// category.
package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/csvstream"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/dates"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/objstore"
)

// Task is the read-only per-day view handed to every extractor. Extractors
// never mutate shared state; their records return out-of-band.
type Task struct {
	Source   *config.Source
	Date     dates.Date
	TempRoot string
}

// Extractor is the per-source extraction capability.
type Extractor interface {
	Category() string
	// Validate is a cheap pre-flight: config and date are usable.
	Validate(task *Task) error
	// Setup connects the client and creates the task temp directory.
	Setup(task *Task) error
	// Extract does the work: select, download, parse, convert.
	Extract(ctx context.Context, task *Task) ([]models.SourceRecord, error)
	// Cleanup removes temp files and closes the client. Safe to call after
	// a failed Setup.
	Cleanup() error
}

// converter folds the rows of one file into source records. A fresh
// converter is created per file so grouping state never leaks between
// files.
type converter interface {
	// requires lists the columns the file must carry.
	requires() []string
	// consume folds one row; a returned error marks the row skippable.
	consume(row csvstream.Row) error
	// finish flushes buffered state into records.
	finish() []models.SourceRecord
}

// Factory builds extractors from source configs.
type Factory struct{}

// New dispatches on the source's type and category. Unknown combinations
// are a ConfigError.
func (Factory) New(src *config.Source) (Extractor, error) {
	var newClient func(*config.Source) (objstore.Client, error)
	switch src.Type {
	case config.SourceTypeObjectStore:
		newClient = objstore.NewMinio
	case config.SourceTypeFile:
		newClient = objstore.NewDir
	default:
		return nil, etlerr.New(etlerr.KindConfig, "source %s: no extractor for type %q", src.Name, src.Type)
	}

	var newConv func(*config.Source, dates.Date) converter
	switch src.Category {
	case models.CategoryAllPriceDepth:
		newConv = newQuoteConverter
	case models.CategoryTradeData:
		newConv = newTradeConverter
	default:
		return nil, etlerr.New(etlerr.KindConfig, "source %s: no extractor for category %q", src.Name, src.Category)
	}

	return &fileExtractor{src: src, newClient: newClient, newConverter: newConv}, nil
}

// resolveTemplate expands {businessDate} and {category} in the selection
// template and splits it into the list prefix (everything before the first
// glob metacharacter) and the full match pattern.
func resolveTemplate(src *config.Source, date dates.Date) (prefix, pattern string) {
	pattern = src.Template
	pattern = strings.ReplaceAll(pattern, "{businessDate}", date.Format(src.DateFormat))
	pattern = strings.ReplaceAll(pattern, "{category}", src.Category)
	if src.Prefix != "" {
		pattern = strings.TrimSuffix(src.Prefix, "/") + "/" + strings.TrimPrefix(pattern, "/")
	}
	pattern = strings.TrimPrefix(pattern, "/")

	prefix = pattern
	if i := strings.IndexAny(pattern, "*?["); i >= 0 {
		prefix = pattern[:i]
	}
	return prefix, pattern
}

// ensureIBSuffix appends the .IB exchange suffix to product ids that lack
// it.
func ensureIBSuffix(productID string) string {
	if productID == "" || strings.HasSuffix(productID, ".IB") {
		return productID
	}
	return productID + ".IB"
}

// matchesDate reports whether a raw date cell refers to the business date.
// Files may mix dates; sources stamp the column either compact, dotted,
// dashed or in the source's own key format.
func matchesDate(cell string, date dates.Date, keyFormat string) bool {
	switch cell {
	case date.Compact(), date.Dotted(), date.Format("yyyy-MM-dd"), date.Format(keyFormat):
		return true
	}
	return false
}

func makeTempDir(root, sourceName string) (string, error) {
	dir := filepath.Join(root, sourceName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir %s: %w", dir, err)
	}
	return dir, nil
}
