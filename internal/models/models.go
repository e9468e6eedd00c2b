// Package models holds the record variants exchanged between pipeline
// stages together with the per-stage and per-run result types.
package models

import (
	"time"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/dates"
)

// Source categories. A category names the data flavor a source emits and
// selects the concrete extractor.
const (
	CategoryAllPriceDepth = "AllPriceDepth"
	CategoryTradeData     = "TradeData"
)

// Data types. A data type classifies target records and keys the
// data-type to target-table mappings.
const (
	DataTypeQuote = "quote"
	DataTypeTrade = "trade"
)

// DataTypeForCategory maps a source category to the data type its records
// load into.
func DataTypeForCategory(category string) (string, bool) {
	switch category {
	case CategoryAllPriceDepth:
		return DataTypeQuote, true
	case CategoryTradeData:
		return DataTypeTrade, true
	default:
		return "", false
	}
}

// SourceRecord is the capability set of every extracted record variant.
type SourceRecord interface {
	Validate() error
	PrimaryKey() string
	SourceType() string
}

// TargetRecord is the capability set of every loadable record variant.
// Concrete variants declare their wire schema with col tags; the column
// resolver turns those into the bulk-insert column order.
type TargetRecord interface {
	Validate() error
	DataType() string
}

// FileMetadata describes one candidate object under a source prefix.
type FileMetadata struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// SubprocessResult is the immutable outcome of one stage of one day.
type SubprocessResult struct {
	Success   bool
	Processed int
	Error     string
	Timestamp time.Time
}

// DailyProcessResult reports one business date. Results is keyed by stage
// name and is empty when the day failed.
type DailyProcessResult struct {
	Date           dates.Date
	Success        bool
	Results        map[string]SubprocessResult
	ExtractedCount int
	LoadedCount    int
}

// WorkflowResult aggregates a full range run. ProcessedDays counts only
// the days actually attempted; the range stops at the first failed day.
type WorkflowResult struct {
	StartDate      dates.Date
	EndDate        dates.Date
	ProcessedDays  int
	SuccessfulDays int
	FailedDays     int
	PerDay         []DailyProcessResult
	Success        bool
}
