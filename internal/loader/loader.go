// Package loader moves transformed records into the remote store: stable
// sort by the configured fields (spilling to disk over the memory
// ceiling), column-wise bulk insert into the per-run staging tables, then
// staging-to-target appends. The loader writes through a shared connection
// it does not own and never creates or drops staging tables.
package loader

import (
	"context"
	"os"
	"reflect"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/colorder"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/staging"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/store"
)

// Loader is the per-target load capability. One instance serves one day on
// one target and is single-threaded.
type Loader interface {
	// Init captures the target config and the shared connection. The
	// connection stays owned by the engine.
	Init(target *config.Target, conn store.Conn) error
	// SortData stable-sorts records by the configured sort fields. Records
	// missing every sort key are dropped with a warning.
	SortData(ctx context.Context, records []models.TargetRecord) ([]models.TargetRecord, error)
	// LoadData stages the records and appends staging into the targets.
	// Returns the number of rows staged.
	LoadData(ctx context.Context, records []models.TargetRecord, plan *staging.Plan) (int, error)
	// ValidateLoad compares staging counts against the target deltas.
	ValidateLoad(ctx context.Context, plan *staging.Plan) error
	// Shutdown releases loader-owned resources (sort spill files only).
	Shutdown() error
}

// NewColumnar returns the columnar store loader.
func NewColumnar() Loader { return &columnar{} }

type columnar struct {
	target *config.Target
	conn   store.Conn

	spillDir string
	// pre-append target row counts, recorded during LoadData for the
	// data types that actually staged rows
	preCounts map[string]int64
	// rows staged per data type
	stagedCounts map[string]int64
}

func (l *columnar) Init(target *config.Target, conn store.Conn) error {
	if target == nil {
		return etlerr.New(etlerr.KindLoad, "loader init without target config")
	}
	if conn == nil {
		return etlerr.New(etlerr.KindLoad, "loader init without store connection")
	}
	l.target = target
	l.conn = conn
	l.preCounts = make(map[string]int64)
	l.stagedCounts = make(map[string]int64)
	return nil
}

func (l *columnar) SortData(ctx context.Context, records []models.TargetRecord) ([]models.TargetRecord, error) {
	fields := l.target.SortFields

	kept := make([]models.TargetRecord, 0, len(records))
	dropped := 0
	for _, rec := range records {
		if !hasAnySortKey(rec, fields) {
			dropped++
			continue
		}
		kept = append(kept, rec)
	}
	if dropped > 0 {
		log.WithFields(log.Fields{"target": l.target.Name, "dropped": dropped}).
			Warn("dropped records missing every sort key")
	}
	if len(kept) == 0 {
		return kept, nil
	}

	footprint := int64(approxRecordBytes(kept[0])) * int64(len(kept))
	ceiling := int64(l.target.MaxMemoryMB) << 20
	if footprint <= ceiling {
		sort.SliceStable(kept, func(i, j int) bool { return compareRecords(kept[i], kept[j], fields) < 0 })
		return kept, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, etlerr.Wrap(etlerr.KindCancel, err, "sort cancelled")
	}

	dir, err := l.ensureSpillDir()
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindLoad, err, "sort spill dir")
	}
	runSize := int(ceiling / int64(approxRecordBytes(kept[0])))
	if runSize < 1 {
		runSize = 1
	}
	sorted, err := externalSort(kept, fields, dir, runSize)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindLoad, err, "external sort")
	}
	return sorted, nil
}

func (l *columnar) ensureSpillDir() (string, error) {
	if l.spillDir != "" {
		return l.spillDir, nil
	}
	dir, err := os.MkdirTemp("", "mdetl-sort-")
	if err != nil {
		return "", err
	}
	l.spillDir = dir
	return dir, nil
}

// group is all records of one data type, in sorted order.
type group struct {
	dataType string
	records  []models.TargetRecord
}

func groupByDataType(records []models.TargetRecord) []group {
	var groups []group
	index := make(map[string]int)
	for _, rec := range records {
		dt := rec.DataType()
		i, ok := index[dt]
		if !ok {
			i = len(groups)
			index[dt] = i
			groups = append(groups, group{dataType: dt})
		}
		groups[i].records = append(groups[i].records, rec)
	}
	return groups
}

func (l *columnar) LoadData(ctx context.Context, records []models.TargetRecord, plan *staging.Plan) (int, error) {
	if plan == nil {
		return 0, etlerr.New(etlerr.KindLoad, "loader called without a staging plan")
	}

	total := 0
	for _, g := range groupByDataType(records) {
		entry, ok := plan.Lookup(g.dataType)
		if !ok {
			return total, etlerr.New(etlerr.KindLoad, "no staging table for data type %q", g.dataType)
		}
		n, err := l.stageGroup(ctx, g, entry.StagingTable)
		if err != nil {
			return total, err
		}
		l.stagedCounts[g.dataType] = int64(n)
		total += n

		log.WithFields(log.Fields{
			"target":  l.target.Name,
			"type":    g.dataType,
			"staging": entry.StagingTable,
			"rows":    n,
		}).Info("staged records")
	}

	// Appends run in mapping order; the first failure stops the loop and
	// leaves earlier appends and all staging tables in place.
	for _, entry := range plan.Entries {
		if _, staged := l.stagedCounts[entry.DataType]; !staged {
			continue
		}
		pre, err := l.conn.Count(ctx, entry.TargetTable)
		if err != nil {
			return total, etlerr.Wrap(etlerr.KindLoad, err, "pre-append count of %s", entry.TargetTable)
		}
		l.preCounts[entry.DataType] = pre

		script, err := plan.AppendScript(entry.DataType)
		if err != nil {
			return total, err
		}
		if err := l.conn.Exec(ctx, script); err != nil {
			return total, etlerr.Wrap(etlerr.KindLoad, err, "append %s into %s", entry.StagingTable, entry.TargetTable)
		}

		log.WithFields(log.Fields{
			"target": l.target.Name,
			"type":   entry.DataType,
			"table":  entry.TargetTable,
		}).Info("appended staging into target")
	}

	return total, nil
}

// stageGroup bulk-inserts one data type's records chunk by chunk, columns
// in resolver order.
func (l *columnar) stageGroup(ctx context.Context, g group, stagingTable string) (int, error) {
	cols, err := colorder.ResolveOf(g.records[0])
	if err != nil {
		return 0, err
	}

	chunkSize := l.target.InsertBatchSize
	timeout := time.Duration(l.target.InsertTimeoutSec) * time.Second

	staged := 0
	for start := 0; start < len(g.records); start += chunkSize {
		end := start + chunkSize
		if end > len(g.records) {
			end = len(g.records)
		}
		chunk := g.records[start:end]

		columns, err := buildColumns(cols, chunk)
		if err != nil {
			return staged, etlerr.Wrap(etlerr.KindLoad, err, "build columns for %s", g.dataType)
		}

		ictx, cancel := context.WithTimeout(ctx, timeout)
		err = l.conn.BulkInsert(ictx, stagingTable, columns)
		cancel()
		if err != nil {
			return staged, etlerr.Wrap(etlerr.KindLoad, err, "bulk insert %d rows into %s", len(chunk), stagingTable)
		}
		staged += len(chunk)
	}
	return staged, nil
}

// buildColumns transposes a record chunk into typed column arrays in the
// resolver's order. Column types follow the struct field types.
func buildColumns(cols []colorder.Column, chunk []models.TargetRecord) ([]store.ColumnData, error) {
	out := make([]store.ColumnData, len(cols))
	n := len(chunk)

	values := make([]reflect.Value, n)
	for i, rec := range chunk {
		v := reflect.ValueOf(rec)
		for v.Kind() == reflect.Pointer {
			v = v.Elem()
		}
		values[i] = v
	}

	for ci, col := range cols {
		field := values[0].Field(col.FieldIndex)
		switch field.Interface().(type) {
		case float64:
			data := make([]float64, n)
			for i := range values {
				data[i] = values[i].Field(col.FieldIndex).Float()
			}
			out[ci] = store.ColumnData{Name: col.Name, Values: data}
		case int64:
			data := make([]int64, n)
			for i := range values {
				data[i] = values[i].Field(col.FieldIndex).Int()
			}
			out[ci] = store.ColumnData{Name: col.Name, Values: data}
		case string:
			data := make([]string, n)
			for i := range values {
				data[i] = values[i].Field(col.FieldIndex).String()
			}
			out[ci] = store.ColumnData{Name: col.Name, Values: data}
		case time.Time:
			data := make([]time.Time, n)
			for i := range values {
				data[i] = values[i].Field(col.FieldIndex).Interface().(time.Time)
			}
			out[ci] = store.ColumnData{Name: col.Name, Values: data}
		default:
			return nil, etlerr.New(etlerr.KindSchema, "column %s has unsupported type %s", col.Name, field.Type())
		}
	}
	return out, nil
}

func (l *columnar) ValidateLoad(ctx context.Context, plan *staging.Plan) error {
	for _, entry := range plan.Entries {
		staged, ok := l.stagedCounts[entry.DataType]
		if !ok {
			continue
		}
		pre := l.preCounts[entry.DataType]

		stagingCount, err := l.conn.Count(ctx, entry.StagingTable)
		if err != nil {
			return etlerr.Wrap(etlerr.KindValidation, err, "count staging %s", entry.StagingTable)
		}
		post, err := l.conn.Count(ctx, entry.TargetTable)
		if err != nil {
			return etlerr.Wrap(etlerr.KindValidation, err, "count target %s", entry.TargetTable)
		}

		if delta := post - pre; delta != stagingCount {
			return etlerr.New(etlerr.KindValidation,
				"data type %q: target %s grew by %d rows, staging %s holds %d",
				entry.DataType, entry.TargetTable, delta, entry.StagingTable, stagingCount)
		}
		if stagingCount != staged {
			log.WithFields(log.Fields{
				"target": l.target.Name,
				"type":   entry.DataType,
				"staged": staged,
				"stored": stagingCount,
			}).Warn("staging count differs from rows sent")
		}
	}
	return nil
}

func (l *columnar) Shutdown() error {
	if l.spillDir == "" {
		return nil
	}
	err := os.RemoveAll(l.spillDir)
	l.spillDir = ""
	return err
}
