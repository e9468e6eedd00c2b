package loader

import (
	"container/heap"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/colorder"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
)

func init() {
	// Spill files carry records behind the TargetRecord interface.
	gob.Register(&models.QuoteRecord{})
	gob.Register(&models.TradeRecord{})
}

// sortKey reads the value of one configured sort field from a record. The
// field is addressed by its wire column name; a variant without the column
// yields (nil, false).
func sortKey(rec models.TargetRecord, field string) (any, bool) {
	cols, err := colorder.ResolveOf(rec)
	if err != nil {
		return nil, false
	}
	v := reflect.ValueOf(rec)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	for _, c := range cols {
		if c.Name == field {
			return v.Field(c.FieldIndex).Interface(), true
		}
	}
	return nil, false
}

// keyMissing reports whether a present key value is the unset sentinel.
func keyMissing(v any) bool {
	switch x := v.(type) {
	case float64:
		return math.IsNaN(x)
	case time.Time:
		return x.IsZero()
	case string:
		return x == ""
	default:
		return false
	}
}

// hasAnySortKey reports whether the record carries at least one of the
// configured keys with a set value.
func hasAnySortKey(rec models.TargetRecord, fields []string) bool {
	for _, f := range fields {
		if v, ok := sortKey(rec, f); ok && !keyMissing(v) {
			return true
		}
	}
	return false
}

// compareValues orders two key values. Missing sorts before present;
// mixed-type values (records of different variants) fall back to their
// string forms so the order stays total.
func compareValues(a, b any) int {
	am, bm := a == nil || keyMissing(a), b == nil || keyMissing(b)
	switch {
	case am && bm:
		return 0
	case am:
		return -1
	case bm:
		return 1
	}

	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			switch {
			case x.Before(y):
				return -1
			case x.After(y):
				return 1
			}
			return 0
		}
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case int64:
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// compareRecords orders two records by the configured field list.
func compareRecords(a, b models.TargetRecord, fields []string) int {
	for _, f := range fields {
		av, _ := sortKey(a, f)
		bv, _ := sortKey(b, f)
		if c := compareValues(av, bv); c != 0 {
			return c
		}
	}
	return 0
}

// approxRecordBytes estimates one record's in-memory footprint from its
// column count. Used only for the spill decision, not for allocation.
func approxRecordBytes(rec models.TargetRecord) int {
	cols, err := colorder.ResolveOf(rec)
	if err != nil || len(cols) == 0 {
		return 256
	}
	return len(cols) * 32
}

// externalSort spills sorted runs to gob files under dir and k-way merges
// them back. runSize is the record count per run.
func externalSort(records []models.TargetRecord, fields []string, dir string, runSize int) ([]models.TargetRecord, error) {
	var runs []string
	for start := 0; start < len(records); start += runSize {
		end := start + runSize
		if end > len(records) {
			end = len(records)
		}
		run := make([]models.TargetRecord, end-start)
		copy(run, records[start:end])
		sort.SliceStable(run, func(i, j int) bool { return compareRecords(run[i], run[j], fields) < 0 })

		path := filepath.Join(dir, fmt.Sprintf("run_%04d.gob", len(runs)))
		if err := writeRun(path, run); err != nil {
			return nil, err
		}
		runs = append(runs, path)
	}

	log.WithFields(log.Fields{"records": len(records), "runs": len(runs)}).
		Debug("external sort spilled runs")
	return mergeRuns(runs, fields, len(records))
}

func writeRun(path string, run []models.TargetRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create spill file %s: %w", path, err)
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	for _, rec := range run {
		if err := enc.Encode(&rec); err != nil {
			return fmt.Errorf("encode spill record: %w", err)
		}
	}
	return nil
}

// runReader streams one spilled run.
type runReader struct {
	f   *os.File
	dec *gob.Decoder
}

func openRun(path string) (*runReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spill file %s: %w", path, err)
	}
	return &runReader{f: f, dec: gob.NewDecoder(f)}, nil
}

func (r *runReader) next() (models.TargetRecord, bool, error) {
	var rec models.TargetRecord
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("decode spill record: %w", err)
	}
	return rec, true, nil
}

func (r *runReader) close() { r.f.Close() }

// mergeItem is one run head on the merge heap. Ties break on run index,
// which keeps the merge stable because runs are cut in input order.
type mergeItem struct {
	rec models.TargetRecord
	run int
}

type mergeHeap struct {
	items  []mergeItem
	fields []string
}

func (h *mergeHeap) Len() int { return len(h.items) }
func (h *mergeHeap) Less(i, j int) bool {
	c := compareRecords(h.items[i].rec, h.items[j].rec, h.fields)
	if c != 0 {
		return c < 0
	}
	return h.items[i].run < h.items[j].run
}
func (h *mergeHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap) Push(x any)    { h.items = append(h.items, x.(mergeItem)) }
func (h *mergeHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

func mergeRuns(paths []string, fields []string, total int) ([]models.TargetRecord, error) {
	readers := make([]*runReader, len(paths))
	for i, p := range paths {
		r, err := openRun(p)
		if err != nil {
			for _, prev := range readers[:i] {
				prev.close()
			}
			return nil, err
		}
		readers[i] = r
	}
	defer func() {
		for _, r := range readers {
			r.close()
		}
	}()

	h := &mergeHeap{fields: fields}
	for i, r := range readers {
		rec, ok, err := r.next()
		if err != nil {
			return nil, err
		}
		if ok {
			h.items = append(h.items, mergeItem{rec: rec, run: i})
		}
	}
	heap.Init(h)

	out := make([]models.TargetRecord, 0, total)
	for h.Len() > 0 {
		item := heap.Pop(h).(mergeItem)
		out = append(out, item.rec)

		rec, ok, err := readers[item.run].next()
		if err != nil {
			return nil, err
		}
		if ok {
			heap.Push(h, mergeItem{rec: rec, run: item.run})
		}
	}
	return out, nil
}
