// Package store abstracts the remote analytical store behind a single
// connection interface: script execution, column-wise bulk insert, row
// counting and table listing. Two drivers are provided, ClickHouse (the
// primary columnar warehouse) and PostgreSQL.
package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
)

// ColumnData is one wire column of a bulk insert batch. Values holds a
// typed slice ([]float64, []int64, []string or []time.Time); every column
// of a batch has the same length.
type ColumnData struct {
	Name   string
	Values any
}

// Len returns the number of rows the column carries.
func (c ColumnData) Len() int {
	switch v := c.Values.(type) {
	case []float64:
		return len(v)
	case []int64:
		return len(v)
	case []string:
		return len(v)
	case []time.Time:
		return len(v)
	default:
		return 0
	}
}

// Value returns the i-th cell as a driver-friendly scalar. NaN floats and
// zero times surface as nil so row-oriented drivers store NULL.
func (c ColumnData) Value(i int) any {
	switch v := c.Values.(type) {
	case []float64:
		if math.IsNaN(v[i]) {
			return nil
		}
		return v[i]
	case []int64:
		return v[i]
	case []string:
		return v[i]
	case []time.Time:
		if v[i].IsZero() {
			return nil
		}
		return v[i]
	default:
		return nil
	}
}

// Conn is the shared remote connection used by the Load, Validate and
// Clean stages of one day. Implementations are not safe for concurrent
// use; the engine guarantees a single caller.
type Conn interface {
	// Exec runs one DDL or DML script (create/drop/append statements).
	Exec(ctx context.Context, script string) error
	// BulkInsert appends one batch of rows to table, columns in the exact
	// order given.
	BulkInsert(ctx context.Context, table string, columns []ColumnData) error
	// Count returns the row count of table.
	Count(ctx context.Context, table string) (int64, error)
	// Tables lists table names starting with prefix.
	Tables(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Open connects to the target's store by type.
func Open(ctx context.Context, tgt *config.Target) (Conn, error) {
	switch tgt.Type {
	case config.TargetTypeClickHouse:
		return openClickHouse(ctx, tgt)
	case config.TargetTypePostgres:
		return openPostgres(ctx, tgt)
	default:
		return nil, etlerr.New(etlerr.KindConfig, "target %s: unknown store type %q", tgt.Name, tgt.Type)
	}
}

// batchLen validates that every column carries the same row count and
// returns it.
func batchLen(columns []ColumnData) (int, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("bulk insert with no columns")
	}
	n := columns[0].Len()
	for _, c := range columns[1:] {
		if c.Len() != n {
			return 0, fmt.Errorf("ragged batch: column %s has %d rows, want %d", c.Name, c.Len(), n)
		}
	}
	return n, nil
}
