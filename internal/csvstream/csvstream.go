// Package csvstream reads delimited source files one row at a time. The
// header row maps column names to positions; data rows are yielded lazily
// so only one row is materialized at once. Single bad rows surface as
// RowError so callers can skip them; file-level problems (no header,
// missing required columns) are fatal ParseErrors.
package csvstream

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
)

// Timestamp layouts used by the known sources.
const (
	TimeLayoutCompact = "20060102-15:04:05.000"
	TimeLayoutDashed  = "2006-01-02 15:04:05.000"
)

// RowError marks one unparseable row. The stream stays usable; callers
// log a warning and continue with the next row.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Line, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// Reader streams one delimited file.
type Reader struct {
	cr   *csv.Reader
	cols map[string]int
	line int
}

// Open reads the header row and prepares the stream.
func Open(r io.Reader, delimiter rune) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, etlerr.New(etlerr.KindParse, "empty file: no header row")
	}
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindParse, err, "read header")
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := cols[name]; dup {
			continue // first occurrence wins
		}
		cols[name] = i
	}

	return &Reader{cr: cr, cols: cols, line: 1}, nil
}

// Require fails with a ParseError unless every named column is present in
// the header.
func (r *Reader) Require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if _, ok := r.cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return etlerr.New(etlerr.KindParse, "missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Next yields the next data row. io.EOF ends the stream; a *RowError
// reports a skippable row.
func (r *Reader) Next() (Row, error) {
	rec, err := r.cr.Read()
	r.line++
	if err == io.EOF {
		return Row{}, io.EOF
	}
	if err != nil {
		return Row{}, &RowError{Line: r.line, Err: err}
	}
	return Row{fields: rec, cols: r.cols, Line: r.line}, nil
}

// Row is one data row addressed by header name. The zero value behaves
// like a row with every column absent.
type Row struct {
	fields []string
	cols   map[string]int
	Line   int
}

// Has reports whether the column exists and carries a non-empty value.
func (w Row) Has(col string) bool { return w.raw(col) != "" }

func (w Row) raw(col string) string {
	idx, ok := w.cols[col]
	if !ok || idx >= len(w.fields) {
		return ""
	}
	return strings.TrimSpace(w.fields[idx])
}

// String returns the trimmed cell value, empty when absent.
func (w Row) String(col string) string { return w.raw(col) }

// Float parses the cell as float64. An absent or empty cell is the unset
// sentinel NaN.
func (w Row) Float(col string) (float64, error) {
	s := w.raw(col)
	if s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", col, err)
	}
	return v, nil
}

// Int parses the cell as int64. Empty cells are an error; integer columns
// the callers read are mandatory ones.
func (w Row) Int(col string) (int64, error) {
	s := w.raw(col)
	if s == "" {
		return 0, fmt.Errorf("column %s: empty", col)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", col, err)
	}
	return v, nil
}

// Time parses the cell with the given layout. An empty cell yields the
// zero time.
func (w Row) Time(col, layout string) (time.Time, error) {
	s := w.raw(col)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %s: %w", col, err)
	}
	return t, nil
}

// TimeFlexible tries the known source layouts in turn.
func (w Row) TimeFlexible(col string) (time.Time, error) {
	s := w.raw(col)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(TimeLayoutCompact, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(TimeLayoutDashed, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %s: unrecognized timestamp %q", col, s)
	}
	return t, nil
}
