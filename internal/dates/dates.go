// Package dates models business dates and date ranges. A business date has
// no time or zone component; external formats are YYYYMMDD (CLI, object
// keys) and YYYY.MM.DD (record stamps).
package dates

import (
	"strings"
	"time"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
)

const compactLayout = "20060102"

// Date is one business day at UTC midnight.
type Date struct {
	t time.Time
}

// Parse accepts exactly eight digits forming a real calendar date.
func Parse(s string) (Date, error) {
	if len(s) != 8 {
		return Date{}, etlerr.New(etlerr.KindConfig, "invalid date %q: want YYYYMMDD", s)
	}
	t, err := time.ParseInLocation(compactLayout, s, time.UTC)
	if err != nil {
		return Date{}, etlerr.Wrap(etlerr.KindConfig, err, "invalid date %q", s)
	}
	return Date{t: t}, nil
}

func (d Date) IsZero() bool       { return d.t.IsZero() }
func (d Date) Time() time.Time    { return d.t }
func (d Date) Equal(o Date) bool  { return d.t.Equal(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

// Compact renders YYYYMMDD.
func (d Date) Compact() string { return d.t.Format(compactLayout) }

// Dotted renders YYYY.MM.DD, the form stamped into records.
func (d Date) Dotted() string { return d.t.Format("2006.01.02") }

func (d Date) String() string { return d.Compact() }

// Next returns the following calendar day.
func (d Date) Next() Date { return Date{t: d.t.AddDate(0, 0, 1)} }

var patternReplacer = strings.NewReplacer("yyyy", "2006", "MM", "01", "dd", "02")

// Format renders the date using a pattern written with yyyy, MM and dd
// tokens, the notation source configs use (for example yyyy-MM-dd).
func (d Date) Format(pattern string) string {
	return d.t.Format(patternReplacer.Replace(pattern))
}

// Range expands [from, to] into ascending inclusive days.
func Range(from, to Date) ([]Date, error) {
	if from.IsZero() || to.IsZero() {
		return nil, etlerr.New(etlerr.KindConfig, "date range requires both from and to")
	}
	if from.After(to) {
		return nil, etlerr.New(etlerr.KindConfig, "invalid range: from %s is after to %s", from.Compact(), to.Compact())
	}
	var out []Date
	for d := from; !d.After(to); d = d.Next() {
		out = append(out, d)
	}
	return out, nil
}
