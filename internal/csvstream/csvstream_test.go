package csvstream

import (
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
)

func TestOpenEmptyFile(t *testing.T) {
	t.Parallel()

	_, err := Open(strings.NewReader(""), ',')
	if etlerr.KindOf(err) != etlerr.KindParse {
		t.Fatalf("err = %v, want ParseError", err)
	}
}

func TestRequireMissingColumns(t *testing.T) {
	t.Parallel()

	r, err := Open(strings.NewReader("a,b\n1,2\n"), ',')
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Require("a", "b"); err != nil {
		t.Errorf("present columns rejected: %v", err)
	}
	err = r.Require("a", "c", "d")
	if etlerr.KindOf(err) != etlerr.KindParse {
		t.Fatalf("err = %v, want ParseError", err)
	}
	if !strings.Contains(err.Error(), "c, d") {
		t.Errorf("error should name the missing columns: %v", err)
	}
}

func TestNextStreamsRows(t *testing.T) {
	t.Parallel()

	input := "sym|px\nA|1.5\nB|\n"
	r, err := Open(strings.NewReader(input), '|')
	if err != nil {
		t.Fatal(err)
	}

	row, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if got := row.String("sym"); got != "A" {
		t.Errorf("sym = %q", got)
	}
	px, err := row.Float("px")
	if err != nil || px != 1.5 {
		t.Errorf("px = %v, %v", px, err)
	}

	row, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	px, err = row.Float("px")
	if err != nil || !math.IsNaN(px) {
		t.Errorf("empty px = %v, %v, want NaN", px, err)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("end of stream = %v, want io.EOF", err)
	}
}

func TestRaggedRowsTolerated(t *testing.T) {
	t.Parallel()

	// short and long rows both stream; absent cells read as empty
	input := "a,b,c\n1\n2,3,4,5\n"
	r, err := Open(strings.NewReader(input), ',')
	if err != nil {
		t.Fatal(err)
	}

	row, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if row.Has("b") {
		t.Error("short row should read b as absent")
	}

	row, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if got := row.String("c"); got != "4" {
		t.Errorf("c = %q", got)
	}
}

func TestRowErrorUnwraps(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	var err error = &RowError{Line: 3, Err: cause}

	var re *RowError
	if !errors.As(err, &re) || re.Line != 3 {
		t.Fatalf("errors.As failed: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("RowError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "row 3") {
		t.Errorf("message should carry the line: %v", err)
	}
}

func TestRowAccessors(t *testing.T) {
	t.Parallel()

	input := "n,f,t1,t2,s\n7,2.25,20250102-09:30:00.125,2025-01-02 09:30:00.125, padded \n"
	r, err := Open(strings.NewReader(input), ',')
	if err != nil {
		t.Fatal(err)
	}
	row, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}

	n, err := row.Int("n")
	if err != nil || n != 7 {
		t.Errorf("Int = %v, %v", n, err)
	}
	if _, err := row.Int("missing"); err == nil {
		t.Error("Int on missing column should error")
	}

	want := time.Date(2025, 1, 2, 9, 30, 0, 125000000, time.UTC)
	for _, col := range []string{"t1", "t2"} {
		got, err := row.TimeFlexible(col)
		if err != nil {
			t.Fatalf("TimeFlexible(%s): %v", col, err)
		}
		if !got.Equal(want) {
			t.Errorf("TimeFlexible(%s) = %v, want %v", col, got, want)
		}
	}

	if got := row.String("s"); got != "padded" {
		t.Errorf("String should trim, got %q", got)
	}
	if !row.Has("s") || row.Has("nope") {
		t.Error("Has misreports")
	}

	zero, err := row.Time("missing", TimeLayoutDashed)
	if err != nil || !zero.IsZero() {
		t.Errorf("Time on absent column = %v, %v, want zero", zero, err)
	}
}

func TestOpenDuplicateAndBlankHeaders(t *testing.T) {
	t.Parallel()

	r, err := Open(strings.NewReader("a,,a\nfirst,mid,second\n"), ',')
	if err != nil {
		t.Fatal(err)
	}
	row, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	// first occurrence wins on duplicates
	if got := row.String("a"); got != "first" {
		t.Errorf("a = %q, want first occurrence", got)
	}
}
