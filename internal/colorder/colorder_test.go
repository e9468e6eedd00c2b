package colorder

import (
	"reflect"
	"sync"
	"testing"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
)

type scrambled struct {
	Third  string `col:"2,third"`
	First  string `col:"0,first"`
	Second string `col:"1,second"`
}

type withGaps struct {
	B       float64 `col:"40,b"`
	ignored string
	A       float64 `col:"7,a"`
	Plain   string
}

type duplicated struct {
	A string `col:"1,a"`
	B string `col:"1,b"`
}

type badTag struct {
	A string `col:"x,a"`
}

func TestResolveSortsByOrder(t *testing.T) {
	t.Parallel()

	names, err := Names(reflect.TypeOf(scrambled{}))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Names() = %v, want %v", names, want)
	}
}

func TestResolveSkipsUntaggedAndUnexported(t *testing.T) {
	t.Parallel()

	cols, err := Resolve(reflect.TypeOf(&withGaps{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(cols), cols)
	}
	if cols[0].Name != "a" || cols[1].Name != "b" {
		t.Errorf("order = %v", cols)
	}
	if cols[0].FieldIndex != 2 || cols[1].FieldIndex != 0 {
		t.Errorf("field indexes = %d, %d", cols[0].FieldIndex, cols[1].FieldIndex)
	}
}

func TestResolveDuplicateOrderIsSchemaError(t *testing.T) {
	t.Parallel()

	_, err := Resolve(reflect.TypeOf(duplicated{}))
	if etlerr.KindOf(err) != etlerr.KindSchema {
		t.Fatalf("err = %v, want SchemaError", err)
	}
	// The failure is cached like a result.
	_, err2 := Resolve(reflect.TypeOf(duplicated{}))
	if err2 != err {
		t.Errorf("second call returned a different error value: %v vs %v", err, err2)
	}
}

func TestResolveBadTagIsSchemaError(t *testing.T) {
	t.Parallel()

	_, err := Resolve(reflect.TypeOf(badTag{}))
	if etlerr.KindOf(err) != etlerr.KindSchema {
		t.Fatalf("err = %v, want SchemaError", err)
	}
}

func TestResolveCachesAndIsIdempotent(t *testing.T) {
	t.Parallel()

	first, err := Resolve(reflect.TypeOf(&models.TradeRecord{}))
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make([][]Column, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cols, err := Resolve(reflect.TypeOf(&models.TradeRecord{}))
			if err != nil {
				t.Errorf("concurrent resolve: %v", err)
				return
			}
			results[i] = cols
		}(i)
	}
	wg.Wait()

	for i, cols := range results {
		if len(cols) != len(first) {
			t.Fatalf("call %d: len = %d, want %d", i, len(cols), len(first))
		}
		// Same cached backing array, not a fresh scan.
		if &cols[0] != &first[0] {
			t.Fatalf("call %d returned a different slice", i)
		}
	}
}

func TestQuoteRecordSchemaIsTotal(t *testing.T) {
	t.Parallel()

	cols, err := Resolve(reflect.TypeOf(&models.QuoteRecord{}))
	if err != nil {
		t.Fatal(err)
	}
	want := 10 + models.QuoteLevels*8
	if len(cols) != want {
		t.Fatalf("quote schema has %d columns, want %d", len(cols), want)
	}
	for i, c := range cols {
		if c.Order != i {
			t.Fatalf("column %s has order %d at position %d; schema has gaps", c.Name, c.Order, i)
		}
	}
	if cols[0].Name != "business_date" || cols[10].Name != "bid_0_price" {
		t.Errorf("unexpected layout: %s, %s", cols[0].Name, cols[10].Name)
	}
}
