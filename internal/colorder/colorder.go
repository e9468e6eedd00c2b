// Package colorder resolves the wire column order of target record
// variants. Each variant declares its schema with a col tag of the form
// `col:"<order>,<name>"` on exported fields; the resolver scans the tags
// once per type, sorts by order and caches the result.
package colorder

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
)

// Column couples a wire column with the struct field backing it.
type Column struct {
	Name       string
	Order      int
	FieldIndex int
}

type resolved struct {
	cols []Column
	err  error
}

var cache sync.Map // reflect.Type -> resolved

// Resolve returns the ordered wire columns of t. Duplicate or malformed
// orders are a SchemaError, raised on first use and cached like a
// successful result. Concurrent callers share the same cached slice.
func Resolve(t reflect.Type) ([]Column, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if v, ok := cache.Load(t); ok {
		r := v.(resolved)
		return r.cols, r.err
	}
	cols, err := scan(t)
	v, _ := cache.LoadOrStore(t, resolved{cols: cols, err: err})
	r := v.(resolved)
	return r.cols, r.err
}

// ResolveOf is Resolve on a value's dynamic type.
func ResolveOf(v any) ([]Column, error) {
	return Resolve(reflect.TypeOf(v))
}

// Names returns just the ordered wire column names of t.
func Names(t reflect.Type) ([]string, error) {
	cols, err := Resolve(t)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

func scan(t reflect.Type) ([]Column, error) {
	if t.Kind() != reflect.Struct {
		return nil, etlerr.New(etlerr.KindSchema, "%s is not a struct type", t)
	}

	var cols []Column
	seen := make(map[int]string)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous || !f.IsExported() {
			continue
		}
		tag, ok := f.Tag.Lookup("col")
		if !ok {
			continue
		}
		order, name, err := parseTag(tag)
		if err != nil {
			return nil, etlerr.Wrap(etlerr.KindSchema, err, "%s.%s", t, f.Name)
		}
		if prev, dup := seen[order]; dup {
			return nil, etlerr.New(etlerr.KindSchema, "%s: duplicate column order %d on %s and %s", t, order, prev, f.Name)
		}
		seen[order] = f.Name
		cols = append(cols, Column{Name: name, Order: order, FieldIndex: i})
	}

	sort.Slice(cols, func(i, j int) bool { return cols[i].Order < cols[j].Order })
	return cols, nil
}

func parseTag(tag string) (int, string, error) {
	order, name, found := strings.Cut(tag, ",")
	if !found {
		return 0, "", fmt.Errorf("col tag %q: want \"<order>,<name>\"", tag)
	}
	n, err := strconv.Atoi(strings.TrimSpace(order))
	if err != nil {
		return 0, "", fmt.Errorf("col tag %q: bad order: %w", tag, err)
	}
	if n < 0 {
		return 0, "", fmt.Errorf("col tag %q: negative order", tag)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, "", fmt.Errorf("col tag %q: empty column name", tag)
	}
	return n, name, nil
}
