// Package staging owns the per-run staging table plan: the generated table
// names and the store-specific create/drop/append/count statements rendered
// from the embedded script manifest. The loader writes into staging tables
// but never creates or drops them; that belongs to the Load and Clean
// subprocesses driving this plan.
package staging

import (
	"bytes"
	"crypto/rand"
	_ "embed"
	"fmt"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/dates"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
)

//go:embed scripts.yaml
var scriptsYAML []byte

// scriptSet is one store type's statement templates.
type scriptSet struct {
	Create string `yaml:"create"`
	Drop   string `yaml:"drop"`
	Append string `yaml:"append"`
	Count  string `yaml:"count"`
}

var scripts map[string]scriptSet

func init() {
	if err := yaml.Unmarshal(scriptsYAML, &scripts); err != nil {
		panic(fmt.Sprintf("staging: bad scripts.yaml: %v", err))
	}
}

const suffixLen = 6
const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Suffix returns a fresh random staging-name suffix.
func Suffix() string {
	buf := make([]byte, suffixLen)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("staging: crypto/rand: %v", err))
	}
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(buf)
}

// Entry binds one data type to its target table and the staging table that
// fronts it for this run.
type Entry struct {
	DataType     string
	TargetTable  string
	StagingTable string
}

// Plan is the immutable staging layout of one day on one target. Entries
// preserve the target's mapping order, which is also the append and
// validate order.
type Plan struct {
	StoreType string
	Entries   []Entry
}

// NewPlan generates the staging names for every mapping of the target.
// Names follow {prefix}_{targetTable}_{YYYYMMDD}_{suffix}; the suffix is
// drawn once per plan and never regenerated.
func NewPlan(tgt *config.Target, date dates.Date) (*Plan, error) {
	if _, ok := scripts[tgt.Type]; !ok {
		return nil, etlerr.New(etlerr.KindConfig, "no staging scripts for store type %q", tgt.Type)
	}

	suffix := Suffix()
	plan := &Plan{StoreType: tgt.Type}
	for _, m := range tgt.TableMappings {
		plan.Entries = append(plan.Entries, Entry{
			DataType:     m.DataType,
			TargetTable:  m.TargetTable,
			StagingTable: fmt.Sprintf("%s_%s_%s_%s", tgt.TablePrefix, m.TargetTable, date.Compact(), suffix),
		})
	}
	return plan, nil
}

// Lookup returns the entry for dataType.
func (p *Plan) Lookup(dataType string) (Entry, bool) {
	for _, e := range p.Entries {
		if e.DataType == dataType {
			return e, true
		}
	}
	return Entry{}, false
}

func (p *Plan) render(tmpl string, data any) (string, error) {
	t, err := template.New("script").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse script template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render script template: %w", err)
	}
	return buf.String(), nil
}

type tableVars struct {
	Staging string
	Target  string
	Table   string
}

// CreateScripts renders one create statement per staging table, in entry
// order.
func (p *Plan) CreateScripts() ([]string, error) {
	return p.perEntry(scripts[p.StoreType].Create)
}

// DropScripts renders one drop statement per staging table, in entry order.
func (p *Plan) DropScripts() ([]string, error) {
	return p.perEntry(scripts[p.StoreType].Drop)
}

func (p *Plan) perEntry(tmpl string) ([]string, error) {
	out := make([]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		s, err := p.render(tmpl, tableVars{Staging: e.StagingTable, Target: e.TargetTable})
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// AppendScript renders the staging-to-target append for one data type.
func (p *Plan) AppendScript(dataType string) (string, error) {
	e, ok := p.Lookup(dataType)
	if !ok {
		return "", etlerr.New(etlerr.KindLoad, "no staging entry for data type %q", dataType)
	}
	return p.render(scripts[p.StoreType].Append, tableVars{Staging: e.StagingTable, Target: e.TargetTable})
}

// CountScript renders a row-count query for any table.
func (p *Plan) CountScript(table string) (string, error) {
	return p.render(scripts[p.StoreType].Count, tableVars{Table: table})
}

// DropStatement renders a drop for an arbitrary staging table name, used
// by the operator cleanup tool on leftover tables.
func DropStatement(storeType, table string) (string, error) {
	set, ok := scripts[storeType]
	if !ok {
		return "", etlerr.New(etlerr.KindConfig, "no staging scripts for store type %q", storeType)
	}
	t, err := template.New("drop").Parse(set.Drop)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, tableVars{Staging: table}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
