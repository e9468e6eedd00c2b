package staging

import (
	"regexp"
	"strings"
	"testing"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/dates"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
)

func testTarget() *config.Target {
	return &config.Target{
		Name:        "wh",
		Type:        config.TargetTypeClickHouse,
		TablePrefix: "tmp",
		TableMappings: []config.TableMapping{
			{DataType: "quote", TargetTable: "bond_quote"},
			{DataType: "trade", TargetTable: "bond_trade"},
		},
	}
}

func TestNewPlanNames(t *testing.T) {
	t.Parallel()

	date, _ := dates.Parse("20250102")
	plan, err := NewPlan(testTarget(), date)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	if len(plan.Entries) != 2 {
		t.Fatalf("got %d entries", len(plan.Entries))
	}

	namePat := regexp.MustCompile(`^tmp_bond_quote_20250102_[a-z0-9]{6}$`)
	if !namePat.MatchString(plan.Entries[0].StagingTable) {
		t.Errorf("staging name %q does not match pattern", plan.Entries[0].StagingTable)
	}

	// same suffix across entries of one plan
	suffix := func(name string) string { return name[strings.LastIndex(name, "_")+1:] }
	if suffix(plan.Entries[0].StagingTable) != suffix(plan.Entries[1].StagingTable) {
		t.Errorf("entries of one plan should share a suffix: %q vs %q",
			plan.Entries[0].StagingTable, plan.Entries[1].StagingTable)
	}

	// order follows the mapping order
	if plan.Entries[0].DataType != "quote" || plan.Entries[1].DataType != "trade" {
		t.Errorf("entry order = %s, %s", plan.Entries[0].DataType, plan.Entries[1].DataType)
	}
}

func TestSuffixDistinctness(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		s := Suffix()
		if len(s) != 6 {
			t.Fatalf("suffix %q has wrong length", s)
		}
		if seen[s] {
			t.Fatalf("duplicate suffix %q after %d draws", s, i)
		}
		seen[s] = true
	}
}

func TestScripts(t *testing.T) {
	t.Parallel()

	date, _ := dates.Parse("20250102")
	plan, err := NewPlan(testTarget(), date)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}

	creates, err := plan.CreateScripts()
	if err != nil {
		t.Fatalf("CreateScripts: %v", err)
	}
	if len(creates) != 2 {
		t.Fatalf("got %d create scripts", len(creates))
	}
	if !strings.Contains(creates[0], "CREATE TABLE "+plan.Entries[0].StagingTable) ||
		!strings.Contains(creates[0], "AS bond_quote") {
		t.Errorf("create script = %q", creates[0])
	}

	drops, err := plan.DropScripts()
	if err != nil {
		t.Fatalf("DropScripts: %v", err)
	}
	if !strings.Contains(drops[1], "DROP TABLE IF EXISTS "+plan.Entries[1].StagingTable) {
		t.Errorf("drop script = %q", drops[1])
	}

	app, err := plan.AppendScript("trade")
	if err != nil {
		t.Fatalf("AppendScript: %v", err)
	}
	want := "INSERT INTO bond_trade SELECT * FROM " + plan.Entries[1].StagingTable
	if app != want {
		t.Errorf("append script = %q, want %q", app, want)
	}

	if _, err := plan.AppendScript("future"); etlerr.KindOf(err) != etlerr.KindLoad {
		t.Errorf("unknown data type: kind = %q, want LoadError", etlerr.KindOf(err))
	}

	count, err := plan.CountScript("bond_quote")
	if err != nil || count != "SELECT count() FROM bond_quote" {
		t.Errorf("count script = %q, %v", count, err)
	}
}

func TestPostgresScripts(t *testing.T) {
	t.Parallel()

	tgt := testTarget()
	tgt.Type = config.TargetTypePostgres
	date, _ := dates.Parse("20250102")
	plan, err := NewPlan(tgt, date)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	creates, err := plan.CreateScripts()
	if err != nil {
		t.Fatalf("CreateScripts: %v", err)
	}
	if !strings.Contains(creates[0], "UNLOGGED TABLE") || !strings.Contains(creates[0], "LIKE bond_quote") {
		t.Errorf("postgres create = %q", creates[0])
	}
}

func TestNewPlanUnknownStoreType(t *testing.T) {
	t.Parallel()

	tgt := testTarget()
	tgt.Type = "oracle"
	date, _ := dates.Parse("20250102")
	if _, err := NewPlan(tgt, date); etlerr.KindOf(err) != etlerr.KindConfig {
		t.Errorf("kind = %q, want ConfigError", etlerr.KindOf(err))
	}
}

func TestDropStatement(t *testing.T) {
	t.Parallel()

	s, err := DropStatement(config.TargetTypeClickHouse, "tmp_bond_quote_20250101_abc123")
	if err != nil || s != "DROP TABLE IF EXISTS tmp_bond_quote_20250101_abc123" {
		t.Errorf("DropStatement = %q, %v", s, err)
	}
}
