package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
)

const validINI = `
[general]
temp.dir = /var/tmp/mdetl

[source.cfets]
type = objectstore
category = AllPriceDepth
dateField = as_of_date
template = quotes/{businessDate}/*.csv
objectstore.endpoint = s3.example.com
objectstore.bucket = md-drop
objectstore.secretId = ${MD_SECRET_ID}
objectstore.secretKey = ${MD_SECRET_KEY}
objectstore.maxFileSize = 1048576

[source.trades]
type = file
category = TradeData
dateField = as_of_date
delimiter = |
template = trades/{businessDate}/*.csv
file.path = /data/drop

[target.wh]
type = clickhouse
connection.url = clickhouse://localhost:9000/md
sort.fields = receive_time, event_time
target.table.mappings = quote=bond_quote,trade=bond_trade
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mdetl.ini")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	t.Setenv("MD_SECRET_ID", "AKIA123")
	t.Setenv("MD_SECRET_KEY", "deadbeef")

	cfg, err := Load(writeConfig(t, validINI))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.TempDir != "/var/tmp/mdetl" {
		t.Errorf("TempDir = %q", cfg.TempDir)
	}
	if len(cfg.Sources) != 2 || len(cfg.Targets) != 1 {
		t.Fatalf("got %d sources, %d targets", len(cfg.Sources), len(cfg.Targets))
	}

	src := cfg.Sources[0]
	if src.Name != "cfets" || src.Type != SourceTypeObjectStore {
		t.Errorf("source[0] = %s/%s", src.Name, src.Type)
	}
	if src.SecretID != "AKIA123" || src.SecretKey != "deadbeef" {
		t.Errorf("env expansion failed: %q/%q", src.SecretID, src.SecretKey)
	}
	if src.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize = %d", src.MaxFileSize)
	}
	if src.DateFormat != "yyyyMMdd" {
		t.Errorf("default DateFormat = %q", src.DateFormat)
	}
	if cfg.Sources[1].Delimiter != '|' {
		t.Errorf("delimiter = %q", cfg.Sources[1].Delimiter)
	}

	tgt := cfg.Targets[0]
	if got := strings.Join(tgt.SortFields, "+"); got != "receive_time+event_time" {
		t.Errorf("SortFields = %s", got)
	}
	if tgt.MaxMemoryMB != DefaultMaxMemoryMB || tgt.InsertBatchSize != DefaultBatchSize {
		t.Errorf("defaults not applied: mem=%d batch=%d", tgt.MaxMemoryMB, tgt.InsertBatchSize)
	}
	if table, ok := tgt.TableFor("quote"); !ok || table != "bond_quote" {
		t.Errorf("TableFor(quote) = %q, %v", table, ok)
	}
	if tgt.TableMappings[0].DataType != "quote" || tgt.TableMappings[1].DataType != "trade" {
		t.Errorf("mapping order not preserved: %+v", tgt.TableMappings)
	}
}

func TestLoadAnonymousCredentials(t *testing.T) {
	// Expanding unset variables yields empty strings: anonymous mode.
	t.Setenv("MD_SECRET_ID", "")
	t.Setenv("MD_SECRET_KEY", "")

	cfg, err := Load(writeConfig(t, validINI))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Sources[0].Anonymous() {
		t.Error("expected anonymous source when both secrets expand empty")
	}
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("MD_SECRET_ID", "id")
	t.Setenv("MD_SECRET_KEY", "key")

	cases := []struct {
		name    string
		mutate  func(string) string
		wantSub string
	}{
		{
			name:    "partial credentials",
			mutate:  func(s string) string { return strings.Replace(s, "objectstore.secretKey = ${MD_SECRET_KEY}\n", "", 1) },
			wantSub: "partial credentials",
		},
		{
			name:    "unknown section",
			mutate:  func(s string) string { return s + "\n[mystery]\nkey = v\n" },
			wantSub: "unknown config section",
		},
		{
			name:    "unknown source type",
			mutate:  func(s string) string { return strings.Replace(s, "type = objectstore", "type = ftp", 1) },
			wantSub: "unknown type",
		},
		{
			name:    "bad mapping entry",
			mutate:  func(s string) string { return strings.Replace(s, "quote=bond_quote", "quote:bond_quote", 1) },
			wantSub: "bad mapping",
		},
		{
			name: "duplicate data type",
			mutate: func(s string) string {
				return strings.Replace(s, "quote=bond_quote,", "quote=bond_quote,quote=other,", 1)
			},
			wantSub: "duplicate data type",
		},
		{
			name:    "no targets",
			mutate:  func(s string) string { return s[:strings.Index(s, "[target.wh]")] },
			wantSub: "no targets",
		},
		{
			name: "unmapped data type",
			mutate: func(s string) string {
				return strings.Replace(s, "quote=bond_quote,trade=bond_trade", "trade=bond_trade", 1)
			},
			wantSub: "no target table mapping",
		},
		{
			name:    "zero batch size",
			mutate:  func(s string) string { return s + "insert.batch.size = 0\n" },
			wantSub: "insert.batch.size",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.mutate(validINI)))
			if err == nil {
				t.Fatal("expected error")
			}
			if etlerr.KindOf(err) != etlerr.KindConfig {
				t.Errorf("kind = %q, want ConfigError", etlerr.KindOf(err))
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestFilterSource(t *testing.T) {
	t.Setenv("MD_SECRET_ID", "id")
	t.Setenv("MD_SECRET_KEY", "key")

	cfg, err := Load(writeConfig(t, validINI))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.FilterSource("trades"); err != nil {
		t.Fatalf("FilterSource: %v", err)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Name != "trades" {
		t.Errorf("filtered sources = %+v", cfg.Sources)
	}
	if err := cfg.FilterSource("nope"); etlerr.KindOf(err) != etlerr.KindConfig {
		t.Errorf("unknown source: kind = %q", etlerr.KindOf(err))
	}
}
