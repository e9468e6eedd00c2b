// Package config loads and validates the INI run configuration. Values may
// reference environment variables as ${NAME}; expansion happens at load
// time, before validation, so an expanded-to-empty credential counts as
// absent.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-ini/ini"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/models"
)

// Source types understood by the extractor factory.
const (
	SourceTypeObjectStore = "objectstore"
	SourceTypeFile        = "file"
)

// Target store types understood by the store drivers.
const (
	TargetTypeClickHouse = "clickhouse"
	TargetTypePostgres   = "postgres"
)

// Defaults applied when a target section omits the key.
const (
	DefaultSortFields      = "receive_time"
	DefaultMaxMemoryMB     = 256
	DefaultTablePrefix     = "tmp"
	DefaultBatchSize       = 1000
	DefaultInsertTimeout   = 120
	DefaultDownloadTimeout = 60
)

// Source is one [source.<name>] section.
type Source struct {
	Name             string
	Type             string
	Category         string
	ConnectionString string
	DateField        string
	DateFormat       string
	Delimiter        rune
	Template         string

	Endpoint           string
	Bucket             string
	Region             string
	Prefix             string
	SecretID           string
	SecretKey          string
	MaxFileSize        int64
	RequestsPerSecond  float64
	DownloadTimeoutSec int

	FilePath string
}

// Anonymous reports whether the source connects without credentials. Only
// valid after Validate has rejected partial credentials.
func (s *Source) Anonymous() bool { return s.SecretID == "" && s.SecretKey == "" }

// Target is one [target.<name>] section.
type Target struct {
	Name     string
	Type     string
	URL      string
	Username string
	Password string

	SortFields       []string
	MaxMemoryMB      int
	TablePrefix      string
	TableMappings    []TableMapping
	InsertBatchSize  int
	InsertTimeoutSec int
}

// TableMapping binds one data type to its target table. Order follows the
// config entry order and drives the append and validate order.
type TableMapping struct {
	DataType    string
	TargetTable string
}

// TableFor returns the target table mapped to dataType.
func (t *Target) TableFor(dataType string) (string, bool) {
	for _, m := range t.TableMappings {
		if m.DataType == dataType {
			return m.TargetTable, true
		}
	}
	return "", false
}

// Config is the immutable per-run configuration.
type Config struct {
	TempDir string
	Sources []*Source
	Targets []*Target
}

// Load parses the INI file at path and validates it.
func Load(path string) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{}, path)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindConfig, err, "load config %s", path)
	}
	f.ValueMapper = os.ExpandEnv

	cfg := &Config{}
	for _, sec := range f.Sections() {
		name := sec.Name()
		switch {
		case name == ini.DefaultSection:
			if len(sec.Keys()) > 0 {
				return nil, etlerr.New(etlerr.KindConfig, "keys outside any section: %s", sec.KeyStrings()[0])
			}
		case name == "general":
			cfg.TempDir = sec.Key("temp.dir").String()
		case strings.HasPrefix(name, "source."):
			src, err := parseSource(strings.TrimPrefix(name, "source."), sec)
			if err != nil {
				return nil, err
			}
			cfg.Sources = append(cfg.Sources, src)
		case strings.HasPrefix(name, "target."):
			tgt, err := parseTarget(strings.TrimPrefix(name, "target."), sec)
			if err != nil {
				return nil, err
			}
			cfg.Targets = append(cfg.Targets, tgt)
		default:
			return nil, etlerr.New(etlerr.KindConfig, "unknown config section [%s]", name)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseSource(name string, sec *ini.Section) (*Source, error) {
	src := &Source{
		Name:               name,
		Type:               sec.Key("type").String(),
		Category:           sec.Key("category").String(),
		ConnectionString:   sec.Key("connectionString").String(),
		DateField:          sec.Key("dateField").String(),
		DateFormat:         sec.Key("dateFormat").MustString("yyyyMMdd"),
		Template:           sec.Key("template").String(),
		Endpoint:           sec.Key("objectstore.endpoint").String(),
		Bucket:             sec.Key("objectstore.bucket").String(),
		Region:             sec.Key("objectstore.region").String(),
		Prefix:             sec.Key("objectstore.prefix").String(),
		SecretID:           sec.Key("objectstore.secretId").String(),
		SecretKey:          sec.Key("objectstore.secretKey").String(),
		MaxFileSize:        sec.Key("objectstore.maxFileSize").MustInt64(0),
		RequestsPerSecond:  sec.Key("objectstore.requestsPerSecond").MustFloat64(0),
		DownloadTimeoutSec: sec.Key("download.timeout.sec").MustInt(DefaultDownloadTimeout),
		FilePath:           sec.Key("file.path").String(),
	}

	delim := sec.Key("delimiter").MustString(",")
	if len([]rune(delim)) != 1 {
		return nil, etlerr.New(etlerr.KindConfig, "source %s: delimiter must be one character, got %q", name, delim)
	}
	src.Delimiter = []rune(delim)[0]

	return src, nil
}

func parseTarget(name string, sec *ini.Section) (*Target, error) {
	tgt := &Target{
		Name:             name,
		Type:             sec.Key("type").String(),
		URL:              sec.Key("connection.url").String(),
		Username:         sec.Key("connection.username").String(),
		Password:         sec.Key("connection.password").String(),
		MaxMemoryMB:      sec.Key("max.memory.mb").MustInt(DefaultMaxMemoryMB),
		TablePrefix:      sec.Key("temporary.table.prefix").MustString(DefaultTablePrefix),
		InsertBatchSize:  sec.Key("insert.batch.size").MustInt(DefaultBatchSize),
		InsertTimeoutSec: sec.Key("insert.timeout.sec").MustInt(DefaultInsertTimeout),
	}

	for _, f := range strings.Split(sec.Key("sort.fields").MustString(DefaultSortFields), ",") {
		if f = strings.TrimSpace(f); f != "" {
			tgt.SortFields = append(tgt.SortFields, f)
		}
	}

	seen := make(map[string]bool)
	for _, entry := range strings.Split(sec.Key("target.table.mappings").String(), ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		dt, table, found := strings.Cut(entry, "=")
		dt, table = strings.TrimSpace(dt), strings.TrimSpace(table)
		if !found || dt == "" || table == "" {
			return nil, etlerr.New(etlerr.KindConfig, "target %s: bad mapping %q: want dataType=tableName", name, entry)
		}
		if seen[dt] {
			return nil, etlerr.New(etlerr.KindConfig, "target %s: duplicate data type %q in mappings", name, dt)
		}
		seen[dt] = true
		tgt.TableMappings = append(tgt.TableMappings, TableMapping{DataType: dt, TargetTable: table})
	}

	return tgt, nil
}

// Validate checks cross-section invariants. All violations are ConfigErrors.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return etlerr.New(etlerr.KindConfig, "no sources configured")
	}
	if len(c.Targets) == 0 {
		return etlerr.New(etlerr.KindConfig, "no targets configured")
	}

	names := make(map[string]bool)
	for _, src := range c.Sources {
		if names[src.Name] {
			return etlerr.New(etlerr.KindConfig, "duplicate source name %q", src.Name)
		}
		names[src.Name] = true
		if err := validateSource(src); err != nil {
			return err
		}
	}

	names = make(map[string]bool)
	for _, tgt := range c.Targets {
		if names[tgt.Name] {
			return etlerr.New(etlerr.KindConfig, "duplicate target name %q", tgt.Name)
		}
		names[tgt.Name] = true
		if err := validateTarget(tgt); err != nil {
			return err
		}
	}

	// Every category a source produces must land in some target table.
	for _, src := range c.Sources {
		dt, ok := models.DataTypeForCategory(src.Category)
		if !ok {
			return etlerr.New(etlerr.KindConfig, "source %s: unknown category %q", src.Name, src.Category)
		}
		mapped := false
		for _, tgt := range c.Targets {
			if _, ok := tgt.TableFor(dt); ok {
				mapped = true
				break
			}
		}
		if !mapped {
			return etlerr.New(etlerr.KindConfig, "source %s: data type %q has no target table mapping", src.Name, dt)
		}
	}

	return nil
}

func validateSource(src *Source) error {
	switch src.Type {
	case SourceTypeObjectStore:
		if src.Endpoint == "" || src.Bucket == "" {
			return etlerr.New(etlerr.KindConfig, "source %s: objectstore.endpoint and objectstore.bucket are required", src.Name)
		}
		if (src.SecretID == "") != (src.SecretKey == "") {
			return etlerr.New(etlerr.KindConfig, "source %s: partial credentials: set both objectstore.secretId and objectstore.secretKey, or neither", src.Name)
		}
		if src.MaxFileSize < 0 {
			return etlerr.New(etlerr.KindConfig, "source %s: negative objectstore.maxFileSize", src.Name)
		}
	case SourceTypeFile:
		if src.FilePath == "" {
			return etlerr.New(etlerr.KindConfig, "source %s: file.path is required for type=file", src.Name)
		}
	default:
		return etlerr.New(etlerr.KindConfig, "source %s: unknown type %q", src.Name, src.Type)
	}
	if src.Template == "" {
		return etlerr.New(etlerr.KindConfig, "source %s: template is required", src.Name)
	}
	if src.DateField == "" {
		return etlerr.New(etlerr.KindConfig, "source %s: dateField is required", src.Name)
	}
	if src.DownloadTimeoutSec <= 0 {
		return etlerr.New(etlerr.KindConfig, "source %s: non-positive download.timeout.sec", src.Name)
	}
	return nil
}

func validateTarget(tgt *Target) error {
	switch tgt.Type {
	case TargetTypeClickHouse, TargetTypePostgres:
	default:
		return etlerr.New(etlerr.KindConfig, "target %s: unknown type %q", tgt.Name, tgt.Type)
	}
	if tgt.URL == "" {
		return etlerr.New(etlerr.KindConfig, "target %s: connection.url is required", tgt.Name)
	}
	if len(tgt.TableMappings) == 0 {
		return etlerr.New(etlerr.KindConfig, "target %s: target.table.mappings is required", tgt.Name)
	}
	if len(tgt.SortFields) == 0 {
		return etlerr.New(etlerr.KindConfig, "target %s: sort.fields is empty", tgt.Name)
	}
	if tgt.MaxMemoryMB <= 0 {
		return etlerr.New(etlerr.KindConfig, "target %s: non-positive max.memory.mb", tgt.Name)
	}
	if tgt.InsertBatchSize <= 0 {
		return etlerr.New(etlerr.KindConfig, "target %s: non-positive insert.batch.size", tgt.Name)
	}
	if tgt.TablePrefix == "" {
		return etlerr.New(etlerr.KindConfig, "target %s: empty temporary.table.prefix", tgt.Name)
	}
	return nil
}

// FilterSource narrows Sources to the named one. Used by --source.
func (c *Config) FilterSource(name string) error {
	for _, src := range c.Sources {
		if src.Name == name {
			c.Sources = []*Source{src}
			return nil
		}
	}
	return etlerr.New(etlerr.KindConfig, "unknown source %q", name)
}

// String renders a one-line summary for logs.
func (c *Config) String() string {
	var srcs, tgts []string
	for _, s := range c.Sources {
		srcs = append(srcs, fmt.Sprintf("%s(%s/%s)", s.Name, s.Type, s.Category))
	}
	for _, t := range c.Targets {
		tgts = append(tgts, fmt.Sprintf("%s(%s)", t.Name, t.Type))
	}
	return fmt.Sprintf("sources=[%s] targets=[%s]", strings.Join(srcs, " "), strings.Join(tgts, " "))
}
