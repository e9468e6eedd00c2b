package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/dates"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/extractor"
)

// preview_source runs one extractor for one business date and prints the
// records it would hand to the pipeline. Nothing is loaded anywhere.
func main() {
	configPath := flag.String("config", "", "path to the INI run configuration")
	sourceName := flag.String("source", "", "source section to run")
	dateStr := flag.String("date", "", "business date, YYYYMMDD")
	limit := flag.Int("limit", 20, "print at most this many records")
	flag.Parse()

	if *configPath == "" || *sourceName == "" || *dateStr == "" {
		log.Fatal("-config, -source and -date are required")
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config rejected: %v", err)
	}
	if err := cfg.FilterSource(*sourceName); err != nil {
		log.Fatalf("Config rejected: %v", err)
	}
	src := cfg.Sources[0]

	date, err := dates.Parse(*dateStr)
	if err != nil {
		log.Fatalf("Bad date: %v", err)
	}

	tempRoot := cfg.TempDir
	if tempRoot == "" {
		tempRoot = os.TempDir()
	}
	tempDir := filepath.Join(tempRoot, "mdetl-preview-"+uuid.NewString())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		log.Fatalf("Create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	ex, err := extractor.Factory{}.New(src)
	if err != nil {
		log.Fatalf("Build extractor: %v", err)
	}

	task := &extractor.Task{Source: src, Date: date, TempRoot: tempDir}
	if err := ex.Validate(task); err != nil {
		log.Fatalf("Validate: %v", err)
	}
	if err := ex.Setup(task); err != nil {
		log.Fatalf("Setup: %v", err)
	}
	defer func() {
		if err := ex.Cleanup(); err != nil {
			log.Printf("Cleanup: %v", err)
		}
	}()

	records, err := ex.Extract(context.Background(), task)
	if err != nil {
		log.Fatalf("Extract: %v", err)
	}

	fmt.Printf("%d record(s) from source %s for %s\n", len(records), src.Name, date.Compact())
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for i, rec := range records {
		if i >= *limit {
			fmt.Printf("... %d more\n", len(records)-*limit)
			break
		}
		if err := enc.Encode(rec); err != nil {
			log.Fatalf("Encode record %d: %v", i, err)
		}
	}
}
