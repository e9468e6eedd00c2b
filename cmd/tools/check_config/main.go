package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
)

// check_config loads a run configuration, validates it and prints the
// resolved plan. Lets operators vet a config change without touching any
// store.
func main() {
	configPath := flag.String("config", "", "path to the INI run configuration")
	source := flag.String("source", "", "narrow the check to one source")
	flag.Parse()

	if *configPath == "" {
		log.Fatal("-config is required")
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config rejected: %v", err)
	}
	if *source != "" {
		if err := cfg.FilterSource(*source); err != nil {
			log.Fatalf("Config rejected: %v", err)
		}
	}

	fmt.Printf("Config OK: %d source(s), %d target(s)\n\n", len(cfg.Sources), len(cfg.Targets))

	for _, src := range cfg.Sources {
		fmt.Printf("source %s\n", src.Name)
		fmt.Printf("  type:       %s\n", src.Type)
		fmt.Printf("  category:   %s\n", src.Category)
		fmt.Printf("  template:   %s\n", src.Template)
		fmt.Printf("  dateField:  %s\n", src.DateField)
		switch src.Type {
		case config.SourceTypeObjectStore:
			fmt.Printf("  endpoint:   %s (bucket %s)\n", src.Endpoint, src.Bucket)
			if src.Anonymous() {
				fmt.Println("  credentials: anonymous")
			} else {
				fmt.Println("  credentials: static")
			}
		case config.SourceTypeFile:
			fmt.Printf("  path:       %s\n", src.FilePath)
		}
		fmt.Println()
	}

	for _, tgt := range cfg.Targets {
		fmt.Printf("target %s\n", tgt.Name)
		fmt.Printf("  type:          %s\n", tgt.Type)
		fmt.Printf("  sort fields:   %v\n", tgt.SortFields)
		fmt.Printf("  staging prefix: %s\n", tgt.TablePrefix)
		for _, m := range tgt.TableMappings {
			fmt.Printf("  mapping:       %s -> %s\n", m.DataType, m.TargetTable)
		}
		fmt.Println()
	}
}
