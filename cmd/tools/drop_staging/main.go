package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/staging"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/store"
)

// drop_staging lists the staging tables a failed run left behind and, with
// -yes, drops them. Run this before retrying a failed day.
func main() {
	configPath := flag.String("config", "", "path to the INI run configuration")
	targetName := flag.String("target", "", "target section to connect to")
	prefix := flag.String("prefix", "", "staging prefix override (default: the target's temporary.table.prefix)")
	yes := flag.Bool("yes", false, "actually drop; without it only list")
	flag.Parse()

	if *configPath == "" || *targetName == "" {
		log.Fatal("-config and -target are required")
	}

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config rejected: %v", err)
	}

	var tgt *config.Target
	for _, t := range cfg.Targets {
		if t.Name == *targetName {
			tgt = t
		}
	}
	if tgt == nil {
		log.Fatalf("No target %q in %s", *targetName, *configPath)
	}

	pfx := tgt.TablePrefix
	if *prefix != "" {
		pfx = *prefix
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	conn, err := store.Open(ctx, tgt)
	if err != nil {
		log.Fatalf("Connect to %s: %v", tgt.Name, err)
	}
	defer conn.Close()

	tables, err := conn.Tables(ctx, pfx+"_")
	if err != nil {
		log.Fatalf("List tables: %v", err)
	}
	if len(tables) == 0 {
		fmt.Printf("No staging tables with prefix %q on target %s.\n", pfx, tgt.Name)
		return
	}

	for _, table := range tables {
		fmt.Println(table)
	}
	if !*yes {
		fmt.Printf("\n%d table(s) found. Re-run with -yes to drop them.\n", len(tables))
		return
	}

	dropped := 0
	for _, table := range tables {
		stmt, err := staging.DropStatement(tgt.Type, table)
		if err != nil {
			log.Fatalf("Render drop for %s: %v", table, err)
		}
		if err := conn.Exec(ctx, stmt); err != nil {
			log.Fatalf("Drop %s: %v", table, err)
		}
		dropped++
	}
	fmt.Printf("Dropped %d staging table(s) on %s.\n", dropped, tgt.Name)
}
