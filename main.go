package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sl40168/sdd-etl-tool-sub002/internal/config"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/dates"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/etlerr"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/eventbus"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/logging"
	"github.com/sl40168/sdd-etl-tool-sub002/internal/workflow"
)

// BuildCommit is set at build time via -ldflags.
var BuildCommit = "dev"

// Process exit codes.
const (
	exitOK         = 0
	exitDayFailed  = 1
	exitBadConfig  = 2
	exitUnexpected = 3
)

type options struct {
	configPath string
	from       string
	to         string
	source     string
	dryRun     bool
	logLevel   string
	logFile    string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts := &options{}
	code := exitOK

	cmd := &cobra.Command{
		Use:           "mdetl --config <path> --from YYYYMMDD --to YYYYMMDD",
		Short:         "Daily market data ETL: extract, transform, load, validate, clean",
		Version:       BuildCommit,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code = runPipeline(cmd.Context(), opts)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "path to the INI run configuration")
	flags.StringVar(&opts.from, "from", "", "first business date, YYYYMMDD")
	flags.StringVar(&opts.to, "to", "", "last business date, YYYYMMDD (inclusive)")
	flags.StringVar(&opts.source, "source", "", "process only the named source")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "stop after transform, never touch the stores")
	flags.StringVar(&opts.logLevel, "log-level", "info", "logrus level: debug, info, warn, error")
	flags.StringVar(&opts.logFile, "log-file", "", "append JSON log lines to this file instead of stdout")
	for _, name := range []string{"config", "from", "to"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		// cobra surfaces flag and usage problems here; --help never does
		fmt.Fprintf(os.Stderr, "mdetl: %v\n", err)
		return exitBadConfig
	}
	return code
}

func runPipeline(ctx context.Context, opts *options) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "mdetl: unexpected failure: %v\n", r)
			code = exitUnexpected
		}
	}()

	// .env is optional; a missing file is not an error
	_ = godotenv.Load()

	if err := logging.Setup(opts.logLevel, opts.logFile); err != nil {
		return classify(err)
	}

	from, err := dates.Parse(opts.from)
	if err != nil {
		return classify(err)
	}
	to, err := dates.Parse(opts.to)
	if err != nil {
		return classify(err)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Errorf("configuration rejected: %v", err)
		return classify(err)
	}
	if opts.source != "" {
		if err := cfg.FilterSource(opts.source); err != nil {
			log.Errorf("configuration rejected: %v", err)
			return classify(err)
		}
	}

	log.WithFields(log.Fields{
		"commit": BuildCommit,
		"from":   from.Compact(),
		"to":     to.Compact(),
		"dryRun": opts.dryRun,
	}).Infof("starting run: %s", cfg)

	deps := workflow.DefaultDeps()
	deps.DryRun = opts.dryRun

	// With logging routed to a file, stdout is free for progress lines.
	if opts.logFile != "" {
		bus := eventbus.New()
		deps.Bus = bus
		done := watchProgress(bus)
		defer func() {
			bus.Close()
			<-done
		}()
	}

	result, err := workflow.NewEngine(cfg, deps).Run(ctx, from, to)
	if err != nil {
		log.Errorf("run aborted: %v", err)
		return classify(err)
	}
	if !result.Success {
		return exitDayFailed
	}
	return exitOK
}

// classify maps a pre-run or engine error to an exit code. Config problems
// are the operator's to fix; typed pipeline failures mean a day failed;
// anything untyped is unexpected.
func classify(err error) int {
	switch etlerr.KindOf(err) {
	case etlerr.KindConfig:
		return exitBadConfig
	case "":
		return exitUnexpected
	default:
		return exitDayFailed
	}
}

// watchProgress prints one line per finished stage to stdout. The returned
// channel closes once the bus does.
func watchProgress(bus *eventbus.Bus) chan struct{} {
	events := make(chan eventbus.Event, 64)
	for _, stage := range []workflow.Stage{
		workflow.StageExtract, workflow.StageTransform, workflow.StageLoad,
		workflow.StageValidate, workflow.StageClean,
	} {
		bus.Subscribe(stage.String(), events)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		print := func(evt eventbus.Event) {
			if evt.Success {
				fmt.Printf("%s %-9s ok  processed=%d\n", evt.Date, evt.Stage, evt.Processed)
			} else {
				fmt.Printf("%s %-9s FAILED %s\n", evt.Date, evt.Stage, evt.Error)
			}
		}
		for {
			select {
			case evt := <-events:
				print(evt)
			case <-bus.Done():
				// drain what the sequencer published before the close
				for {
					select {
					case evt := <-events:
						print(evt)
					default:
						return
					}
				}
			}
		}
	}()
	return done
}
