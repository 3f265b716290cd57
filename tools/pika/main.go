package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const version = "0.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "load":
		runLoad(args)
	case "run":
		runBenchmark(args)
	case "version":
		fmt.Printf("pika version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pika - record stream benchmark tool

Usage:
  pika <command> [options]

Commands:
  load      Measure write throughput into a fresh stream
  run       Preload a stream and run a mixed handling workload
  version   Print version
  help      Show this help

Stream Options (load and run):
  --stream          Stream name (default: bench)
  --locators        Partitions per stream (default: 4)
  --eligibility     Claim eligibility: default|strict (default: default)
  --composite       Composite status policy: unresolved-first|completed-first
  --reclaim-running Let TryHandle re-select Running records (default: false)
  --threads         Number of concurrent workers
  --verbose         Show stream debug logs

Load Options:
  --records       Number of records to write (default: 10000)

Run Options:
  --records       Records preloaded before the run (default: 10000)
  --concern       Handling concern claimed by workers (default: bench)
  --workload      Workload type: mixed|write-only|read-only|handle-heavy (default: mixed)
  --operations    Total operations to execute (default: 50000)
  --duration      Duration to run (e.g., 60s), overrides --operations
  --put-pct       Put percentage (overrides workload default)
  --read-pct      Read percentage (overrides workload default)
  --handle-pct    Claim and finish percentage (overrides workload default)
  --status-pct    Composite status percentage (overrides workload default)
  --fail-pct      % of claims finished with FailRunning (default: 10)
  --put-overlap   % of puts reusing an existing id (default: 0)
  --verify        Verify the handling ledger after the run (default: true)

Examples:
  pika load --records=100000 --threads=8
  pika run --workload=handle-heavy --operations=200000 --threads=16
  pika run --eligibility=strict --fail-pct=30 --duration=30s`)
}

// streamFlags registers the options shared by every command.
func streamFlags(fs *flag.FlagSet, conf *Config, verbose *bool, threads int) {
	fs.StringVar(&conf.Stream, "stream", "bench", "Stream name")
	fs.IntVar(&conf.Locators, "locators", 4, "Partitions per stream")
	fs.StringVar(&conf.Eligibility, "eligibility", "default", "Claim eligibility policy")
	fs.StringVar(&conf.Composite, "composite", "unresolved-first", "Composite status policy")
	fs.BoolVar(&conf.ReclaimRunning, "reclaim-running", false, "Let TryHandle re-select Running records")
	fs.StringVar(&conf.Concern, "concern", "bench", "Handling concern claimed by workers")
	fs.IntVar(&conf.Threads, "threads", threads, "Number of concurrent workers")
	fs.BoolVar(verbose, "verbose", false, "Show stream debug logs")
}

func setupLogging(verbose bool) {
	log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

// signalContext returns a context cancelled on interrupt or after timeLimit.
func signalContext(timeLimit time.Duration) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeLimit > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeLimit)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	// Handle interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\nInterrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func runLoad(args []string) {
	conf := &Config{Workload: "write-only"}
	fs := flag.NewFlagSet("load", flag.ExitOnError)

	var timeLimit time.Duration
	var verbose bool
	fs.DurationVar(&timeLimit, "time-limit", 0, "Maximum time to run (e.g., 30s, 1m)")
	fs.IntVar(&conf.Records, "records", 10000, "Number of records to write")
	streamFlags(fs, conf, &verbose, 10)

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	if err := conf.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	setupLogging(verbose)

	ctx, cancel := signalContext(timeLimit)
	defer cancel()

	if err := executeLoad(ctx, conf, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Load failed: %v\n", err)
		os.Exit(1)
	}
}

func runBenchmark(args []string) {
	conf := &Config{}
	fs := flag.NewFlagSet("run", flag.ExitOnError)

	var timeLimit time.Duration
	var verbose bool
	fs.DurationVar(&timeLimit, "time-limit", 0, "Maximum time to run (e.g., 30s, 1m)")
	fs.IntVar(&conf.Records, "records", 10000, "Records preloaded before the run")
	fs.StringVar(&conf.Workload, "workload", "mixed", "Workload type")
	fs.IntVar(&conf.Operations, "operations", 50000, "Total operations to execute")
	fs.DurationVar(&conf.Duration, "duration", 0, "Duration to run (overrides --operations)")
	fs.IntVar(&conf.PutPct, "put-pct", -1, "Put percentage (overrides workload)")
	fs.IntVar(&conf.ReadPct, "read-pct", -1, "Read percentage (overrides workload)")
	fs.IntVar(&conf.HandlePct, "handle-pct", -1, "Claim and finish percentage (overrides workload)")
	fs.IntVar(&conf.StatusPct, "status-pct", -1, "Composite status percentage (overrides workload)")
	fs.Float64Var(&conf.FailPct, "fail-pct", 10, "% of claims finished with FailRunning")
	fs.Float64Var(&conf.PutOverlap, "put-overlap", 0, "% of puts reusing an existing id (0-100)")
	fs.BoolVar(&conf.Verify, "verify", true, "Verify the handling ledger after the run")
	streamFlags(fs, conf, &verbose, 20)

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	if err := conf.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	setupLogging(verbose)

	ctx, cancel := signalContext(timeLimit)
	defer cancel()

	bench, err := executeRun(ctx, conf, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Benchmark failed: %v\n", err)
		os.Exit(1)
	}

	if conf.Verify {
		result, err := bench.Verify(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Verification failed: %v\n", err)
			os.Exit(1)
		}
		printVerify(os.Stdout, result)
		if !result.OK() {
			os.Exit(1)
		}
	}
}
