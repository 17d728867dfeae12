package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"sqlitebench/benchmark"
	"sqlitebench/benchmark/browse"
	"sqlitebench/benchmark/suite"
	"sqlitebench/engine"
	"sqlitebench/report"
	"sqlitebench/runner"
)

type HarnessArgs struct {
	Benchmark string `yaml:"benchmark"` // suite, browse, or full
	Engine    string `yaml:"engine"`
	FileData  []byte // config file contents
}

// Prepare zerolog
func setupLogging(disableLog bool, level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var zlevel zerolog.Level
	if disableLog {
		zlevel = zerolog.Disabled
	} else if level == "info" {
		zlevel = zerolog.InfoLevel
	} else {
		zlevel = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(zlevel)
}

// Returns a HarnessArgs struct with the information in the configFile.
func buildArgs(configFile string) *HarnessArgs {
	if configFile == "" {
		log.Fatal("Missing config file.")
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		log.Fatal(err)
	}

	args := HarnessArgs{}
	err = yaml.Unmarshal(data, &args)
	if err != nil {
		log.Fatal(err)
	}
	args.FileData = data

	if args.Benchmark == "" {
		args.Benchmark = "full"
	}
	if args.Engine == "" {
		args.Engine = "sqlite3"
	}
	if !engine.Supported(args.Engine) {
		log.Fatalf("Engine '%s' not found (want one of %v).\n", args.Engine, engine.Drivers())
	}

	return &args
}

// runBenchmark sets up b, runs its operations through r, logs the
// benchmark-specific metrics, and releases its resources. Any failure is
// fatal: a partial run produces no comparable figures.
func runBenchmark(r *runner.Runner, b benchmark.Benchmark) []runner.Result {
	if err := b.Setup(); err != nil {
		log.Fatal(err)
	}

	for k, v := range b.Configs() {
		zlog.Debug().Str(k, v).Msg("config")
	}

	results, err := r.Run(b.Operations())
	if err != nil {
		log.Fatal(err)
	}

	for k, v := range b.Metrics() {
		zlog.Info().Str(k, v).Msg("metric")
	}

	if err := b.Close(); err != nil {
		log.Fatal(err)
	}

	return results
}

func main() {
	disableLog := flag.Bool("no-log", false, "Disables the log")
	configFile := flag.String("conf", "", "Benchmark config file")
	logLevel := flag.String("level", "debug", "Log level (info|debug)")
	flag.Parse()

	setupLogging(*disableLog, *logLevel)
	zlog.Logger = zlog.Logger.With().Str("run", uuid.NewString()).Logger()

	args := buildArgs(*configFile)

	fmt.Printf("=== SQLite Benchmark (%s) ===\n\n", args.Engine)
	zlog.Info().Str("benchmark", args.Benchmark).Str("engine", args.Engine).Msg("Run started")

	r := runner.New(os.Stdout)
	var coreResults, extraResults []runner.Result

	switch args.Benchmark {
	case "suite":
		coreResults = runBenchmark(r, suite.New(args.FileData))
	case "browse":
		extraResults = runBenchmark(r, browse.New(args.FileData))
	case "full":
		coreResults = runBenchmark(r, suite.New(args.FileData))
		fmt.Println()
		extraResults = runBenchmark(r, browse.New(args.FileData))
	default:
		log.Fatalf("Benchmark '%s' not found.\n", args.Benchmark)
	}

	if err := report.Print(os.Stdout, coreResults, extraResults); err != nil {
		log.Fatal(err)
	}

	zlog.Info().Str("benchmark", args.Benchmark).Msg("Run ended")
}
