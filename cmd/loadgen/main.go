// Command loadgen submits generated customer profiles to a running attrition
// service and verifies the audit history it records.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/attrition/internal/loadgen"
	"github.com/okian/attrition/pkg/logger"
)

// Default configuration constants.
const (
	defaultRequests     = 1000
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	defaultRunTimeout   = 10 * time.Minute
	defaultHistoryLimit = 1000
)

func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:8080", "Base URL of the service")
		requests     = flag.Int("requests", defaultRequests, "Number of profiles to generate and submit")
		workers      = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout      = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed         = flag.Uint64("seed", 0, "Generator seed (0 picks one from the clock)")
		historyLimit = flag.Int("history-limit", defaultHistoryLimit, "Page size used to read history back")
		outputFile   = flag.String("output", "", "Write generated profiles and answers to this JSON file")
		logFormat    = flag.String("log-format", logger.FormatText, "Log format: text or json")
		verbose      = flag.Bool("verbose", false, "Log progress every second")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*logFormat)); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}

	cfg := &loadgen.Config{
		BaseURL:      *baseURL,
		Requests:     *requests,
		Workers:      *workers,
		Timeout:      *timeout,
		Seed:         *seed,
		HistoryLimit: *historyLimit,
		OutputFile:   *outputFile,
		Verbose:      *verbose,
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "load run failed:", err)
		os.Exit(1)
	}
}

func run(cfg *loadgen.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	_, err := loadgen.Run(ctx, cfg, logger.Named("loadgen"))
	return err
}
