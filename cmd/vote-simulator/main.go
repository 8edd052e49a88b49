package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/pokerank/internal/simulate"
)

// Default configuration constants.
const (
	defaultVotes      = 1000
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultBias       = 0.5
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		votes      = flag.Int("votes", defaultVotes, "Number of votes to submit")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent voters")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		reset      = flag.Bool("reset", false, "Wipe and reseed before voting")
		bias       = flag.Float64("bias", defaultBias, "Probability the higher-rated side wins")
		seed       = flag.Uint64("seed", 0, "Seed for the voters' choices (default: time based)")
		outputFile = flag.String("output", "", "Write accepted votes to this JSON file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &simulate.Config{
		BaseURL:    *baseURL,
		Votes:      *votes,
		Workers:    *workers,
		Timeout:    *timeout,
		Reset:      *reset,
		Seed:       *seed,
		Bias:       *bias,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}

	if _, err := simulate.Run(ctx, config); err != nil {
		_, _ = os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // cancel called above
	}
}
