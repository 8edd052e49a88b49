package simulate

import (
	"fmt"
	"os"

	"github.com/okian/pokerank/pkg/logger"
)

// SetupLogging initializes the process logger for the simulator.
func SetupLogging(verbose bool) error {
	level := "info"
	if verbose {
		level = "debug"
	}
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.SetLevelString(level)
}

// ShowHelp prints usage information for the vote simulator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`PokéRank Vote Simulator
=======================

Drives a running server through init, matchup and vote, then checks the
ranking and statistics for consistency.

Usage:
  go run ./cmd/vote-simulator [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -votes int
        Number of votes to submit (default 1000)
  -workers int
        Number of concurrent voters (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -reset
        Wipe and reseed before voting
  -bias float
        Probability the higher-rated side wins (default 0.5)
  -seed uint
        Seed for the voters' choices (default: time based)
  -output string
        Write accepted votes to this JSON file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/vote-simulator -votes 5000 -workers 16
  go run ./cmd/vote-simulator -reset -bias 0.8 -output votes.json
`)
}
