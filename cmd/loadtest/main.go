// Package main implements the load-test driver CLI: it runs the named load
// scenarios sequentially against a simulated queue store, prints a summary
// table, and exits nonzero unless every scenario passed.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mataresit/embedq/internal/loadtest"
)

func main() {
	scenarioFilter := flag.String("scenarios", "", "comma-separated scenario names to run (default: all)")
	cooldown := flag.Duration("cooldown", 2*time.Second, "pause between scenarios")
	verbose := flag.Bool("v", false, "log scenario progress to stderr")
	flag.Parse()

	scenarios, err := selectScenarios(loadtest.DefaultScenarios(), *scenarioFilter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	driver, err := loadtest.NewDriver(scenarios, *cooldown, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Embedding Queue Load Test\n")
	fmt.Printf("  scenarios: %d\n", len(scenarios))
	fmt.Printf("  cooldown:  %s\n\n", *cooldown)

	results, allPassed := driver.Run(ctx)

	if err := loadtest.WriteSummary(os.Stdout, results); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	passed := 0
	for _, r := range results {
		if r.Passed() {
			passed++
		}
	}
	fmt.Printf("\n%d/%d scenarios passed\n", passed, len(results))

	if !allPassed || len(results) < len(scenarios) {
		os.Exit(1)
	}
}

// selectScenarios filters the scenario set by name, preserving order.
func selectScenarios(all []loadtest.Scenario, filter string) ([]loadtest.Scenario, error) {
	if filter == "" {
		return all, nil
	}

	wanted := make(map[string]bool)
	for _, name := range strings.Split(filter, ",") {
		wanted[strings.TrimSpace(name)] = true
	}

	var selected []loadtest.Scenario
	for _, sc := range all {
		if wanted[sc.Name] {
			selected = append(selected, sc)
			delete(wanted, sc.Name)
		}
	}
	if len(wanted) > 0 {
		unknown := make([]string, 0, len(wanted))
		for name := range wanted {
			unknown = append(unknown, name)
		}
		return nil, fmt.Errorf("unknown scenarios: %s", strings.Join(unknown, ", "))
	}
	return selected, nil
}
