// Package main - simulate
// Plays batches of seeded games headlessly and prints win statistics, to
// compare strategies and rule variants.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/epidemicexpress/server/internal/domain/rules"
	"github.com/epidemicexpress/server/internal/platform/config"
	"github.com/epidemicexpress/server/internal/platform/logger"
	"github.com/epidemicexpress/server/internal/platform/optimization"
	"github.com/epidemicexpress/server/internal/sim"
)

func main() {
	strategyName := flag.String("strategy", "greedy", "Strategy: "+strings.Join(sim.Names(), "|"))
	games := flag.Int("games", 1000, "Number of games to play")
	seed := flag.Int64("seed", 1, "Seed of the first game (0 draws random seeds)")
	ruleset := flag.String("rules", "default", "Ruleset: default|classic|env (EPIDEMIC_RULES_* over default)")
	profile := flag.String("profile", "default", "Optimization profile sizing the worker pool: "+strings.Join(optimization.Names(), "|"))
	workers := flag.Int("workers", 0, "Worker goroutines (0 uses the profile)")
	withResults := flag.Bool("results", false, "Include every game in the JSON report")
	flag.Parse()

	strategy, err := sim.ByName(*strategyName)
	if err != nil {
		config.Exitf("simulate: %v", err)
	}
	rs, err := loadRules(*ruleset)
	if err != nil {
		config.Exitf("simulate: %v", err)
	}
	tuning, err := optimization.ByName(*profile)
	if err != nil {
		config.Exitf("simulate: %v", err)
	}
	if *games <= 0 {
		config.Exitf("simulate: -games must be positive")
	}
	if *workers <= 0 {
		*workers = tuning.SimWorkers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log := logger.New(os.Stderr, os.Stderr)
	report, err := sim.Batch{
		Rules:    rs,
		Strategy: strategy,
		Games:    *games,
		BaseSeed: *seed,
		Workers:  *workers,
		Logger:   log,
	}.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		config.Exitf("simulate: %v", err)
	}
	if err != nil {
		log.Warnf("Interrupted, reporting %d of %d games", report.Games, *games)
	}
	if !*withResults {
		report.Results = nil
	}

	fmt.Fprintf(os.Stderr, "%s on %s rules: won %d of %d (%.1f%%), top loss causes %v\n",
		report.Strategy, *ruleset, report.Won, report.Games, report.WinRate*100, report.TopLossReasons())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		config.Exitf("simulate: %v", err)
	}
}

func loadRules(name string) (rules.Ruleset, error) {
	switch name {
	case "default":
		return rules.Default(), nil
	case "classic":
		return rules.Classic(), nil
	case "env":
		rs := rules.Default()
		if err := config.ParseEnv(&struct {
			Rules *rules.Ruleset `envPrefix:"EPIDEMIC_RULES_"`
		}{&rs}); err != nil {
			return rules.Ruleset{}, err
		}
		return rs, rs.Validate()
	default:
		return rules.Ruleset{}, fmt.Errorf("unknown ruleset %q", name)
	}
}
