// Command regionsim runs one regional resource simulation with learning agents
// and optionally records it to SQLite and a compressed cycle log.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/regionsim/internal/agents"
	"github.com/talgya/regionsim/internal/archive"
	"github.com/talgya/regionsim/internal/config"
	"github.com/talgya/regionsim/internal/engine"
	"github.com/talgya/regionsim/internal/persistence"
)

func main() {
	configPath := flag.String("config", os.Getenv("REGIONSIM_CONFIG"), "YAML config file (defaults are embedded)")
	var o overrides
	flag.Int64Var(&o.seed, "seed", 0, "override the configured seed")
	flag.IntVar(&o.cycles, "cycles", 0, "override the configured cycle count")
	flag.StringVar(&o.dbPath, "db", "", "override the SQLite archive path")
	flag.StringVar(&o.logDir, "logs", "", "override the cycle log directory")
	flag.DurationVar(&o.interval, "interval", 0, "override the minimum wall time per cycle")
	dumpConfig := flag.String("dump-config", "", "write the effective config to this path and exit")
	flag.Parse()

	o.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := o.apply(cfg); err != nil {
		slog.Error("invalid flags", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if *dumpConfig != "" {
		if err := cfg.WriteYAML(*dumpConfig); err != nil {
			slog.Error("failed to write config", "error", err)
			os.Exit(1)
		}
		slog.Info("config written", "path", *dumpConfig)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, stopping after the current cycle", "signal", sig)
		cancel()
	}()

	res, err := run(ctx, cfg)
	if err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}

	s := res.Summary
	fmt.Printf("\nRun %s: %d cycles, %d/%d regions alive, population %s, %s trades, %s events.\n",
		res.RunID, s.Cycle, len(s.AliveRegions), len(s.AliveRegions)+len(s.CollapsedRegions),
		humanize.Commaf(float64(int64(s.TotalPopulation))),
		humanize.Comma(int64(s.TotalTrades)), humanize.Comma(int64(s.TotalEvents)))
	for _, a := range res.Agents {
		fmt.Printf("  %-11s dominant=%-12s avg_reward=%7.2f epsilon=%.3f states=%d\n",
			a.Region, a.DominantStrategy, a.AverageReward, a.Epsilon, a.StatesVisited)
	}
}

// overrides holds command-line values. Only flags present on the command line
// replace config values, so zero is a valid override.
type overrides struct {
	seed     int64
	cycles   int
	dbPath   string
	logDir   string
	interval time.Duration
	set      map[string]bool
}

func (o overrides) apply(cfg *config.Config) error {
	if o.set["seed"] {
		cfg.Seed = o.seed
	}
	if o.set["cycles"] {
		cfg.Cycles = o.cycles
	}
	if o.set["db"] {
		cfg.Output.DBPath = o.dbPath
	}
	if o.set["logs"] {
		cfg.Output.CycleLogDir = o.logDir
	}
	if o.set["interval"] {
		cfg.Output.CycleInterval = o.interval
	}
	return cfg.Validate()
}

// result is what one recorded run produces.
type result struct {
	RunID   string
	Summary engine.Summary
	Agents  []agents.AgentSummary
}

// run builds the world and agents from cfg, runs them to completion or until
// ctx is cancelled, and records whatever outputs are configured.
func run(ctx context.Context, cfg *config.Config) (result, error) {
	res := result{RunID: persistence.NewRunID()}

	w, err := engine.NewWorld(cfg.RegionTable(cfg.Seed), cfg.Seed)
	if err != nil {
		return res, fmt.Errorf("build world: %w", err)
	}
	manager := agents.NewManager(w.Names(), cfg.Agent, cfg.Seed)

	slog.Info("world ready",
		"run", res.RunID,
		"seed", cfg.Seed,
		"regions", len(w.Regions),
		"cycles", cfg.Cycles,
		"perturbation", cfg.World.Perturbation,
		"interval", cfg.Output.CycleInterval,
	)

	runner := engine.NewRunner(w, cfg.Cycles)
	runner.StepFunc = manager.RunCycle
	runner.ReportEvery = cfg.Output.ReportEvery
	runner.Interval = cfg.Output.CycleInterval
	runner.OnReport = engine.Report

	var sinks []func(engine.CycleLog) error

	var db *persistence.DB
	if cfg.Output.DBPath != "" {
		db, err = persistence.Open(cfg.Output.DBPath)
		if err != nil {
			return res, err
		}
		defer db.Close()

		configJSON, _ := json.Marshal(cfg)
		if err := db.CreateRun(res.RunID, cfg.Seed, cfg.Cycles, string(configJSON)); err != nil {
			return res, err
		}
		sinks = append(sinks, db.Recorder(res.RunID, w))
		slog.Info("database opened", "path", cfg.Output.DBPath)
	}

	if cfg.Output.CycleLogDir != "" {
		cl, err := archive.Create(cfg.Output.CycleLogDir, res.RunID)
		if err != nil {
			return res, err
		}
		defer func() {
			if err := cl.Close(); err != nil {
				slog.Error("cycle log close failed", "error", err)
			}
		}()
		sinks = append(sinks, cl.Write)
		slog.Info("cycle log opened", "path", cl.Path())
	}

	if len(sinks) > 0 {
		runner.OnCycle = func(log engine.CycleLog) error {
			for _, sink := range sinks {
				if err := sink(log); err != nil {
					return err
				}
			}
			return nil
		}
	}

	runErr := runner.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return res, runErr
	}

	res.Summary = w.Summary()
	res.Agents = manager.Summary()

	if db != nil {
		slog.Info("final save...")
		if err := db.SaveFinalState(res.RunID, w, res.Agents); err != nil {
			return res, fmt.Errorf("save final state: %w", err)
		}
		if err := db.FinishRun(res.RunID, res.Summary); err != nil {
			return res, err
		}
		if err := db.SaveMeta("last_run", res.RunID); err != nil {
			return res, fmt.Errorf("save meta: %w", err)
		}
	}

	for _, c := range w.History.Collapses {
		slog.Info("collapse", "region", c.Name, "cycle", c.Cycle)
	}
	return res, nil
}
