// Command sweep runs the simulation over a range of seeds in parallel and
// reports how outcomes vary between them.
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
	"sort"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/talgya/regionsim/internal/agents"
	"github.com/talgya/regionsim/internal/config"
	"github.com/talgya/regionsim/internal/engine"
	"github.com/talgya/regionsim/internal/persistence"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := flag.String("config", os.Getenv("REGIONSIM_CONFIG"), "YAML config file (defaults are embedded)")
	seeds := flag.Int("seeds", envIntOrDefault("SWEEP_SEEDS", 0), "override the number of seeds")
	workers := flag.Int("workers", envIntOrDefault("SWEEP_WORKERS", 0), "override the worker count")
	dbPath := flag.String("db", os.Getenv("REGIONSIM_DB"), "record final states to this SQLite file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *seeds > 0 {
		cfg.Sweep.Seeds = *seeds
	}
	if *workers > 0 {
		cfg.Sweep.Workers = *workers
	}
	if *dbPath != "" {
		cfg.Output.DBPath = *dbPath
	}
	// Per-cycle logging from many worlds at once is noise.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: max(cfg.SlogLevel(), slog.LevelInfo)})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	var db *persistence.DB
	if cfg.Output.DBPath != "" {
		db, err = persistence.Open(cfg.Output.DBPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	slog.Info("sweep starting",
		"seeds", cfg.Sweep.Seeds,
		"first_seed", cfg.Sweep.FirstSeed,
		"workers", cfg.Sweep.Workers,
		"cycles", cfg.Cycles,
	)

	results, err := sweep(ctx, cfg, db)
	if err != nil {
		slog.Error("sweep failed", "error", err)
		os.Exit(1)
	}

	agg := aggregate(results)
	fmt.Printf("\nSweep over %d seeds, %d cycles each:\n", agg.Runs, cfg.Cycles)
	fmt.Printf("  alive regions     %.2f ± %.2f\n", agg.AliveMean, agg.AliveStdDev)
	fmt.Printf("  total population  %s ± %s\n",
		humanize.Commaf(float64(int64(agg.PopulationMean))), humanize.Commaf(float64(int64(agg.PopulationStdDev))))
	fmt.Printf("  trades            %.1f ± %.1f\n", agg.TradesMean, agg.TradesStdDev)
	fmt.Printf("  collapses         %s total\n", humanize.Comma(int64(agg.Collapses)))
	for _, s := range agg.Strategies {
		fmt.Printf("  %-12s dominant for %d agents\n", s.Strategy, s.Agents)
	}
}

var errNoSeeds = errors.New("no seeds configured")

// seedResult is the outcome of one seed's run.
type seedResult struct {
	Seed    int64
	RunID   string
	Summary engine.Summary
	Agents  []agents.AgentSummary
}

// sweep runs every configured seed with at most cfg.Sweep.Workers running at
// once. Results are returned in seed order regardless of completion order.
func sweep(ctx context.Context, cfg *config.Config, db *persistence.DB) ([]seedResult, error) {
	seeds := cfg.SweepSeeds()
	if len(seeds) == 0 {
		return nil, errNoSeeds
	}
	results := make([]seedResult, len(seeds))

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Sweep.Workers > 0 {
		g.SetLimit(cfg.Sweep.Workers)
	}
	for i, seed := range seeds {
		i, seed := i, seed
		g.Go(func() error {
			res, err := runSeed(ctx, cfg, seed)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			if db != nil {
				if err := record(db, cfg, &res); err != nil {
					return fmt.Errorf("seed %d: %w", seed, err)
				}
			}
			results[i] = res
			slog.Info("seed done",
				"seed", seed,
				"alive", len(res.Summary.AliveRegions),
				"trades", res.Summary.TotalTrades,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runSeed runs one independent world and its agents to completion.
func runSeed(ctx context.Context, cfg *config.Config, seed int64) (seedResult, error) {
	w, err := engine.NewWorld(cfg.RegionTable(seed), seed)
	if err != nil {
		return seedResult{}, err
	}
	m := agents.NewManager(w.Names(), cfg.Agent, seed)

	r := engine.NewRunner(w, cfg.Cycles)
	r.StepFunc = m.RunCycle
	if err := r.Run(ctx); err != nil {
		return seedResult{}, err
	}
	return seedResult{Seed: seed, Summary: w.Summary(), Agents: m.Summary()}, nil
}

// record stores a finished seed as its own run, final state only.
func record(db *persistence.DB, cfg *config.Config, res *seedResult) error {
	c := *cfg
	c.Seed = res.Seed
	configJSON, _ := json.Marshal(c)

	res.RunID = persistence.NewRunID()
	if err := db.CreateRun(res.RunID, res.Seed, cfg.Cycles, string(configJSON)); err != nil {
		return err
	}
	// Only agent statistics survive the sweep; region state lives in the summary.
	if err := db.SaveAgents(res.RunID, res.Agents); err != nil {
		return err
	}
	return db.FinishRun(res.RunID, res.Summary)
}

// strategyCount is how many agents ended a sweep with a given dominant action.
type strategyCount struct {
	Strategy string
	Agents   int
}

// sweepStats summarizes outcomes across seeds.
type sweepStats struct {
	Runs             int
	AliveMean        float64
	AliveStdDev      float64
	PopulationMean   float64
	PopulationStdDev float64
	TradesMean       float64
	TradesStdDev     float64
	Collapses        int
	Strategies       []strategyCount
}

func aggregate(results []seedResult) sweepStats {
	st := sweepStats{Runs: len(results)}
	if len(results) == 0 {
		return st
	}

	alive := make([]float64, len(results))
	pop := make([]float64, len(results))
	trades := make([]float64, len(results))
	tally := make(map[string]int)
	for i, r := range results {
		alive[i] = float64(len(r.Summary.AliveRegions))
		pop[i] = r.Summary.TotalPopulation
		trades[i] = float64(r.Summary.TotalTrades)
		st.Collapses += len(r.Summary.CollapsedRegions)
		for _, a := range r.Agents {
			tally[a.DominantStrategy.String()]++
		}
	}

	st.AliveMean, st.AliveStdDev = meanStdDev(alive)
	st.PopulationMean, st.PopulationStdDev = meanStdDev(pop)
	st.TradesMean, st.TradesStdDev = meanStdDev(trades)

	for name, n := range tally {
		st.Strategies = append(st.Strategies, strategyCount{Strategy: name, Agents: n})
	}
	sort.Slice(st.Strategies, func(i, j int) bool {
		if st.Strategies[i].Agents != st.Strategies[j].Agents {
			return st.Strategies[i].Agents > st.Strategies[j].Agents
		}
		return st.Strategies[i].Strategy < st.Strategies[j].Strategy
	})
	return st
}

// meanStdDev returns the mean and sample standard deviation; a single value
// has zero spread.
func meanStdDev(x []float64) (float64, float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 0
	}
	return stat.MeanStdDev(x, nil)
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("ignoring non-integer environment value", "key", key, "value", v)
	}
	return def
}
