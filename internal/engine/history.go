package engine

import (
	"math"

	"github.com/talgya/regionsim/internal/climate"
	"github.com/talgya/regionsim/internal/trade"
	"github.com/talgya/regionsim/internal/world"
)

// CycleLog is the per-cycle output of World.Step.
type CycleLog struct {
	Cycle     int             `json:"cycle"`
	Season    string          `json:"season"`
	Events    []climate.Event `json:"events"`
	Trades    []trade.Trade   `json:"trades"`
	Collapses []string        `json:"collapses"`
}

// RegionSnapshot is one region's recorded state at the end of a cycle.
type RegionSnapshot struct {
	Name       string        `json:"name"`
	Resources  world.Amounts `json:"resources"`
	Population float64       `json:"population"`
	Happiness  float64       `json:"happiness"`
	TechLevel  float64       `json:"tech_level"`
	Action     world.Action  `json:"action"`
}

// CycleRecord is one entry of the history buffers.
type CycleRecord struct {
	Cycle      int              `json:"cycle"`
	Season     string           `json:"season"`
	TradeCount int              `json:"trade_count"`
	Regions    []RegionSnapshot `json:"regions"` // Table order
}

// Collapse records when a region died.
type Collapse struct {
	Name  string `json:"name"`
	Cycle int    `json:"cycle"`
}

// History holds the append-only buffers accumulated across a run.
type History struct {
	Cycles    []CycleRecord   `json:"cycles"`
	Events    []climate.Event `json:"events"`
	Collapses []Collapse      `json:"collapses"`
}

func (h *History) record(w *World, log CycleLog, actions map[string]world.Action) {
	rec := CycleRecord{
		Cycle:      log.Cycle,
		Season:     log.Season,
		TradeCount: len(log.Trades),
		Regions:    make([]RegionSnapshot, len(w.Regions)),
	}
	for i, r := range w.Regions {
		rec.Regions[i] = RegionSnapshot{
			Name:       r.Name,
			Resources:  r.Resources,
			Population: r.Population,
			Happiness:  r.Happiness,
			TechLevel:  r.TechLevel,
			Action:     actions[r.Name],
		}
	}
	h.Cycles = append(h.Cycles, rec)
}

// TradeCounts returns the number of trades executed in each recorded cycle.
func (h *History) TradeCounts() []int {
	out := make([]int, len(h.Cycles))
	for i, c := range h.Cycles {
		out[i] = c.TradeCount
	}
	return out
}

// Seasons returns the season label of each recorded cycle.
func (h *History) Seasons() []string {
	out := make([]string, len(h.Cycles))
	for i, c := range h.Cycles {
		out[i] = c.Season
	}
	return out
}

// Series returns one region's snapshots across the run, or nil if unknown.
func (h *History) Series(name string) []RegionSnapshot {
	var out []RegionSnapshot
	for _, c := range h.Cycles {
		for _, s := range c.Regions {
			if s.Name == name {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Summary is the aggregate view of a world exposed to callers.
type Summary struct {
	Cycle            int      `json:"cycle"`
	AliveRegions     []string `json:"alive_regions"`
	CollapsedRegions []string `json:"collapsed_regions"`
	TotalPopulation  float64  `json:"total_population"` // Living regions only
	TotalTrades      int      `json:"total_trades"`
	TotalEvents      int      `json:"total_events"`
	ClimateStress    float64  `json:"climate_stress"` // Rounded to 4 places
}

// Summary returns the current aggregate counts.
func (w *World) Summary() Summary {
	s := Summary{
		Cycle:            w.Cycle,
		AliveRegions:     []string{},
		CollapsedRegions: []string{},
		TotalTrades:      len(w.Trade.History),
		TotalEvents:      len(w.History.Events),
		ClimateStress:    math.Round(w.Climate.Stress*1e4) / 1e4,
	}
	for _, r := range w.Regions {
		if r.Alive {
			s.AliveRegions = append(s.AliveRegions, r.Name)
			s.TotalPopulation += r.Population
		} else {
			s.CollapsedRegions = append(s.CollapsedRegions, r.Name)
		}
	}
	return s
}
