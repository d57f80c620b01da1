// World ties together the regions, climate and trade systems and runs them each cycle.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/talgya/regionsim/internal/climate"
	"github.com/talgya/regionsim/internal/trade"
	"github.com/talgya/regionsim/internal/world"
)

// Demographic constants.
const (
	happinessMemory    = 0.7  // Weight of last cycle's happiness in the blend
	growthThreshold    = 0.45 // Satisfaction above which population grows
	growthRate         = 0.018
	declineRate        = 0.028
	starvationRatio    = 0.10 // Water/food ratio below which the penalty applies
	starvationPenalty  = 0.04
	passiveTechGrowth  = 0.002
	CollapsePopulation = 5.0
)

// World holds the complete simulation state and wires the systems together.
// It owns one RNG stream shared by climate and trade; no other World may use it.
type World struct {
	Seed    int64
	Cycle   int             // Most recent cycle processed
	Regions []*world.Region // Table order, never reordered or shrunk

	Climate *climate.System
	Trade   *trade.System
	History *History

	index map[string]*world.Region
}

// NewWorld builds a world from a region table. This is the only place a run can
// fail: an empty or inconsistent table is rejected.
func NewWorld(table []world.RegionConfig, seed int64) (*World, error) {
	regions, err := world.BuildRegions(table)
	if err != nil {
		return nil, fmt.Errorf("build regions: %w", err)
	}

	rng := rand.New(rand.NewSource(seed))
	w := &World{
		Seed:    seed,
		Regions: regions,
		Climate: climate.NewSystem(rng),
		Trade:   trade.NewSystem(rng),
		History: &History{},
		index:   make(map[string]*world.Region, len(regions)),
	}
	for _, r := range regions {
		w.index[r.Name] = r
	}
	w.Trade.Ledger.Init(w.Names())
	return w, nil
}

// Region returns the region with the given name, or nil.
func (w *World) Region(name string) *world.Region {
	return w.index[name]
}

// Names returns every region name in table order.
func (w *World) Names() []string {
	names := make([]string, len(w.Regions))
	for i, r := range w.Regions {
		names[i] = r.Name
	}
	return names
}

// Step advances the world by one cycle. The phases always run in this order:
// production, consumption, actions, climate, trade, demographics, recording.
// Step never fails; bad decisions are logged and ignored.
func (w *World) Step(decisions map[string]world.Action) CycleLog {
	w.Cycle++
	actions := w.resolveDecisions(decisions)
	log := CycleLog{
		Cycle:     w.Cycle,
		Events:    []climate.Event{},
		Trades:    []trade.Trade{},
		Collapses: []string{},
	}

	w.produce()
	w.consume()
	w.applyActions(actions)

	events := w.Climate.GenerateEvents(w.Regions, w.Cycle)
	log.Season = w.Climate.Season()
	for _, e := range events {
		w.applyEvent(e)
	}
	log.Events = append(log.Events, events...)

	log.Trades = append(log.Trades, w.Trade.NegotiateTrades(w.Regions, actions, w.Cycle)...)

	for _, r := range w.Regions {
		if w.demographics(r, actions[r.Name]) {
			log.Collapses = append(log.Collapses, r.Name)
		}
	}

	w.History.record(w, log, actions)

	if len(log.Events) > 0 || len(log.Trades) > 0 {
		slog.Debug("cycle",
			"cycle", w.Cycle,
			"season", log.Season,
			"events", len(log.Events),
			"trades", len(log.Trades),
		)
	}
	return log
}

// resolveDecisions keeps only valid actions for living, known regions.
func (w *World) resolveDecisions(decisions map[string]world.Action) map[string]world.Action {
	actions := make(map[string]world.Action, len(w.Regions))
	for _, r := range w.Regions {
		actions[r.Name] = world.ActionNone
	}
	for name, a := range decisions {
		r, ok := w.index[name]
		if !ok {
			slog.Warn("decision for unknown region ignored", "region", name, "cycle", w.Cycle)
			continue
		}
		if a == world.ActionNone || !r.Alive {
			continue
		}
		if !a.Valid() {
			slog.Warn("invalid action ignored", "region", name, "action", a.String(), "cycle", w.Cycle)
			continue
		}
		actions[name] = a
	}
	return actions
}

// produce adds one cycle of natural production, scaled by tech and by how much
// land is available. Land itself is not scaled by land.
func (w *World) produce() {
	for _, r := range w.Regions {
		if !r.Alive {
			continue
		}
		d := world.NewDelta()
		landFactor := 0.5 + 0.5*r.Ratio(world.Land)
		for _, res := range world.Resources {
			factor := landFactor
			if res == world.Land {
				factor = 1
			}
			d.Add[res] = r.ProductionRates[res] * r.TechLevel * factor
		}
		r.Apply(d)
	}
}

func (w *World) consume() {
	for _, r := range w.Regions {
		if !r.Alive {
			continue
		}
		d := world.NewDelta()
		for _, res := range world.Resources {
			d.Add[res] = -r.TotalConsumption(res)
		}
		r.Apply(d)
	}
}

func (w *World) applyActions(actions map[string]world.Action) {
	for _, r := range w.Regions {
		if !r.Alive {
			continue
		}
		r.Apply(world.ActionEffect(r, actions[r.Name]))
	}
}

// applyEvent commits one event to its targets. A trade disruption blocks the
// next negotiation and damages relationships once, however many regions it hits.
func (w *World) applyEvent(e climate.Event) {
	w.History.Events = append(w.History.Events, e)
	if e.Type == climate.TradeDisruption {
		w.Trade.Disrupt(e.Severity)
		return
	}

	if !e.IsGlobal {
		if r := w.index[e.Region]; r != nil && r.Alive {
			r.Apply(climate.Effect(e, r))
		}
		return
	}
	for _, r := range w.Regions {
		if r.Alive {
			r.Apply(climate.Effect(e, r))
		}
	}
}

// demographics updates happiness, population and passive tech for a living
// region, and reports whether it collapsed this cycle.
func (w *World) demographics(r *world.Region, action world.Action) bool {
	if !r.Alive {
		return false
	}

	sat := r.Satisfaction()
	mood := world.NewDelta()
	mood.HappinessScale = happinessMemory
	mood.HappinessAdd = (1 - happinessMemory) * sat
	r.Apply(mood)

	var growth float64
	if sat > growthThreshold {
		growth = growthRate * (sat - growthThreshold) * r.Happiness
	} else {
		growth = -declineRate * (growthThreshold - sat)
	}
	for _, res := range [2]world.Resource{world.Water, world.Food} {
		if r.Ratio(res) < starvationRatio {
			growth -= starvationPenalty
		}
	}

	d := world.NewDelta()
	d.PopulationScale = 1 + growth
	if action != world.Research {
		d.TechAdd = passiveTechGrowth
	}
	r.Apply(d)

	if r.Population < CollapsePopulation && r.Collapse(w.Cycle) {
		w.History.Collapses = append(w.History.Collapses, Collapse{Name: r.Name, Cycle: w.Cycle})
		slog.Info("region collapsed",
			"region", r.Name,
			"cycle", w.Cycle,
			"population", fmt.Sprintf("%.2f", r.Population),
		)
		return true
	}
	return false
}
