package climate

import (
	"math/rand"

	"github.com/talgya/regionsim/internal/world"
)

// Season constants.
const (
	SeasonSpring = 0
	SeasonSummer = 1
	SeasonAutumn = 2
	SeasonWinter = 3
)

// SeasonName returns a human-readable season name.
func SeasonName(season int) string {
	switch season {
	case SeasonSpring:
		return "Spring"
	case SeasonSummer:
		return "Summer"
	case SeasonAutumn:
		return "Autumn"
	case SeasonWinter:
		return "Winter"
	default:
		return "Unknown"
	}
}

// Event probability and stress parameters.
const (
	BaseEventProb    = 0.15
	StressStep       = 0.0008
	MaxStress        = 0.45
	GlobalEventBase  = 0.025
	GlobalStressMult = 0.04

	seasonalBoost = 1.4
	missingWeight = 0.1
)

// WeightedEvent is one entry of an event distribution.
type WeightedEvent struct {
	Type   EventType
	Weight float64
}

// biomeWeights holds the base local event distribution per biome.
// Order matters: sampling walks the table in order.
var biomeWeights = [world.NumBiomes][]WeightedEvent{
	world.BiomeTropical: {
		{Flood, 0.30}, {Plague, 0.20}, {BumperHarvest, 0.25}, {Drought, 0.10}, {TechnologicalLeap, 0.05},
	},
	world.BiomeArid: {
		{Drought, 0.35}, {EnergyBoom, 0.20}, {WaterDiscovery, 0.15}, {Earthquake, 0.10}, {TradeDisruption, 0.05},
	},
	world.BiomeTemperate: {
		{BumperHarvest, 0.30}, {Flood, 0.15}, {Drought, 0.15}, {Plague, 0.10}, {TechnologicalLeap, 0.10},
	},
	world.BiomeContinental: {
		{Drought, 0.20}, {Flood, 0.15}, {BumperHarvest, 0.20}, {EnergyCrisis, 0.15}, {Earthquake, 0.05},
	},
	world.BiomePolar: {
		{EnergyCrisis, 0.30}, {WaterDiscovery, 0.15}, {Earthquake, 0.10}, {Flood, 0.10}, {Drought, 0.10},
	},
	world.BiomeCoastal: {
		{Flood, 0.30}, {BumperHarvest, 0.15}, {WaterDiscovery, 0.15}, {Plague, 0.10}, {TradeDisruption, 0.10},
	},
	world.BiomeMountainous: {
		{Earthquake, 0.25}, {EnergyBoom, 0.20}, {VolcanicEruption, 0.10}, {Drought, 0.10}, {Flood, 0.10},
	},
	world.BiomeRiverine: {
		{Flood, 0.30}, {BumperHarvest, 0.25}, {WaterDiscovery, 0.10}, {Plague, 0.10}, {TechnologicalLeap, 0.08},
	},
}

var fallbackWeights = []WeightedEvent{{Drought, 0.25}, {Flood, 0.25}}

// globalEvents is the disaster set a global event is drawn from.
var globalEvents = [4]EventType{Drought, EnergyCrisis, Plague, TradeDisruption}

// System is the climate state machine. It owns no per-region state; events are
// generated fresh every cycle from the shared RNG handle.
type System struct {
	rng *rand.Rand

	Stress      float64 // Non-decreasing, capped at MaxStress
	SeasonIndex int     // 0..3
}

// NewSystem creates a climate system drawing from rng.
func NewSystem(rng *rand.Rand) *System {
	return &System{rng: rng}
}

// Season returns the current season name.
func (c *System) Season() string {
	return SeasonName(c.SeasonIndex)
}

// Advance moves the season to cycle mod 4 and ratchets stress up one step.
func (c *System) Advance(cycle int) {
	c.SeasonIndex = cycle % 4
	c.Stress = min(MaxStress, c.Stress+StressStep)
}

// GenerateEvents advances the climate and rolls this cycle's events: at most one
// local event per living region, then at most one global event.
func (c *System) GenerateEvents(regions []*world.Region, cycle int) []Event {
	c.Advance(cycle)

	var events []Event
	prob := BaseEventProb + c.Stress
	for _, r := range regions {
		if !r.Alive {
			continue
		}
		if c.rng.Float64() < prob {
			events = append(events, c.localEvent(r, cycle))
		}
	}

	if c.rng.Float64() < GlobalEventBase+c.Stress*GlobalStressMult {
		events = append(events, c.globalEvent(cycle))
	}
	return events
}

func (c *System) localEvent(r *world.Region, cycle int) Event {
	weights := c.SeasonalWeights(r.Biome)
	return Event{
		Type:     sample(c.rng, weights),
		Region:   r.Name,
		Cycle:    cycle,
		Season:   c.Season(),
		Severity: uniform(c.rng, 0.3, 1.0),
	}
}

func (c *System) globalEvent(cycle int) Event {
	t := globalEvents[c.rng.Intn(len(globalEvents))]
	return Event{
		Type:     t,
		Region:   GlobalTarget,
		Cycle:    cycle,
		Season:   c.Season(),
		Severity: uniform(c.rng, 0.15, 0.50),
		IsGlobal: true,
	}
}

// SeasonalWeights returns the biome's event distribution with the current
// season's multiplier applied, renormalized to sum to 1. It is rebuilt on every
// call so the static tables are never mutated.
func (c *System) SeasonalWeights(b world.Biome) []WeightedEvent {
	base := fallbackWeights
	if int(b) < world.NumBiomes {
		base = biomeWeights[b]
	}
	weights := make([]WeightedEvent, len(base))
	copy(weights, base)

	switch c.SeasonIndex {
	case SeasonSummer:
		weights = boost(weights, Drought)
	case SeasonWinter:
		weights = boost(weights, EnergyCrisis)
	}

	total := 0.0
	for _, w := range weights {
		total += w.Weight
	}
	for i := range weights {
		weights[i].Weight /= total
	}
	return weights
}

// boost multiplies one event's weight, adding it with a small base weight when
// the biome does not list it.
func boost(weights []WeightedEvent, t EventType) []WeightedEvent {
	for i := range weights {
		if weights[i].Type == t {
			weights[i].Weight *= seasonalBoost
			return weights
		}
	}
	return append(weights, WeightedEvent{t, missingWeight * seasonalBoost})
}

func sample(rng *rand.Rand, weights []WeightedEvent) EventType {
	u := rng.Float64()
	cum := 0.0
	for _, w := range weights {
		cum += w.Weight
		if u < cum {
			return w.Type
		}
	}
	return weights[len(weights)-1].Type
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
