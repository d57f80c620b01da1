// Package climate generates stochastic climate events with biome-weighted
// distributions, seasonal modifiers and a slowly ramping global stress.
package climate

import (
	"fmt"

	"github.com/talgya/regionsim/internal/world"
)

// EventType enumerates climate and world events.
type EventType uint8

const (
	Drought EventType = iota
	Flood
	Earthquake
	Plague
	BumperHarvest
	EnergyCrisis
	EnergyBoom
	WaterDiscovery
	VolcanicEruption
	TradeDisruption
	TechnologicalLeap
)

// NumEventTypes is the number of event variants.
const NumEventTypes = 11

var eventNames = [NumEventTypes]string{
	"drought",
	"flood",
	"earthquake",
	"plague",
	"bumper_harvest",
	"energy_crisis",
	"energy_boom",
	"water_discovery",
	"volcanic_eruption",
	"trade_disruption",
	"technological_leap",
}

// String returns the snake_case event name.
func (e EventType) String() string {
	if int(e) < NumEventTypes {
		return eventNames[e]
	}
	return fmt.Sprintf("event(%d)", uint8(e))
}

// MarshalText encodes the event type by name.
func (e EventType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText decodes an event name.
func (e *EventType) UnmarshalText(b []byte) error {
	for i, n := range eventNames {
		if n == string(b) {
			*e = EventType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown event type %q", b)
}

// GlobalTarget is the region marker for events that hit every living region.
const GlobalTarget = "GLOBAL"

// Event is one generated occurrence. Events are not stored on regions; they are
// logged and turned into deltas.
type Event struct {
	Type     EventType `json:"type"`
	Region   string    `json:"region"`
	Cycle    int       `json:"cycle"`
	Season   string    `json:"season"`
	Severity float64   `json:"severity"`
	IsGlobal bool      `json:"is_global"`
}

// Effect returns the delta an event applies to one region, scaled by severity.
// Trade disruption has no direct region effect; its relationship damage and
// trade block are applied by the caller.
func Effect(e Event, r *world.Region) world.Delta {
	s := e.Severity
	d := world.NewDelta()

	switch e.Type {
	case Drought:
		d.Scale[world.Water] = 1 - 0.30*s
		d.Scale[world.Food] = 1 - 0.12*s
		d.ProductionScale[world.Water] = max(0.8, 1-0.08*s)

	case Flood:
		d.Scale[world.Food] = 1 - 0.22*s
		d.Scale[world.Land] = 1 - 0.08*s
		d.Add[world.Water] = r.MaxResources[world.Water] * 0.18 * s

	case Earthquake:
		d.Scale[world.Energy] = 1 - 0.18*s
		d.Scale[world.Land] = 1 - 0.12*s
		d.PopulationScale = 1 - 0.04*s

	case Plague:
		d.PopulationScale = 1 - 0.12*s
		d.HappinessScale = 1 - 0.15*s

	case BumperHarvest:
		d.Add[world.Food] = r.MaxResources[world.Food] * 0.25 * s
		d.HappinessAdd = 0.05 * s

	case EnergyCrisis:
		d.Scale[world.Energy] = 1 - 0.28*s
		d.ProductionScale[world.Energy] = max(0.85, 1-0.04*s)

	case EnergyBoom:
		d.Add[world.Energy] = r.MaxResources[world.Energy] * 0.22 * s
		d.ProductionScale[world.Energy] = 1 + 0.04*s

	case WaterDiscovery:
		d.Add[world.Water] = r.MaxResources[world.Water] * 0.18 * s
		d.ProductionScale[world.Water] = 1 + 0.04*s

	case VolcanicEruption:
		d.Scale[world.Land] = 1 - 0.18*s
		d.Add[world.Energy] = r.MaxResources[world.Energy] * 0.12 * s
		d.PopulationScale = 1 - 0.08*s

	case TechnologicalLeap:
		d.TechAdd = 0.15 * s
		d.HappinessAdd = 0.05
	}
	return d
}
