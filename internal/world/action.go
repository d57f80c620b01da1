package world

import (
	"errors"
	"fmt"
)

// ErrUnknownAction is returned when an action tag is not one of the fixed nine.
var ErrUnknownAction = errors.New("unknown action")

// Action is a region's per-cycle policy choice. The index mapping is fixed and
// doubles as the learning agents' action index.
type Action int8

// ActionNone marks a dead region or a missing decision.
const ActionNone Action = -1

const (
	FocusWater Action = iota
	FocusFood
	FocusEnergy
	ExpandLand
	Conserve
	Research
	Trade
	Stockpile
	Balance
)

// NumActions is the size of the action space.
const NumActions = 9

var actionNames = [NumActions]string{
	"focus_water",
	"focus_food",
	"focus_energy",
	"expand_land",
	"conserve",
	"research",
	"trade",
	"stockpile",
	"balance",
}

// Actions lists every action in index order.
func Actions() []Action {
	out := make([]Action, NumActions)
	for i := range out {
		out[i] = Action(i)
	}
	return out
}

// Valid reports whether a is one of the nine actions.
func (a Action) Valid() bool {
	return a >= 0 && int(a) < NumActions
}

// String returns the action tag, "none" for ActionNone.
func (a Action) String() string {
	if a.Valid() {
		return actionNames[a]
	}
	if a == ActionNone {
		return "none"
	}
	return fmt.Sprintf("action(%d)", int8(a))
}

// MarshalText encodes the action by tag.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes an action tag.
func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAction returns the action for a tag. "none" and "" decode to ActionNone.
func ParseAction(tag string) (Action, error) {
	if tag == "" || tag == "none" {
		return ActionNone, nil
	}
	for i, n := range actionNames {
		if n == tag {
			return Action(i), nil
		}
	}
	return ActionNone, fmt.Errorf("%w: %q", ErrUnknownAction, tag)
}

// Action effect magnitudes.
const (
	focusShare        = 0.5
	expandLandPerTech = 12.0
	conserveShare     = 0.35
	conserveMood      = 0.98
	ResearchStep      = 0.018
	stockpileGrowth   = 1.004
	balanceShare      = 0.12
)

// ActionEffect returns the delta an action applies to the region this cycle.
// Trade and ActionNone are no-ops here; trade is resolved by the trade system.
func ActionEffect(r *Region, a Action) Delta {
	d := NewDelta()
	switch a {
	case FocusWater:
		d.Add[Water] = r.ProductionRates[Water] * focusShare * r.TechLevel
	case FocusFood:
		d.Add[Food] = r.ProductionRates[Food] * focusShare * r.TechLevel
	case FocusEnergy:
		d.Add[Energy] = r.ProductionRates[Energy] * focusShare * r.TechLevel
	case ExpandLand:
		d.Add[Land] = expandLandPerTech * r.TechLevel
	case Conserve:
		for _, res := range Consumables {
			d.Add[res] = r.TotalConsumption(res) * conserveShare
		}
		d.HappinessScale = conserveMood
	case Research:
		d.TechAdd = ResearchStep
	case Stockpile:
		for _, res := range Consumables {
			d.CapacityScale[res] = stockpileGrowth
		}
	case Balance:
		for _, res := range Consumables {
			d.Add[res] = r.ProductionRates[res] * balanceShare * r.TechLevel
		}
	}
	return d
}
