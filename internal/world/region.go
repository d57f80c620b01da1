package world

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Discretization breakpoints for resource ratios (tier 0 critical .. tier 4 abundant).
const (
	tierCritical = 0.15
	tierLow      = 0.35
	tierMedium   = 0.55
	tierHigh     = 0.75
)

// Thresholds for the deficit/surplus views of a region.
const (
	DeficitRatio = 0.30
	SurplusRatio = 0.55
)

// Caps shared by every region.
const (
	MaxTechLevel = 3.0
	MaxHappiness = 1.0
)

// StateKey is the discretized region state used as the learning key:
// four resource tiers, a population bucket and a happiness bucket.
// It is a comparable array so it can key a map directly.
type StateKey [6]int

// Region is one geographic region: its resources, demographics and derived state.
type Region struct {
	Name  string `json:"name"`
	Biome Biome  `json:"biome"`

	Resources    Amounts `json:"resources"`
	MaxResources Amounts `json:"max_resources"` // Grows only through stockpiling

	ProductionRates   Amounts `json:"production_rates"`
	ConsumptionPerPop Amounts `json:"consumption_per_pop"`

	Population    float64 `json:"population"`
	MaxPopulation float64 `json:"max_population"`

	Position  Position `json:"position"`
	Neighbors []string `json:"neighbors"` // Adjacency only, not ownership

	Happiness float64 `json:"happiness"` // 0.0–1.0
	TechLevel float64 `json:"tech_level"` // 0.0–3.0

	Alive         bool `json:"alive"`
	CollapseCycle int  `json:"collapse_cycle"` // -1 until collapse
}

// Ratio returns the resource level as a fraction of capacity.
func (r *Region) Ratio(res Resource) float64 {
	return r.Resources[res] / math.Max(r.MaxResources[res], 1)
}

// Ratios returns the ratio of every resource in canonical order.
func (r *Region) Ratios() []float64 {
	out := make([]float64, NumResources)
	for _, res := range Resources {
		out[res] = r.Ratio(res)
	}
	return out
}

// Satisfaction is the mean resource ratio.
func (r *Region) Satisfaction() float64 {
	return stat.Mean(r.Ratios(), nil)
}

// Tier discretizes a resource ratio into one of five ordered levels.
func Tier(ratio float64) int {
	switch {
	case ratio < tierCritical:
		return 0
	case ratio < tierLow:
		return 1
	case ratio < tierMedium:
		return 2
	case ratio < tierHigh:
		return 3
	default:
		return 4
	}
}

// State returns the discretized state key for this region.
func (r *Region) State() StateKey {
	var s StateKey
	for _, res := range Resources {
		s[res] = Tier(r.Ratio(res))
	}
	s[4] = min(int(math.Floor(r.Population/50)), 5)
	s[5] = min(int(math.Floor(r.Happiness*4)), 3)
	return s
}

// TotalConsumption is one cycle's consumption of a resource at current population.
func (r *Region) TotalConsumption(res Resource) float64 {
	return r.ConsumptionPerPop[res] * r.Population
}

// Surplus is the amount held above a three-cycle consumption buffer.
// Negative values mean there is nothing to spare.
func (r *Region) Surplus(res Resource) float64 {
	return r.Resources[res] - r.TotalConsumption(res)*3
}

// DeficitResources lists resources below the deficit ratio, in canonical order.
func (r *Region) DeficitResources() []Resource {
	return r.resourcesWhere(func(ratio float64) bool { return ratio < DeficitRatio })
}

// SurplusResources lists resources above the surplus ratio, in canonical order.
func (r *Region) SurplusResources() []Resource {
	return r.resourcesWhere(func(ratio float64) bool { return ratio > SurplusRatio })
}

func (r *Region) resourcesWhere(pred func(float64) bool) []Resource {
	var out []Resource
	for _, res := range Resources {
		if pred(r.Ratio(res)) {
			out = append(out, res)
		}
	}
	return out
}

// ClampResources clips every resource into [0, MaxResources].
func (r *Region) ClampResources() {
	for _, res := range Resources {
		r.Resources[res] = clamp(r.Resources[res], 0, r.MaxResources[res])
	}
}

// Collapse marks the region permanently dead at the given cycle.
// A region collapses at most once.
func (r *Region) Collapse(cycle int) bool {
	if !r.Alive {
		return false
	}
	r.Alive = false
	r.CollapseCycle = cycle
	return true
}

// Clone returns a deep copy of the region.
func (r *Region) Clone() *Region {
	c := *r
	c.Neighbors = append([]string(nil), r.Neighbors...)
	return &c
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
