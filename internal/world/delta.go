package world

// Delta is an intended change to one region. Every system that wants to mutate a
// region builds a Delta and hands it to Region.Apply, which is the only writer.
//
// Apply order per field is scale first, then add, then clamp:
//
//	resource   = clamp(resource*Scale + Add, 0, max)
//	population = clamp(population*PopulationScale, 0, MaxPopulation)
//	happiness  = clamp(happiness*HappinessScale + HappinessAdd, 0, 1)
//	tech       = clamp(tech + TechAdd, 0, 3)
type Delta struct {
	Scale           Amounts
	Add             Amounts
	ProductionScale Amounts
	CapacityScale   Amounts

	PopulationScale float64
	HappinessScale  float64
	HappinessAdd    float64
	TechAdd         float64
}

// NewDelta returns the identity delta.
func NewDelta() Delta {
	d := Delta{
		PopulationScale: 1,
		HappinessScale:  1,
	}
	for _, res := range Resources {
		d.Scale[res] = 1
		d.ProductionScale[res] = 1
		d.CapacityScale[res] = 1
	}
	return d
}

// Apply commits a delta to the region and restores every bound.
// Dead regions are frozen and ignore deltas.
func (r *Region) Apply(d Delta) {
	if !r.Alive {
		return
	}
	for _, res := range Resources {
		r.MaxResources[res] *= d.CapacityScale[res]
		r.ProductionRates[res] *= d.ProductionScale[res]
		r.Resources[res] = r.Resources[res]*d.Scale[res] + d.Add[res]
	}
	r.ClampResources()

	r.Population = clamp(r.Population*d.PopulationScale, 0, r.MaxPopulation)
	r.Happiness = clamp(r.Happiness*d.HappinessScale+d.HappinessAdd, 0, MaxHappiness)
	r.TechLevel = clamp(r.TechLevel+d.TechAdd, 0, MaxTechLevel)
}
