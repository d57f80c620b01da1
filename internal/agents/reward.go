package agents

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/talgya/regionsim/internal/world"
)

// Reward weights.
const (
	tierHighReward       = 1.5
	tierMediumReward     = 0.5
	tierLowReward        = -0.8
	tierCriticalReward   = -3.0
	improvementWeight    = 5.0
	populationWeight     = 12.0
	happinessDeltaWeight = 6.0
	happinessLevelWeight = 2.0
	aliveBonus           = 1.5
	deathPenalty         = -60.0
	minRatioWeight       = 4.0
	techWeight           = 0.3
	rewardHighRatio      = 0.55
	rewardMediumRatio    = 0.35
	rewardCriticalRatio  = 0.15
)

// Snapshot is a region's state captured before a step.
type Snapshot struct {
	Resources    world.Amounts `json:"resources"`
	MaxResources world.Amounts `json:"max_resources"`
	Population   float64       `json:"population"`
	Happiness    float64       `json:"happiness"`
}

// TakeSnapshot captures the fields ComputeReward compares against.
func TakeSnapshot(r *world.Region) Snapshot {
	return Snapshot{
		Resources:    r.Resources,
		MaxResources: r.MaxResources,
		Population:   r.Population,
		Happiness:    r.Happiness,
	}
}

func (s Snapshot) ratio(res world.Resource) float64 {
	return s.Resources[res] / math.Max(s.MaxResources[res], 1)
}

// ComputeReward scores the transition from prev to the region's current state.
// It depends only on its arguments.
func ComputeReward(r *world.Region, prev Snapshot) float64 {
	reward := 0.0
	ratios := r.Ratios()
	for _, res := range world.Resources {
		ratio := ratios[res]
		reward += tierReward(ratio)
		reward += (ratio - prev.ratio(res)) * improvementWeight
	}

	reward += (r.Population - prev.Population) / math.Max(prev.Population, 1) * populationWeight
	reward += (r.Happiness-prev.Happiness)*happinessDeltaWeight + r.Happiness*happinessLevelWeight

	if r.Alive {
		reward += aliveBonus
	} else {
		reward += deathPenalty
	}

	reward += floats.Min(ratios) * minRatioWeight
	reward += r.TechLevel * techWeight
	return reward
}

func tierReward(ratio float64) float64 {
	switch {
	case ratio > rewardHighRatio:
		return tierHighReward
	case ratio > rewardMediumRatio:
		return tierMediumReward
	case ratio > rewardCriticalRatio:
		return tierLowReward
	default:
		return tierCriticalReward
	}
}
