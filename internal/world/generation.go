// Region-table perturbation using layered simplex noise.
// Produces spatially correlated variations of the reference table for parameter
// sweeps: nearby regions drift in the same direction.
package world

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// PerturbConfig holds perturbation parameters.
type PerturbConfig struct {
	Seed      int64   // Noise seed
	Amplitude float64 // Max relative change of initial stock (0 = unchanged, 0.2 = ±20%)
	Scale     float64 // Position-to-noise frequency
}

// DefaultPerturbConfig returns a mild perturbation setting.
func DefaultPerturbConfig(seed int64) PerturbConfig {
	return PerturbConfig{
		Seed:      seed,
		Amplitude: 0.15,
		Scale:     3.0,
	}
}

// Perturb returns a copy of the table with initial resources and population
// scaled by noise sampled at each region's position. Capacities and coefficients
// are left alone so every row stays valid.
func Perturb(table []RegionConfig, cfg PerturbConfig) []RegionConfig {
	out := make([]RegionConfig, len(table))
	copy(out, table)
	if cfg.Amplitude <= 0 {
		return out
	}

	// One noise layer per resource plus one for population.
	var layers [NumResources + 1]opensimplex.Noise
	for i := range layers {
		layers[i] = opensimplex.NewNormalized(cfg.Seed + int64(i))
	}

	for i := range out {
		c := &out[i]
		x := c.Position.X * cfg.Scale
		y := c.Position.Y * cfg.Scale
		for _, res := range Resources {
			f := factor(layers[res], x, y, cfg.Amplitude)
			c.Resources[res] = clamp(c.Resources[res]*f, 0, c.MaxResources[res])
		}
		f := factor(layers[NumResources], x, y, cfg.Amplitude)
		c.Population = clamp(c.Population*f, 0, c.MaxPopulation)
	}
	return out
}

// factor maps normalized noise in [0,1) onto [1-amp, 1+amp).
func factor(noise opensimplex.Noise, x, y, amp float64) float64 {
	n := octaveNoise(noise, x, y, 3, 1.0, 0.5)
	return 1 + (n*2-1)*amp
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
