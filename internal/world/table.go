package world

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Construction errors. These are the only fatal errors the simulation raises.
var (
	ErrEmptyTable      = errors.New("region table is empty")
	ErrDuplicateRegion = errors.New("duplicate region name")
	ErrInvalidRegion   = errors.New("invalid region config")
)

// NeighborCount is how many nearest regions each region lists as neighbors.
const NeighborCount = 3

// RegionConfig is one row of the construction table.
type RegionConfig struct {
	Name              string
	Biome             Biome
	Resources         Amounts
	MaxResources      Amounts
	ProductionRates   Amounts
	ConsumptionPerPop Amounts
	Population        float64
	MaxPopulation     float64
	Position          Position
}

// DefaultTable returns the eight-region reference table.
func DefaultTable() []RegionConfig {
	return []RegionConfig{
		{
			Name: "Verdantia", Biome: BiomeTropical,
			Resources:         Amounts{800, 700, 300, 500},
			MaxResources:      Amounts{1000, 1000, 600, 600},
			ProductionRates:   Amounts{38, 42, 10, 3},
			ConsumptionPerPop: Amounts{0.25, 0.20, 0.10, 0.03},
			Population:        120, MaxPopulation: 500,
			Position: Position{0.15, 0.75},
		},
		{
			Name: "Aridia", Biome: BiomeArid,
			Resources:         Amounts{200, 300, 800, 700},
			MaxResources:      Amounts{500, 600, 1000, 900},
			ProductionRates:   Amounts{8, 14, 48, 5},
			ConsumptionPerPop: Amounts{0.30, 0.20, 0.15, 0.02},
			Population:        80, MaxPopulation: 300,
			Position: Position{0.50, 0.88},
		},
		{
			Name: "Temperalis", Biome: BiomeTemperate,
			Resources:         Amounts{600, 600, 500, 600},
			MaxResources:      Amounts{800, 800, 700, 800},
			ProductionRates:   Amounts{28, 32, 22, 4},
			ConsumptionPerPop: Amounts{0.20, 0.20, 0.15, 0.03},
			Population:        150, MaxPopulation: 600,
			Position: Position{0.35, 0.50},
		},
		{
			Name: "Borealis", Biome: BiomeContinental,
			Resources:         Amounts{500, 400, 600, 800},
			MaxResources:      Amounts{700, 700, 800, 1000},
			ProductionRates:   Amounts{22, 18, 32, 5},
			ConsumptionPerPop: Amounts{0.20, 0.25, 0.20, 0.03},
			Population:        100, MaxPopulation: 400,
			Position: Position{0.68, 0.58},
		},
		{
			Name: "Glaciera", Biome: BiomePolar,
			Resources:         Amounts{900, 150, 200, 300},
			MaxResources:      Amounts{1200, 400, 500, 400},
			ProductionRates:   Amounts{48, 5, 12, 1},
			ConsumptionPerPop: Amounts{0.15, 0.25, 0.30, 0.02},
			Population:        50, MaxPopulation: 200,
			Position: Position{0.82, 0.18},
		},
		{
			Name: "Maritosa", Biome: BiomeCoastal,
			Resources:         Amounts{700, 600, 400, 350},
			MaxResources:      Amounts{900, 800, 600, 450},
			ProductionRates:   Amounts{32, 36, 18, 2},
			ConsumptionPerPop: Amounts{0.20, 0.18, 0.15, 0.04},
			Population:        130, MaxPopulation: 450,
			Position: Position{0.15, 0.32},
		},
		{
			Name: "Montarok", Biome: BiomeMountainous,
			Resources:         Amounts{400, 250, 700, 400},
			MaxResources:      Amounts{600, 500, 900, 500},
			ProductionRates:   Amounts{18, 10, 42, 2},
			ConsumptionPerPop: Amounts{0.20, 0.22, 0.10, 0.03},
			Population:        70, MaxPopulation: 250,
			Position: Position{0.85, 0.72},
		},
		{
			Name: "Fluviana", Biome: BiomeRiverine,
			Resources:         Amounts{850, 750, 350, 550},
			MaxResources:      Amounts{1100, 900, 500, 700},
			ProductionRates:   Amounts{42, 40, 12, 4},
			ConsumptionPerPop: Amounts{0.20, 0.18, 0.12, 0.03},
			Population:        140, MaxPopulation: 550,
			Position: Position{0.50, 0.28},
		},
	}
}

// Validate checks a single row for internal consistency.
func (c RegionConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidRegion)
	}
	if int(c.Biome) >= NumBiomes {
		return fmt.Errorf("%w: %s: unknown biome %d", ErrInvalidRegion, c.Name, c.Biome)
	}
	for _, res := range Resources {
		if c.MaxResources[res] <= 0 {
			return fmt.Errorf("%w: %s: max %s must be positive", ErrInvalidRegion, c.Name, res)
		}
		if c.Resources[res] < 0 || c.Resources[res] > c.MaxResources[res] {
			return fmt.Errorf("%w: %s: %s %.1f outside [0, %.1f]",
				ErrInvalidRegion, c.Name, res, c.Resources[res], c.MaxResources[res])
		}
		if c.ProductionRates[res] < 0 || c.ConsumptionPerPop[res] < 0 {
			return fmt.Errorf("%w: %s: negative %s coefficient", ErrInvalidRegion, c.Name, res)
		}
	}
	if c.MaxPopulation <= 0 || c.Population < 0 || c.Population > c.MaxPopulation {
		return fmt.Errorf("%w: %s: population %.1f outside [0, %.1f]",
			ErrInvalidRegion, c.Name, c.Population, c.MaxPopulation)
	}
	return nil
}

// NewRegion builds a living region from one table row.
func NewRegion(c RegionConfig) *Region {
	return &Region{
		Name:              c.Name,
		Biome:             c.Biome,
		Resources:         c.Resources,
		MaxResources:      c.MaxResources,
		ProductionRates:   c.ProductionRates,
		ConsumptionPerPop: c.ConsumptionPerPop,
		Population:        c.Population,
		MaxPopulation:     c.MaxPopulation,
		Position:          c.Position,
		Happiness:         0.50,
		TechLevel:         1.0,
		Alive:             true,
		CollapseCycle:     -1,
	}
}

// BuildRegions validates the table and returns regions in table order with
// neighbors assigned.
func BuildRegions(table []RegionConfig) ([]*Region, error) {
	if len(table) == 0 {
		return nil, ErrEmptyTable
	}
	seen := make(map[string]bool, len(table))
	regions := make([]*Region, 0, len(table))
	for _, c := range table {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRegion, c.Name)
		}
		seen[c.Name] = true
		regions = append(regions, NewRegion(c))
	}
	AssignNeighbors(regions)
	return regions, nil
}

// AssignNeighbors sets each region's neighbors to its nearest regions by
// Euclidean distance. Equal distances keep table order.
func AssignNeighbors(regions []*Region) {
	type candidate struct {
		name string
		dist float64
	}
	for i, r := range regions {
		cands := make([]candidate, 0, len(regions)-1)
		for j, other := range regions {
			if i == j {
				continue
			}
			cands = append(cands, candidate{other.Name, Distance(r.Position, other.Position)})
		}
		sort.SliceStable(cands, func(a, b int) bool { return cands[a].dist < cands[b].dist })

		n := min(NeighborCount, len(cands))
		r.Neighbors = make([]string, n)
		for k := 0; k < n; k++ {
			r.Neighbors[k] = cands[k].name
		}
	}
}

// Distance returns the Euclidean distance between two positions.
func Distance(a, b Position) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
