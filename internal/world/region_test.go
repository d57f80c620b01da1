package world

import (
	"errors"
	"math"
	"testing"
)

func testRegion() *Region {
	return NewRegion(RegionConfig{
		Name:              "Test",
		Biome:             BiomeTemperate,
		Resources:         Amounts{500, 500, 500, 500},
		MaxResources:      Amounts{1000, 1000, 1000, 1000},
		ProductionRates:   Amounts{10, 10, 10, 2},
		ConsumptionPerPop: Amounts{0.2, 0.2, 0.2, 0.02},
		Population:        100,
		MaxPopulation:     400,
	})
}

func TestTierBreakpoints(t *testing.T) {
	cases := []struct {
		ratio float64
		want  int
	}{
		{0, 0}, {0.149, 0}, {0.15, 1}, {0.349, 1}, {0.35, 2},
		{0.549, 2}, {0.55, 3}, {0.749, 3}, {0.75, 4}, {1.0, 4},
	}
	for _, c := range cases {
		if got := Tier(c.ratio); got != c.want {
			t.Fatalf("Tier(%v) = %d, want %d", c.ratio, got, c.want)
		}
	}
}

func TestStateBuckets(t *testing.T) {
	r := testRegion()
	r.Resources = Amounts{100, 300, 600, 900}
	r.Population = 420
	r.Happiness = 1.0

	got := r.State()
	want := StateKey{0, 1, 3, 4, 5, 3}
	if got != want {
		t.Fatalf("State() = %v, want %v", got, want)
	}

	r.Population = 49.9
	r.Happiness = 0.49
	got = r.State()
	if got[4] != 0 || got[5] != 1 {
		t.Fatalf("expected pop bucket 0 and happiness bucket 1, got %v", got)
	}
}

func TestStateIsStable(t *testing.T) {
	a := testRegion()
	b := testRegion()
	if a.State() != b.State() {
		t.Fatal("identical regions discretized differently")
	}
}

func TestRatioGuardsSmallCapacity(t *testing.T) {
	r := testRegion()
	r.MaxResources[Land] = 0.5
	r.Resources[Land] = 0.5
	if got := r.Ratio(Land); got != 0.5 {
		t.Fatalf("expected denominator floor of 1, got ratio %v", got)
	}
}

func TestSurplusAndThresholdViews(t *testing.T) {
	r := testRegion()
	r.Resources = Amounts{700, 200, 560, 100}
	r.ConsumptionPerPop[Water] = 0.3

	if got := r.Surplus(Water); math.Abs(got-610) > 1e-9 {
		t.Fatalf("Surplus(water) = %v, want 610", got)
	}
	r.Resources[Food] = 10
	if r.Surplus(Food) >= 0 {
		t.Fatal("expected negative surplus when stock is below the buffer")
	}

	deficit := r.DeficitResources()
	if len(deficit) != 2 || deficit[0] != Food || deficit[1] != Land {
		t.Fatalf("DeficitResources() = %v", deficit)
	}
	surplus := r.SurplusResources()
	if len(surplus) != 2 || surplus[0] != Water || surplus[1] != Energy {
		t.Fatalf("SurplusResources() = %v", surplus)
	}
}

func TestClampResources(t *testing.T) {
	r := testRegion()
	r.Resources = Amounts{-5, 1200, 300, 1000.5}
	r.ClampResources()
	want := Amounts{0, 1000, 300, 1000}
	if r.Resources != want {
		t.Fatalf("ClampResources() = %v, want %v", r.Resources, want)
	}
}

func TestCollapseIsOneWay(t *testing.T) {
	r := testRegion()
	if !r.Collapse(7) {
		t.Fatal("first collapse should succeed")
	}
	if r.Collapse(9) {
		t.Fatal("second collapse should be a no-op")
	}
	if r.Alive || r.CollapseCycle != 7 {
		t.Fatalf("alive=%v collapse_cycle=%d", r.Alive, r.CollapseCycle)
	}
}

func TestApplyDeltaBounds(t *testing.T) {
	r := testRegion()
	d := NewDelta()
	d.Add[Water] = 900
	d.Scale[Food] = -1
	d.PopulationScale = 10
	d.HappinessAdd = 2
	d.TechAdd = 5
	d.CapacityScale[Energy] = 1.004
	r.Apply(d)

	if r.Resources[Water] != 1000 {
		t.Fatalf("water = %v, want capped 1000", r.Resources[Water])
	}
	if r.Resources[Food] != 0 {
		t.Fatalf("food = %v, want floored 0", r.Resources[Food])
	}
	if r.Population != r.MaxPopulation {
		t.Fatalf("population = %v, want capped %v", r.Population, r.MaxPopulation)
	}
	if r.Happiness != 1 {
		t.Fatalf("happiness = %v, want 1", r.Happiness)
	}
	if r.TechLevel != MaxTechLevel {
		t.Fatalf("tech = %v, want %v", r.TechLevel, MaxTechLevel)
	}
	if math.Abs(r.MaxResources[Energy]-1004) > 1e-9 {
		t.Fatalf("energy capacity = %v, want 1004", r.MaxResources[Energy])
	}
}

func TestApplyIdentityDelta(t *testing.T) {
	r := testRegion()
	before := *r
	r.Apply(NewDelta())
	if r.Resources != before.Resources || r.Population != before.Population ||
		r.Happiness != before.Happiness || r.TechLevel != before.TechLevel {
		t.Fatal("identity delta changed region state")
	}
}

func TestApplyIgnoresDeadRegion(t *testing.T) {
	r := testRegion()
	r.Collapse(1)
	before := r.Resources
	d := NewDelta()
	d.Add[Water] = 100
	r.Apply(d)
	if r.Resources != before {
		t.Fatal("dead region was mutated")
	}
}

func TestBuildRegionsDefaultTable(t *testing.T) {
	regions, err := BuildRegions(DefaultTable())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(regions) != 8 {
		t.Fatalf("expected 8 regions, got %d", len(regions))
	}
	for _, r := range regions {
		if len(r.Neighbors) != NeighborCount {
			t.Fatalf("%s has %d neighbors", r.Name, len(r.Neighbors))
		}
		for _, n := range r.Neighbors {
			if n == r.Name {
				t.Fatalf("%s lists itself as neighbor", r.Name)
			}
		}
		if !r.Alive || r.CollapseCycle != -1 || r.Happiness != 0.5 || r.TechLevel != 1 {
			t.Fatalf("%s has unexpected initial state", r.Name)
		}
	}
	// Temperalis (0.35,0.50) is closest to Maritosa (0.15,0.32).
	if regions[5].Neighbors[0] != "Temperalis" {
		t.Fatalf("Maritosa nearest neighbor = %s", regions[5].Neighbors[0])
	}
}

func TestBuildRegionsRejectsBadTables(t *testing.T) {
	if _, err := BuildRegions(nil); !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("expected ErrEmptyTable, got %v", err)
	}

	dup := DefaultTable()
	dup[1].Name = dup[0].Name
	if _, err := BuildRegions(dup); !errors.Is(err, ErrDuplicateRegion) {
		t.Fatalf("expected ErrDuplicateRegion, got %v", err)
	}

	bad := DefaultTable()
	bad[2].Resources[Water] = bad[2].MaxResources[Water] + 1
	if _, err := BuildRegions(bad); !errors.Is(err, ErrInvalidRegion) {
		t.Fatalf("expected ErrInvalidRegion, got %v", err)
	}

	zeroCap := DefaultTable()
	zeroCap[3].MaxResources[Land] = 0
	if _, err := BuildRegions(zeroCap); !errors.Is(err, ErrInvalidRegion) {
		t.Fatalf("expected ErrInvalidRegion, got %v", err)
	}
}

func TestPerturbKeepsTableValid(t *testing.T) {
	base := DefaultTable()
	out := Perturb(base, DefaultPerturbConfig(42))
	if len(out) != len(base) {
		t.Fatalf("perturbed table has %d rows", len(out))
	}
	changed := false
	for i, c := range out {
		if err := c.Validate(); err != nil {
			t.Fatalf("row %d invalid after perturbation: %v", i, err)
		}
		if c.Resources != base[i].Resources {
			changed = true
		}
		if c.MaxResources != base[i].MaxResources {
			t.Fatalf("row %d capacity changed", i)
		}
	}
	if !changed {
		t.Fatal("perturbation left every row unchanged")
	}

	again := Perturb(base, DefaultPerturbConfig(42))
	for i := range out {
		if out[i] != again[i] {
			t.Fatalf("perturbation is not deterministic at row %d", i)
		}
	}
}

func TestPerturbZeroAmplitudeIsIdentity(t *testing.T) {
	base := DefaultTable()
	out := Perturb(base, PerturbConfig{Seed: 1})
	for i := range base {
		if out[i] != base[i] {
			t.Fatalf("row %d changed with zero amplitude", i)
		}
	}
}
