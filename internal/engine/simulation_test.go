package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/talgya/regionsim/internal/trade"
	"github.com/talgya/regionsim/internal/world"
)

func newTestWorld(t *testing.T, seed int64) *World {
	t.Helper()
	w, err := NewWorld(world.DefaultTable(), seed)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

// randomDecisions draws one action per living region from rng, in table order.
func randomDecisions(w *World, rng *rand.Rand) map[string]world.Action {
	out := make(map[string]world.Action, len(w.Regions))
	for _, r := range w.Regions {
		if r.Alive {
			out[r.Name] = world.Action(rng.Intn(world.NumActions))
		} else {
			out[r.Name] = world.ActionNone
		}
	}
	return out
}

func TestNewWorldRejectsBadTable(t *testing.T) {
	if _, err := NewWorld(nil, 1); !errors.Is(err, world.ErrEmptyTable) {
		t.Fatalf("empty table: got %v", err)
	}
	table := world.DefaultTable()
	table[1].Name = table[0].Name
	if _, err := NewWorld(table, 1); !errors.Is(err, world.ErrDuplicateRegion) {
		t.Fatalf("duplicate name: got %v", err)
	}
}

func TestNewWorldInitialState(t *testing.T) {
	w := newTestWorld(t, 1)
	if w.Trade.Ledger.Len() != 28 {
		t.Fatalf("expected 28 relationship pairs, got %d", w.Trade.Ledger.Len())
	}
	s := w.Summary()
	if s.Cycle != 0 || len(s.AliveRegions) != 8 || len(s.CollapsedRegions) != 0 {
		t.Fatalf("unexpected initial summary: %+v", s)
	}
	want := 0.0
	for _, c := range world.DefaultTable() {
		want += c.Population
	}
	if s.TotalPopulation != want {
		t.Fatalf("total population = %v, want %v", s.TotalPopulation, want)
	}
	if w.Region("Aridia") == nil || w.Region("Atlantis") != nil {
		t.Fatal("region lookup broken")
	}
}

func TestStepKeepsBounds(t *testing.T) {
	w := newTestWorld(t, 42)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 400; i++ {
		w.Step(randomDecisions(w, rng))
		for _, r := range w.Regions {
			for _, res := range world.Resources {
				if r.Resources[res] < 0 || r.Resources[res] > r.MaxResources[res] {
					t.Fatalf("cycle %d %s %s = %v outside [0, %v]",
						w.Cycle, r.Name, res, r.Resources[res], r.MaxResources[res])
				}
			}
			if r.Population < 0 || r.Population > r.MaxPopulation {
				t.Fatalf("cycle %d %s population %v", w.Cycle, r.Name, r.Population)
			}
			if r.Happiness < 0 || r.Happiness > 1 {
				t.Fatalf("cycle %d %s happiness %v", w.Cycle, r.Name, r.Happiness)
			}
			if r.TechLevel < 0 || r.TechLevel > world.MaxTechLevel {
				t.Fatalf("cycle %d %s tech %v", w.Cycle, r.Name, r.TechLevel)
			}
		}
		for _, rel := range w.Trade.Ledger.All() {
			if rel.Score < trade.MinRelationship || rel.Score > trade.MaxRelationship {
				t.Fatalf("cycle %d relationship %+v out of bounds", w.Cycle, rel)
			}
		}
	}
}

func TestStressRatchetsDuringRun(t *testing.T) {
	w := newTestWorld(t, 3)
	prev := w.Climate.Stress
	for i := 0; i < 100; i++ {
		w.Step(nil)
		if w.Climate.Stress < prev {
			t.Fatalf("stress decreased at cycle %d", w.Cycle)
		}
		prev = w.Climate.Stress
	}
	if math.Abs(w.Summary().ClimateStress-0.08) > 1e-9 {
		t.Fatalf("stress after 100 cycles = %v, want 0.08", w.Summary().ClimateStress)
	}
}

func TestCollapseIsIrreversible(t *testing.T) {
	w := newTestWorld(t, 5)
	victim := w.Region("Glaciera")
	victim.Population = 4

	log := w.Step(nil)
	if victim.Alive || victim.CollapseCycle != 1 {
		t.Fatalf("region should collapse on cycle 1: alive=%v cycle=%d", victim.Alive, victim.CollapseCycle)
	}
	if len(log.Collapses) != 1 || log.Collapses[0] != "Glaciera" {
		t.Fatalf("collapses = %v", log.Collapses)
	}

	frozen := victim.Clone()
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		decisions := randomDecisions(w, rng)
		decisions["Glaciera"] = world.Stockpile
		log := w.Step(decisions)
		for _, name := range log.Collapses {
			if name == "Glaciera" {
				t.Fatalf("region collapsed twice at cycle %d", w.Cycle)
			}
		}
		for _, tr := range log.Trades {
			if tr.Buyer == "Glaciera" || tr.Seller == "Glaciera" {
				t.Fatalf("dead region traded: %+v", tr)
			}
		}
		if victim.Resources != frozen.Resources || victim.Population != frozen.Population ||
			victim.MaxResources != frozen.MaxResources || victim.TechLevel != frozen.TechLevel {
			t.Fatalf("dead region changed at cycle %d", w.Cycle)
		}
	}

	count := 0
	for _, c := range w.History.Collapses {
		if c.Name == "Glaciera" {
			count++
			if c.Cycle != 1 {
				t.Fatalf("collapse logged at cycle %d", c.Cycle)
			}
		}
	}
	if count != 1 {
		t.Fatalf("collapse logged %d times", count)
	}
	for _, name := range w.Summary().CollapsedRegions {
		if name == "Glaciera" {
			return
		}
	}
	t.Fatal("summary does not list the collapsed region")
}

func TestProductionPhase(t *testing.T) {
	w := newTestWorld(t, 1)
	r := w.Region("Temperalis")
	before := r.Resources
	landFactor := 0.5 + 0.5*r.Ratio(world.Land)

	w.produce()
	for _, res := range world.Resources {
		factor := landFactor
		if res == world.Land {
			factor = 1
		}
		want := math.Min(before[res]+r.ProductionRates[res]*r.TechLevel*factor, r.MaxResources[res])
		if math.Abs(r.Resources[res]-want) > 1e-9 {
			t.Fatalf("%s after production = %v, want %v", res, r.Resources[res], want)
		}
	}
}

func TestConsumptionFloorsAtZero(t *testing.T) {
	w := newTestWorld(t, 1)
	r := w.Region("Aridia")
	r.Resources[world.Water] = 10

	w.consume()
	if r.Resources[world.Water] != 0 {
		t.Fatalf("water = %v, want 0", r.Resources[world.Water])
	}
	want := 300 - r.ConsumptionPerPop[world.Food]*r.Population
	if math.Abs(r.Resources[world.Food]-want) > 1e-9 {
		t.Fatalf("food = %v, want %v", r.Resources[world.Food], want)
	}
}

func TestDemographics(t *testing.T) {
	w := newTestWorld(t, 1)
	r := w.Region("Temperalis")
	sat := r.Satisfaction()
	wantHappiness := 0.7*r.Happiness + 0.3*sat
	growth := 0.018 * (sat - 0.45) * wantHappiness
	wantPop := r.Population * (1 + growth)

	if w.demographics(r, world.Balance) {
		t.Fatal("healthy region collapsed")
	}
	if math.Abs(r.Happiness-wantHappiness) > 1e-12 {
		t.Fatalf("happiness = %v, want %v", r.Happiness, wantHappiness)
	}
	if math.Abs(r.Population-wantPop) > 1e-9 {
		t.Fatalf("population = %v, want %v", r.Population, wantPop)
	}
	if math.Abs(r.TechLevel-1.002) > 1e-12 {
		t.Fatalf("passive tech = %v, want 1.002", r.TechLevel)
	}

	w.demographics(r, world.Research)
	if math.Abs(r.TechLevel-1.002) > 1e-12 {
		t.Fatalf("research cycle should skip passive growth, tech = %v", r.TechLevel)
	}
}

func TestDemographicsStarvationPenalty(t *testing.T) {
	w := newTestWorld(t, 1)
	r := w.Region("Verdantia")
	r.Resources[world.Water] = 50 // ratio 0.05
	r.Resources[world.Food] = 50
	sat := r.Satisfaction()
	if sat > 0.45 {
		t.Fatalf("test setup: satisfaction %v should be below threshold", sat)
	}
	want := r.Population * (1 - 0.028*(0.45-sat) - 0.08)

	w.demographics(r, world.ActionNone)
	if math.Abs(r.Population-want) > 1e-9 {
		t.Fatalf("population = %v, want %v", r.Population, want)
	}
}

func TestInvalidDecisionsAreIgnored(t *testing.T) {
	w := newTestWorld(t, 9)
	decisions := map[string]world.Action{
		"Atlantis":  world.Research,
		"Verdantia": world.Action(42),
		"Aridia":    world.Research,
	}
	w.Step(decisions)

	rec := w.History.Cycles[0]
	for _, s := range rec.Regions {
		switch s.Name {
		case "Verdantia":
			if s.Action != world.ActionNone {
				t.Fatalf("invalid action recorded as %v", s.Action)
			}
		case "Aridia":
			if s.Action != world.Research {
				t.Fatalf("valid action recorded as %v", s.Action)
			}
		}
	}
}

func TestHistoryRecordsEveryCycle(t *testing.T) {
	w := newTestWorld(t, 21)
	rng := rand.New(rand.NewSource(21))
	var logs []CycleLog
	for i := 0; i < 60; i++ {
		logs = append(logs, w.Step(randomDecisions(w, rng)))
	}

	if len(w.History.Cycles) != 60 {
		t.Fatalf("history length = %d", len(w.History.Cycles))
	}
	counts := w.History.TradeCounts()
	seasons := w.History.Seasons()
	events := 0
	for i, log := range logs {
		if counts[i] != len(log.Trades) || seasons[i] != log.Season {
			t.Fatalf("cycle %d history mismatch", log.Cycle)
		}
		if len(w.History.Cycles[i].Regions) != 8 {
			t.Fatalf("cycle %d recorded %d regions", log.Cycle, len(w.History.Cycles[i].Regions))
		}
		events += len(log.Events)
	}
	if events != len(w.History.Events) || events != w.Summary().TotalEvents {
		t.Fatalf("event history %d, summary %d, logs %d", len(w.History.Events), w.Summary().TotalEvents, events)
	}
	if len(w.History.Series("Fluviana")) != 60 || w.History.Series("Atlantis") != nil {
		t.Fatal("series lookup broken")
	}
}

// runDigest runs a scripted simulation and hashes everything it produced.
func runDigest(t *testing.T, seed int64, cycles int) string {
	t.Helper()
	w := newTestWorld(t, seed)
	rng := rand.New(rand.NewSource(1234))
	h := sha256.New()
	enc := json.NewEncoder(h)
	for i := 0; i < cycles; i++ {
		if err := enc.Encode(w.Step(randomDecisions(w, rng))); err != nil {
			t.Fatalf("encode log: %v", err)
		}
	}
	if err := enc.Encode(w.Regions); err != nil {
		t.Fatalf("encode regions: %v", err)
	}
	if err := enc.Encode(w.Trade.Ledger.All()); err != nil {
		t.Fatalf("encode ledger: %v", err)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func TestDeterminism(t *testing.T) {
	a := runDigest(t, 2024, 300)
	b := runDigest(t, 2024, 300)
	if a != b {
		t.Fatalf("same seed diverged: %s vs %s", a, b)
	}
	if c := runDigest(t, 2025, 300); c == a {
		t.Fatal("different seeds produced identical runs")
	}
}

func TestCycleLogMatchesSchema(t *testing.T) {
	schema, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "cycle_log.schema.json"))
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}

	w := newTestWorld(t, 77)
	decisions := make(map[string]world.Action)
	for _, name := range w.Names() {
		decisions[name] = world.Trade
	}
	trades := 0
	for i := 0; i < 150; i++ {
		log := w.Step(decisions)
		trades += len(log.Trades)

		raw, err := json.Marshal(log)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := schema.Validate(v); err != nil {
			t.Fatalf("cycle %d: %v\n%s", log.Cycle, err, raw)
		}
	}
	if trades == 0 {
		t.Fatal("expected trades when every region chooses to trade")
	}
}
