package agents

import (
	"math"
	"math/rand"
	"testing"

	"github.com/talgya/regionsim/internal/world"
)

func greedyParams() Params {
	p := DefaultParams()
	p.EpsilonStart = 0
	p.EpsilonEnd = 0
	return p
}

func TestQDefaultsToZero(t *testing.T) {
	a := NewQLearningAgent("Verdantia", DefaultParams(), rand.New(rand.NewSource(1)))
	states := []world.StateKey{{}, {4, 4, 4, 4, 5, 3}, {0, 1, 2, 3, 4, 1}}
	for _, s := range states {
		for _, act := range world.Actions() {
			if q := a.Q(s, act); q != 0 {
				t.Fatalf("Q(%v, %s) = %v before any visit", s, act, q)
			}
		}
	}
	if a.StatesVisited() != 0 {
		t.Fatal("reading Q must not insert states")
	}
	if v := a.values(states[1]); *v != (QValues{}) || a.StatesVisited() != 1 {
		t.Fatal("first reference should insert a zero vector")
	}
}

func TestEpsilonDecaysToFloor(t *testing.T) {
	a := NewQLearningAgent("Aridia", DefaultParams(), rand.New(rand.NewSource(1)))
	prev := a.Epsilon
	if prev != 1.0 {
		t.Fatalf("epsilon starts at %v", prev)
	}
	for i := 1; i <= 500; i++ {
		a.Update(world.StateKey{}, 0)
		if a.Epsilon > prev {
			t.Fatalf("epsilon increased at update %d", i)
		}
		if i == 400 && a.Epsilon <= 0.05 {
			t.Fatalf("epsilon hit the floor too early: %v at update 400", a.Epsilon)
		}
		prev = a.Epsilon
	}
	if a.Epsilon != 0.05 {
		t.Fatalf("epsilon after 500 updates = %v, want floor 0.05", a.Epsilon)
	}
}

func TestTemporalDifferenceUpdate(t *testing.T) {
	a := NewQLearningAgent("Temperalis", greedyParams(), rand.New(rand.NewSource(5)))
	s1 := world.StateKey{2, 2, 2, 2, 3, 2}
	s2 := world.StateKey{3, 3, 3, 3, 3, 2}

	act := a.GetAction(s1)
	a.Update(s2, 10)
	if got := a.Q(s1, act); math.Abs(got-1.0) > 1e-12 {
		t.Fatalf("Q after first update = %v, want 1.0", got)
	}

	// The only positive value must now be chosen greedily.
	if again := a.GetAction(s1); again != act {
		t.Fatalf("greedy choice = %s, want %s", again, act)
	}
	a.Update(s1, 0)
	want := 1.0 + 0.1*(0+0.95*1.0-1.0)
	if got := a.Q(s1, act); math.Abs(got-want) > 1e-12 {
		t.Fatalf("Q after bootstrap update = %v, want %v", got, want)
	}
}

func TestUpdateWithoutActionOnlyDecays(t *testing.T) {
	a := NewQLearningAgent("Borealis", DefaultParams(), rand.New(rand.NewSource(1)))
	a.Update(world.StateKey{1, 1, 1, 1, 1, 1}, 100)
	if a.Q(world.StateKey{}, world.FocusWater) != 0 || len(a.Rewards) != 1 {
		t.Fatal("update without a previous action must not touch the table")
	}
	if a.Epsilon != 0.994 {
		t.Fatalf("epsilon = %v, want 0.994", a.Epsilon)
	}
}

func TestGreedyTiesAreBrokenRandomly(t *testing.T) {
	a := NewQLearningAgent("Maritosa", greedyParams(), rand.New(rand.NewSource(3)))
	s := world.StateKey{1, 2, 3, 4, 0, 0}
	seen := make(map[world.Action]bool)
	for i := 0; i < 2000; i++ {
		seen[a.GetAction(s)] = true
	}
	if len(seen) != world.NumActions {
		t.Fatalf("all-zero ties should reach every action, saw %d", len(seen))
	}

	v := a.values(s)
	v[world.Research] = 0.5
	v[world.Trade] = 0.5 - 1e-9
	for i := 0; i < 200; i++ {
		got := a.GetAction(s)
		if got != world.Research && got != world.Trade {
			t.Fatalf("greedy picked %s outside the near-tie set", got)
		}
	}
}

func TestAgentStatistics(t *testing.T) {
	a := NewQLearningAgent("Montarok", DefaultParams(), rand.New(rand.NewSource(1)))
	a.Actions = []world.Action{world.Trade, world.Research, world.Trade, world.Conserve}
	a.Rewards = []float64{1, 2, 3, 5}

	dist := a.StrategyDistribution(0)
	total := 0.0
	for _, share := range dist {
		total += share
	}
	if math.Abs(total-1) > 1e-12 || dist[world.Trade] != 0.5 {
		t.Fatalf("distribution = %v", dist)
	}
	if recent := a.StrategyDistribution(2); recent[world.Trade] != 0.5 || recent[world.Conserve] != 0.5 {
		t.Fatalf("recent distribution = %v", recent)
	}
	if a.DominantStrategy() != world.Trade {
		t.Fatalf("dominant = %s", a.DominantStrategy())
	}
	if a.AverageReward(2) != 4 || a.AverageReward(0) != 2.75 {
		t.Fatalf("average rewards = %v, %v", a.AverageReward(2), a.AverageReward(0))
	}

	empty := NewQLearningAgent("Fluviana", DefaultParams(), rand.New(rand.NewSource(1)))
	if empty.DominantStrategy() != world.ActionNone || empty.AverageReward(50) != 0 {
		t.Fatal("empty agent statistics should be neutral")
	}
}

func TestTopActions(t *testing.T) {
	a := NewQLearningAgent("Glaciera", DefaultParams(), rand.New(rand.NewSource(1)))
	s := world.StateKey{0, 0, 0, 0, 0, 0}
	v := a.values(s)
	v[world.Stockpile] = 3
	v[world.FocusFood] = 2
	v[world.Balance] = -1

	top := a.TopActions(s)
	if top[0] != world.Stockpile || top[1] != world.FocusFood || top[len(top)-1] != world.Balance {
		t.Fatalf("top actions = %v", top)
	}
}
