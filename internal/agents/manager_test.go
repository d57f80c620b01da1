package agents

import (
	"context"
	"testing"

	"github.com/talgya/regionsim/internal/engine"
	"github.com/talgya/regionsim/internal/world"
)

func newManagedWorld(t *testing.T, seed int64) (*engine.World, *Manager) {
	t.Helper()
	w, err := engine.NewWorld(world.DefaultTable(), seed)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w, NewManager(w.Names(), DefaultParams(), seed)
}

func TestManagerDecisions(t *testing.T) {
	w, m := newManagedWorld(t, 1)
	if len(m.Agents) != 8 {
		t.Fatalf("expected 8 agents, got %d", len(m.Agents))
	}
	w.Region("Aridia").Collapse(0)

	decisions := m.GetDecisions(w)
	if decisions["Aridia"] != world.ActionNone {
		t.Fatalf("dead region decided %s", decisions["Aridia"])
	}
	if len(m.Agent("Aridia").Actions) != 0 {
		t.Fatal("dead region's agent was queried")
	}
	for name, a := range decisions {
		if name != "Aridia" && !a.Valid() {
			t.Fatalf("%s got invalid action %v", name, a)
		}
	}
}

func TestTerminalRewardDeliveredOnce(t *testing.T) {
	w, m := newManagedWorld(t, 2)
	w.Region("Glaciera").Population = 4

	m.RunCycle(w)
	agent := m.Agent("Glaciera")
	if w.Region("Glaciera").Alive {
		t.Fatal("region should have collapsed on the first cycle")
	}
	if len(agent.Rewards) != 1 || agent.Rewards[0] >= 0 {
		t.Fatalf("terminal reward = %v", agent.Rewards)
	}

	for i := 0; i < 30; i++ {
		m.RunCycle(w)
	}
	if len(agent.Rewards) != 1 || len(agent.Actions) != 1 {
		t.Fatalf("dead agent kept learning: %d rewards, %d actions", len(agent.Rewards), len(agent.Actions))
	}
	for _, name := range w.Names() {
		r := w.Region(name)
		if !r.Alive {
			continue
		}
		if got := len(m.Agent(name).Rewards); got != 31 {
			t.Fatalf("%s received %d rewards, want 31", name, got)
		}
	}
}

func TestUpdateAllSkipsRegionsWithoutSnapshot(t *testing.T) {
	w, m := newManagedWorld(t, 3)
	prev := m.SnapshotStates(w)
	delete(prev, "Verdantia")
	w.Step(m.GetDecisions(w))

	rewards := m.UpdateAll(w, prev)
	if _, ok := rewards["Verdantia"]; ok {
		t.Fatal("region without a snapshot was rewarded")
	}
	if len(rewards) == 0 {
		t.Fatal("expected rewards for the other regions")
	}
}

func TestManagerDrivesRunner(t *testing.T) {
	w, m := newManagedWorld(t, 4)
	r := engine.NewRunner(w, 120)
	r.StepFunc = m.RunCycle
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	summary := m.Summary()
	if len(summary) != 8 || summary[0].Region != "Verdantia" {
		t.Fatalf("summary = %+v", summary)
	}
	for _, s := range summary {
		if s.Decisions == 0 || s.StatesVisited == 0 {
			t.Fatalf("agent %s never learned: %+v", s.Region, s)
		}
		if s.Epsilon >= 1 {
			t.Fatalf("agent %s epsilon did not decay", s.Region)
		}
	}
}

func TestLearningRunsAreReproducible(t *testing.T) {
	run := func() []world.Action {
		w, m := newManagedWorld(t, 99)
		for i := 0; i < 150; i++ {
			m.RunCycle(w)
		}
		var all []world.Action
		for _, name := range w.Names() {
			all = append(all, m.Agent(name).Actions...)
		}
		return all
	}
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("decision counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("decision %d differs", i)
		}
	}
}
