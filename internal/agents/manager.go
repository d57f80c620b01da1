package agents

import (
	"math/rand"

	"github.com/talgya/regionsim/internal/engine"
	"github.com/talgya/regionsim/internal/world"
)

// agentSeedStride separates the per-agent RNG streams from the world stream.
const agentSeedStride = 7919

// Manager coordinates one agent per region: it elicits decisions, steps the
// world and hands out rewards.
type Manager struct {
	Params Params
	Agents map[string]*QLearningAgent
	names  []string // Table order
}

// NewManager creates one agent per region name. Agent i draws from its own
// stream seeded from seed, never the world's.
func NewManager(names []string, p Params, seed int64) *Manager {
	m := &Manager{
		Params: p,
		Agents: make(map[string]*QLearningAgent, len(names)),
		names:  append([]string(nil), names...),
	}
	for i, name := range names {
		rng := rand.New(rand.NewSource(seed + int64(i+1)*agentSeedStride))
		m.Agents[name] = NewQLearningAgent(name, p, rng)
	}
	return m
}

// Agent returns the agent for a region, or nil.
func (m *Manager) Agent(name string) *QLearningAgent {
	return m.Agents[name]
}

// GetDecisions asks every living region's agent for an action. Dead regions
// get ActionNone.
func (m *Manager) GetDecisions(w *engine.World) map[string]world.Action {
	decisions := make(map[string]world.Action, len(w.Regions))
	for _, r := range w.Regions {
		agent := m.Agents[r.Name]
		if !r.Alive || agent == nil {
			decisions[r.Name] = world.ActionNone
			continue
		}
		decisions[r.Name] = agent.GetAction(r.State())
	}
	return decisions
}

// SnapshotStates captures every region before a step.
func (m *Manager) SnapshotStates(w *engine.World) map[string]Snapshot {
	out := make(map[string]Snapshot, len(w.Regions))
	for _, r := range w.Regions {
		out[r.Name] = TakeSnapshot(r)
	}
	return out
}

// UpdateAll rewards every region that is alive or collapsed this very cycle.
// A collapsing region receives exactly one terminal update and none afterward.
func (m *Manager) UpdateAll(w *engine.World, prev map[string]Snapshot) map[string]float64 {
	rewards := make(map[string]float64, len(w.Regions))
	for _, r := range w.Regions {
		if !r.Alive && r.CollapseCycle != w.Cycle {
			continue
		}
		agent := m.Agents[r.Name]
		snap, ok := prev[r.Name]
		if agent == nil || !ok {
			continue
		}
		reward := ComputeReward(r, snap)
		agent.Update(r.State(), reward)
		rewards[r.Name] = reward
	}
	return rewards
}

// RunCycle runs one full learning cycle: snapshot, decide, step, update.
func (m *Manager) RunCycle(w *engine.World) engine.CycleLog {
	prev := m.SnapshotStates(w)
	log := w.Step(m.GetDecisions(w))
	m.UpdateAll(w, prev)
	return log
}

// AgentSummary is the per-agent statistics view.
type AgentSummary struct {
	Region           string       `json:"region"`
	Epsilon          float64      `json:"epsilon"`
	StatesVisited    int          `json:"states_visited"`
	Decisions        int          `json:"decisions"`
	DominantStrategy world.Action `json:"dominant_strategy"`
	AverageReward    float64      `json:"average_reward"` // Last RecentWindow rewards
}

// RecentWindow is the number of rewards averaged in summaries.
const RecentWindow = 50

// Summary returns statistics for every agent in table order.
func (m *Manager) Summary() []AgentSummary {
	out := make([]AgentSummary, 0, len(m.names))
	for _, name := range m.names {
		a := m.Agents[name]
		out = append(out, AgentSummary{
			Region:           name,
			Epsilon:          a.Epsilon,
			StatesVisited:    a.StatesVisited(),
			Decisions:        len(a.Actions),
			DominantStrategy: a.DominantStrategy(),
			AverageReward:    a.AverageReward(RecentWindow),
		})
	}
	return out
}
