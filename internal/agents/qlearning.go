// Package agents provides the per-region learning agents: an epsilon-greedy
// tabular Q-learner, the reward function that scores each cycle, and the
// manager that drives them against an engine.World.
package agents

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/talgya/regionsim/internal/world"
)

// tieTolerance is how close to the maximum a Q-value must be to count as a tie.
const tieTolerance = 1e-8

// Params are the learning hyperparameters shared by every agent in a run.
type Params struct {
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	Discount     float64 `yaml:"discount" json:"discount"`
	EpsilonStart float64 `yaml:"epsilon_start" json:"epsilon_start"`
	EpsilonEnd   float64 `yaml:"epsilon_end" json:"epsilon_end"`
	EpsilonDecay float64 `yaml:"epsilon_decay" json:"epsilon_decay"`
}

// DefaultParams returns the reference hyperparameters.
func DefaultParams() Params {
	return Params{
		LearningRate: 0.1,
		Discount:     0.95,
		EpsilonStart: 1.0,
		EpsilonEnd:   0.05,
		EpsilonDecay: 0.994,
	}
}

// QValues is the value vector for one state, indexed by action.
type QValues [world.NumActions]float64

// QLearningAgent owns one region's policy. Agents never read each other's tables.
type QLearningAgent struct {
	Region  string
	Epsilon float64 // Non-increasing, floored at params.EpsilonEnd

	params Params
	rng    *rand.Rand
	q      map[world.StateKey]*QValues

	lastState  world.StateKey
	lastAction world.Action
	hasLast    bool

	Actions []world.Action // Append-only
	Rewards []float64      // Append-only
}

// NewQLearningAgent creates an agent with an empty table drawing from rng.
func NewQLearningAgent(region string, p Params, rng *rand.Rand) *QLearningAgent {
	return &QLearningAgent{
		Region:     region,
		Epsilon:    p.EpsilonStart,
		params:     p,
		rng:        rng,
		q:          make(map[world.StateKey]*QValues),
		lastAction: world.ActionNone,
	}
}

// values returns the vector for s, inserting a zero vector on first reference.
func (a *QLearningAgent) values(s world.StateKey) *QValues {
	v, ok := a.q[s]
	if !ok {
		v = &QValues{}
		a.q[s] = v
	}
	return v
}

// Q returns the value of taking action in state s. Unseen states are zero.
func (a *QLearningAgent) Q(s world.StateKey, action world.Action) float64 {
	if v, ok := a.q[s]; ok && action.Valid() {
		return v[action]
	}
	return 0
}

// StatesVisited returns the number of states in the table.
func (a *QLearningAgent) StatesVisited() int {
	return len(a.q)
}

// GetAction picks an action for s and remembers the pair for the next update.
func (a *QLearningAgent) GetAction(s world.StateKey) world.Action {
	var action world.Action
	if a.rng.Float64() < a.Epsilon {
		action = world.Action(a.rng.Intn(world.NumActions))
	} else {
		action = a.greedy(s)
	}

	a.lastState = s
	a.lastAction = action
	a.hasLast = true
	a.Actions = append(a.Actions, action)
	return action
}

// greedy returns a best action for s, breaking near-ties uniformly at random.
func (a *QLearningAgent) greedy(s world.StateKey) world.Action {
	v := a.values(s)
	best := floats.Max(v[:])
	ties := make([]world.Action, 0, world.NumActions)
	for i, q := range v {
		if best-q <= tieTolerance {
			ties = append(ties, world.Action(i))
		}
	}
	return ties[a.rng.Intn(len(ties))]
}

// Update applies the temporal-difference rule to the last (state, action) pair
// and decays epsilon.
func (a *QLearningAgent) Update(next world.StateKey, reward float64) {
	if a.hasLast {
		q := a.values(a.lastState)
		future := floats.Max(a.values(next)[:])
		td := reward + a.params.Discount*future - q[a.lastAction]
		q[a.lastAction] += a.params.LearningRate * td
	}
	a.Epsilon = math.Max(a.params.EpsilonEnd, a.Epsilon*a.params.EpsilonDecay)
	a.Rewards = append(a.Rewards, reward)
}

// StrategyDistribution returns the share of each action over the last n
// choices (all choices when n <= 0).
func (a *QLearningAgent) StrategyDistribution(n int) map[world.Action]float64 {
	recent := tail(a.Actions, n)
	dist := make(map[world.Action]float64, world.NumActions)
	if len(recent) == 0 {
		return dist
	}
	for _, act := range recent {
		dist[act]++
	}
	for act := range dist {
		dist[act] /= float64(len(recent))
	}
	return dist
}

// DominantStrategy returns the most chosen action, lowest index on ties, or
// ActionNone before any choice.
func (a *QLearningAgent) DominantStrategy() world.Action {
	var counts [world.NumActions]int
	for _, act := range a.Actions {
		if act.Valid() {
			counts[act]++
		}
	}
	dominant, best := world.ActionNone, 0
	for i, c := range counts {
		if c > best {
			dominant, best = world.Action(i), c
		}
	}
	return dominant
}

// AverageReward returns the mean of the last n rewards (all when n <= 0).
func (a *QLearningAgent) AverageReward(n int) float64 {
	recent := tail(a.Rewards, n)
	if len(recent) == 0 {
		return 0
	}
	return stat.Mean(recent, nil)
}

// TopActions returns the table's actions for s ordered by value, best first.
func (a *QLearningAgent) TopActions(s world.StateKey) []world.Action {
	out := world.Actions()
	sort.SliceStable(out, func(i, j int) bool {
		return a.Q(s, out[i]) > a.Q(s, out[j])
	})
	return out
}

func tail[T any](s []T, n int) []T {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}
