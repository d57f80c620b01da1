// Package trade provides bilateral resource trading between regions and the
// pairwise relationship scores that govern it.
package trade

import (
	"sort"
)

// Relationship bounds and dynamics.
const (
	DefaultRelationship = 0.5
	MinRelationship     = 0.1
	MaxRelationship     = 1.0
	RelationshipDecay   = 0.003
	TradeBond           = 0.04
	DisruptionDamage    = 0.05
)

// Pair is an unordered region-name pair, stored with A <= B.
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// PairOf returns the canonical pair for two region names.
func PairOf(r1, r2 string) Pair {
	if r2 < r1 {
		r1, r2 = r2, r1
	}
	return Pair{A: r1, B: r2}
}

// Relationship is one entry of the relationship ledger.
type Relationship struct {
	Pair
	Score float64 `json:"score"`
}

// Ledger holds symmetric relationship scores. Entries are created on first
// reference at the default score.
type Ledger struct {
	scores map[Pair]float64
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{scores: make(map[Pair]float64)}
}

// Init creates an entry for every pair of names at the default score.
func (l *Ledger) Init(names []string) {
	for i, a := range names {
		for _, b := range names[i+1:] {
			l.scores[PairOf(a, b)] = DefaultRelationship
		}
	}
}

// Get returns the score for a pair, creating it at the default if absent.
func (l *Ledger) Get(r1, r2 string) float64 {
	key := PairOf(r1, r2)
	score, ok := l.scores[key]
	if !ok {
		score = DefaultRelationship
		l.scores[key] = score
	}
	return score
}

// Adjust moves a pair's score by delta, keeping it within bounds.
func (l *Ledger) Adjust(r1, r2 string, delta float64) {
	key := PairOf(r1, r2)
	l.scores[key] = bound(l.Get(r1, r2) + delta)
}

// Degrade lowers every score by amount, floored at the minimum.
func (l *Ledger) Degrade(amount float64) {
	for key, score := range l.scores {
		l.scores[key] = max(MinRelationship, score-amount)
	}
}

// Len returns the number of tracked pairs.
func (l *Ledger) Len() int {
	return len(l.scores)
}

// All returns every relationship sorted by pair.
func (l *Ledger) All() []Relationship {
	out := make([]Relationship, 0, len(l.scores))
	for key, score := range l.scores {
		out = append(out, Relationship{Pair: key, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

func bound(score float64) float64 {
	if score < MinRelationship {
		return MinRelationship
	}
	if score > MaxRelationship {
		return MaxRelationship
	}
	return score
}
