package trade

import (
	"math/rand"

	"github.com/talgya/regionsim/internal/world"
)

// Matching thresholds and amounts.
const (
	sellerShare       = 0.30 // Fraction of surplus offered
	minOffer          = 5.0
	minAvailable      = 3.0
	activeThreshold   = 0.40 // Deficit ratio for regions that chose to trade
	passiveThreshold  = 0.18 // Emergency deficit ratio for everyone else
	targetStock       = 0.35 // Buyers aim to refill to this share of capacity
	minNeed           = 5.0
	collateralRatio   = 0.45 // Resources above this ratio can be offered in exchange
	saturationRatio   = 0.85 // Sellers above this ratio of the offered resource refuse
	maxTradeAmount    = 60.0
	baseAcceptance    = 0.3
	acceptanceWeight  = 0.7
	baseExchangeRate  = 0.80
	exchangeRateBonus = 0.20
)

// Trade is one executed bilateral exchange: the buyer receives Amount of
// ResourceBought and pays ExchangeAmount of ResourceSold.
type Trade struct {
	Cycle          int            `json:"cycle"`
	Buyer          string         `json:"buyer"`
	Seller         string         `json:"seller"`
	ResourceBought world.Resource `json:"resource_bought"`
	Amount         float64        `json:"amount"`
	ResourceSold   world.Resource `json:"resource_sold"`
	ExchangeAmount float64        `json:"exchange_amount"`
}

type offer struct {
	seller    string
	available float64
}

type bid struct {
	buyer string
	need  float64
	pays  world.Resource
}

// System matches surplus sellers with deficit buyers each cycle.
type System struct {
	rng *rand.Rand

	Ledger    *Ledger
	History   []Trade // Append-only
	Disrupted bool    // One-shot block, consumed by the next negotiation
}

// NewSystem creates a trade system drawing from rng.
func NewSystem(rng *rand.Rand) *System {
	return &System{
		rng:    rng,
		Ledger: NewLedger(),
	}
}

// Disrupt blocks the next negotiation and permanently damages every relationship.
func (s *System) Disrupt(severity float64) {
	s.Disrupted = true
	s.Ledger.Degrade(DisruptionDamage * severity)
}

// DecayRelationships applies one cycle of relationship decay.
func (s *System) DecayRelationships() {
	s.Ledger.Degrade(RelationshipDecay)
}

// NegotiateTrades runs one round of matching and commits every accepted trade.
// Regions whose decision is Trade buy at the active threshold; all others only
// buy in an emergency. Each bid (one buyer, one needed resource) completes at
// most one trade.
func (s *System) NegotiateTrades(regions []*world.Region, decisions map[string]world.Action, cycle int) []Trade {
	if s.Disrupted {
		s.Disrupted = false
		return nil
	}
	s.DecayRelationships()

	index := make(map[string]*world.Region, len(regions))
	for _, r := range regions {
		index[r.Name] = r
	}

	sellers := sellerPool(regions)
	buyers := buyerList(regions, decisions)

	var executed []Trade
	for _, res := range world.Resources {
		pool := sellers[res]
		if len(buyers[res]) == 0 || len(pool) == 0 {
			continue
		}
		for _, b := range buyers[res] {
			if t, ok := s.match(index, pool, b, res, cycle); ok {
				executed = append(executed, t)
			}
		}
	}
	s.History = append(s.History, executed...)
	return executed
}

// sellerPool lists, per resource, every living region with a tradeable surplus.
func sellerPool(regions []*world.Region) [world.NumResources][]offer {
	var pool [world.NumResources][]offer
	for _, r := range regions {
		if !r.Alive {
			continue
		}
		for _, res := range r.SurplusResources() {
			amount := r.Surplus(res) * sellerShare
			if amount > minOffer {
				pool[res] = append(pool[res], offer{seller: r.Name, available: amount})
			}
		}
	}
	return pool
}

// buyerList lists, per resource, every living region that needs it and has
// something else to pay with.
func buyerList(regions []*world.Region, decisions map[string]world.Action) [world.NumResources][]bid {
	var buyers [world.NumResources][]bid
	for _, r := range regions {
		if !r.Alive {
			continue
		}
		threshold := passiveThreshold
		if decisions[r.Name] == world.Trade {
			threshold = activeThreshold
		}

		var collateral []world.Resource
		for _, res := range world.Resources {
			if r.Ratio(res) > collateralRatio {
				collateral = append(collateral, res)
			}
		}

		for _, res := range world.Resources {
			if r.Ratio(res) >= threshold {
				continue
			}
			need := r.MaxResources[res]*targetStock - r.Resources[res]
			if need <= minNeed {
				continue
			}
			for _, pays := range collateral {
				if pays != res {
					buyers[res] = append(buyers[res], bid{buyer: r.Name, need: need, pays: pays})
					break
				}
			}
		}
	}
	return buyers
}

// match walks the seller pool for one bid and executes the first accepted trade.
func (s *System) match(index map[string]*world.Region, pool []offer, b bid, res world.Resource, cycle int) (Trade, bool) {
	buyer := index[b.buyer]
	for i := range pool {
		o := &pool[i]
		if o.seller == b.buyer || o.available < minAvailable {
			continue
		}
		seller := index[o.seller]
		if seller == nil || !seller.Alive {
			continue
		}

		rel := s.Ledger.Get(b.buyer, o.seller)
		if s.rng.Float64() > baseAcceptance+acceptanceWeight*rel {
			continue
		}

		amount := min(b.need, o.available, maxTradeAmount)
		exchange := amount * (baseExchangeRate + exchangeRateBonus*rel)

		if seller.Ratio(b.pays) > saturationRatio {
			continue
		}

		commit(buyer, seller, res, amount, b.pays, exchange)
		s.Ledger.Adjust(b.buyer, o.seller, TradeBond)
		o.available -= amount

		return Trade{
			Cycle:          cycle,
			Buyer:          b.buyer,
			Seller:         o.seller,
			ResourceBought: res,
			Amount:         amount,
			ResourceSold:   b.pays,
			ExchangeAmount: exchange,
		}, true
	}
	return Trade{}, false
}

// commit applies both sides of a trade through the region deltas.
func commit(buyer, seller *world.Region, res world.Resource, amount float64, pays world.Resource, exchange float64) {
	bd := world.NewDelta()
	bd.Add[res] = amount
	bd.Add[pays] = -exchange
	buyer.Apply(bd)

	sd := world.NewDelta()
	sd.Add[res] = -amount
	sd.Add[pays] = exchange
	seller.Apply(sd)
}
