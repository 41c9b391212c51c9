package pools

import "github.com/shopspring/decimal"

// DefaultQuestAPR is the stamina-based heuristic: reward share scales with
// the pool's emission allocation, bounded below by a bare hero (no profession
// gene, base gardening skill) and above by a maxed gardener.
type DefaultQuestAPR struct {
	// WorstFactor/BestFactor scale the emission APR into the quest range.
	WorstFactor decimal.Decimal
	BestFactor  decimal.Decimal
}

func NewDefaultQuestAPR() *DefaultQuestAPR {
	return &DefaultQuestAPR{
		// A bare hero at 20 stamina/day captures ~15% of the gardener-directed
		// emission; a gene-matched maxed gardener ~60%.
		WorstFactor: decimal.RequireFromString("0.15"),
		BestFactor:  decimal.RequireFromString("0.6"),
	}
}

func (d *DefaultQuestAPR) Range(p *Pool) (decimal.Decimal, decimal.Decimal) {
	if !p.Priced || p.TVL.Sign() <= 0 {
		return decimal.Zero, decimal.Zero
	}
	return p.EmissionAPR.Mul(d.WorstFactor), p.EmissionAPR.Mul(d.BestFactor)
}
