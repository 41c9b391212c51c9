package pools

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dfk-companion/pkg/config"
)

// Pool is one garden pool's derived analytics. Entries are immutable once
// published to the cache; a refresh replaces the whole snapshot.
type Pool struct {
	Chain       config.Chain    `json:"chain"`
	PID         uint64          `json:"pid"`
	Pair        string          `json:"pair"` // e.g. "JEWEL-AVAX"
	LPToken     string          `json:"lp_token"`
	Token0      string          `json:"token0"`
	Token1      string          `json:"token1"`
	Symbol0     string          `json:"symbol0"`
	Symbol1     string          `json:"symbol1"`
	Reserve0    decimal.Decimal `json:"reserve0"`
	Reserve1    decimal.Decimal `json:"reserve1"`
	TotalStaked decimal.Decimal `json:"total_staked"` // LP units in the registry
	TotalSupply decimal.Decimal `json:"total_supply"` // LP units outstanding
	AllocShare  decimal.Decimal `json:"alloc_share"`  // allocPoint / totalAllocPoint

	FeeAPR        decimal.Decimal `json:"fee_apr"`      // 24h fee APR, percent
	EmissionAPR   decimal.Decimal `json:"emission_apr"` // 24h emission APR, percent
	QuestAPRWorst decimal.Decimal `json:"quest_apr_worst"`
	QuestAPRBest  decimal.Decimal `json:"quest_apr_best"`

	TVL       decimal.Decimal `json:"tvl"`    // staked-share USD value
	V2TVL     decimal.Decimal `json:"v2_tvl"` // full pair USD value
	Volume24h decimal.Decimal `json:"volume_24h"`
	Fees24h   decimal.Decimal `json:"fees_24h"`

	// Priced is false when the pair was unreachable in the price graph;
	// consumers must treat that as N/A, distinct from a true 0% APR.
	Priced bool `json:"priced"`
}

// Snapshot is the cache's unit of publication: the pool set plus one shared
// refresh timestamp. Readers never see a partially refreshed set.
type Snapshot struct {
	Data        []Pool    `json:"data"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// QuestAPRStrategy computes the quest APR range for a pool. The canonical
// formula is still contested upstream, so it is injected rather than inlined.
type QuestAPRStrategy interface {
	// Range returns (worst, best): worst assumes a bare hero, best a perfect
	// gardener with the profession gene.
	Range(p *Pool) (decimal.Decimal, decimal.Decimal)
}
