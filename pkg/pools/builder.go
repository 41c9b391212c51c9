package pools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dfk-companion/pkg/chain"
	"github.com/dfk-companion/pkg/config"
	"github.com/dfk-companion/pkg/prices"
)

const (
	buildTimeout  = 30 * time.Second
	buildParallel = 8
)

var yearDays = decimal.NewFromInt(365)
var hundred = decimal.NewFromInt(100)

// Builder derives the full analytics set for every pool in the registries.
// It runs inside the cache refresh loop, never on user request paths.
type Builder struct {
	cfg    *config.Config
	client *chain.Client
	prices *prices.Builder
	quest  QuestAPRStrategy
}

func NewBuilder(cfg *config.Config, client *chain.Client, pb *prices.Builder, quest QuestAPRStrategy) *Builder {
	return &Builder{cfg: cfg, client: client, prices: pb, quest: quest}
}

// BuildAll discovers pools on both chains and computes analytics for each.
func (b *Builder) BuildAll(ctx context.Context) ([]Pool, error) {
	var all []Pool
	for _, ch := range config.AllChains() {
		if b.cfg.RPC[ch] == "" {
			continue
		}
		pools, err := b.buildChain(ctx, ch)
		if err != nil {
			return nil, fmt.Errorf("build %s pools: %w", ch, err)
		}
		all = append(all, pools...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Chain != all[j].Chain {
			return all[i].Chain < all[j].Chain
		}
		return all[i].PID < all[j].PID
	})
	return all, nil
}

func (b *Builder) buildChain(ctx context.Context, ch config.Chain) ([]Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, buildTimeout*10)
	defer cancel()

	n, err := b.client.GetPoolLength(ctx, ch)
	if err != nil {
		return nil, err
	}
	totalAlloc, err := b.client.GetTotalAllocPoint(ctx, ch)
	if err != nil {
		return nil, err
	}
	totalAllocDec := decimal.NewFromBigInt(totalAlloc, 0)

	// First pass: pair metadata for every pool, needed to seed the price
	// graph before APR math.
	metas := make([]*chain.PairMeta, n)
	infos := make([]*chain.PoolInfo, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(buildParallel)
	for pid := uint64(0); pid < n; pid++ {
		pid := pid
		g.Go(func() error {
			info, err := b.client.GetPoolInfo(gctx, ch, pid)
			if err != nil {
				return fmt.Errorf("pool %d info: %w", pid, err)
			}
			meta, err := b.client.GetPairMeta(gctx, ch, info.LPToken)
			if err != nil {
				return fmt.Errorf("pool %d pair: %w", pid, err)
			}
			infos[pid], metas[pid] = info, meta
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	graph, err := b.prices.Get(ctx, pairsFor(metas))
	if err != nil {
		return nil, fmt.Errorf("price graph: %w", err)
	}

	tip, err := b.client.BlockNumber(ctx, ch)
	if err != nil {
		return nil, err
	}
	window := b.cfg.BlocksPerDay[ch]
	fromBlock := uint64(0)
	if tip > window {
		fromBlock = tip - window
	}

	pools := make([]Pool, 0, n)
	for pid := uint64(0); pid < n; pid++ {
		info, meta := infos[pid], metas[pid]
		if info.AllocPoint.Sign() == 0 {
			continue // archived pool
		}
		pair := meta.Symbol0 + "-" + meta.Symbol1
		if b.isDeprecated(pair) {
			continue
		}
		p, err := b.buildPool(ctx, ch, info, meta, graph, totalAllocDec, fromBlock, tip)
		if err != nil {
			log.Warn().Err(err).Uint64("pid", pid).Str("chain", string(ch)).Msg("pool analytics failed, skipping")
			continue
		}
		pools = append(pools, *p)
	}
	return pools, nil
}

func pairsFor(metas []*chain.PairMeta) []prices.Pair {
	var out []prices.Pair
	for _, m := range metas {
		if m == nil {
			continue
		}
		out = append(out, prices.Pair{
			Token0:   strings.ToLower(m.Token0.Hex()),
			Token1:   strings.ToLower(m.Token1.Hex()),
			Reserve0: chain.FromWei(m.Reserve0, m.Decimals0),
			Reserve1: chain.FromWei(m.Reserve1, m.Decimals1),
		})
	}
	return out
}

func (b *Builder) buildPool(ctx context.Context, ch config.Chain, info *chain.PoolInfo, meta *chain.PairMeta,
	graph *prices.Graph, totalAlloc decimal.Decimal, fromBlock, tip uint64) (*Pool, error) {

	p := &Pool{
		Chain:       ch,
		PID:         info.PID,
		Pair:        meta.Symbol0 + "-" + meta.Symbol1,
		LPToken:     strings.ToLower(info.LPToken.Hex()),
		Token0:      strings.ToLower(meta.Token0.Hex()),
		Token1:      strings.ToLower(meta.Token1.Hex()),
		Symbol0:     meta.Symbol0,
		Symbol1:     meta.Symbol1,
		Reserve0:    chain.FromWei(meta.Reserve0, meta.Decimals0),
		Reserve1:    chain.FromWei(meta.Reserve1, meta.Decimals1),
		TotalSupply: chain.FromWei(meta.TotalSupply, 18),
	}
	if totalAlloc.Sign() > 0 {
		p.AllocShare = decimal.NewFromBigInt(info.AllocPoint, 0).Div(totalAlloc)
	}

	staked, err := b.client.GetERC20Balance(ctx, ch, info.LPToken, b.cfg.StakingContract[ch])
	if err != nil {
		return nil, err
	}
	p.TotalStaked = chain.FromWei(staked, 18)

	price0, ok0 := graph.Price(p.Token0)
	price1, ok1 := graph.Price(p.Token1)
	if !ok0 || !ok1 {
		// Unreachable in the price graph: numeric zeros, flagged N/A.
		p.Priced = false
		return p, nil
	}
	p.Priced = true

	p.V2TVL = p.Reserve0.Mul(price0).Add(p.Reserve1.Mul(price1))
	if p.TotalSupply.Sign() > 0 {
		p.TVL = p.V2TVL.Mul(p.TotalStaked).Div(p.TotalSupply)
	}

	// 24h fee APR from Swap volume. Zero TVL never divides: 0%, not NaN.
	swaps, err := b.client.QuerySwapEvents(ctx, ch, info.LPToken, fromBlock, tip)
	if err != nil {
		return nil, err
	}
	for _, s := range swaps {
		in0 := chain.FromWei(s.Amount0In, meta.Decimals0).Mul(price0)
		in1 := chain.FromWei(s.Amount1In, meta.Decimals1).Mul(price1)
		p.Volume24h = p.Volume24h.Add(in0).Add(in1)
	}
	p.Fees24h = p.Volume24h.Mul(b.cfg.SwapFeeRate)
	if p.V2TVL.Sign() > 0 {
		p.FeeAPR = p.Fees24h.Div(p.V2TVL).Mul(yearDays).Mul(hundred)
	}

	// 24h emission APR from reward distributions.
	rewards, err := b.client.QueryRewardEvents(ctx, ch, info.PID, fromBlock, tip)
	if err != nil {
		return nil, err
	}
	crystalPrice, _ := graph.Price(b.cfg.CrystalToken)
	rewardUSD := decimal.Zero
	for _, r := range rewards {
		rewardUSD = rewardUSD.Add(chain.FromWei(r.Amount, 18).Mul(crystalPrice))
	}
	if p.TVL.Sign() > 0 {
		p.EmissionAPR = rewardUSD.Div(p.TVL).Mul(yearDays).Mul(hundred)
	}

	p.QuestAPRWorst, p.QuestAPRBest = b.quest.Range(p)
	return p, nil
}

func (b *Builder) isDeprecated(pair string) bool {
	for _, d := range b.cfg.DeprecatedPairs {
		if strings.EqualFold(pair, d) {
			return true
		}
	}
	return false
}
