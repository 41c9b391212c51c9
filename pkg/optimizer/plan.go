// Package optimizer turns a paid job into a garden optimization report:
// which heroes to station in which pools, and what the move is worth.
package optimizer

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dfk-companion/pkg/chain"
	"github.com/dfk-companion/pkg/genes"
	"github.com/dfk-companion/pkg/payments"
	"github.com/dfk-companion/pkg/pools"
)

const maxAssignedHeroes = 10

// Assignment pairs one hero with one pool slot.
type Assignment struct {
	HeroID     int64           `json:"hero_id"`
	Pool       string          `json:"pool"`
	PID        uint64          `json:"pid"`
	Score      decimal.Decimal `json:"score"`
	QuestWorst decimal.Decimal `json:"quest_apr_worst"`
	QuestBest  decimal.Decimal `json:"quest_apr_best"`
}

// Plan is the full optimization result, persisted as the job's report
// payload.
type Plan struct {
	Wallet        string                `json:"wallet"`
	Assignments   []Assignment          `json:"assignments"`
	CurrentAPR    decimal.Decimal       `json:"current_apr"`   // weighted over snapshot positions
	OptimizedAPR  decimal.Decimal       `json:"optimized_apr"` // weighted over recommended pools
	DeltaAPR      decimal.Decimal       `json:"delta_apr"`
	PortfolioUSD  decimal.Decimal       `json:"portfolio_usd"`
	AnnualGainUSD decimal.Decimal       `json:"annual_gain_usd"`
	Positions     []payments.LPPosition `json:"positions"`
	SkippedHeroes int                   `json:"skipped_heroes"` // busy or out of stamina
}

// heroScore rates a hero's gardening output. Skill dominates, the gardening
// profession gene adds the in-game quest bonus, a pet stacks on top, and a
// hero below half stamina is worth less because it idles between runs.
func heroScore(h *chain.Hero) decimal.Decimal {
	skill := decimal.New(int64(h.Gardening), -1) // stored as skill x10
	score := decimal.NewFromInt(10).Add(skill)

	if hg, err := genes.Decode(h.StatGenes, h.VisualGenes); err == nil {
		if genes.HasProfessionGene(hg, genes.Gardening) {
			score = score.Mul(decimal.RequireFromString("1.2"))
		}
	}
	if h.PetBonus > 0 {
		bonus := decimal.New(int64(100+h.PetBonus), -2)
		score = score.Mul(bonus)
	}
	if h.MaxStamina > 0 && h.Stamina*2 < h.MaxStamina {
		score = score.Mul(decimal.RequireFromString("0.8"))
	}
	return score
}

// eligible filters out heroes that cannot garden right now.
func eligible(heroes []chain.Hero) (ok []chain.Hero, skipped int) {
	for _, h := range heroes {
		if h.CurrentQuest != "" && h.CurrentQuest != zeroAddress {
			skipped++
			continue
		}
		if h.Stamina < 5 {
			skipped++
			continue
		}
		ok = append(ok, h)
	}
	return ok, skipped
}

const zeroAddress = "0x0000000000000000000000000000000000000000"

// BuildPlan assigns the strongest gardeners to the highest-yield pools, two
// hero slots per pool, capped at maxAssignedHeroes. The whole computation is
// deterministic: heroes sort by score then lowest ID, pools by best quest
// APR then (chain, pid).
func BuildPlan(wallet string, heroes []chain.Hero, all []pools.Pool, positions []payments.LPPosition) *Plan {
	plan := &Plan{Wallet: wallet, Positions: positions}

	gardeners, skipped := eligible(heroes)
	plan.SkippedHeroes = skipped

	type scored struct {
		hero  chain.Hero
		score decimal.Decimal
	}
	ranked := make([]scored, 0, len(gardeners))
	for _, h := range gardeners {
		ranked = append(ranked, scored{hero: h, score: heroScore(&h)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].score.Equal(ranked[j].score) {
			return ranked[i].score.GreaterThan(ranked[j].score)
		}
		return ranked[i].hero.ID < ranked[j].hero.ID
	})
	if len(ranked) > maxAssignedHeroes {
		ranked = ranked[:maxAssignedHeroes]
	}

	candidates := make([]pools.Pool, 0, len(all))
	for _, p := range all {
		if p.Priced && p.QuestAPRBest.IsPositive() {
			candidates = append(candidates, p)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].QuestAPRBest.Equal(candidates[j].QuestAPRBest) {
			return candidates[i].QuestAPRBest.GreaterThan(candidates[j].QuestAPRBest)
		}
		if candidates[i].Chain != candidates[j].Chain {
			return candidates[i].Chain < candidates[j].Chain
		}
		return candidates[i].PID < candidates[j].PID
	})

	// Two garden slots per pool, best heroes into best pools.
	const slotsPerPool = 2
	for i, r := range ranked {
		pi := i / slotsPerPool
		if pi >= len(candidates) {
			break
		}
		p := candidates[pi]
		plan.Assignments = append(plan.Assignments, Assignment{
			HeroID:     r.hero.ID,
			Pool:       p.Pair,
			PID:        p.PID,
			Score:      r.score.Round(2),
			QuestWorst: p.QuestAPRWorst,
			QuestBest:  p.QuestAPRBest,
		})
	}

	plan.computeImprovement(all, candidates)
	return plan
}

// computeImprovement compares the snapshot portfolio's value-weighted APR
// against parking the same capital in the recommended pools.
func (p *Plan) computeImprovement(all []pools.Pool, ranked []pools.Pool) {
	byKey := make(map[string]pools.Pool, len(all))
	for _, pl := range all {
		byKey[string(pl.Chain)+"/"+decimal.NewFromUint64(pl.PID).String()] = pl
	}

	var weighted, total decimal.Decimal
	for _, pos := range p.Positions {
		pl, ok := byKey[string(pos.Chain)+"/"+decimal.NewFromUint64(pos.PID).String()]
		if !ok || !pl.Priced || !pos.ValueUSD.IsPositive() {
			continue
		}
		apr := pl.FeeAPR.Add(pl.EmissionAPR)
		weighted = weighted.Add(apr.Mul(pos.ValueUSD))
		total = total.Add(pos.ValueUSD)
	}
	p.PortfolioUSD = total
	if total.IsPositive() {
		p.CurrentAPR = weighted.Div(total).Round(2)
	}

	if len(ranked) == 0 || !total.IsPositive() {
		return
	}
	// Capital spreads evenly across the pools the plan actually uses.
	used := len(p.Assignments)/2 + len(p.Assignments)%2
	if used == 0 {
		used = 1
	}
	if used > len(ranked) {
		used = len(ranked)
	}
	var optimized decimal.Decimal
	for _, pl := range ranked[:used] {
		optimized = optimized.Add(pl.FeeAPR.Add(pl.EmissionAPR))
	}
	p.OptimizedAPR = optimized.Div(decimal.NewFromInt(int64(used))).Round(2)
	p.DeltaAPR = p.OptimizedAPR.Sub(p.CurrentAPR)
	p.AnnualGainUSD = total.Mul(p.DeltaAPR).Div(decimal.NewFromInt(100)).Round(2)
}
