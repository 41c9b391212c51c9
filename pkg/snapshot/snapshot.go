// Package snapshot builds daily per-wallet state: balances, heroes, LP
// value, and governance standing. The daily pass is idempotent per
// (wallet, date).
package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/dfk-companion/pkg/chain"
	"github.com/dfk-companion/pkg/config"
	"github.com/dfk-companion/pkg/db"
	"github.com/dfk-companion/pkg/pools"
)

// LPHolding is one staked position valued at snapshot time.
type LPHolding struct {
	Chain    config.Chain    `json:"chain"`
	PID      uint64          `json:"pid"`
	Pair     string          `json:"pair"`
	Staked   decimal.Decimal `json:"staked"`
	ValueUSD decimal.Decimal `json:"value_usd"`
}

// WalletFacts is everything the classifier and advisor read about a wallet.
type WalletFacts struct {
	Wallet         string          `json:"wallet"`
	HeroCount      int             `json:"hero_count"`
	Gen0Count      int             `json:"gen0_count"`
	MaxHeroLevel   int             `json:"max_hero_level"`
	Jewel          decimal.Decimal `json:"jewel"`
	Crystal        decimal.Decimal `json:"crystal"`
	CJewel         decimal.Decimal `json:"cjewel"`
	Influence      decimal.Decimal `json:"influence"`
	PendingCrystal decimal.Decimal `json:"pending_crystal"` // unharvested emissions across all pools
	LockDaysLeft   int             `json:"lock_days_left"`
	LPValueUSD     decimal.Decimal `json:"lp_value_usd"`
	Holdings       []LPHolding     `json:"holdings"`
	AccountAgeDays int             `json:"account_age_days"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

type Builder struct {
	cfg    *config.Config
	client *chain.Client
	store  *db.Store
	pools  *pools.Cache
}

func NewBuilder(cfg *config.Config, client *chain.Client, store *db.Store, cache *pools.Cache) *Builder {
	return &Builder{cfg: cfg, client: client, store: store, pools: cache}
}

// Build assembles the full fact sheet for one wallet. Partial failures for
// non-core facts (influence, account age) degrade to zero values; core
// balance or hero failures abort so a bad snapshot is never persisted.
func (b *Builder) Build(ctx context.Context, wallet string) (*WalletFacts, error) {
	facts := &WalletFacts{Wallet: wallet, GeneratedAt: time.Now()}

	heroes, err := b.client.GetAllHeroesByOwner(ctx, wallet)
	if err != nil {
		return nil, err
	}
	facts.HeroCount = len(heroes)
	for _, h := range heroes {
		if h.Generation == 0 {
			facts.Gen0Count++
		}
		if h.Level > facts.MaxHeroLevel {
			facts.MaxHeroLevel = h.Level
		}
	}

	rawJewel, err := b.client.NativeBalance(ctx, config.ChainDFK, wallet)
	if err != nil {
		return nil, err
	}
	facts.Jewel = chain.FromWei(rawJewel, 18)

	rawCrystal, err := b.client.GetERC20Balance(ctx, config.ChainDFK, common.HexToAddress(b.cfg.CrystalToken), wallet)
	if err != nil {
		return nil, err
	}
	facts.Crystal = chain.FromWei(rawCrystal, 18)

	rawCJewel, err := b.client.GetERC20Balance(ctx, config.ChainDFK, common.HexToAddress(b.cfg.CJewelToken), wallet)
	if err != nil {
		return nil, err
	}
	facts.CJewel = chain.FromWei(rawCJewel, 18)

	if raw, err := b.client.GetInfluence(ctx, config.ChainDFK, wallet); err == nil {
		facts.Influence = chain.FromWei(raw, 18)
	} else {
		log.Debug().Err(err).Str("wallet", wallet).Msg("influence lookup failed")
	}
	if raw, err := b.client.GetAllPendingRewards(ctx, config.ChainDFK, wallet); err == nil {
		facts.PendingCrystal = chain.FromWei(raw, 18)
	} else {
		log.Debug().Err(err).Str("wallet", wallet).Msg("pending reward lookup failed")
	}
	if lockEnd, err := b.client.GovernanceLockEnd(ctx, config.ChainDFK, wallet); err == nil && lockEnd > 0 {
		if until := time.Unix(int64(lockEnd), 0); until.After(facts.GeneratedAt) {
			facts.LockDaysLeft = int(until.Sub(facts.GeneratedAt).Hours() / 24)
		}
	}
	if first, err := b.client.FirstTxTime(ctx, config.ChainDFK, wallet); err == nil && !first.IsZero() {
		facts.AccountAgeDays = int(facts.GeneratedAt.Sub(first).Hours() / 24)
	} else if err != nil {
		log.Debug().Err(err).Str("wallet", wallet).Msg("account age lookup failed")
	}

	if err := b.fillLP(ctx, wallet, facts); err != nil {
		return nil, err
	}
	return facts, nil
}

func (b *Builder) fillLP(ctx context.Context, wallet string, facts *WalletFacts) error {
	for _, p := range b.pools.GetAll() {
		raw, err := b.client.GetUserInfo(ctx, p.Chain, p.PID, wallet)
		if err != nil {
			return err
		}
		staked := chain.FromWei(raw, 18)
		if staked.IsZero() {
			continue
		}
		h := LPHolding{Chain: p.Chain, PID: p.PID, Pair: p.Pair, Staked: staked}
		if p.Priced && p.TotalSupply.IsPositive() {
			h.ValueUSD = p.V2TVL.Mul(staked).Div(p.TotalSupply)
			facts.LPValueUSD = facts.LPValueUSD.Add(h.ValueUSD)
		}
		facts.Holdings = append(facts.Holdings, h)
	}
	return nil
}

// RunDaily snapshots every player with a linked wallet, skipping wallets
// already captured for today's date. Safe to re-run after a crash.
func (b *Builder) RunDaily(ctx context.Context) {
	players, err := b.store.PlayersWithWallet()
	if err != nil {
		log.Error().Err(err).Msg("snapshot player list failed")
		return
	}
	date := db.SnapshotDate(time.Now())
	var done, skipped, failed int
	for i := range players {
		p := &players[i]
		wallet := p.PrimaryWallet
		if has, err := b.store.HasSnapshot(wallet, date); err == nil && has {
			skipped++
			continue
		}
		facts, err := b.Build(ctx, wallet)
		if err != nil {
			failed++
			log.Warn().Err(err).Str("wallet", wallet).Msg("snapshot build failed")
			continue
		}
		if err := b.persist(p, facts, date); err != nil {
			failed++
			log.Warn().Err(err).Str("wallet", wallet).Msg("snapshot persist failed")
			continue
		}
		done++
	}
	log.Info().Int("done", done).Int("skipped", skipped).Int("failed", failed).Str("date", date).Msg("📸 daily snapshot pass finished")
}

// persist writes the balance row and folds the full fact sheet into the
// player's profile under "dfkSnapshot", preserving unrelated profile keys.
func (b *Builder) persist(p *db.Player, facts *WalletFacts, date string) error {
	err := b.store.UpsertSnapshot(&db.WalletSnapshot{
		PlayerID: p.ID,
		Wallet:   facts.Wallet,
		AsOfDate: date,
		Jewel:    facts.Jewel,
		Crystal:  facts.Crystal,
		CJewel:   facts.CJewel,
	})
	if err != nil {
		return err
	}

	profile := map[string]json.RawMessage{}
	if p.ProfileData != "" {
		if err := json.Unmarshal([]byte(p.ProfileData), &profile); err != nil {
			profile = map[string]json.RawMessage{}
		}
	}
	enc, err := json.Marshal(facts)
	if err != nil {
		return err
	}
	profile["dfkSnapshot"] = enc
	merged, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return b.store.UpdateProfileData(p.ID, string(merged))
}
