package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/dfk-companion/pkg/chain"
	"github.com/dfk-companion/pkg/chat"
	"github.com/dfk-companion/pkg/config"
	"github.com/dfk-companion/pkg/db"
	"github.com/dfk-companion/pkg/pools"
)

var ErrOpenInvoice = errors.New("player already has an open invoice")

// LPPosition is one staked position frozen at invoice time. The optimizer
// reads these back instead of re-querying, so the report reflects what the
// player paid for, not what moved since.
type LPPosition struct {
	Chain    config.Chain    `json:"chain"`
	PID      uint64          `json:"pid"`
	Pair     string          `json:"pair"`
	Staked   decimal.Decimal `json:"staked"`    // LP units
	ValueUSD decimal.Decimal `json:"value_usd"` // share of pair TVL at snapshot time
}

// Invoicer creates payment jobs and sends payment instructions.
type Invoicer struct {
	cfg      *config.Config
	client   *chain.Client
	store    *db.Store
	registry *Registry
	pools    *pools.Cache
	sender   chat.Sender
}

func NewInvoicer(cfg *config.Config, client *chain.Client, store *db.Store, registry *Registry, cache *pools.Cache, sender chat.Sender) *Invoicer {
	return &Invoicer{cfg: cfg, client: client, store: store, registry: registry, pools: cache, sender: sender}
}

// CreateInvoice opens a pending job for the player's primary wallet. The
// quoted amount comes from the pricing engine; one open invoice per player.
func (inv *Invoicer) CreateInvoice(ctx context.Context, player *db.Player, ch config.Chain, amount decimal.Decimal) (*db.PaymentJob, error) {
	if player.PrimaryWallet == "" {
		return nil, db.ErrWalletNotLinked
	}
	if open, err := inv.store.OpenJobForPlayer(player.ID); err == nil && open != nil {
		return nil, fmt.Errorf("%w: %s", ErrOpenInvoice, open.ID)
	}

	tip, err := inv.client.BlockNumber(ctx, ch)
	if err != nil {
		return nil, err
	}
	snapshot, err := inv.snapshotLP(ctx, player.PrimaryWallet)
	if err != nil {
		// A missing snapshot degrades the report, it does not block payment.
		log.Warn().Err(err).Str("wallet", player.PrimaryWallet).Msg("LP snapshot failed, proceeding without")
		snapshot = "[]"
	}

	now := time.Now()
	job := &db.PaymentJob{
		ID:               db.NewJobID(),
		PlayerID:         player.ID,
		Status:           db.JobPending,
		Chain:            ch,
		FromWallet:       player.PrimaryWallet,
		ExpectedAmount:   amount,
		RequestedAt:      now,
		ExpiresAt:        now.Add(inv.cfg.JobExpiry),
		StartBlock:       tip,
		LastScannedBlock: tip,
		LPSnapshot:       snapshot,
	}
	if err := inv.store.CreateJob(job); err != nil {
		return nil, err
	}
	inv.registry.Add(job)
	log.Info().Str("job", job.ID).Int64("player", player.ID).Str("amount", amount.String()).Msg("🧾 invoice created")

	if err := chat.SendChunked(ctx, inv.sender, player.ChatID, inv.instructions(job)); err != nil {
		log.Warn().Err(err).Str("job", job.ID).Msg("invoice DM failed")
	}
	return job, nil
}

// snapshotLP freezes the wallet's staked positions across every cached pool.
func (inv *Invoicer) snapshotLP(ctx context.Context, wallet string) (string, error) {
	var positions []LPPosition
	for _, p := range inv.pools.GetAll() {
		raw, err := inv.client.GetUserInfo(ctx, p.Chain, p.PID, wallet)
		if err != nil {
			return "", err
		}
		staked := chain.FromWei(raw, 18)
		if staked.IsZero() {
			continue
		}
		pos := LPPosition{Chain: p.Chain, PID: p.PID, Pair: p.Pair, Staked: staked}
		if p.Priced && p.TotalSupply.IsPositive() {
			pos.ValueUSD = p.V2TVL.Mul(staked).Div(p.TotalSupply)
		}
		positions = append(positions, pos)
	}
	if positions == nil {
		positions = []LPPosition{}
	}
	b, err := json.Marshal(positions)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (inv *Invoicer) instructions(job *db.PaymentJob) string {
	token := "JEWEL (native)"
	if inv.cfg.JewelTokenOn(job.Chain) != "" {
		token = "JEWEL (ERC-20)"
	}
	return fmt.Sprintf(
		"Invoice %s\n\nSend exactly %s %s\nFrom: %s\nTo: %s\nChain: %s\n\n"+
			"The payment is detected automatically within a minute of confirmation. "+
			"It must come from your linked wallet. Window closes at %s.",
		job.ID, job.ExpectedAmount.String(), token, job.FromWallet,
		inv.cfg.HouseWallet, job.Chain, job.ExpiresAt.Format("15:04 MST"))
}
