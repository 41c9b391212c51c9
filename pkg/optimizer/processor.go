package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dfk-companion/pkg/chain"
	"github.com/dfk-companion/pkg/chat"
	"github.com/dfk-companion/pkg/config"
	"github.com/dfk-companion/pkg/db"
	"github.com/dfk-companion/pkg/payments"
	"github.com/dfk-companion/pkg/pools"
)

// Processor drains verified payments and turns each into a delivered report.
type Processor struct {
	cfg    *config.Config
	store  *db.Store
	client *chain.Client
	pools  *pools.Cache
	sender chat.Sender
}

func NewProcessor(cfg *config.Config, store *db.Store, client *chain.Client, cache *pools.Cache, sender chat.Sender) *Processor {
	return &Processor{cfg: cfg, store: store, client: client, pools: cache, sender: sender}
}

func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.ProcessorInterval)
	defer ticker.Stop()
	log.Info().Dur("interval", p.cfg.ProcessorInterval).Msg("⚙️ optimization processor started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Processor) drain(ctx context.Context) {
	jobs, err := p.store.JobsByStatus(db.JobPaymentVerified)
	if err != nil {
		log.Error().Err(err).Msg("verified-job query failed")
		return
	}
	for i := range jobs {
		job := &jobs[i]
		claimed, err := p.store.ClaimForProcessing(job.ID)
		if err != nil {
			log.Error().Err(err).Str("job", job.ID).Msg("claim failed")
			continue
		}
		if !claimed {
			continue // another worker got it
		}
		if err := p.process(ctx, job); err != nil {
			p.fail(ctx, job, err)
		}
	}
}

func (p *Processor) process(ctx context.Context, job *db.PaymentJob) error {
	start := time.Now()
	player, err := p.store.GetPlayerByID(job.PlayerID)
	if err != nil {
		return fmt.Errorf("player lookup: %w", err)
	}

	heroes, err := p.client.GetAllHeroesByOwner(ctx, job.FromWallet)
	if err != nil {
		return fmt.Errorf("hero fetch: %w", err)
	}

	var positions []payments.LPPosition
	if job.LPSnapshot != "" {
		if err := json.Unmarshal([]byte(job.LPSnapshot), &positions); err != nil {
			return fmt.Errorf("lp snapshot decode: %w", err)
		}
	}

	plan := BuildPlan(job.FromWallet, heroes, p.pools.GetAll(), positions)

	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("report encode: %w", err)
	}
	for _, section := range formatReport(job, plan) {
		if err := chat.SendChunked(ctx, p.sender, player.ChatID, section); err != nil {
			return fmt.Errorf("report delivery: %w", err)
		}
	}
	if err := p.store.CompleteJob(job.ID, string(payload)); err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	if err := p.store.Credit(job.PlayerID, job.PaidAmount); err != nil {
		// The player already has the report; the credit is retried by ops,
		// not silently rolled into a failed job.
		log.Error().Err(err).Str("job", job.ID).Msg("ledger credit failed after delivery")
	}
	log.Info().Str("job", job.ID).Dur("took", time.Since(start)).Int("heroes", len(heroes)).Msg("📋 report delivered")
	return nil
}

func (p *Processor) fail(ctx context.Context, job *db.PaymentJob, cause error) {
	log.Error().Err(cause).Str("job", job.ID).Msg("❌ optimization failed")
	if err := p.store.FailJob(job.ID, cause.Error()); err != nil {
		log.Error().Err(err).Str("job", job.ID).Msg("fail-state write failed")
	}
	player, err := p.store.GetPlayerByID(job.PlayerID)
	if err != nil {
		return
	}
	msg := "Something went wrong while generating your report for job " + job.ID +
		". Your payment is recorded and support will follow up. Nothing further is needed from you."
	if err := p.sender.SendDirect(ctx, player.ChatID, msg); err != nil {
		log.Warn().Err(err).Str("job", job.ID).Msg("failure notice failed")
	}
}

// formatReport renders the plan as three chat sections: summary, hero
// assignments, and position detail.
func formatReport(job *db.PaymentJob, plan *Plan) []string {
	var summary strings.Builder
	fmt.Fprintf(&summary, "🌿 Garden Optimization Report\nJob %s\nWallet %s\n\n", job.ID, plan.Wallet)
	if plan.PortfolioUSD.IsPositive() {
		fmt.Fprintf(&summary, "Current portfolio: $%s at %s%% APR\n", plan.PortfolioUSD.Round(2), plan.CurrentAPR)
		sign := ""
		if plan.DeltaAPR.IsPositive() {
			sign = "+"
		}
		fmt.Fprintf(&summary, "Optimized: %s%% APR (%s%s%%)\n", plan.OptimizedAPR, sign, plan.DeltaAPR)
		fmt.Fprintf(&summary, "Estimated annual gain: $%s\n", plan.AnnualGainUSD)
	} else {
		summary.WriteString("No priced LP positions were found at invoice time, so the plan below is built from your heroes alone.\n")
	}
	if plan.SkippedHeroes > 0 {
		fmt.Fprintf(&summary, "\n%d heroes skipped (questing or out of stamina).\n", plan.SkippedHeroes)
	}

	var assign strings.Builder
	assign.WriteString("Hero assignments:\n")
	if len(plan.Assignments) == 0 {
		assign.WriteString("No eligible gardeners found. Level a hero's gardening skill or recall them from quests, then re-run.\n")
	}
	for _, a := range plan.Assignments {
		fmt.Fprintf(&assign, "• Hero #%d → %s (pid %d), quest APR %s–%s%%, score %s\n",
			a.HeroID, a.Pool, a.PID, a.QuestWorst, a.QuestBest, a.Score)
	}

	var detail strings.Builder
	detail.WriteString("Snapshot positions:\n")
	if len(plan.Positions) == 0 {
		detail.WriteString("none\n")
	}
	for _, pos := range plan.Positions {
		fmt.Fprintf(&detail, "• %s (pid %d, %s): %s LP ≈ $%s\n",
			pos.Pair, pos.PID, pos.Chain, pos.Staked.Round(4), pos.ValueUSD.Round(2))
	}

	return []string{summary.String(), assign.String(), detail.String()}
}
