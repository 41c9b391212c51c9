package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dfk-companion/pkg/chain"
	"github.com/dfk-companion/pkg/chat"
	"github.com/dfk-companion/pkg/classify"
	"github.com/dfk-companion/pkg/config"
	"github.com/dfk-companion/pkg/db"
	"github.com/dfk-companion/pkg/httpapi"
	"github.com/dfk-companion/pkg/optimizer"
	"github.com/dfk-companion/pkg/payments"
	"github.com/dfk-companion/pkg/pools"
	"github.com/dfk-companion/pkg/prices"
	"github.com/dfk-companion/pkg/pricing"
	"github.com/dfk-companion/pkg/queue"
	"github.com/dfk-companion/pkg/sched"
	"github.com/dfk-companion/pkg/snapshot"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	log.Info().Msg("🏰 DFK Companion starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config invalid")
	}

	store, err := db.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}
	defer store.Close()

	client, err := chain.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("chain client init failed")
	}

	priceBuilder := prices.NewBuilder(cfg.StableAnchor, cfg.JewelToken, cfg.CrystalToken, cfg.DustFloor, cfg.PriceTTL)
	poolBuilder := pools.NewBuilder(cfg, client, priceBuilder, pools.NewDefaultQuestAPR())
	cache := pools.NewCache(poolBuilder, cfg.CacheFile)

	sender := chat.NewTelegram(cfg.TelegramBotToken, cfg.TelegramAPIURL)

	registry := payments.NewRegistry(store)
	if err := registry.Load(); err != nil {
		log.Fatal().Err(err).Msg("payment registry load failed")
	}
	scanner := payments.NewScanner(cfg, client, store, registry, sender)
	invoicer := payments.NewInvoicer(cfg, client, store, registry, cache, sender)
	processor := optimizer.NewProcessor(cfg, store, client, cache, sender)
	priceEngine := pricing.New(store)
	snaps := snapshot.NewBuilder(cfg, client, store, cache)

	readyQueue := queue.New(cache, sender, func(ctx context.Context, e queue.Entry) error {
		player, err := store.GetOrCreatePlayer(e.ChatID, e.DisplayName)
		if err != nil {
			return err
		}
		bal, err := store.GetBalance(player.ID)
		if err != nil {
			return err
		}
		quote, err := priceEngine.QuoteFor("garden_full", pricing.PlayerContext{LifetimeDeposits: bal.LifetimeDeposits}, time.Now())
		if err != nil {
			return err
		}
		_, err = invoicer.CreateInvoice(ctx, player, config.ChainDFK, quote.Amount)
		return err
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigCh; log.Info().Msg("shutting down..."); cancel() }()

	if err := cache.Start(ctx, cfg.PoolRefreshInterval); err != nil {
		log.Fatal().Err(err).Msg("pool cache start failed")
	}

	errCh := make(chan error, 8)
	go func() { scanner.Run(ctx); errCh <- ctx.Err() }()
	go func() { processor.Run(ctx); errCh <- ctx.Err() }()
	go func() { readyQueue.Run(ctx, cfg.QueuePollInterval); errCh <- ctx.Err() }()

	scheduler := sched.New(cfg, store, snaps, func(ctx context.Context, p *db.Player) error {
		return reclassify(ctx, store, snaps, p)
	})
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("scheduler start failed")
	}

	api := httpapi.New(cfg, store, cache, registry)
	go func() { errCh <- api.Run() }()

	printSummary(cfg, store, registry)
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("error")
		}
	}
	log.Info().Msg("goodbye 👋")
}

// reclassify refreshes a recently active player's on-chain KPIs and runs the
// profile through the classifier.
func reclassify(ctx context.Context, store *db.Store, snaps *snapshot.Builder, p *db.Player) error {
	if p.PrimaryWallet == "" {
		return nil
	}
	facts, err := snaps.Build(ctx, p.PrimaryWallet)
	if err != nil {
		return err
	}
	kpis := classify.WalletKPIs{
		HeroCount:    facts.HeroCount,
		Gen0Count:    facts.Gen0Count,
		MaxHeroLevel: facts.MaxHeroLevel,
		LPValueUSD:   facts.LPValueUSD,
		PoolCount:    len(facts.Holdings),
	}
	prof, rest := classify.LoadProfileData(p.ProfileData)
	prof = classify.ProcessEvent(prof, classify.Event{
		Type:   classify.EventWalletScan,
		At:     time.Now(),
		Wallet: &kpis,
	}, &classify.DefaultThresholds)
	merged, err := classify.StoreProfileData(rest, prof)
	if err != nil {
		return err
	}
	return store.UpdateProfileData(p.ID, merged)
}

func printSummary(cfg *config.Config, store *db.Store, registry *payments.Registry) {
	title := color.New(color.FgHiGreen, color.Bold)
	stats, _ := store.GetStats()
	fmt.Println("\n" + strings.Repeat("═", 60))
	title.Println("  🏰 DFK COMPANION - RUNNING")
	fmt.Println(strings.Repeat("═", 60))
	fmt.Printf("  Chains:    %v\n", config.AllChains())
	fmt.Printf("  House:     %s\n", cfg.HouseWallet)
	fmt.Printf("  Scan mode: %s\n", cfg.PaymentScanMode)
	fmt.Printf("  Status:    http://localhost:%d/api/health\n", cfg.StatusPort)
	fmt.Printf("  Invoices:  %d open\n", registry.Len())
	if stats != nil {
		fmt.Printf("  DB:        %d players, %d jobs, %d snapshots\n",
			stats["players"], stats["payment_jobs"], stats["wallet_snapshots"])
	}
	fmt.Println(strings.Repeat("═", 60) + "\n")
}
