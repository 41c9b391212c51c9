// Package sched owns the recurring background work: the nightly wallet
// snapshot pass and the incremental profile ETL.
package sched

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/dfk-companion/pkg/config"
	"github.com/dfk-companion/pkg/db"
)

// SnapshotRunner is the nightly pass; ETLFunc handles one recently active
// player.
type SnapshotRunner interface {
	RunDaily(ctx context.Context)
}

type ETLFunc func(ctx context.Context, player *db.Player) error

type Scheduler struct {
	cfg   *config.Config
	store *db.Store
	snaps SnapshotRunner
	etl   ETLFunc
	cron  *cron.Cron

	mu        sync.Mutex
	watermark time.Time // last ETL cutoff; only players active after it are reprocessed
}

func New(cfg *config.Config, store *db.Store, snaps SnapshotRunner, etl ETLFunc) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		store:     store,
		snaps:     snaps,
		etl:       etl,
		cron:      cron.New(),
		watermark: time.Now().Add(-24 * time.Hour),
	}
}

// Start registers the jobs and launches the cron loop. Stop with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.SnapshotCron, func() { s.snaps.RunDaily(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.ETLCron, func() { s.runETL(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("snapshot", s.cfg.SnapshotCron).Str("etl", s.cfg.ETLCron).Msg("⏰ scheduler started")

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
	return nil
}

// runETL reprocesses players active since the previous run. The watermark
// advances to this run's start even when individual players fail, so a bad
// profile cannot wedge the pipeline.
func (s *Scheduler) runETL(ctx context.Context) {
	s.mu.Lock()
	since := s.watermark
	start := time.Now()
	s.mu.Unlock()

	players, err := s.store.ActivePlayersSince(since)
	if err != nil {
		log.Error().Err(err).Msg("ETL player query failed")
		return
	}
	var failed int
	for i := range players {
		if ctx.Err() != nil {
			return
		}
		if err := s.etl(ctx, &players[i]); err != nil {
			failed++
			log.Warn().Err(err).Int64("player", players[i].ID).Msg("ETL step failed")
		}
	}

	s.mu.Lock()
	s.watermark = start
	s.mu.Unlock()
	if len(players) > 0 {
		log.Info().Int("players", len(players)).Int("failed", failed).Msg("🔄 profile ETL pass finished")
	}
}
