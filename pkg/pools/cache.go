package pools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dfk-companion/pkg/config"
)

const (
	cacheVersion     = 2
	maxTimingHistory = 10
	maxDiskAge       = 24 * time.Hour
	readyCeiling     = 5 * time.Minute
)

type diskCache struct {
	Version       int       `json:"version"`
	LastUpdated   time.Time `json:"lastUpdated"`
	Data          []Pool    `json:"data"`
	TimingHistory []float64 `json:"timingHistory"`
}

// poolBuilder lets tests refresh the cache without a live chain.
type poolBuilder interface {
	BuildAll(ctx context.Context) ([]Pool, error)
}

// Cache holds the published pool snapshot. One writer swaps an immutable
// snapshot pointer; readers never observe a mix of old and new entries.
type Cache struct {
	builder poolBuilder
	file    string

	snap         atomic.Pointer[Snapshot]
	isRefreshing atomic.Bool

	timingMu      sync.Mutex
	timingHistory []float64
}

func NewCache(builder poolBuilder, file string) *Cache {
	return &Cache{builder: builder, file: file}
}

// Refresh rebuilds the snapshot. Re-entrancy guarded: a refresh already in
// flight makes this call return immediately. On failure the previous
// snapshot stays published.
func (c *Cache) Refresh(ctx context.Context) error {
	if !c.isRefreshing.CompareAndSwap(false, true) {
		return nil
	}
	defer c.isRefreshing.Store(false)

	start := time.Now()
	data, err := c.builder.BuildAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("pool refresh failed, keeping previous snapshot")
		return err
	}

	snap := &Snapshot{Data: data, LastUpdated: time.Now().UTC()}
	c.snap.Store(snap)

	dur := time.Since(start)
	c.recordTiming(dur)
	if err := c.persist(snap); err != nil {
		log.Warn().Err(err).Msg("pool cache persist failed")
	}
	log.Info().Int("pools", len(data)).Dur("took", dur).Msg("🌿 pool cache refreshed")
	return nil
}

func (c *Cache) recordTiming(dur time.Duration) {
	c.timingMu.Lock()
	defer c.timingMu.Unlock()

	if n := len(c.timingHistory); n > 0 {
		var sum float64
		for _, v := range c.timingHistory {
			sum += v
		}
		avg := sum / float64(n)
		if dur.Seconds() > avg*1.5 {
			log.Warn().Float64("took_s", dur.Seconds()).Float64("avg_s", avg).Msg("pool refresh slower than usual")
		}
	}
	c.timingHistory = append(c.timingHistory, dur.Seconds())
	if len(c.timingHistory) > maxTimingHistory {
		c.timingHistory = c.timingHistory[len(c.timingHistory)-maxTimingHistory:]
	}
}

// IsReady reports whether a non-empty snapshot is published.
func (c *Cache) IsReady() bool {
	s := c.snap.Load()
	return s != nil && len(s.Data) > 0
}

// LastUpdated returns the snapshot timestamp, zero when cold.
func (c *Cache) LastUpdated() time.Time {
	if s := c.snap.Load(); s != nil {
		return s.LastUpdated
	}
	return time.Time{}
}

// GetAll returns the current consistent snapshot's pools.
func (c *Cache) GetAll() []Pool {
	if s := c.snap.Load(); s != nil {
		return s.Data
	}
	return nil
}

// Get looks one pool up by chain and pid.
func (c *Cache) Get(ch config.Chain, pid uint64) (*Pool, bool) {
	all := c.GetAll()
	for i := range all {
		if all[i].Chain == ch && all[i].PID == pid {
			return &all[i], true
		}
	}
	return nil, false
}

var searchStrip = regexp.MustCompile(`[-\s]`)

func normalizePair(s string) string {
	s = searchStrip.ReplaceAllString(strings.ToLower(s), "")
	for wrapped, bare := range config.TokenAliases {
		s = strings.ReplaceAll(s, wrapped, bare)
	}
	return s
}

// Search matches pools by normalized pair name: lowercased, dash/space
// stripped, wrapped-token aliases collapsed.
func (c *Cache) Search(query string) []Pool {
	q := normalizePair(query)
	if q == "" {
		return nil
	}
	var out []Pool
	for _, p := range c.GetAll() {
		if strings.Contains(normalizePair(p.Pair), q) {
			out = append(out, p)
		}
	}
	return out
}

// WaitForReady blocks cooperatively until the cache is ready, yielding every
// second and reporting elapsed seconds through onWait. Bounded by a safety
// ceiling.
func (c *Cache) WaitForReady(ctx context.Context, onWait func(elapsedSec int)) error {
	deadline := time.Now().Add(readyCeiling)
	start := time.Now()
	for !c.IsReady() {
		if time.Now().After(deadline) {
			return fmt.Errorf("pool cache not ready after %s", readyCeiling)
		}
		if onWait != nil {
			onWait(int(time.Since(start).Seconds()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil
}

// ── Disk persistence ────────────────────────────────────────

func (c *Cache) persist(snap *Snapshot) error {
	c.timingMu.Lock()
	history := append([]float64(nil), c.timingHistory...)
	c.timingMu.Unlock()

	blob, err := json.Marshal(diskCache{
		Version:       cacheVersion,
		LastUpdated:   snap.LastUpdated,
		Data:          snap.Data,
		TimingHistory: history,
	})
	if err != nil {
		return err
	}
	tmp := c.file + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.file)
}

// LoadFromDisk restores a persisted snapshot. Copies older than 24h or with
// a mismatched schema version are rejected.
func (c *Cache) LoadFromDisk() error {
	blob, err := os.ReadFile(c.file)
	if err != nil {
		return err
	}
	var dc diskCache
	if err := json.Unmarshal(blob, &dc); err != nil {
		return fmt.Errorf("pool cache file corrupt: %w", err)
	}
	if dc.Version != cacheVersion {
		return fmt.Errorf("pool cache schema v%d, want v%d", dc.Version, cacheVersion)
	}
	if time.Since(dc.LastUpdated) > maxDiskAge {
		return fmt.Errorf("pool cache stale: last updated %s", dc.LastUpdated.Format(time.RFC3339))
	}
	if len(dc.Data) == 0 {
		return fmt.Errorf("pool cache file empty")
	}
	c.snap.Store(&Snapshot{Data: dc.Data, LastUpdated: dc.LastUpdated})
	c.timingMu.Lock()
	c.timingHistory = dc.TimingHistory
	c.timingMu.Unlock()
	return nil
}

// Start runs the startup sequence and installs the background refresh loop:
// a fresh-enough disk copy makes the cache ready immediately with an async
// refresh behind it; otherwise the first refresh is synchronous.
func (c *Cache) Start(ctx context.Context, interval time.Duration) error {
	if err := c.LoadFromDisk(); err == nil {
		log.Info().Time("asOf", c.LastUpdated()).Msg("🌿 pool cache loaded from disk")
		go c.Refresh(ctx)
	} else {
		log.Info().Err(err).Msg("no usable pool cache on disk, refreshing synchronously")
		if err := c.Refresh(ctx); err != nil {
			return fmt.Errorf("initial pool refresh: %w", err)
		}
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.Refresh(ctx)
			}
		}
	}()
	return nil
}
