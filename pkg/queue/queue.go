// Package queue parks chat requests that arrived before the pool cache was
// warm and replays them once it is.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dfk-companion/pkg/chat"
	"github.com/dfk-companion/pkg/pools"
)

// Entry is one parked request. One slot per chat user: a repeat request
// overwrites the earlier one rather than queueing twice.
type Entry struct {
	ChatID      string
	DisplayName string
	Wallet      string
	RequestedAt time.Time
}

// OnReady runs once per parked entry when the cache comes up. An error
// drops the entry after the user is told; there is no retry.
type OnReady func(ctx context.Context, e Entry) error

type Queue struct {
	mu       sync.Mutex
	waiting  map[string]Entry
	cache    *pools.Cache
	sender   chat.Sender
	onReady  OnReady
	draining atomic.Bool
}

func New(cache *pools.Cache, sender chat.Sender, onReady OnReady) *Queue {
	return &Queue{waiting: make(map[string]Entry), cache: cache, sender: sender, onReady: onReady}
}

// Park stores the request, stamping RequestedAt on first sight only.
func (q *Queue) Park(chatID, displayName, wallet string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, exists := q.waiting[chatID]
	if !exists {
		e = Entry{ChatID: chatID, RequestedAt: time.Now()}
	}
	e.DisplayName = displayName
	e.Wallet = wallet
	q.waiting[chatID] = e
	log.Info().Str("chat", chatID).Int("waiting", len(q.waiting)).Msg("⏳ request parked until cache ready")
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Run polls until ctx is cancelled, draining whenever the cache reports
// ready.
func (q *Queue) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if q.cache.IsReady() {
				q.Drain(ctx)
			}
		}
	}
}

// Drain replays every parked entry. The atomic flag keeps a slow drain from
// overlapping the next tick; entries parked mid-drain wait for the next one.
func (q *Queue) Drain(ctx context.Context) {
	if !q.draining.CompareAndSwap(false, true) {
		return
	}
	defer q.draining.Store(false)

	q.mu.Lock()
	batch := make([]Entry, 0, len(q.waiting))
	for _, e := range q.waiting {
		batch = append(batch, e)
	}
	q.waiting = make(map[string]Entry)
	q.mu.Unlock()

	for _, e := range batch {
		if err := q.onReady(ctx, e); err != nil {
			// Failure is isolated per entry: tell the user, drop, keep draining.
			log.Warn().Err(err).Str("chat", e.ChatID).Msg("parked request replay failed")
			notice := "Sorry, I couldn't process your request after the data refresh. Nothing was charged - please try again."
			if serr := q.sender.SendDirect(ctx, e.ChatID, notice); serr != nil {
				log.Error().Err(serr).Str("chat", e.ChatID).Msg("failure notice undelivered")
			}
		}
	}
	if len(batch) > 0 {
		log.Info().Int("replayed", len(batch)).Msg("✅ cache-ready queue drained")
	}
}
