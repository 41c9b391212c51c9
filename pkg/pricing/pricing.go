// Package pricing quotes the JEWEL cost of paid queries. Rates and
// modifiers live in the pricing_config table and are cached in-process
// with a short TTL so ops edits land without a restart.
package pricing

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/dfk-companion/pkg/db"
)

const (
	keyBaseRates = "base_rates"
	keyModifiers = "modifiers"
	configTTL    = 60 * time.Second
)

// freeTier query types always quote zero.
var freeTier = map[string]bool{"nav": true, "garden_basic": true, "summon": true}

// Modifiers shape the multiplier chain. All factors are decimal strings in
// the config row; float never enters the math.
type Modifiers struct {
	NewPlayerThreshold decimal.Decimal `json:"new_player_threshold"` // lifetime JEWEL deposits below this = new player
	NewPlayerDiscount  decimal.Decimal `json:"new_player_discount"`  // e.g. 0.5 = half price
	WhaleThreshold     decimal.Decimal `json:"whale_threshold"`      // total USD
	WhalePriority      decimal.Decimal `json:"whale_priority_multiplier"`
	PeakHours          []int           `json:"peak_hours"` // UTC hours
	PeakMultiplier     decimal.Decimal `json:"peak_multiplier"`
}

func (m Modifiers) isPeak(hour int) bool {
	for _, h := range m.PeakHours {
		if h == hour {
			return true
		}
	}
	return false
}

type rates struct {
	Base      map[string]decimal.Decimal
	Modifiers Modifiers
	loadedAt  time.Time
}

// Quote is one priced query.
type Quote struct {
	QueryType string          `json:"query_type"`
	Amount    decimal.Decimal `json:"amount"` // JEWEL
	Tags      []string        `json:"tags"`   // applied modifiers, or "free_tier"
}

// PlayerContext is what the caller knows about the player at quote time.
// LifetimeDeposits comes from the ledger; a fresh player is zero and earns
// the new-player discount until deposits cross the threshold.
type PlayerContext struct {
	LifetimeDeposits decimal.Decimal
	IsWhale          bool
	WantsPriority    bool
}

type Engine struct {
	store   *db.Store
	current atomic.Pointer[rates]
}

func New(store *db.Store) *Engine {
	return &Engine{store: store}
}

// defaultRates back the engine when the config table is empty.
func defaultRates() *rates {
	return &rates{
		Base: map[string]decimal.Decimal{
			"garden_full": decimal.RequireFromString("25"),
			"wallet_deep": decimal.RequireFromString("10"),
			"hero_report": decimal.RequireFromString("5"),
			"price_alert": decimal.RequireFromString("2"),
		},
		Modifiers: Modifiers{
			NewPlayerThreshold: decimal.RequireFromString("100"),
			NewPlayerDiscount:  decimal.RequireFromString("0.5"),
			WhaleThreshold:     decimal.RequireFromString("50000"),
			WhalePriority:      decimal.RequireFromString("1.5"),
			PeakHours:          []int{18, 19, 20, 21, 22},
			PeakMultiplier:     decimal.RequireFromString("1.25"),
		},
		loadedAt: time.Now(),
	}
}

// load fetches both config rows, falling back to defaults per-row.
func (e *Engine) load() *rates {
	r := defaultRates()
	if row, err := e.store.GetPricingConfig(keyBaseRates); err == nil {
		var base map[string]string
		if json.Unmarshal([]byte(row.ConfigValue), &base) == nil {
			parsed := make(map[string]decimal.Decimal, len(base))
			ok := true
			for k, v := range base {
				d, err := decimal.NewFromString(v)
				if err != nil {
					log.Warn().Str("query", k).Str("value", v).Msg("bad base rate, keeping defaults")
					ok = false
					break
				}
				parsed[k] = d
			}
			if ok {
				r.Base = parsed
			}
		}
	}
	if row, err := e.store.GetPricingConfig(keyModifiers); err == nil {
		var m Modifiers
		if json.Unmarshal([]byte(row.ConfigValue), &m) == nil && m.WhalePriority.IsPositive() {
			r.Modifiers = m
		}
	}
	r.loadedAt = time.Now()
	return r
}

func (e *Engine) rates() *rates {
	if r := e.current.Load(); r != nil && time.Since(r.loadedAt) < configTTL {
		return r
	}
	r := e.load()
	e.current.Store(r)
	return r
}

// QuoteFor prices one query. Free-tier types short-circuit the multiplier
// chain entirely.
func (e *Engine) QuoteFor(queryType string, pc PlayerContext, now time.Time) (*Quote, error) {
	if freeTier[queryType] {
		return &Quote{QueryType: queryType, Amount: decimal.Zero, Tags: []string{"free_tier"}}, nil
	}
	r := e.rates()
	base, ok := r.Base[queryType]
	if !ok {
		return nil, fmt.Errorf("unknown query type %q", queryType)
	}

	amount := base
	var tags []string
	m := r.Modifiers
	if pc.LifetimeDeposits.LessThan(m.NewPlayerThreshold) {
		amount = amount.Mul(decimal.NewFromInt(1).Sub(m.NewPlayerDiscount))
		tags = append(tags, "new_player_discount")
	}
	if pc.WantsPriority && pc.IsWhale {
		amount = amount.Mul(m.WhalePriority)
		tags = append(tags, "whale_priority")
	}
	if m.isPeak(now.UTC().Hour()) {
		amount = amount.Mul(m.PeakMultiplier)
		tags = append(tags, "peak_hours")
	}
	return &Quote{QueryType: queryType, Amount: amount, Tags: tags}, nil
}

// Invalidate drops the cached config so the next quote reloads.
func (e *Engine) Invalidate() {
	e.current.Store(nil)
}
