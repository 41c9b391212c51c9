// Package prices derives token USD prices by walking LP-pair reserves
// outward from a stablecoin anchor.
package prices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

var (
	ErrAnchorDrift  = errors.New("anchor price outside ±10% of $1")
	ErrCoreUnpriced = errors.New("emission or gas token has no positive price")
	ErrNoPairs      = errors.New("no pairs to price from")
)

// Pair is one LP pair's pricing input. Reserves are whole token units.
type Pair struct {
	Token0   string // lowercased address
	Token1   string
	Reserve0 decimal.Decimal
	Reserve1 decimal.Decimal
}

// Graph is an immutable token -> USD price snapshot.
type Graph struct {
	Prices  map[string]decimal.Decimal
	BuiltAt time.Time
}

// Price returns the USD price of a token, false when unreachable.
func (g *Graph) Price(token string) (decimal.Decimal, bool) {
	p, ok := g.Prices[strings.ToLower(token)]
	return p, ok
}

// Builder owns the per-process graph: 5-minute TTL, single in-flight build
// shared by concurrent callers, previous graph kept on failure.
type Builder struct {
	anchor  string
	jewel   string // gas token, must be priced
	crystal string // emission token, must be priced
	dust    decimal.Decimal
	ttl     time.Duration

	cur atomic.Pointer[Graph]
	sf  singleflight.Group
}

func NewBuilder(anchor, jewel, crystal string, dust decimal.Decimal, ttl time.Duration) *Builder {
	return &Builder{
		anchor:  strings.ToLower(anchor),
		jewel:   strings.ToLower(jewel),
		crystal: strings.ToLower(crystal),
		dust:    dust,
		ttl:     ttl,
	}
}

// Current returns the cached graph, nil when none has been built yet.
func (b *Builder) Current() *Graph {
	return b.cur.Load()
}

// Get returns a fresh-enough graph, rebuilding from pairs when the TTL has
// lapsed. Rebuild failures fall back to the previous graph when one exists.
func (b *Builder) Get(ctx context.Context, pairs []Pair) (*Graph, error) {
	if g := b.cur.Load(); g != nil && time.Since(g.BuiltAt) < b.ttl {
		return g, nil
	}

	v, err, _ := b.sf.Do("graph", func() (any, error) {
		// Another caller may have finished the build while we queued.
		if g := b.cur.Load(); g != nil && time.Since(g.BuiltAt) < b.ttl {
			return g, nil
		}
		g, err := b.build(pairs)
		if err != nil {
			if prev := b.cur.Load(); prev != nil {
				log.Warn().Err(err).Msg("price graph rebuild failed, keeping previous")
				return prev, nil
			}
			return nil, err
		}
		b.cur.Store(g)
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return v.(*Graph), nil
}

// build runs the BFS price propagation and validates the result.
func (b *Builder) build(pairs []Pair) (*Graph, error) {
	if len(pairs) == 0 {
		return nil, ErrNoPairs
	}

	prices := map[string]decimal.Decimal{b.anchor: decimal.NewFromInt(1)}

	// BFS over the pair graph: any pair with exactly one priced side implies
	// the other side's price from the reserve ratio.
	for changed := true; changed; {
		changed = false
		for _, p := range pairs {
			if p.Reserve0.LessThan(b.dust) || p.Reserve1.LessThan(b.dust) {
				continue
			}
			p0, ok0 := prices[p.Token0]
			p1, ok1 := prices[p.Token1]
			switch {
			case ok0 && !ok1:
				prices[p.Token1] = p.Reserve0.Mul(p0).Div(p.Reserve1)
				changed = true
			case ok1 && !ok0:
				prices[p.Token0] = p.Reserve1.Mul(p1).Div(p.Reserve0)
				changed = true
			}
		}
	}

	if err := b.validate(pairs, prices); err != nil {
		return nil, err
	}
	return &Graph{Prices: prices, BuiltAt: time.Now().UTC()}, nil
}

// validate rejects graphs whose anchor drifts from $1 through any priced
// pair, or whose core tokens ended up unpriced.
func (b *Builder) validate(pairs []Pair, prices map[string]decimal.Decimal) error {
	lo, hi := decimal.RequireFromString("0.9"), decimal.RequireFromString("1.1")
	for _, p := range pairs {
		other, otherRes, anchorRes := "", decimal.Zero, decimal.Zero
		switch {
		case p.Token0 == b.anchor:
			other, otherRes, anchorRes = p.Token1, p.Reserve1, p.Reserve0
		case p.Token1 == b.anchor:
			other, otherRes, anchorRes = p.Token0, p.Reserve0, p.Reserve1
		default:
			continue
		}
		if anchorRes.LessThan(b.dust) || otherRes.LessThan(b.dust) {
			continue
		}
		op, ok := prices[other]
		if !ok {
			continue
		}
		implied := otherRes.Mul(op).Div(anchorRes)
		if implied.LessThan(lo) || implied.GreaterThan(hi) {
			return fmt.Errorf("%w: implied %s via %s", ErrAnchorDrift, implied.StringFixed(4), other)
		}
	}

	for _, core := range []string{b.jewel, b.crystal} {
		p, ok := prices[core]
		if !ok || p.Sign() <= 0 {
			return fmt.Errorf("%w: %s", ErrCoreUnpriced, core)
		}
	}
	return nil
}
