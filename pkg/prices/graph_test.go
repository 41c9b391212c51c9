package prices

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const (
	usdc    = "0xanchor"
	jewel   = "0xjewel"
	crystal = "0xcrystal"
	avax    = "0xavax"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestBuilder() *Builder {
	return NewBuilder(usdc, jewel, crystal, dec("0.000001"), 5*time.Minute)
}

// Two hops from the anchor: USDC-JEWEL prices JEWEL, then JEWEL-CRYSTAL
// prices CRYSTAL off the derived JEWEL price.
func TestBuildPropagatesTwoHops(t *testing.T) {
	b := newTestBuilder()
	pairs := []Pair{
		{Token0: usdc, Token1: jewel, Reserve0: dec("100000"), Reserve1: dec("50000")},
		{Token0: jewel, Token1: crystal, Reserve0: dec("10000"), Reserve1: dec("40000")},
	}
	g, err := b.Get(context.Background(), pairs)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	jp, ok := g.Price(jewel)
	if !ok || !jp.Equal(dec("2")) {
		t.Errorf("jewel price: got %s want 2", jp)
	}
	cp, ok := g.Price(crystal)
	if !ok || !cp.Equal(dec("0.5")) {
		t.Errorf("crystal price: got %s want 0.5", cp)
	}
}

func TestDustPairsIgnored(t *testing.T) {
	b := NewBuilder(usdc, jewel, crystal, dec("1"), 5*time.Minute)
	pairs := []Pair{
		{Token0: usdc, Token1: jewel, Reserve0: dec("100000"), Reserve1: dec("50000")},
		{Token0: jewel, Token1: crystal, Reserve0: dec("10000"), Reserve1: dec("40000")},
		// Dust pair that would imply an absurd AVAX price.
		{Token0: usdc, Token1: avax, Reserve0: dec("0.5"), Reserve1: dec("0.0001")},
	}
	g, err := b.Get(context.Background(), pairs)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := g.Price(avax); ok {
		t.Error("dust pair should not price avax")
	}
}

// A second anchor pair that disagrees by more than 10% rejects the graph.
func TestAnchorDriftRejected(t *testing.T) {
	b := newTestBuilder()
	pairs := []Pair{
		{Token0: usdc, Token1: jewel, Reserve0: dec("100000"), Reserve1: dec("50000")},
		{Token0: jewel, Token1: crystal, Reserve0: dec("10000"), Reserve1: dec("40000")},
		// Implies JEWEL = $3 here vs $2 above: anchor consistency breaks.
		{Token0: usdc, Token1: jewel, Reserve0: dec("150000"), Reserve1: dec("50000")},
	}
	if _, err := b.Get(context.Background(), pairs); err == nil {
		t.Fatal("expected anchor drift rejection")
	}
}

func TestCoreTokenUnpricedRejected(t *testing.T) {
	b := newTestBuilder()
	pairs := []Pair{
		// CRYSTAL is unreachable from the anchor.
		{Token0: usdc, Token1: jewel, Reserve0: dec("100000"), Reserve1: dec("50000")},
	}
	if _, err := b.Get(context.Background(), pairs); err == nil {
		t.Fatal("expected rejection when crystal is unpriced")
	}
}

// A failed rebuild keeps serving the previous graph.
func TestFailureKeepsPreviousGraph(t *testing.T) {
	b := NewBuilder(usdc, jewel, crystal, dec("0.000001"), 0) // TTL 0 forces rebuilds
	good := []Pair{
		{Token0: usdc, Token1: jewel, Reserve0: dec("100000"), Reserve1: dec("50000")},
		{Token0: jewel, Token1: crystal, Reserve0: dec("10000"), Reserve1: dec("40000")},
	}
	if _, err := b.Get(context.Background(), good); err != nil {
		t.Fatalf("first build: %v", err)
	}

	g, err := b.Get(context.Background(), nil) // empty input fails the build
	if err != nil {
		t.Fatalf("expected fallback to previous graph, got %v", err)
	}
	if _, ok := g.Price(jewel); !ok {
		t.Error("previous graph should still price jewel")
	}
}

// Concurrent callers during a rebuild all get a coherent graph.
func TestConcurrentGet(t *testing.T) {
	b := newTestBuilder()
	pairs := []Pair{
		{Token0: usdc, Token1: jewel, Reserve0: dec("100000"), Reserve1: dec("50000")},
		{Token0: jewel, Token1: crystal, Reserve0: dec("10000"), Reserve1: dec("40000")},
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := b.Get(context.Background(), pairs)
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			if p, ok := g.Price(jewel); !ok || !p.Equal(dec("2")) {
				t.Errorf("jewel price: got %s", p)
			}
		}()
	}
	wg.Wait()
}
