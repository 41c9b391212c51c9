package pricing

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dfk-companion/pkg/db"
)

func testEngine(t *testing.T) (*Engine, *db.Store) {
	t.Helper()
	store, err := db.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store), store
}

// offPeak is well outside the default 18-22 UTC peak hours.
var offPeak = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// established is comfortably past the 100 JEWEL new-player threshold.
var established = decimal.RequireFromString("500")

func TestFreeTierBypassesMultipliers(t *testing.T) {
	e, _ := testEngine(t)
	for _, qt := range []string{"nav", "garden_basic", "summon"} {
		q, err := e.QuoteFor(qt, PlayerContext{IsWhale: true, WantsPriority: true}, offPeak)
		if err != nil {
			t.Fatal(err)
		}
		if !q.Amount.IsZero() {
			t.Errorf("%s: amount = %s, free tier must be 0", qt, q.Amount)
		}
		if len(q.Tags) != 1 || q.Tags[0] != "free_tier" {
			t.Errorf("%s: tags = %v, want [free_tier]", qt, q.Tags)
		}
	}
}

func TestBaseRateNoModifiers(t *testing.T) {
	e, _ := testEngine(t)
	q, err := e.QuoteFor("garden_full", PlayerContext{LifetimeDeposits: established}, offPeak)
	if err != nil {
		t.Fatal(err)
	}
	if !q.Amount.Equal(decimal.RequireFromString("25")) {
		t.Errorf("amount = %s, want base 25", q.Amount)
	}
	if len(q.Tags) != 0 {
		t.Errorf("tags = %v, want none", q.Tags)
	}
}

func TestNewPlayerGatedOnLifetimeDeposits(t *testing.T) {
	e, _ := testEngine(t)
	// Lifetime 50 is under the 100 threshold regardless of wallet age.
	q, err := e.QuoteFor("garden_full", PlayerContext{LifetimeDeposits: decimal.RequireFromString("50")}, offPeak)
	if err != nil {
		t.Fatal(err)
	}
	if !q.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("lifetime-50 player priced at %s, want 12.5", q.Amount)
	}
	if len(q.Tags) != 1 || q.Tags[0] != "new_player_discount" {
		t.Errorf("tags = %v, want [new_player_discount]", q.Tags)
	}
	// Exactly at the threshold the discount no longer applies.
	q, err = e.QuoteFor("garden_full", PlayerContext{LifetimeDeposits: decimal.RequireFromString("100")}, offPeak)
	if err != nil {
		t.Fatal(err)
	}
	if !q.Amount.Equal(decimal.RequireFromString("25")) {
		t.Errorf("lifetime-100 player priced at %s, want 25", q.Amount)
	}
}

func TestModifierComposition(t *testing.T) {
	e, _ := testEngine(t)
	peak := time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	q, err := e.QuoteFor("garden_full", PlayerContext{IsWhale: true, WantsPriority: true}, peak)
	if err != nil {
		t.Fatal(err)
	}
	// 25 x 0.5 x 1.5 x 1.25 = 23.4375, exactly.
	if !q.Amount.Equal(decimal.RequireFromString("23.4375")) {
		t.Errorf("amount = %s, want 23.4375", q.Amount)
	}
	if len(q.Tags) != 3 {
		t.Errorf("tags = %v, want all three modifiers", q.Tags)
	}
}

func TestWhalePriorityNeedsBothConditions(t *testing.T) {
	e, _ := testEngine(t)
	q, _ := e.QuoteFor("garden_full", PlayerContext{LifetimeDeposits: established, IsWhale: true}, offPeak)
	if !q.Amount.Equal(decimal.RequireFromString("25")) {
		t.Errorf("whale without priority request priced at %s, want 25", q.Amount)
	}
	q, _ = e.QuoteFor("garden_full", PlayerContext{LifetimeDeposits: established, WantsPriority: true}, offPeak)
	if !q.Amount.Equal(decimal.RequireFromString("25")) {
		t.Errorf("priority without whale priced at %s, want 25", q.Amount)
	}
}

func TestPeakHoursList(t *testing.T) {
	e, store := testEngine(t)
	err := store.SetPricingConfig("modifiers",
		`{"new_player_threshold":"100","new_player_discount":"0.5","whale_threshold":"50000","whale_priority_multiplier":"1.5","peak_hours":[2],"peak_multiplier":"2"}`,
		"night peak", "ops")
	if err != nil {
		t.Fatal(err)
	}
	e.Invalidate()
	at := func(hour int) decimal.Decimal {
		q, err := e.QuoteFor("garden_full", PlayerContext{LifetimeDeposits: established}, time.Date(2025, 6, 1, hour, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatal(err)
		}
		return q.Amount
	}
	if got := at(2); !got.Equal(decimal.RequireFromString("50")) {
		t.Errorf("configured peak hour priced at %s, want 50", got)
	}
	// 19 was a default peak hour; the override list replaces it entirely.
	if got := at(19); !got.Equal(decimal.RequireFromString("25")) {
		t.Errorf("non-listed hour priced at %s, want 25", got)
	}
}

func TestUnknownQueryType(t *testing.T) {
	e, _ := testEngine(t)
	if _, err := e.QuoteFor("teleport", PlayerContext{}, offPeak); err == nil {
		t.Fatal("unknown query type must error")
	}
}

func TestConfigOverrideAfterInvalidate(t *testing.T) {
	e, store := testEngine(t)
	if _, err := e.QuoteFor("garden_full", PlayerContext{LifetimeDeposits: established}, offPeak); err != nil {
		t.Fatal(err)
	}
	err := store.SetPricingConfig("base_rates", `{"garden_full":"40"}`, "price bump", "ops")
	if err != nil {
		t.Fatal(err)
	}
	e.Invalidate()
	q, err := e.QuoteFor("garden_full", PlayerContext{LifetimeDeposits: established}, offPeak)
	if err != nil {
		t.Fatal(err)
	}
	if !q.Amount.Equal(decimal.RequireFromString("40")) {
		t.Errorf("amount = %s, want overridden 40", q.Amount)
	}
}
