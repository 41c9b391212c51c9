package classify

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func hasTag(tags []BehaviorTag, want BehaviorTag) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

func TestFreshPlayerIsGuest(t *testing.T) {
	th := &DefaultThresholds
	p := ProcessEvent(Profile{}, Event{Type: EventDiscordMessage, Message: "hi, how do i start?", At: t0}, th)

	if p.Archetype != ArchetypeGuest {
		t.Errorf("Archetype = %s, want GUEST", p.Archetype)
	}
	if p.Tier != 0 {
		t.Errorf("Tier = %d, want 0", p.Tier)
	}
	if p.State != StateCurious {
		t.Errorf("State = %s, want CURIOUS", p.State)
	}
	if !hasTag(p.BehaviorTags, TagNewcomer) {
		t.Errorf("tags %v missing NEWCOMER", p.BehaviorTags)
	}
}

func TestWalletScanPromotesToPlayer(t *testing.T) {
	th := &DefaultThresholds
	p := ProcessEvent(Profile{}, Event{Type: EventDiscordMessage, Message: "hello", At: t0}, th)
	p = ProcessEvent(p, Event{
		Type: EventWalletScan,
		At:   t0.Add(time.Hour),
		Wallet: &WalletKPIs{
			HeroCount:  15,
			LPValueUSD: decimal.NewFromInt(6000),
		},
	}, th)

	if p.Archetype != ArchetypePlayer {
		t.Errorf("Archetype = %s, want PLAYER when heroes >= %d", p.Archetype, th.PlayerHeroMin)
	}
	if p.Tier < 1 {
		t.Errorf("Tier = %d, want >= 1 after $6000 portfolio", p.Tier)
	}
}

func TestCapitalHeavyHeroLightIsInvestor(t *testing.T) {
	th := &DefaultThresholds
	p := ProcessEvent(Profile{}, Event{
		Type: EventWalletScan,
		At:   t0,
		Wallet: &WalletKPIs{
			HeroCount:  3,
			LPValueUSD: decimal.NewFromInt(8000),
		},
	}, th)
	if p.Archetype != ArchetypeInvestor {
		t.Errorf("Archetype = %s, want INVESTOR (heroes <= %d, USD >= %s)",
			p.Archetype, th.InvestorHeroMax, th.InvestorUSDMin)
	}
}

func TestWhaleFlagAndTierFloor(t *testing.T) {
	th := &DefaultThresholds
	p := ProcessEvent(Profile{}, Event{
		Type:   EventWalletScan,
		At:     t0,
		Wallet: &WalletKPIs{HeroCount: 2, BalanceUSD: decimal.NewFromInt(60000)},
	}, th)
	if !p.Flags.IsWhale {
		t.Fatal("IsWhale not set at $60k")
	}
	if p.Tier < th.WhaleTierFloor {
		t.Errorf("Tier = %d, whale floor is %d", p.Tier, th.WhaleTierFloor)
	}
}

func TestExtractorOverridesEverything(t *testing.T) {
	th := &DefaultThresholds
	p := ProcessEvent(Profile{}, Event{
		Type:   EventWalletScan,
		At:     t0,
		Score:  0.9,
		Wallet: &WalletKPIs{HeroCount: 20, LPValueUSD: decimal.NewFromInt(30000)},
	}, th)
	if p.Archetype != ArchetypeExtractor {
		t.Errorf("Archetype = %s, want EXTRACTOR at score 0.9", p.Archetype)
	}
	if !p.Flags.IsExtractor {
		t.Error("IsExtractor flag not set")
	}
	if p.Intent != IntentInvestorExtractor {
		t.Errorf("Intent = %s, extractor score above %v must force INVESTOR_EXTRACTOR", p.Intent, th.ForceExtractor)
	}
}

func TestBridgeOutForcesExtractorIntent(t *testing.T) {
	th := &DefaultThresholds
	p := ProcessEvent(Profile{}, Event{
		Type:   EventWalletScan,
		At:     t0,
		Wallet: &WalletKPIs{HeroCount: 12, BridgeOutUSD: decimal.NewFromInt(5000)},
	}, th)
	if p.Intent != IntentInvestorExtractor {
		t.Errorf("Intent = %s, want forced INVESTOR_EXTRACTOR on heavy bridge-out", p.Intent)
	}
	if !hasTag(p.BehaviorTags, TagBridger) {
		t.Errorf("tags %v missing BRIDGER", p.BehaviorTags)
	}
}

func TestTierOverrideWins(t *testing.T) {
	th := &DefaultThresholds
	pin := 4
	p := Profile{TierOverride: &pin}
	p = ProcessEvent(p, Event{Type: EventSessionStart, At: t0}, th)
	if p.Tier != 4 {
		t.Errorf("Tier = %d, override must win", p.Tier)
	}
}

func TestRingBufferCaps(t *testing.T) {
	p := Profile{}
	for i := 0; i < ringSize+20; i++ {
		p = UpdateKPIs(p, Event{Type: EventDiscordMessage, Message: "msg", At: t0.Add(time.Duration(i) * time.Minute)})
	}
	if len(p.Recent) != ringSize {
		t.Fatalf("ring holds %d, cap is %d", len(p.Recent), ringSize)
	}
	// Oldest dropped, newest kept.
	if !p.Recent[len(p.Recent)-1].At.Equal(t0.Add(time.Duration(ringSize+19) * time.Minute)) {
		t.Error("newest message missing from ring")
	}
}

func TestPositiveSentimentReadsEngaged(t *testing.T) {
	th := &DefaultThresholds
	p := ProcessEvent(Profile{}, Event{Type: EventDiscordMessage, Message: "this update is awesome", At: t0}, th)
	if p.State != StateCurious {
		t.Fatalf("State = %s, one positive message must not flip ENGAGED", p.State)
	}
	p = ProcessEvent(p, Event{Type: EventDiscordMessage, Message: "thanks, love the new pets", At: t0.Add(time.Hour)}, th)
	if p.State != StateEngaged {
		t.Errorf("State = %s, want ENGAGED after repeated positive sentiment", p.State)
	}
}

func TestChurnKeywordsWin(t *testing.T) {
	th := &DefaultThresholds
	p := ProcessEvent(Profile{}, Event{Type: EventDiscordMessage, Message: "I'm done with this dead game", At: t0}, th)
	if p.State != StateChurned {
		t.Errorf("State = %s, want CHURNED on churn language", p.State)
	}
}

func TestRetentionStates(t *testing.T) {
	th := &DefaultThresholds
	base := ProcessEvent(Profile{}, Event{Type: EventSessionStart, At: t0}, th)

	drifting := ProcessEvent(base, Event{Type: EventRetentionUpdate, Score: 0.3, At: t0}, th)
	if drifting.State != StateDrifting {
		t.Errorf("State = %s, want DRIFTING at retention 0.3", drifting.State)
	}
	churned := ProcessEvent(base, Event{Type: EventRetentionUpdate, Score: 0.1, At: t0}, th)
	if churned.State != StateChurned {
		t.Errorf("State = %s, want CHURNED at retention 0.1", churned.State)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	th := &DefaultThresholds
	p := Profile{}
	events := []Event{
		{Type: EventDiscordMessage, Message: "what's the best apr pool?", At: t0},
		{Type: EventCommandUsed, At: t0.Add(time.Minute)},
		{Type: EventWalletScan, At: t0.Add(2 * time.Minute), Wallet: &WalletKPIs{HeroCount: 8, LPValueUSD: decimal.NewFromInt(2500), PoolCount: 3}},
		{Type: EventAdviceFollowed, At: t0.Add(3 * time.Minute)},
	}
	for _, e := range events {
		p = ProcessEvent(p, e, th)
	}
	again := Classify(p, th)
	if !reflect.DeepEqual(p, again) {
		t.Fatalf("Classify is not idempotent:\n first %+v\nsecond %+v", p, again)
	}
}

func TestProcessEventDoesNotMutateInput(t *testing.T) {
	th := &DefaultThresholds
	orig := ProcessEvent(Profile{}, Event{Type: EventDiscordMessage, Message: "hello", At: t0}, th)
	snapshot := ProcessEvent(orig, Event{Type: EventDiscordMessage, Message: "again", At: t0.Add(time.Minute)}, th)

	if len(orig.Recent) != 1 {
		t.Fatalf("input profile mutated: ring now has %d messages", len(orig.Recent))
	}
	if len(snapshot.Recent) != 2 {
		t.Fatalf("output ring has %d messages, want 2", len(snapshot.Recent))
	}
}
