package optimizer

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dfk-companion/pkg/chain"
	"github.com/dfk-companion/pkg/config"
	"github.com/dfk-companion/pkg/payments"
	"github.com/dfk-companion/pkg/pools"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func hero(id int64, skill, stamina int) chain.Hero {
	return chain.Hero{ID: id, Gardening: skill, Stamina: stamina, MaxStamina: 25}
}

func pool(pid uint64, pair, best string) pools.Pool {
	return pools.Pool{
		Chain: config.ChainDFK, PID: pid, Pair: pair, Priced: true,
		FeeAPR: dec("2"), EmissionAPR: dec("10"),
		QuestAPRWorst: dec("1"), QuestAPRBest: dec(best),
	}
}

func TestBuildPlanOrdersBySkillAndPool(t *testing.T) {
	heroes := []chain.Hero{hero(3, 50, 25), hero(1, 200, 25), hero(2, 120, 25)}
	ps := []pools.Pool{pool(5, "JEWEL-USDC", "8"), pool(9, "CRYSTAL-JEWEL", "15")}

	plan := BuildPlan("0xwallet", heroes, ps, nil)

	if len(plan.Assignments) != 3 {
		t.Fatalf("got %d assignments, want 3", len(plan.Assignments))
	}
	// Strongest two gardeners take the higher-APR pool, third spills over.
	if plan.Assignments[0].HeroID != 1 || plan.Assignments[0].Pool != "CRYSTAL-JEWEL" {
		t.Errorf("slot 0 = hero %d in %s, want hero 1 in CRYSTAL-JEWEL", plan.Assignments[0].HeroID, plan.Assignments[0].Pool)
	}
	if plan.Assignments[1].HeroID != 2 || plan.Assignments[1].Pool != "CRYSTAL-JEWEL" {
		t.Errorf("slot 1 = hero %d in %s", plan.Assignments[1].HeroID, plan.Assignments[1].Pool)
	}
	if plan.Assignments[2].HeroID != 3 || plan.Assignments[2].Pool != "JEWEL-USDC" {
		t.Errorf("slot 2 = hero %d in %s", plan.Assignments[2].HeroID, plan.Assignments[2].Pool)
	}
}

func TestBuildPlanTieBreaksByLowestHeroID(t *testing.T) {
	heroes := []chain.Hero{hero(42, 100, 25), hero(7, 100, 25), hero(13, 100, 25)}
	ps := []pools.Pool{pool(1, "JEWEL-USDC", "10")}

	plan := BuildPlan("0xwallet", heroes, ps, nil)
	if len(plan.Assignments) != 2 {
		t.Fatalf("one pool holds two slots, got %d assignments", len(plan.Assignments))
	}
	if plan.Assignments[0].HeroID != 7 || plan.Assignments[1].HeroID != 13 {
		t.Errorf("equal scores must break ties by lowest ID, got %d then %d",
			plan.Assignments[0].HeroID, plan.Assignments[1].HeroID)
	}
}

func TestBuildPlanSkipsBusyAndTiredHeroes(t *testing.T) {
	questing := hero(1, 300, 25)
	questing.CurrentQuest = "0x1111111111111111111111111111111111111111"
	tired := hero(2, 300, 3)
	fresh := hero(3, 100, 25)

	plan := BuildPlan("0xwallet", []chain.Hero{questing, tired, fresh},
		[]pools.Pool{pool(1, "JEWEL-USDC", "10")}, nil)

	if plan.SkippedHeroes != 2 {
		t.Errorf("SkippedHeroes = %d, want 2", plan.SkippedHeroes)
	}
	if len(plan.Assignments) != 1 || plan.Assignments[0].HeroID != 3 {
		t.Fatalf("only the fresh hero should be assigned, got %+v", plan.Assignments)
	}
}

func TestBuildPlanIgnoresUnpricedPools(t *testing.T) {
	unpriced := pool(1, "GHOST-PAIR", "99")
	unpriced.Priced = false
	plan := BuildPlan("0xwallet", []chain.Hero{hero(1, 100, 25)},
		[]pools.Pool{unpriced, pool(2, "JEWEL-USDC", "5")}, nil)

	if len(plan.Assignments) != 1 || plan.Assignments[0].Pool != "JEWEL-USDC" {
		t.Fatalf("unpriced pool must never be recommended, got %+v", plan.Assignments)
	}
}

func TestBuildPlanCapsAtTenHeroes(t *testing.T) {
	var heroes []chain.Hero
	for i := int64(1); i <= 15; i++ {
		heroes = append(heroes, hero(i, 100, 25))
	}
	ps := []pools.Pool{pool(1, "A-B", "10"), pool(2, "C-D", "9"), pool(3, "E-F", "8"),
		pool(4, "G-H", "7"), pool(5, "I-J", "6"), pool(6, "K-L", "5")}

	plan := BuildPlan("0xwallet", heroes, ps, nil)
	if len(plan.Assignments) != maxAssignedHeroes {
		t.Fatalf("got %d assignments, want cap of %d", len(plan.Assignments), maxAssignedHeroes)
	}
}

func TestBuildPlanImprovementMetrics(t *testing.T) {
	positions := []payments.LPPosition{
		{Chain: config.ChainDFK, PID: 5, Pair: "JEWEL-USDC", Staked: dec("10"), ValueUSD: dec("1000")},
	}
	low := pool(5, "JEWEL-USDC", "8") // current position: 12% combined APR
	high := pool(9, "CRYSTAL-JEWEL", "15")
	high.FeeAPR = dec("5")
	high.EmissionAPR = dec("25") // 30% combined

	plan := BuildPlan("0xwallet", []chain.Hero{hero(1, 100, 25)}, []pools.Pool{low, high}, positions)

	if !plan.CurrentAPR.Equal(dec("12")) {
		t.Errorf("CurrentAPR = %s, want 12", plan.CurrentAPR)
	}
	if !plan.OptimizedAPR.Equal(dec("30")) {
		t.Errorf("OptimizedAPR = %s, want 30", plan.OptimizedAPR)
	}
	if !plan.DeltaAPR.Equal(dec("18")) {
		t.Errorf("DeltaAPR = %s, want 18", plan.DeltaAPR)
	}
	if !plan.AnnualGainUSD.Equal(dec("180")) {
		t.Errorf("AnnualGainUSD = %s, want 180 (18%% of $1000)", plan.AnnualGainUSD)
	}
}

func TestBuildPlanPetBonusOutranksRawSkill(t *testing.T) {
	withPet := hero(2, 100, 25)
	withPet.PetBonus = 50     // (10 + 10.0) x 1.5 = 30
	noPet := hero(1, 150, 25) // 10 + 15.0 = 25
	ps := []pools.Pool{pool(1, "JEWEL-USDC", "10")}

	plan := BuildPlan("0xwallet", []chain.Hero{noPet, withPet}, ps, nil)
	if len(plan.Assignments) != 2 {
		t.Fatalf("got %d assignments, want 2", len(plan.Assignments))
	}
	if plan.Assignments[0].HeroID != 2 {
		t.Errorf("slot 0 = hero %d, pet-boosted hero must rank first", plan.Assignments[0].HeroID)
	}
	if !plan.Assignments[0].Score.Equal(dec("30")) {
		t.Errorf("pet-boosted score = %s, want 30", plan.Assignments[0].Score)
	}
}

func TestBuildPlanDeterministic(t *testing.T) {
	heroes := []chain.Hero{hero(5, 80, 25), hero(2, 80, 25), hero(9, 140, 25)}
	ps := []pools.Pool{pool(3, "A-B", "9"), pool(1, "C-D", "9"), pool(7, "E-F", "4")}

	a, _ := json.Marshal(BuildPlan("0xw", heroes, ps, nil))
	b, _ := json.Marshal(BuildPlan("0xw", heroes, ps, nil))
	if string(a) != string(b) {
		t.Fatal("identical inputs must produce byte-identical plans")
	}
}
