package payments

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dfk-companion/pkg/chain"
	"github.com/dfk-companion/pkg/config"
	"github.com/dfk-companion/pkg/db"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestMatches(t *testing.T) {
	epsilon := dec("0.1")
	job := &db.PaymentJob{
		ID:             "pay_test",
		Chain:          config.ChainDFK,
		FromWallet:     "0xabc123def456abc123def456abc123def456abcd",
		ExpectedAmount: dec("25"),
	}

	cases := []struct {
		name   string
		from   string
		amount string
		want   bool
	}{
		{"exact amount", job.FromWallet, "25", true},
		{"slightly under within epsilon", job.FromWallet, "24.95", true},
		{"slightly over within epsilon", job.FromWallet, "25.08", true},
		{"boundary exactly epsilon", job.FromWallet, "24.9", true},
		{"under beyond epsilon", job.FromWallet, "24.89", false},
		{"over beyond epsilon", job.FromWallet, "25.11", false},
		{"checksummed sender still matches", "0xABC123DEF456abc123def456ABC123def456ABCD", "25", true},
		{"foreign sender", "0x9999999999999999999999999999999999999999", "25", false},
		{"zero amount", job.FromWallet, "0", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := &chain.Transfer{From: tc.from, Amount: dec(tc.amount)}
			if got := Matches(tr, job, epsilon); got != tc.want {
				t.Errorf("Matches(from=%s amount=%s) = %v, want %v", tc.from, tc.amount, got, tc.want)
			}
		})
	}
}

func TestMatchesExactDecimalBoundary(t *testing.T) {
	// 0.1 epsilon must behave exactly at the boundary; float math would
	// wobble here.
	job := &db.PaymentJob{FromWallet: "0xaa", ExpectedAmount: dec("0.3")}
	tr := &chain.Transfer{From: "0xaa", Amount: dec("0.2")}
	if !Matches(tr, job, dec("0.1")) {
		t.Fatal("|0.2 - 0.3| should equal epsilon exactly")
	}
	tr.Amount = dec("0.19999999")
	if Matches(tr, job, dec("0.1")) {
		t.Fatal("amount just past epsilon should not match")
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry(nil)
	job := &db.PaymentJob{ID: "pay_1", PlayerID: 7}
	r.Add(job)
	if got, ok := r.Get("pay_1"); !ok || got.PlayerID != 7 {
		t.Fatalf("Get after Add = %+v, %v", got, ok)
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	r.Remove("pay_1")
	if _, ok := r.Get("pay_1"); ok {
		t.Fatal("job still present after Remove")
	}
	r.Remove("pay_1") // idempotent
}
