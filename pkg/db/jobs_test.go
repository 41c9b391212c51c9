package db

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dfk-companion/pkg/config"
)

func makeJob(t *testing.T, s *Store, p *Player, expiresIn time.Duration) *PaymentJob {
	t.Helper()
	job := &PaymentJob{
		ID: NewJobID(), PlayerID: p.ID, Chain: config.ChainDFK,
		FromWallet:     "0xABCDEF0123456789abcdef0123456789ABCDEF01",
		ExpectedAmount: d("25"),
		RequestedAt:    time.Now(), ExpiresAt: time.Now().Add(expiresIn),
		StartBlock: 1000, LastScannedBlock: 1000, LPSnapshot: "[]",
	}
	if err := s.CreateJob(job); err != nil {
		t.Fatal(err)
	}
	return job
}

func TestCreateJobLowercasesWallet(t *testing.T) {
	s := testStore(t)
	p := testPlayer(t, s)
	job := makeJob(t, s, p, time.Hour)
	got, err := s.GetJob(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.FromWallet != strings.ToLower(job.FromWallet) {
		t.Errorf("stored wallet %s, want lowercased", got.FromWallet)
	}
	if got.Chain != config.ChainDFK {
		t.Errorf("chain = %s, want dfk", got.Chain)
	}
}

func TestGuardedVerifyTransition(t *testing.T) {
	s := testStore(t)
	p := testPlayer(t, s)
	job := makeJob(t, s, p, time.Hour)

	if err := s.MarkVerified(job.ID, "0xtx", d("25"), time.Now()); err != nil {
		t.Fatal(err)
	}
	// A second detection loses the guard.
	err := s.MarkVerified(job.ID, "0xtx2", d("25"), time.Now())
	if !errors.Is(err, ErrNotPending) {
		t.Fatalf("double verify err = %v, want ErrNotPending", err)
	}
	got, _ := s.GetJob(job.ID)
	if got.TxHash != "0xtx" {
		t.Errorf("tx hash = %s, first writer must win", got.TxHash)
	}
}

func TestClaimForProcessingRace(t *testing.T) {
	s := testStore(t)
	p := testPlayer(t, s)
	job := makeJob(t, s, p, time.Hour)
	if err := s.MarkVerified(job.ID, "0xtx", d("25"), time.Now()); err != nil {
		t.Fatal(err)
	}

	first, err := s.ClaimForProcessing(job.ID)
	if err != nil || !first {
		t.Fatalf("first claim = %v, %v; want true", first, err)
	}
	second, err := s.ClaimForProcessing(job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if second {
		t.Fatal("second claim must lose")
	}
}

func TestCompleteRequiresProcessing(t *testing.T) {
	s := testStore(t)
	p := testPlayer(t, s)
	job := makeJob(t, s, p, time.Hour)
	if err := s.CompleteJob(job.ID, "{}"); err == nil {
		t.Fatal("completing a pending job must fail")
	}
	s.MarkVerified(job.ID, "0xtx", d("25"), time.Now())
	s.ClaimForProcessing(job.ID)
	if err := s.CompleteJob(job.ID, `{"ok":true}`); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetJob(job.ID)
	if got.ReportPayload != `{"ok":true}` {
		t.Errorf("report payload = %q", got.ReportPayload)
	}
}

func TestExpireJobsSweep(t *testing.T) {
	s := testStore(t)
	p := testPlayer(t, s)
	stale := makeJob(t, s, p, -time.Minute)
	fresh := makeJob(t, s, p, time.Hour)
	verified := makeJob(t, s, p, -time.Minute)
	s.MarkVerified(verified.ID, "0xtx", d("25"), time.Now())

	ids, err := s.ExpireJobs(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != stale.ID {
		t.Fatalf("expired %v, want exactly [%s]", ids, stale.ID)
	}
	got, _ := s.GetJob(stale.ID)
	if got.Status != JobExpired {
		t.Errorf("stale job status = %s, want expired", got.Status)
	}
	got, _ = s.GetJob(fresh.ID)
	if got.Status != JobPending {
		t.Errorf("fresh job status = %s, must stay pending", got.Status)
	}
	got, _ = s.GetJob(verified.ID)
	if got.Status != JobPaymentVerified {
		t.Errorf("verified job status = %s, expiry only touches pending", got.Status)
	}
}

func TestOpenJobForPlayer(t *testing.T) {
	s := testStore(t)
	p := testPlayer(t, s)
	if _, err := s.OpenJobForPlayer(p.ID); err == nil {
		t.Fatal("no open job should be an error, not a zero job")
	}
	job := makeJob(t, s, p, time.Hour)
	open, err := s.OpenJobForPlayer(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if open.ID != job.ID {
		t.Errorf("open job = %s, want %s", open.ID, job.ID)
	}
}

func TestNewJobIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := NewJobID()
		if !strings.HasPrefix(id, "pay_") {
			t.Fatalf("id %q missing prefix", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
