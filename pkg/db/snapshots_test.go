package db

import (
	"testing"
	"time"
)

func TestSnapshotDate(t *testing.T) {
	ts := time.Date(2025, 6, 1, 23, 59, 0, 0, time.FixedZone("KST", 9*3600))
	if got := SnapshotDate(ts); got != "2025-06-01" {
		t.Errorf("SnapshotDate = %s, want UTC date 2025-06-01", got)
	}
}

func TestUpsertSnapshotIdempotent(t *testing.T) {
	s := testStore(t)
	p := testPlayer(t, s)

	snap := &WalletSnapshot{
		PlayerID: p.ID, Wallet: "0xaaa", AsOfDate: "2025-06-01",
		Jewel: d("100.5"), Crystal: d("2000"), CJewel: d("50"),
	}
	if err := s.UpsertSnapshot(snap); err != nil {
		t.Fatal(err)
	}

	// A crashed pass re-running the same day must not duplicate or clobber.
	dup := *snap
	dup.Jewel = d("999")
	if err := s.UpsertSnapshot(&dup); err != nil {
		t.Fatal(err)
	}

	rows, err := s.SnapshotsForWallet("0xaaa", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows for the day, want 1", len(rows))
	}
	if !rows[0].Jewel.Equal(d("100.5")) {
		t.Errorf("jewel = %s, first write must stand", rows[0].Jewel)
	}

	has, err := s.HasSnapshot("0xaaa", "2025-06-01")
	if err != nil || !has {
		t.Fatalf("HasSnapshot = %v, %v; want true", has, err)
	}
	has, _ = s.HasSnapshot("0xaaa", "2025-06-02")
	if has {
		t.Error("next day must not report a snapshot")
	}
}

func TestSnapshotsForWalletOrdering(t *testing.T) {
	s := testStore(t)
	p := testPlayer(t, s)
	for _, day := range []string{"2025-06-01", "2025-06-03", "2025-06-02"} {
		err := s.UpsertSnapshot(&WalletSnapshot{PlayerID: p.ID, Wallet: "0xbbb", AsOfDate: day, Jewel: d("1")})
		if err != nil {
			t.Fatal(err)
		}
	}
	rows, err := s.SnapshotsForWallet("0xbbb", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].AsOfDate != "2025-06-03" {
		t.Fatalf("rows = %+v, want newest first limited to 2", rows)
	}
}
