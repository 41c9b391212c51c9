package db

import (
	"errors"
	"testing"
)

func TestGetOrCreatePlayerIsLazy(t *testing.T) {
	s := testStore(t)
	a, err := s.GetOrCreatePlayer("chat-9", "Alice")
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.GetOrCreatePlayer("chat-9", "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID {
		t.Fatalf("same chat id created two players: %d and %d", a.ID, b.ID)
	}
}

func TestLinkWalletFirstBecomesPrimary(t *testing.T) {
	s := testStore(t)
	p := testPlayer(t, s)

	if err := s.LinkWallet(p.ID, "0xAAAA000000000000000000000000000000000001"); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkWallet(p.ID, "0xBBBB000000000000000000000000000000000002"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetPlayerByID(p.ID)
	if got.PrimaryWallet != "0xaaaa000000000000000000000000000000000001" {
		t.Errorf("primary = %s, first linked (lowercased) wallet must become primary", got.PrimaryWallet)
	}
	if len(got.Wallets) != 2 {
		t.Errorf("wallets = %v, want 2", got.Wallets)
	}

	// Relinking is a no-op.
	if err := s.LinkWallet(p.ID, "0xaaaa000000000000000000000000000000000001"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetPlayerByID(p.ID)
	if len(got.Wallets) != 2 {
		t.Errorf("relink duplicated the wallet set: %v", got.Wallets)
	}
}

func TestSetPrimaryRequiresMembership(t *testing.T) {
	s := testStore(t)
	p := testPlayer(t, s)
	s.LinkWallet(p.ID, "0xaaaa000000000000000000000000000000000001")

	err := s.SetPrimaryWallet(p.ID, "0xcccc000000000000000000000000000000000003")
	if !errors.Is(err, ErrWalletNotLinked) {
		t.Fatalf("err = %v, want ErrWalletNotLinked", err)
	}
	if err := s.SetPrimaryWallet(p.ID, "0xAAAA000000000000000000000000000000000001"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetPlayerByID(p.ID)
	if got.PrimaryWallet != "0xaaaa000000000000000000000000000000000001" {
		t.Errorf("primary = %s", got.PrimaryWallet)
	}
}

func TestBanPlayerKeepsRow(t *testing.T) {
	s := testStore(t)
	p := testPlayer(t, s)
	if err := s.BanPlayer(p.ID); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetPlayerByID(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != PlayerBanned {
		t.Errorf("status = %s, want banned", got.Status)
	}
}
