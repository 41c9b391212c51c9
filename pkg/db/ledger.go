package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ---- Jewel Balance Ledger ----
// The database is the single source of truth for balances. Every operation
// runs inside one transaction; sqlite's IMMEDIATE lock stands in for a row
// lock, serializing writers across the whole ledger.

func (s *Store) GetBalance(playerID int64) (*JewelBalance, error) {
	var b JewelBalance
	var bal, life, tier string
	var lastDep sql.NullTime
	err := s.db.QueryRow(`
		SELECT player_id, balance, lifetime_deposits, tier, last_deposit_at, updated_at
		FROM jewel_balances WHERE player_id=?`, playerID).
		Scan(&b.PlayerID, &bal, &life, &tier, &lastDep, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return &JewelBalance{PlayerID: playerID, Balance: decimal.Zero, LifetimeDeposits: decimal.Zero, Tier: TierFree}, nil
	}
	if err != nil {
		return nil, err
	}
	b.Tier = Tier(tier)
	if lastDep.Valid {
		b.LastDepositAt = lastDep.Time
	}
	if b.Balance, err = decimal.NewFromString(bal); err != nil {
		return nil, fmt.Errorf("ledger %d: bad balance %q: %w", playerID, bal, err)
	}
	if b.LifetimeDeposits, err = decimal.NewFromString(life); err != nil {
		return nil, fmt.Errorf("ledger %d: bad lifetime %q: %w", playerID, life, err)
	}
	return &b, nil
}

// Credit adds to the player's balance, bumps lifetime deposits, and recomputes
// the tier. Creates the ledger row on first deposit.
func (s *Store) Credit(playerID int64, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("credit amount must be positive, got %s", amount)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := creditInTx(tx, playerID, amount, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

func creditInTx(tx *sql.Tx, playerID int64, amount decimal.Decimal, now time.Time) error {
	var bal, life string
	err := tx.QueryRow(`SELECT balance, lifetime_deposits FROM jewel_balances WHERE player_id=?`, playerID).Scan(&bal, &life)
	balance, lifetime := decimal.Zero, decimal.Zero
	if err == nil {
		if balance, err = decimal.NewFromString(bal); err != nil {
			return err
		}
		if lifetime, err = decimal.NewFromString(life); err != nil {
			return err
		}
	} else if err != sql.ErrNoRows {
		return err
	}

	balance = balance.Add(amount)
	lifetime = lifetime.Add(amount)
	tier := TierFor(lifetime)

	_, err = tx.Exec(`
		INSERT INTO jewel_balances (player_id, balance, lifetime_deposits, tier, last_deposit_at, updated_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(player_id) DO UPDATE SET
			balance=excluded.balance,
			lifetime_deposits=excluded.lifetime_deposits,
			tier=excluded.tier,
			last_deposit_at=excluded.last_deposit_at,
			updated_at=excluded.updated_at`,
		playerID, balance.String(), lifetime.String(), string(tier), now, now)
	return err
}

// Debit removes from the player's balance. Fails with ErrInsufficientBalance
// without deducting when the balance does not cover the amount. Lifetime
// deposits and tier are untouched.
func (s *Store) Debit(playerID int64, amount decimal.Decimal, reason string) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("debit amount must be positive, got %s", amount)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var bal string
	err = tx.QueryRow(`SELECT balance FROM jewel_balances WHERE player_id=?`, playerID).Scan(&bal)
	if err == sql.ErrNoRows {
		return ErrInsufficientBalance
	}
	if err != nil {
		return err
	}
	balance, err := decimal.NewFromString(bal)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return ErrInsufficientBalance
	}

	_, err = tx.Exec(`UPDATE jewel_balances SET balance=?, updated_at=? WHERE player_id=?`,
		balance.Sub(amount).String(), time.Now().UTC(), playerID)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// RecordDeposit credits the ledger and flips a deposit job pending ->
// completed in one transaction. Idempotent: a job that already advanced is
// treated as processed and the call succeeds without crediting again.
func (s *Store) RecordDeposit(jobID string, playerID int64, amount decimal.Decimal, txHash string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.Exec(`
		UPDATE payment_jobs
		SET status='completed', tx_hash=?, paid_amount=?, paid_at=?
		WHERE id=? AND status='pending'`,
		txHash, amount.String(), now, jobID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// Already processed: success-no-op, do not double-credit.
		return nil
	}

	if err := creditInTx(tx, playerID, amount, now); err != nil {
		return err
	}
	return tx.Commit()
}
