package db

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotDate formats a timestamp as the UTC-midnight snapshot key.
func SnapshotDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// UpsertSnapshot writes one (wallet, date) row. Re-running the daily pipeline
// for the same date is a no-op: historical rows are never mutated.
func (s *Store) UpsertSnapshot(snap *WalletSnapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO wallet_snapshots (player_id, wallet, as_of_date, jewel, crystal, cjewel)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(wallet, as_of_date) DO NOTHING`,
		snap.PlayerID, snap.Wallet, snap.AsOfDate,
		snap.Jewel.String(), snap.Crystal.String(), snap.CJewel.String())
	return err
}

func (s *Store) HasSnapshot(wallet, asOfDate string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM wallet_snapshots WHERE wallet=? AND as_of_date=?`,
		wallet, asOfDate).Scan(&n)
	return n > 0, err
}

func (s *Store) SnapshotsForWallet(wallet string, limit int) ([]WalletSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT id, player_id, wallet, as_of_date, jewel, crystal, cjewel
		FROM wallet_snapshots WHERE wallet=? ORDER BY as_of_date DESC LIMIT ?`, wallet, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []WalletSnapshot
	for rows.Next() {
		var snap WalletSnapshot
		var jewel, crystal, cjewel string
		if err := rows.Scan(&snap.ID, &snap.PlayerID, &snap.Wallet, &snap.AsOfDate,
			&jewel, &crystal, &cjewel); err != nil {
			continue
		}
		var perr error
		if snap.Jewel, perr = decimal.NewFromString(jewel); perr != nil {
			return nil, fmt.Errorf("snapshot %d: bad jewel %q: %w", snap.ID, jewel, perr)
		}
		if snap.Crystal, perr = decimal.NewFromString(crystal); perr != nil {
			return nil, fmt.Errorf("snapshot %d: bad crystal %q: %w", snap.ID, crystal, perr)
		}
		if snap.CJewel, perr = decimal.NewFromString(cjewel); perr != nil {
			return nil, fmt.Errorf("snapshot %d: bad cjewel %q: %w", snap.ID, cjewel, perr)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// ---- Pricing config ----

func (s *Store) GetPricingConfig(key string) (*PricingConfigRow, error) {
	var r PricingConfigRow
	err := s.db.QueryRow(`
		SELECT config_key, config_value, description, updated_by, updated_at
		FROM pricing_config WHERE config_key=?`, key).
		Scan(&r.ConfigKey, &r.ConfigValue, &r.Description, &r.UpdatedBy, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) SetPricingConfig(key, valueJSON, description, updatedBy string) error {
	_, err := s.db.Exec(`
		INSERT INTO pricing_config (config_key, config_value, description, updated_by, updated_at)
		VALUES (?,?,?,?,CURRENT_TIMESTAMP)
		ON CONFLICT(config_key) DO UPDATE SET
			config_value=excluded.config_value,
			description=excluded.description,
			updated_by=excluded.updated_by,
			updated_at=CURRENT_TIMESTAMP`,
		key, valueJSON, description, updatedBy)
	return err
}
