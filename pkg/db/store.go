package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotPending          = errors.New("job is no longer pending")
	ErrWalletNotLinked     = errors.New("wallet is not linked to this player")
)

const schema = `
CREATE TABLE IF NOT EXISTS players (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id TEXT NOT NULL UNIQUE,
    display_name TEXT DEFAULT '',
    primary_wallet TEXT DEFAULT '',
    wallets TEXT DEFAULT '[]',
    first_seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    last_seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    profile_data TEXT DEFAULT '{}',
    status TEXT DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS wallet_snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    player_id INTEGER REFERENCES players(id),
    wallet TEXT NOT NULL,
    as_of_date TEXT NOT NULL,
    jewel TEXT DEFAULT '0',
    crystal TEXT DEFAULT '0',
    cjewel TEXT DEFAULT '0',
    UNIQUE(wallet, as_of_date)
);

CREATE TABLE IF NOT EXISTS jewel_balances (
    player_id INTEGER NOT NULL UNIQUE REFERENCES players(id),
    balance TEXT DEFAULT '0',
    lifetime_deposits TEXT DEFAULT '0',
    tier TEXT DEFAULT 'free',
    last_deposit_at TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS payment_jobs (
    id TEXT PRIMARY KEY,
    player_id INTEGER REFERENCES players(id),
    status TEXT NOT NULL DEFAULT 'pending',
    chain TEXT NOT NULL DEFAULT 'dfk',
    from_wallet TEXT NOT NULL,
    expected_amount TEXT NOT NULL,
    requested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    expires_at TIMESTAMP,
    start_block INTEGER DEFAULT 0,
    last_scanned_block INTEGER DEFAULT 0,
    tx_hash TEXT DEFAULT '',
    paid_amount TEXT DEFAULT '0',
    paid_at TIMESTAMP,
    error_message TEXT DEFAULT '',
    lp_snapshot TEXT DEFAULT '{}',
    report_payload TEXT DEFAULT ''
);

CREATE TABLE IF NOT EXISTS pricing_config (
    config_key TEXT NOT NULL UNIQUE,
    config_value TEXT NOT NULL,
    description TEXT DEFAULT '',
    updated_by TEXT DEFAULT '',
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_players_wallet ON players(primary_wallet);
CREATE INDEX IF NOT EXISTS idx_snapshot_wallet ON wallet_snapshots(wallet);
CREATE INDEX IF NOT EXISTS idx_job_status ON payment_jobs(status);
CREATE INDEX IF NOT EXISTS idx_job_player ON payment_jobs(player_id);
CREATE INDEX IF NOT EXISTS idx_job_expires ON payment_jobs(expires_at);
`

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ---- Players ----

// GetOrCreatePlayer looks a player up by chat ID, creating the row lazily on
// first interaction. The display name cache is refreshed on every call.
func (s *Store) GetOrCreatePlayer(chatID, displayName string) (*Player, error) {
	_, err := s.db.Exec(`
		INSERT INTO players (chat_id, display_name)
		VALUES (?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE players.display_name END,
			last_seen_at = CURRENT_TIMESTAMP`,
		chatID, displayName)
	if err != nil {
		return nil, err
	}
	return s.GetPlayerByChatID(chatID)
}

func (s *Store) GetPlayerByChatID(chatID string) (*Player, error) {
	return s.scanPlayer(s.db.QueryRow(
		`SELECT id, chat_id, display_name, primary_wallet, wallets, first_seen_at, last_seen_at, profile_data, status
		 FROM players WHERE chat_id=?`, chatID))
}

func (s *Store) GetPlayerByID(id int64) (*Player, error) {
	return s.scanPlayer(s.db.QueryRow(
		`SELECT id, chat_id, display_name, primary_wallet, wallets, first_seen_at, last_seen_at, profile_data, status
		 FROM players WHERE id=?`, id))
}

func (s *Store) scanPlayer(row *sql.Row) (*Player, error) {
	var p Player
	var wallets, status string
	if err := row.Scan(&p.ID, &p.ChatID, &p.DisplayName, &p.PrimaryWallet, &wallets,
		&p.FirstSeenAt, &p.LastSeenAt, &p.ProfileData, &status); err != nil {
		return nil, err
	}
	p.Status = PlayerStatus(status)
	if err := json.Unmarshal([]byte(wallets), &p.Wallets); err != nil {
		p.Wallets = nil
	}
	return &p, nil
}

// LinkWallet adds a lowercased wallet to the player's set. The first linked
// wallet becomes primary.
func (s *Store) LinkWallet(playerID int64, wallet string) error {
	wallet = strings.ToLower(wallet)
	p, err := s.GetPlayerByID(playerID)
	if err != nil {
		return err
	}
	for _, w := range p.Wallets {
		if w == wallet {
			return nil
		}
	}
	p.Wallets = append(p.Wallets, wallet)
	walletsJSON, _ := json.Marshal(p.Wallets)
	primary := p.PrimaryWallet
	if primary == "" {
		primary = wallet
	}
	_, err = s.db.Exec(`UPDATE players SET wallets=?, primary_wallet=? WHERE id=?`,
		string(walletsJSON), primary, playerID)
	return err
}

// SetPrimaryWallet enforces the membership invariant: the primary wallet must
// already be linked.
func (s *Store) SetPrimaryWallet(playerID int64, wallet string) error {
	wallet = strings.ToLower(wallet)
	p, err := s.GetPlayerByID(playerID)
	if err != nil {
		return err
	}
	found := false
	for _, w := range p.Wallets {
		if w == wallet {
			found = true
			break
		}
	}
	if !found {
		return ErrWalletNotLinked
	}
	_, err = s.db.Exec(`UPDATE players SET primary_wallet=? WHERE id=?`, wallet, playerID)
	return err
}

func (s *Store) UpdateProfileData(playerID int64, profileJSON string) error {
	_, err := s.db.Exec(`UPDATE players SET profile_data=? WHERE id=?`, profileJSON, playerID)
	return err
}

func (s *Store) TouchPlayer(playerID int64) error {
	_, err := s.db.Exec(`UPDATE players SET last_seen_at=CURRENT_TIMESTAMP WHERE id=?`, playerID)
	return err
}

// BanPlayer marks a player banned. Players are never hard-deleted.
func (s *Store) BanPlayer(playerID int64) error {
	_, err := s.db.Exec(`UPDATE players SET status='banned' WHERE id=?`, playerID)
	return err
}

// PlayersWithWallet returns active players that have a primary wallet: the
// population for the daily snapshot pass.
func (s *Store) PlayersWithWallet() ([]Player, error) {
	rows, err := s.db.Query(
		`SELECT id, chat_id, display_name, primary_wallet, wallets, first_seen_at, last_seen_at, profile_data, status
		 FROM players WHERE primary_wallet != '' AND status='active'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []Player
	for rows.Next() {
		var p Player
		var wallets, status string
		if err := rows.Scan(&p.ID, &p.ChatID, &p.DisplayName, &p.PrimaryWallet, &wallets,
			&p.FirstSeenAt, &p.LastSeenAt, &p.ProfileData, &status); err != nil {
			continue
		}
		p.Status = PlayerStatus(status)
		json.Unmarshal([]byte(wallets), &p.Wallets)
		players = append(players, p)
	}
	return players, nil
}

// ActivePlayersSince returns players last seen after the watermark, for the
// incremental ETL pass.
func (s *Store) ActivePlayersSince(since time.Time) ([]Player, error) {
	rows, err := s.db.Query(
		`SELECT id, chat_id, display_name, primary_wallet, wallets, first_seen_at, last_seen_at, profile_data, status
		 FROM players WHERE primary_wallet != '' AND status='active' AND last_seen_at > ?`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []Player
	for rows.Next() {
		var p Player
		var wallets, status string
		if err := rows.Scan(&p.ID, &p.ChatID, &p.DisplayName, &p.PrimaryWallet, &wallets,
			&p.FirstSeenAt, &p.LastSeenAt, &p.ProfileData, &status); err != nil {
			continue
		}
		p.Status = PlayerStatus(status)
		json.Unmarshal([]byte(wallets), &p.Wallets)
		players = append(players, p)
	}
	return players, nil
}

// ---- Stats ----

func (s *Store) GetStats() (map[string]int64, error) {
	stats := map[string]int64{}
	tables := []string{"players", "wallet_snapshots", "jewel_balances", "payment_jobs"}

	for _, t := range tables {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&count); err == nil {
			stats[t] = count
		}
	}

	var open int64
	s.db.QueryRow(`SELECT COUNT(*) FROM payment_jobs WHERE status IN ('pending','payment_verified','processing')`).Scan(&open)
	stats["open_jobs"] = open

	return stats, nil
}
