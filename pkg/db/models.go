package db

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dfk-companion/pkg/config"
)

// ---- Core Models ----

type PlayerStatus string

const (
	PlayerActive PlayerStatus = "active"
	PlayerBanned PlayerStatus = "banned"
)

type Player struct {
	ID            int64        `json:"id"`
	ChatID        string       `json:"chat_id"`
	DisplayName   string       `json:"display_name"`
	PrimaryWallet string       `json:"primary_wallet"` // must be a member of Wallets
	Wallets       []string     `json:"wallets"`        // lowercased hex addresses
	FirstSeenAt   time.Time    `json:"first_seen_at"`
	LastSeenAt    time.Time    `json:"last_seen_at"`
	ProfileData   string       `json:"profile_data"` // JSON: classification vector + dfkSnapshot
	Status        PlayerStatus `json:"status"`
}

type WalletSnapshot struct {
	ID       int64           `json:"id"`
	PlayerID int64           `json:"player_id"`
	Wallet   string          `json:"wallet"`
	AsOfDate string          `json:"as_of_date"` // UTC midnight, "2006-01-02"
	Jewel    decimal.Decimal `json:"jewel"`
	Crystal  decimal.Decimal `json:"crystal"`
	CJewel   decimal.Decimal `json:"cjewel"`
}

type Tier string

const (
	TierFree   Tier = "free"   // lifetime < 100
	TierBronze Tier = "bronze" // < 500
	TierSilver Tier = "silver" // < 2000
	TierGold   Tier = "gold"   // < 10000
	TierWhale  Tier = "whale"  // >= 10000
)

// TierFor maps lifetime deposits to a tier. Thresholds are in whole JEWEL.
func TierFor(lifetime decimal.Decimal) Tier {
	switch {
	case lifetime.LessThan(decimal.NewFromInt(100)):
		return TierFree
	case lifetime.LessThan(decimal.NewFromInt(500)):
		return TierBronze
	case lifetime.LessThan(decimal.NewFromInt(2000)):
		return TierSilver
	case lifetime.LessThan(decimal.NewFromInt(10000)):
		return TierGold
	default:
		return TierWhale
	}
}

type JewelBalance struct {
	PlayerID         int64           `json:"player_id"`
	Balance          decimal.Decimal `json:"balance"`
	LifetimeDeposits decimal.Decimal `json:"lifetime_deposits"`
	Tier             Tier            `json:"tier"`
	LastDepositAt    time.Time       `json:"last_deposit_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type JobStatus string

const (
	JobPending         JobStatus = "pending"
	JobPaymentVerified JobStatus = "payment_verified"
	JobProcessing      JobStatus = "processing"
	JobCompleted       JobStatus = "completed"
	JobFailed          JobStatus = "failed"
	JobExpired         JobStatus = "expired"
)

type PaymentJob struct {
	ID               string          `json:"id"`
	PlayerID         int64           `json:"player_id"`
	Status           JobStatus       `json:"status"`
	Chain            config.Chain    `json:"chain"`
	FromWallet       string          `json:"from_wallet"` // lowercased
	ExpectedAmount   decimal.Decimal `json:"expected_amount"`
	RequestedAt      time.Time       `json:"requested_at"`
	ExpiresAt        time.Time       `json:"expires_at"`
	StartBlock       uint64          `json:"start_block"`
	LastScannedBlock uint64          `json:"last_scanned_block"`
	TxHash           string          `json:"tx_hash"`
	PaidAmount       decimal.Decimal `json:"paid_amount"`
	PaidAt           time.Time       `json:"paid_at"`
	ErrorMessage     string          `json:"error_message"`
	LPSnapshot       string          `json:"lp_snapshot"`    // JSON: positions at request time
	ReportPayload    string          `json:"report_payload"` // JSON: final report, set on completion
}

type PricingConfigRow struct {
	ConfigKey   string    `json:"config_key"` // "base_rates" | "modifiers"
	ConfigValue string    `json:"config_value"`
	Description string    `json:"description"`
	UpdatedBy   string    `json:"updated_by"`
	UpdatedAt   time.Time `json:"updated_at"`
}
