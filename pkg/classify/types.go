// Package classify maintains the player's behavioral profile: a pure
// reclassifier over wallet facts and chat activity. Nothing in here touches
// the network or the database.
package classify

import (
	"time"

	"github.com/shopspring/decimal"
)

type Archetype string

const (
	ArchetypeGuest     Archetype = "GUEST"     // no assets, barely present
	ArchetypeCasual    Archetype = "CASUAL"    // a few heroes, small balances
	ArchetypePlayer    Archetype = "PLAYER"    // meaningful hero roster
	ArchetypeInvestor  Archetype = "INVESTOR"  // capital-heavy, hero-light
	ArchetypeDegen     Archetype = "DEGEN"     // large positions, high churn
	ArchetypeExtractor Archetype = "EXTRACTOR" // value flows out, not in
)

type IntentArchetype string

const (
	IntentCasualPlayer      IntentArchetype = "CASUAL_PLAYER"
	IntentStrategist        IntentArchetype = "STRATEGIST"
	IntentYieldFarmer       IntentArchetype = "YIELD_FARMER"
	IntentCollector         IntentArchetype = "COLLECTOR"
	IntentInvestorExtractor IntentArchetype = "INVESTOR_EXTRACTOR"
)

func intentAxes() []IntentArchetype {
	return []IntentArchetype{IntentCasualPlayer, IntentStrategist, IntentYieldFarmer, IntentCollector, IntentInvestorExtractor}
}

type State string

const (
	StateCurious   State = "CURIOUS"
	StateEngaged   State = "ENGAGED"
	StateCommitted State = "COMMITTED"
	StateDrifting  State = "DRIFTING"
	StateChurned   State = "CHURNED"
)

type BehaviorTag string

const (
	TagNewcomer     BehaviorTag = "NEWCOMER"
	TagVeteran      BehaviorTag = "VETERAN"
	TagGardener     BehaviorTag = "GARDENER"
	TagQuester      BehaviorTag = "QUESTER"
	TagTrader       BehaviorTag = "TRADER"
	TagHolder       BehaviorTag = "HOLDER"
	TagSocial       BehaviorTag = "SOCIAL"
	TagLurker       BehaviorTag = "LURKER"
	TagOptimizer    BehaviorTag = "OPTIMIZER"
	TagRiskTaker    BehaviorTag = "RISK_TAKER"
	TagBridger      BehaviorTag = "BRIDGER"
	TagPetCollector BehaviorTag = "PET_COLLECTOR"
)

type EventType string

const (
	EventWalletScan       EventType = "WALLET_SCAN"
	EventDiscordMessage   EventType = "DISCORD_MESSAGE"
	EventSessionStart     EventType = "SESSION_START"
	EventAdviceFollowed   EventType = "ADVICE_FOLLOWED"
	EventRecommendClicked EventType = "RECOMMENDATION_CLICKED"
	EventCommandUsed      EventType = "COMMAND_USED"
	EventSubUpgrade       EventType = "SUBSCRIPTION_UPGRADE"
	EventRetentionUpdate  EventType = "RETENTION_UPDATE"
)

// Message is one chat message retained in the profile's ring buffer.
type Message struct {
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// WalletKPIs are the on-chain facts a WALLET_SCAN event refreshes. USD
// values stay decimal end to end; scoring converts to float at the last
// moment.
type WalletKPIs struct {
	HeroCount    int             `json:"hero_count"`
	Gen0Count    int             `json:"gen0_count"`
	MaxHeroLevel int             `json:"max_hero_level"`
	PetCount     int             `json:"pet_count"`
	LPValueUSD   decimal.Decimal `json:"lp_value_usd"`
	BalanceUSD   decimal.Decimal `json:"balance_usd"` // liquid JEWEL+CRYSTAL value
	CJewelUSD    decimal.Decimal `json:"cjewel_usd"`
	BridgeOutUSD decimal.Decimal `json:"bridge_out_usd"` // trailing 30d
	PoolCount    int             `json:"pool_count"`     // distinct staked pools
	TradeCount30 int             `json:"trade_count_30"` // swaps in trailing 30d
}

// TotalUSD is the whale measure: everything the wallet holds.
func (k *WalletKPIs) TotalUSD() decimal.Decimal {
	return k.LPValueUSD.Add(k.BalanceUSD).Add(k.CJewelUSD)
}

// Flags are the boolean gates derived before tiering.
type Flags struct {
	IsWhale         bool `json:"is_whale"`
	IsExtractor     bool `json:"is_extractor"`
	IsHighPotential bool `json:"is_high_potential"` // engaged but broke
}

// Profile is the full classification record, serialized into the player's
// profileData column. Every derived field is recomputed by Classify; the
// rest are accumulated KPIs.
type Profile struct {
	// accumulated
	Wallet         WalletKPIs `json:"wallet"`
	ExtractorScore float64    `json:"extractor_score"` // 0..1
	RetentionScore float64    `json:"retention_score"` // 0..1
	Recent         []Message  `json:"recent"`          // ring, newest last, cap ringSize
	SessionCount   int        `json:"session_count"`
	AdviceFollowed int        `json:"advice_followed"`
	RecommendHits  int        `json:"recommend_hits"`
	CommandsUsed   int        `json:"commands_used"`
	SubTier        int        `json:"sub_tier"`
	FirstSeenAt    time.Time  `json:"first_seen_at"`
	LastSeenAt     time.Time  `json:"last_seen_at"`
	TierOverride   *int       `json:"tier_override,omitempty"` // ops pin, wins over scoring

	// derived
	Archetype    Archetype                   `json:"archetype"`
	Flags        Flags                       `json:"flags"`
	Tier         int                         `json:"tier"` // 0..4
	State        State                       `json:"state"`
	BehaviorTags []BehaviorTag               `json:"behavior_tags"`
	IntentScores map[IntentArchetype]float64 `json:"intent_scores"`
	Intent       IntentArchetype             `json:"intent"`
}

// Event is one observation about the player.
type Event struct {
	Type    EventType   `json:"type"`
	At      time.Time   `json:"at"`
	Message string      `json:"message,omitempty"`  // DISCORD_MESSAGE
	Wallet  *WalletKPIs `json:"wallet,omitempty"`   // WALLET_SCAN
	Score   float64     `json:"score,omitempty"`    // RETENTION_UPDATE, extractor updates
	SubTier int         `json:"sub_tier,omitempty"` // SUBSCRIPTION_UPGRADE
}
