package classify

import "github.com/shopspring/decimal"

const ringSize = 50

// IntentWeights is one axis of the intent score: weighted KPI sum with a
// cap so no single axis runs away.
type IntentWeights struct {
	PerHero    float64
	PerLPUSD   float64 // per USD of LP value
	PerMessage float64 // per recent keyword hit
	PerAdvice  float64
	PerCommand float64
	Cap        float64
}

// Thresholds collects every tunable in one place. Logic never embeds a
// magic number; it reads from here.
type Thresholds struct {
	// archetype
	PlayerHeroMin   int // heroes at or above -> PLAYER
	CasualHeroMin   int // heroes at or above -> CASUAL
	InvestorHeroMax int // at or below, with InvestorUSDMin -> INVESTOR
	InvestorUSDMin  decimal.Decimal
	DegenUSDMin     decimal.Decimal
	DegenTradeMin   int // 30d swaps at or above, with DegenUSDMin -> DEGEN
	GuestUSDMax     decimal.Decimal

	// flags
	WhaleUSDMin       decimal.Decimal
	ExtractorScoreMin float64
	HighPotentialMsgs int             // recent messages at or above
	HighPotentialUSD  decimal.Decimal // while holding at most this

	// tier steps: financial = TotalUSD, engagement = sessions+commands
	Tier1USD, Tier2USD, Tier3USD, Tier4USD decimal.Decimal
	Tier1Engage, Tier2Engage               int
	WhaleTierFloor                         int
	WhaleFloorEnabled                      bool

	// state
	EngagedMsgs7d   int
	EngagedPositive int // positive-sentiment hits in the ring
	CommittedCJewel decimal.Decimal
	DriftRetention  float64 // below -> DRIFTING
	ChurnRetention  float64 // below -> CHURNED

	// behavior tags
	NewcomerMaxDays int
	VeteranMinDays  int
	GardenerPoolMin int
	TraderSwapMin   int
	HolderCJewelMin decimal.Decimal
	SocialMsgs      int
	LurkerMsgs      int     // fewer than this, with sessions -> LURKER
	RiskLPShare     float64 // LP share of total above -> RISK_TAKER
	BridgerUSDMin   decimal.Decimal
	PetMin          int

	// intent
	Intent         map[IntentArchetype]IntentWeights
	IntentMinGap   float64         // argmax must beat runner-up by this much
	ForceBridgeUSD decimal.Decimal // bridge-out above -> INVESTOR_EXTRACTOR
	ForceExtractor float64         // extractor-score above -> INVESTOR_EXTRACTOR
}

func usd(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// DefaultThresholds are the production values.
var DefaultThresholds = Thresholds{
	PlayerHeroMin:   11,
	CasualHeroMin:   1,
	InvestorHeroMax: 5,
	InvestorUSDMin:  usd(5000),
	DegenUSDMin:     usd(20000),
	DegenTradeMin:   40,
	GuestUSDMax:     usd(10),

	WhaleUSDMin:       usd(50000),
	ExtractorScoreMin: 0.7,
	HighPotentialMsgs: 15,
	HighPotentialUSD:  usd(100),

	Tier1USD: usd(100), Tier2USD: usd(1000), Tier3USD: usd(10000), Tier4USD: usd(50000),
	Tier1Engage: 5, Tier2Engage: 25,
	WhaleTierFloor: 3, WhaleFloorEnabled: true,

	EngagedMsgs7d:   3,
	EngagedPositive: 2,
	CommittedCJewel: usd(500),
	DriftRetention:  0.4,
	ChurnRetention:  0.15,

	NewcomerMaxDays: 14,
	VeteranMinDays:  365,
	GardenerPoolMin: 2,
	TraderSwapMin:   10,
	HolderCJewelMin: usd(1000),
	SocialMsgs:      10,
	LurkerMsgs:      2,
	RiskLPShare:     0.8,
	BridgerUSDMin:   usd(500),
	PetMin:          3,

	Intent: map[IntentArchetype]IntentWeights{
		IntentCasualPlayer:      {PerHero: 0.5, PerMessage: 1.0, PerCommand: 0.5, Cap: 20},
		IntentStrategist:        {PerHero: 0.3, PerAdvice: 3.0, PerCommand: 1.0, PerMessage: 1.5, Cap: 30},
		IntentYieldFarmer:       {PerLPUSD: 0.002, PerMessage: 2.0, PerCommand: 0.5, Cap: 30},
		IntentCollector:         {PerHero: 1.0, PerMessage: 2.0, Cap: 25},
		IntentInvestorExtractor: {PerLPUSD: 0.001, PerMessage: 2.5, Cap: 25},
	},
	IntentMinGap:   2.0,
	ForceBridgeUSD: usd(2000),
	ForceExtractor: 0.8,
}
