package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Chain string

const (
	ChainDFK    Chain = "dfk"    // DFK Chain (Avalanche subnet), native JEWEL
	ChainKlaytn Chain = "klaytn" // Klaytn / Serendale
)

func AllChains() []Chain {
	return []Chain{ChainDFK, ChainKlaytn}
}

// RouteScan network IDs used by the explorer API.
var ExplorerChainIDs = map[Chain]int{
	ChainDFK:    53935,
	ChainKlaytn: 8217,
}

type Config struct {
	// Storage
	DBPath    string
	CacheFile string

	// Chain RPC endpoints
	RPC map[Chain]string

	// Read-only HTTP APIs
	GraphQLURL  string
	ExplorerURL string

	// Contract addresses (lowercased hex)
	StakingContract   map[Chain]string // LP staking registry per chain
	InfluenceContract string

	// Token addresses on DFK Chain
	StableAnchor string // USDC, price graph root
	JewelToken   string // wrapped native / gas token
	CrystalToken string // emission token
	CJewelToken  string // staked governance token

	// ERC-20 JEWEL on Klaytn (native on DFK Chain)
	KlaytnJewelToken string

	// Payments
	HouseWallet          string
	MatchEpsilon         decimal.Decimal
	JobExpiry            time.Duration
	ScanChunkBlocks      uint64
	ManualLookbackBlocks uint64
	PaymentScanMode      string // "rpc" or "explorer"

	// Analytics
	BlocksPerDay    map[Chain]uint64
	SwapFeeRate     decimal.Decimal
	DustFloor       decimal.Decimal
	DeprecatedPairs []string

	// Intervals
	PriceTTL            time.Duration
	PoolRefreshInterval time.Duration
	ScanInterval        time.Duration
	QueuePollInterval   time.Duration
	ProcessorInterval   time.Duration
	SnapshotCron        string
	ETLCron             string

	// Outbound chat
	TelegramBotToken string
	TelegramAPIURL   string

	// Ops status API
	StatusPort int

	// Optional; consumed by the external intent router, not the core.
	LLMAPIKey string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:    envOr("DB_PATH", "companion.db"),
		CacheFile: envOr("POOL_CACHE_FILE", "pool_cache.json"),

		GraphQLURL:  envOr("HERO_GRAPHQL_URL", "https://api.defikingdoms.com/graphql"),
		ExplorerURL: envOr("EXPLORER_URL", "https://api.routescan.io"),

		InfluenceContract: strings.ToLower(envOr("INFLUENCE_CONTRACT", "")),

		StableAnchor: strings.ToLower(envOr("STABLE_ANCHOR", "0x3ad9dfe640e1a9cc1d9b0948620820d975c3803a")),
		JewelToken:   strings.ToLower(envOr("JEWEL_TOKEN", "0xccb93dabd71c8dad03fc4ce5559dc3d89f67a260")),
		CrystalToken: strings.ToLower(envOr("CRYSTAL_TOKEN", "0x04b9da42306b023f3572e106b11d82aad9d32ebb")),
		CJewelToken:  strings.ToLower(envOr("CJEWEL_TOKEN", "0x9ed2c155632c042cb8bc20634571ff1ca26f5742")),

		KlaytnJewelToken: strings.ToLower(envOr("KLAYTN_JEWEL_TOKEN", "0x30c103f8f5a3a732dfe2dce1cc9446f545527b43")),

		HouseWallet:          strings.ToLower(os.Getenv("HOUSE_WALLET")),
		MatchEpsilon:         envDec("MATCH_EPSILON", "0.1"),
		JobExpiry:            envDur("JOB_EXPIRY", 2*time.Hour),
		ScanChunkBlocks:      uint64(envInt("SCAN_CHUNK_BLOCKS", 50)),
		ManualLookbackBlocks: uint64(envInt("MANUAL_LOOKBACK_BLOCKS", 1000)),
		PaymentScanMode:      envOr("PAYMENT_SCAN_MODE", "rpc"),

		SwapFeeRate:     envDec("SWAP_FEE_RATE", "0.0025"),
		DustFloor:       envDec("PRICE_DUST_FLOOR", "0.000001"),
		DeprecatedPairs: splitTrim(os.Getenv("DEPRECATED_PAIRS")),

		PriceTTL:            envDur("PRICE_CACHE_TTL", 5*time.Minute),
		PoolRefreshInterval: envDur("POOL_REFRESH_INTERVAL", 20*time.Minute),
		ScanInterval:        envDur("SCAN_INTERVAL", 30*time.Second),
		QueuePollInterval:   envDur("QUEUE_POLL_INTERVAL", 10*time.Second),
		ProcessorInterval:   envDur("PROCESSOR_INTERVAL", 30*time.Second),
		SnapshotCron:        envOr("SNAPSHOT_CRON", "0 3 * * *"),
		ETLCron:             envOr("ETL_CRON", "@every 10m"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIURL:   envOr("TELEGRAM_API_URL", "https://api.telegram.org"),

		StatusPort: envInt("STATUS_PORT", 8080),

		LLMAPIKey: os.Getenv("LLM_API_KEY"),
	}

	cfg.RPC = map[Chain]string{
		ChainDFK:    envOr("DFK_RPC_URL", "https://subnets.avax.network/defi-kingdoms/dfk-chain/rpc"),
		ChainKlaytn: envOr("KLAYTN_RPC_URL", "https://klaytn.rpc.defikingdoms.com"),
	}

	cfg.StakingContract = map[Chain]string{
		ChainDFK:    strings.ToLower(envOr("DFK_STAKING_CONTRACT", "0x57dec9cc7f492d6583c773e2e7ad66dcdc6940fb")),
		ChainKlaytn: strings.ToLower(envOr("KLAYTN_STAKING_CONTRACT", "0xad2ea7b7e49be15918e4917736e86ff7feea57c6")),
	}

	// ~2s blocks on DFK Chain, ~1s on Klaytn
	cfg.BlocksPerDay = map[Chain]uint64{
		ChainDFK:    uint64(envInt("DFK_BLOCKS_PER_DAY", 43200)),
		ChainKlaytn: uint64(envInt("KLAYTN_BLOCKS_PER_DAY", 86400)),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HouseWallet == "" {
		return fmt.Errorf("HOUSE_WALLET is required: payments have nowhere to land")
	}
	if c.RPC[ChainDFK] == "" && c.RPC[ChainKlaytn] == "" {
		return fmt.Errorf("no RPC endpoints configured — need at least DFK_RPC_URL or KLAYTN_RPC_URL")
	}
	if c.PaymentScanMode != "rpc" && c.PaymentScanMode != "explorer" {
		return fmt.Errorf("PAYMENT_SCAN_MODE must be \"rpc\" or \"explorer\", got %q", c.PaymentScanMode)
	}
	return nil
}

// JewelTokenOn returns the ERC-20 JEWEL address for a chain, or "" where JEWEL
// is the native gas token and transfers arrive as plain value sends.
func (c *Config) JewelTokenOn(chain Chain) string {
	if chain == ChainKlaytn {
		return c.KlaytnJewelToken
	}
	return ""
}

// --- Token aliases for pool search ---
// The unwrapped gas token and its wrapped ERC-20 form are the same asset to users.

var TokenAliases = map[string]string{
	"wjewel": "jewel",
	"wklay":  "klay",
	"wavax":  "avax",
}

// helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envDec(key, fallback string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(fallback)
	return d
}

func splitTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
