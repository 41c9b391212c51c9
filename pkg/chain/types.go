package chain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/dfk-companion/pkg/config"
)

// Transfer is one observed value movement toward an address, either an ERC-20
// Transfer event or a native value send. Amounts are in whole token units.
type Transfer struct {
	TxHash string          `json:"tx_hash"`
	Chain  config.Chain    `json:"chain"`
	Token  string          `json:"token"` // ERC-20 address, "" for native
	From   string          `json:"from"`  // lowercased
	To     string          `json:"to"`    // lowercased
	Amount decimal.Decimal `json:"amount"`
	Block  uint64          `json:"block"`
	Time   time.Time       `json:"time"`
}

// PoolInfo mirrors the staking registry's pool table entry.
type PoolInfo struct {
	PID        uint64
	LPToken    common.Address
	AllocPoint *big.Int
}

// PairMeta is the UniV2 pair metadata needed for pricing and TVL.
type PairMeta struct {
	Token0      common.Address
	Token1      common.Address
	Symbol0     string
	Symbol1     string
	Decimals0   int
	Decimals1   int
	Reserve0    *big.Int
	Reserve1    *big.Int
	TotalSupply *big.Int
}

// SwapEvent is one decoded UniV2 Swap log.
type SwapEvent struct {
	Amount0In  *big.Int
	Amount1In  *big.Int
	Amount0Out *big.Int
	Amount1Out *big.Int
	Block      uint64
}

// RewardEvent is one decoded staking-reward distribution log.
type RewardEvent struct {
	PID    uint64
	To     common.Address
	Amount *big.Int
	Block  uint64
}

// Hero is the subset of the GraphQL hero record the engine consumes.
type Hero struct {
	ID           int64  `json:"id,string"`
	Owner        string `json:"owner"`
	StatGenes    string `json:"statGenes"`
	VisualGenes  string `json:"visualGenes"`
	Generation   int    `json:"generation"`
	Level        int    `json:"level"`
	Stamina      int    `json:"stamina"`
	MaxStamina   int    `json:"maxStamina"`
	Gardening    int    `json:"gardening"` // skill x10, e.g. 107 = 10.7
	CurrentQuest string `json:"currentQuest"`
	PetBonus     int    `json:"petBonus"` // gardening pet bonus percent, 0 if none
}
