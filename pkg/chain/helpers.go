package chain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FromWei converts a raw integer token amount to whole units with exact
// decimal math. Never goes through IEEE-754.
func FromWei(raw *big.Int, decimals int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// ToWei converts a whole-unit amount to the raw integer representation.
func ToWei(amount decimal.Decimal, decimals int) *big.Int {
	return amount.Shift(int32(decimals)).BigInt()
}

func abbrev(addr string) string {
	if len(addr) > 12 {
		return addr[:6] + "..." + addr[len(addr)-4:]
	}
	return addr
}
