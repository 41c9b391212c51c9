package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/dfk-companion/pkg/config"
)

// ── Contract reads ──────────────────────────────────────────
// Call data is packed by hand from 4-byte selectors; the contracts involved
// (UniV2 pair, ERC-20, staking registry) have stable ABIs that never change.

const (
	// ERC-20
	selBalanceOf   = "0x70a08231" // balanceOf(address)
	selDecimals    = "0x313ce567" // decimals()
	selSymbol      = "0x95d89b41" // symbol()
	selTotalSupply = "0x18160ddd" // totalSupply()

	// UniswapV2 pair
	selToken0      = "0x0dfe1681" // token0()
	selToken1      = "0xd21220a7" // token1()
	selGetReserves = "0x0902f1ac" // getReserves()

	// LP staking registry
	selPoolLength      = "0x081e3eda" // poolLength()
	selPoolInfo        = "0x1526fe27" // poolInfo(uint256)
	selTotalAllocPoint = "0x17caf6f1" // totalAllocPoint()
	selUserInfo        = "0x93f1a40b" // userInfo(uint256,address)
	selPendingReward   = "0x7e241285" // pendingReward(uint256,address)

	// cJEWEL governance locker
	selLockEnd = "0xadc54355" // getUserLockEnd(address)
)

func (c *Client) call(ctx context.Context, chain config.Chain, to common.Address, data []byte) ([]byte, error) {
	ec, err := c.client(chain)
	if err != nil {
		return nil, err
	}
	var out []byte
	err = withRetry(ctx, "ethCall", func(ctx context.Context) error {
		var e error
		out, e = ec.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		return e
	})
	return out, err
}

func packCall(selector string, args ...[]byte) []byte {
	data := common.FromHex(selector)
	for _, a := range args {
		data = append(data, common.LeftPadBytes(a, 32)...)
	}
	return data
}

func word(out []byte, i int) (*big.Int, error) {
	if len(out) < (i+1)*32 {
		return nil, Permanent(fmt.Errorf("short return data: %d bytes, want word %d", len(out), i))
	}
	return new(big.Int).SetBytes(out[i*32 : (i+1)*32]), nil
}

// ── Staking registry ────────────────────────────────────────

func (c *Client) GetPoolLength(ctx context.Context, chain config.Chain) (uint64, error) {
	out, err := c.call(ctx, chain, common.HexToAddress(c.cfg.StakingContract[chain]), packCall(selPoolLength))
	if err != nil {
		return 0, err
	}
	n, err := word(out, 0)
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

func (c *Client) GetPoolInfo(ctx context.Context, chain config.Chain, pid uint64) (*PoolInfo, error) {
	out, err := c.call(ctx, chain, common.HexToAddress(c.cfg.StakingContract[chain]),
		packCall(selPoolInfo, new(big.Int).SetUint64(pid).Bytes()))
	if err != nil {
		return nil, err
	}
	lp, err := word(out, 0)
	if err != nil {
		return nil, err
	}
	alloc, err := word(out, 1)
	if err != nil {
		return nil, err
	}
	return &PoolInfo{
		PID:        pid,
		LPToken:    common.BytesToAddress(lp.Bytes()),
		AllocPoint: alloc,
	}, nil
}

func (c *Client) GetTotalAllocPoint(ctx context.Context, chain config.Chain) (*big.Int, error) {
	out, err := c.call(ctx, chain, common.HexToAddress(c.cfg.StakingContract[chain]), packCall(selTotalAllocPoint))
	if err != nil {
		return nil, err
	}
	return word(out, 0)
}

// GetUserInfo returns the wallet's staked LP amount for a pool.
func (c *Client) GetUserInfo(ctx context.Context, chain config.Chain, pid uint64, wallet string) (*big.Int, error) {
	out, err := c.call(ctx, chain, common.HexToAddress(c.cfg.StakingContract[chain]),
		packCall(selUserInfo, new(big.Int).SetUint64(pid).Bytes(), common.HexToAddress(wallet).Bytes()))
	if err != nil {
		return nil, err
	}
	return word(out, 0)
}

// GetPendingRewards returns unharvested emission rewards for one pool.
func (c *Client) GetPendingRewards(ctx context.Context, chain config.Chain, pid uint64, wallet string) (*big.Int, error) {
	out, err := c.call(ctx, chain, common.HexToAddress(c.cfg.StakingContract[chain]),
		packCall(selPendingReward, new(big.Int).SetUint64(pid).Bytes(), common.HexToAddress(wallet).Bytes()))
	if err != nil {
		return nil, err
	}
	return word(out, 0)
}

// GetAllPendingRewards sums pending rewards across every pool.
func (c *Client) GetAllPendingRewards(ctx context.Context, chain config.Chain, wallet string) (*big.Int, error) {
	n, err := c.GetPoolLength(ctx, chain)
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	for pid := uint64(0); pid < n; pid++ {
		r, err := c.GetPendingRewards(ctx, chain, pid, wallet)
		if err != nil {
			return nil, err
		}
		total.Add(total, r)
	}
	return total, nil
}

// ── UniV2 pair + ERC-20 ─────────────────────────────────────

// GetLPReserves loads the pair's reserves and LP total supply.
func (c *Client) GetLPReserves(ctx context.Context, chain config.Chain, lpToken common.Address) (r0, r1, totalSupply *big.Int, err error) {
	out, err := c.call(ctx, chain, lpToken, packCall(selGetReserves))
	if err != nil {
		return nil, nil, nil, err
	}
	if r0, err = word(out, 0); err != nil {
		return nil, nil, nil, err
	}
	if r1, err = word(out, 1); err != nil {
		return nil, nil, nil, err
	}
	sup, err := c.call(ctx, chain, lpToken, packCall(selTotalSupply))
	if err != nil {
		return nil, nil, nil, err
	}
	if totalSupply, err = word(sup, 0); err != nil {
		return nil, nil, nil, err
	}
	return r0, r1, totalSupply, nil
}

// GetPairMeta loads the full pair metadata: tokens, symbols, decimals,
// reserves, supply.
func (c *Client) GetPairMeta(ctx context.Context, chain config.Chain, lpToken common.Address) (*PairMeta, error) {
	var m PairMeta

	t0, err := c.call(ctx, chain, lpToken, packCall(selToken0))
	if err != nil {
		return nil, err
	}
	w, err := word(t0, 0)
	if err != nil {
		return nil, err
	}
	m.Token0 = common.BytesToAddress(w.Bytes())

	t1, err := c.call(ctx, chain, lpToken, packCall(selToken1))
	if err != nil {
		return nil, err
	}
	if w, err = word(t1, 0); err != nil {
		return nil, err
	}
	m.Token1 = common.BytesToAddress(w.Bytes())

	if m.Reserve0, m.Reserve1, m.TotalSupply, err = c.GetLPReserves(ctx, chain, lpToken); err != nil {
		return nil, err
	}

	if m.Symbol0, err = c.TokenSymbol(ctx, chain, m.Token0); err != nil {
		return nil, err
	}
	if m.Symbol1, err = c.TokenSymbol(ctx, chain, m.Token1); err != nil {
		return nil, err
	}
	if m.Decimals0, err = c.TokenDecimals(ctx, chain, m.Token0); err != nil {
		return nil, err
	}
	if m.Decimals1, err = c.TokenDecimals(ctx, chain, m.Token1); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) GetERC20Balance(ctx context.Context, chain config.Chain, token common.Address, wallet string) (*big.Int, error) {
	out, err := c.call(ctx, chain, token, packCall(selBalanceOf, common.HexToAddress(wallet).Bytes()))
	if err != nil {
		return nil, err
	}
	return word(out, 0)
}

func (c *Client) TokenDecimals(ctx context.Context, chain config.Chain, token common.Address) (int, error) {
	out, err := c.call(ctx, chain, token, packCall(selDecimals))
	if err != nil {
		return 0, err
	}
	w, err := word(out, 0)
	if err != nil {
		return 0, err
	}
	d := int(w.Int64())
	if d < 0 || d > 36 {
		return 0, Permanent(fmt.Errorf("implausible decimals %d for %s", d, token))
	}
	return d, nil
}

func (c *Client) TokenSymbol(ctx context.Context, chain config.Chain, token common.Address) (string, error) {
	out, err := c.call(ctx, chain, token, packCall(selSymbol))
	if err != nil {
		return "", err
	}
	sym := decodeStringReturn(out)
	if sym == "" {
		sym = "UNKNOWN"
	}
	return sym, nil
}

// GovernanceLockEnd returns the wallet's cJEWEL lock expiry, zero time when
// nothing is locked.
func (c *Client) GovernanceLockEnd(ctx context.Context, chain config.Chain, wallet string) (uint64, error) {
	out, err := c.call(ctx, chain, common.HexToAddress(c.cfg.CJewelToken),
		packCall(selLockEnd, common.HexToAddress(wallet).Bytes()))
	if err != nil {
		return 0, err
	}
	w, err := word(out, 0)
	if err != nil {
		return 0, err
	}
	return w.Uint64(), nil
}

// GetInfluence reads the configured influence contract for a wallet. Returns
// zero when the contract is not configured.
func (c *Client) GetInfluence(ctx context.Context, chain config.Chain, wallet string) (*big.Int, error) {
	if c.cfg.InfluenceContract == "" {
		return new(big.Int), nil
	}
	out, err := c.call(ctx, chain, common.HexToAddress(c.cfg.InfluenceContract),
		packCall(selBalanceOf, common.HexToAddress(wallet).Bytes()))
	if err != nil {
		return nil, err
	}
	return word(out, 0)
}

// decodeStringReturn parses an ABI-encoded string return, tolerating the
// non-standard bytes32 symbols some older tokens use.
func decodeStringReturn(out []byte) string {
	if len(out) == 32 {
		end := len(out)
		for end > 0 && out[end-1] == 0 {
			end--
		}
		s := string(out[:end])
		for _, ch := range s {
			if ch < 32 || ch > 126 {
				return ""
			}
		}
		return s
	}
	if len(out) < 64 {
		return ""
	}
	offset := new(big.Int).SetBytes(out[:32]).Int64()
	if offset+32 > int64(len(out)) {
		return ""
	}
	length := new(big.Int).SetBytes(out[offset : offset+32]).Int64()
	if offset+32+length > int64(len(out)) || length > 100 {
		return ""
	}
	return string(out[offset+32 : offset+32+length])
}
