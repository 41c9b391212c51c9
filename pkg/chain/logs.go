package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dfk-companion/pkg/config"
)

// ── Event log windows ───────────────────────────────────────

var (
	transferTopic = common.BytesToHash(crypto.Keccak256([]byte("Transfer(address,address,uint256)")))
	swapTopic     = common.BytesToHash(crypto.Keccak256([]byte("Swap(address,uint256,uint256,uint256,uint256,address)")))
	rewardTopic   = common.BytesToHash(crypto.Keccak256([]byte("RewardCollected(address,uint256,uint256)")))
)

// transferFilter builds the getLogs query for Transfer events of one token
// into the `to` address. The recipient topic is the address left-padded to
// 32 bytes.
func transferFilter(token common.Address, to string, fromBlock, toBlock uint64) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{token},
		Topics: [][]common.Hash{
			{transferTopic},
			nil,
			{common.BytesToHash(common.HexToAddress(to).Bytes())},
		},
	}
}

// QueryTransferEvents returns ERC-20 Transfer events of one token into the
// `to` address over a block range, amounts in whole token units.
func (c *Client) QueryTransferEvents(ctx context.Context, chain config.Chain, token common.Address, to string, fromBlock, toBlock uint64) ([]Transfer, error) {
	ec, err := c.client(chain)
	if err != nil {
		return nil, err
	}
	decimals, err := c.TokenDecimals(ctx, chain, token)
	if err != nil {
		return nil, err
	}

	q := transferFilter(token, to, fromBlock, toBlock)

	var logs []types.Log
	err = withRetry(ctx, "getLogs/transfer", func(ctx context.Context) error {
		var e error
		logs, e = ec.FilterLogs(ctx, q)
		return e
	})
	if err != nil {
		return nil, err
	}

	var out []Transfer
	for _, l := range logs {
		if len(l.Topics) < 3 || len(l.Data) < 32 {
			continue
		}
		amount := new(big.Int).SetBytes(l.Data[:32])
		if amount.Sign() == 0 {
			continue
		}
		out = append(out, Transfer{
			TxHash: l.TxHash.Hex(),
			Chain:  chain,
			Token:  lower(token),
			From:   lower(common.BytesToAddress(l.Topics[1].Bytes())),
			To:     lower(common.BytesToAddress(l.Topics[2].Bytes())),
			Amount: FromWei(amount, decimals),
			Block:  l.BlockNumber,
		})
	}
	return out, nil
}

// QueryNativeTransfersToHouse walks each block's tx list and keeps successful
// plain value sends to the house address. There is no log topic for native
// transfers, so this is necessarily a per-block walk.
func (c *Client) QueryNativeTransfersToHouse(ctx context.Context, chain config.Chain, house string, fromBlock, toBlock uint64) ([]Transfer, error) {
	ec, err := c.client(chain)
	if err != nil {
		return nil, err
	}
	houseAddr := common.HexToAddress(house)
	signer := types.LatestSignerForChainID(nil)

	var out []Transfer
	for bn := fromBlock; bn <= toBlock; bn++ {
		var block *types.Block
		err := withRetry(ctx, "blockByNumber", func(ctx context.Context) error {
			var e error
			block, e = ec.BlockByNumber(ctx, new(big.Int).SetUint64(bn))
			return e
		})
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", bn, err)
		}

		for _, tx := range block.Transactions() {
			if tx.To() == nil || *tx.To() != houseAddr || tx.Value().Sign() <= 0 {
				continue
			}
			var receipt *types.Receipt
			err := withRetry(ctx, "txReceipt", func(ctx context.Context) error {
				var e error
				receipt, e = ec.TransactionReceipt(ctx, tx.Hash())
				return e
			})
			if err != nil || receipt.Status != types.ReceiptStatusSuccessful {
				continue
			}
			from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
			if err != nil {
				from, err = types.Sender(signer, tx)
				if err != nil {
					continue
				}
			}
			out = append(out, Transfer{
				TxHash: tx.Hash().Hex(),
				Chain:  chain,
				From:   lower(from),
				To:     strings.ToLower(house),
				Amount: FromWei(tx.Value(), 18),
				Block:  bn,
			})
		}
	}
	return out, nil
}

// QuerySwapEvents returns a pair's Swap logs over a block range.
func (c *Client) QuerySwapEvents(ctx context.Context, chain config.Chain, pair common.Address, fromBlock, toBlock uint64) ([]SwapEvent, error) {
	ec, err := c.client(chain)
	if err != nil {
		return nil, err
	}
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{pair},
		Topics:    [][]common.Hash{{swapTopic}},
	}
	var logs []types.Log
	err = withRetry(ctx, "getLogs/swap", func(ctx context.Context) error {
		var e error
		logs, e = ec.FilterLogs(ctx, q)
		return e
	})
	if err != nil {
		return nil, err
	}
	var out []SwapEvent
	for _, l := range logs {
		if len(l.Data) < 128 {
			continue
		}
		out = append(out, SwapEvent{
			Amount0In:  new(big.Int).SetBytes(l.Data[0:32]),
			Amount1In:  new(big.Int).SetBytes(l.Data[32:64]),
			Amount0Out: new(big.Int).SetBytes(l.Data[64:96]),
			Amount1Out: new(big.Int).SetBytes(l.Data[96:128]),
			Block:      l.BlockNumber,
		})
	}
	return out, nil
}

// QueryRewardEvents returns the staking contract's reward distributions for
// one pool over a block range.
func (c *Client) QueryRewardEvents(ctx context.Context, chain config.Chain, pid uint64, fromBlock, toBlock uint64) ([]RewardEvent, error) {
	ec, err := c.client(chain)
	if err != nil {
		return nil, err
	}
	pidTopic := common.BigToHash(new(big.Int).SetUint64(pid))
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{common.HexToAddress(c.cfg.StakingContract[chain])},
		Topics:    [][]common.Hash{{rewardTopic}, nil, {pidTopic}},
	}
	var logs []types.Log
	err = withRetry(ctx, "getLogs/reward", func(ctx context.Context) error {
		var e error
		logs, e = ec.FilterLogs(ctx, q)
		return e
	})
	if err != nil {
		return nil, err
	}
	var out []RewardEvent
	for _, l := range logs {
		if len(l.Topics) < 3 || len(l.Data) < 32 {
			continue
		}
		out = append(out, RewardEvent{
			PID:    pid,
			To:     common.BytesToAddress(l.Topics[1].Bytes()),
			Amount: new(big.Int).SetBytes(l.Data[:32]),
			Block:  l.BlockNumber,
		})
	}
	return out, nil
}

// GetReceiptStatus fetches a receipt for the tx-hash verify path:
// success flag, recipient, sender, value.
func (c *Client) GetReceiptStatus(ctx context.Context, chain config.Chain, hash common.Hash) (ok bool, from, to string, value *big.Int, err error) {
	ec, err := c.client(chain)
	if err != nil {
		return false, "", "", nil, err
	}
	var receipt *types.Receipt
	var tx *types.Transaction
	err = withRetry(ctx, "verifyTx", func(ctx context.Context) error {
		var e error
		receipt, e = ec.TransactionReceipt(ctx, hash)
		if e != nil {
			return e
		}
		tx, _, e = ec.TransactionByHash(ctx, hash)
		return e
	})
	if err != nil {
		return false, "", "", nil, err
	}
	sender, serr := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if serr != nil {
		return false, "", "", nil, Permanent(fmt.Errorf("recover sender: %w", serr))
	}
	toStr := ""
	if tx.To() != nil {
		toStr = lower(*tx.To())
	}
	return receipt.Status == types.ReceiptStatusSuccessful, lower(sender), toStr, tx.Value(), nil
}
