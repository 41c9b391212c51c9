package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dfk-companion/pkg/config"
)

// ── Explorer API (RouteScan shape) ──────────────────────────
// Per-wallet tx lists across both chains. O(1) per poll versus the O(block
// range) RPC scan, so the payment scanner can run in this mode instead.

type explorerTx struct {
	Hash      string `json:"hash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"` // wei, decimal string
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Block     uint64 `json:"blockNumber"`
}

type explorerPage struct {
	Items []explorerTx `json:"items"`
	Link  struct {
		NextToken string `json:"nextToken"`
	} `json:"link"`
}

// QueryRouteScanTransfers lists a wallet's recent outgoing transactions on
// one chain, normalized to the same Transfer shape the RPC path yields.
func (c *Client) QueryRouteScanTransfers(ctx context.Context, chain config.Chain, wallet string) ([]Transfer, error) {
	chainID, ok := config.ExplorerChainIDs[chain]
	if !ok {
		return nil, Permanent(fmt.Errorf("no explorer chain id for %s", chain))
	}
	url := fmt.Sprintf("%s/v2/network/mainnet/evm/%d/address/%s/transactions?limit=100&sort=desc",
		c.cfg.ExplorerURL, chainID, strings.ToLower(wallet))

	page, err := c.explorerGet(ctx, url)
	if err != nil {
		return nil, err
	}

	var out []Transfer
	for _, tx := range page.Items {
		if tx.Status != "" && tx.Status != "1" && !strings.EqualFold(tx.Status, "ok") {
			continue
		}
		wei, err := decimal.NewFromString(tx.Value)
		if err != nil || wei.Sign() <= 0 {
			continue
		}
		t := Transfer{
			TxHash: tx.Hash,
			Chain:  chain,
			From:   strings.ToLower(tx.From),
			To:     strings.ToLower(tx.To),
			Amount: wei.Shift(-18),
			Block:  tx.Block,
		}
		if ts, err := time.Parse(time.RFC3339, tx.Timestamp); err == nil {
			t.Time = ts.UTC()
		}
		out = append(out, t)
	}
	return out, nil
}

type explorerTokenTransfer struct {
	Hash      string `json:"txHash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"` // raw token units, decimal string
	Token     string `json:"tokenAddress"`
	Decimals  int    `json:"tokenDecimals"`
	Timestamp string `json:"timestamp"`
	Block     uint64 `json:"blockNumber"`
}

type explorerTokenPage struct {
	Items []explorerTokenTransfer `json:"items"`
}

// QueryRouteScanTokenTransfers lists recent ERC-20 transfers of one token
// into a wallet. Native tx lists carry zero value for token payments, so
// ERC-20 invoices must go through this endpoint instead.
func (c *Client) QueryRouteScanTokenTransfers(ctx context.Context, chain config.Chain, token, wallet string) ([]Transfer, error) {
	chainID, ok := config.ExplorerChainIDs[chain]
	if !ok {
		return nil, Permanent(fmt.Errorf("no explorer chain id for %s", chain))
	}
	url := fmt.Sprintf("%s/v2/network/mainnet/evm/%d/address/%s/erc20-transfers?limit=100&sort=desc",
		c.cfg.ExplorerURL, chainID, strings.ToLower(wallet))

	var page explorerTokenPage
	if err := c.explorerGetJSON(ctx, url, &page); err != nil {
		return nil, err
	}

	var out []Transfer
	for _, tx := range page.Items {
		if !strings.EqualFold(tx.Token, token) || !strings.EqualFold(tx.To, wallet) {
			continue
		}
		raw, err := decimal.NewFromString(tx.Amount)
		if err != nil || raw.Sign() <= 0 {
			continue
		}
		decimals := tx.Decimals
		if decimals == 0 {
			decimals = 18
		}
		t := Transfer{
			TxHash: tx.Hash,
			Chain:  chain,
			Token:  strings.ToLower(tx.Token),
			From:   strings.ToLower(tx.From),
			To:     strings.ToLower(tx.To),
			Amount: raw.Shift(-int32(decimals)),
			Block:  tx.Block,
		}
		if ts, err := time.Parse(time.RFC3339, tx.Timestamp); err == nil {
			t.Time = ts.UTC()
		}
		out = append(out, t)
	}
	return out, nil
}

// FirstTxTime returns the timestamp of the wallet's earliest transaction on a
// chain; used for account-age computation. Zero time when the wallet has no
// history.
func (c *Client) FirstTxTime(ctx context.Context, chain config.Chain, wallet string) (time.Time, error) {
	chainID, ok := config.ExplorerChainIDs[chain]
	if !ok {
		return time.Time{}, Permanent(fmt.Errorf("no explorer chain id for %s", chain))
	}
	url := fmt.Sprintf("%s/v2/network/mainnet/evm/%d/address/%s/transactions?limit=1&sort=asc",
		c.cfg.ExplorerURL, chainID, strings.ToLower(wallet))

	page, err := c.explorerGet(ctx, url)
	if err != nil {
		return time.Time{}, err
	}
	if len(page.Items) == 0 {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, page.Items[0].Timestamp)
	if err != nil {
		return time.Time{}, Permanent(fmt.Errorf("explorer timestamp %q: %w", page.Items[0].Timestamp, err))
	}
	return ts.UTC(), nil
}

func (c *Client) explorerGet(ctx context.Context, url string) (*explorerPage, error) {
	var page explorerPage
	if err := c.explorerGetJSON(ctx, url, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) explorerGetJSON(ctx context.Context, url string, out any) error {
	return withRetry(ctx, "explorer", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("explorer http %d", resp.StatusCode)
		}
		if resp.StatusCode != 200 {
			return Permanent(fmt.Errorf("explorer http %d", resp.StatusCode))
		}
		if err := json.Unmarshal(body, out); err != nil {
			return Permanent(fmt.Errorf("explorer unmarshal: %w", err))
		}
		return nil
	})
}
