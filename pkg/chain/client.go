// Package chain wraps the JSON-RPC and read-only HTTP surfaces of both game
// chains: staking-registry and LP-pair contract reads, event log windows,
// balances, the GraphQL hero API, and the RouteScan explorer fallback.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"

	"github.com/dfk-companion/pkg/config"
)

// ErrPermanent marks upstream failures that retrying cannot fix: malformed
// responses, schema mismatches, reverts.
var ErrPermanent = errors.New("permanent upstream error")

// Permanent wraps err so the retry loop surfaces it immediately.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

const (
	maxAttempts    = 3
	baseBackoff    = 500 * time.Millisecond
	defaultTimeout = 10 * time.Second
)

type Client struct {
	cfg  *config.Config
	eth  map[config.Chain]*ethclient.Client
	http *http.Client
}

func New(cfg *config.Config) (*Client, error) {
	c := &Client{
		cfg:  cfg,
		eth:  make(map[config.Chain]*ethclient.Client),
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for chain, url := range cfg.RPC {
		if url == "" {
			continue
		}
		ec, err := ethclient.Dial(url)
		if err != nil {
			return nil, fmt.Errorf("dial %s rpc: %w", chain, err)
		}
		c.eth[chain] = ec
	}
	if len(c.eth) == 0 {
		return nil, fmt.Errorf("no chain RPC endpoints configured")
	}
	return c, nil
}

func (c *Client) Close() {
	for _, ec := range c.eth {
		ec.Close()
	}
}

func (c *Client) client(chain config.Chain) (*ethclient.Client, error) {
	ec, ok := c.eth[chain]
	if !ok {
		return nil, Permanent(fmt.Errorf("no RPC endpoint for chain %s", chain))
	}
	return ec, nil
}

// withRetry runs fn up to maxAttempts with jittered exponential backoff.
// ErrPermanent and context cancellation cut the loop short.
func withRetry(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPermanent) || ctx.Err() != nil {
			return err
		}
		log.Debug().Err(err).Str("call", name).Int("attempt", attempt+1).Msg("rpc retry")
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, maxAttempts, err)
}

// BlockNumber returns the current chain tip.
func (c *Client) BlockNumber(ctx context.Context, chain config.Chain) (uint64, error) {
	ec, err := c.client(chain)
	if err != nil {
		return 0, err
	}
	var tip uint64
	err = withRetry(ctx, "blockNumber", func(ctx context.Context) error {
		var e error
		tip, e = ec.BlockNumber(ctx)
		return e
	})
	return tip, err
}

// NativeBalance returns the wallet's gas-token balance in whole units.
func (c *Client) NativeBalance(ctx context.Context, chain config.Chain, wallet string) (*big.Int, error) {
	ec, err := c.client(chain)
	if err != nil {
		return nil, err
	}
	var bal *big.Int
	err = withRetry(ctx, "getBalance", func(ctx context.Context) error {
		var e error
		bal, e = ec.BalanceAt(ctx, common.HexToAddress(wallet), nil)
		return e
	})
	return bal, err
}

// BlockTime returns a block's timestamp.
func (c *Client) BlockTime(ctx context.Context, chain config.Chain, block uint64) (time.Time, error) {
	ec, err := c.client(chain)
	if err != nil {
		return time.Time{}, err
	}
	var ts time.Time
	err = withRetry(ctx, "headerByNumber", func(ctx context.Context) error {
		h, e := ec.HeaderByNumber(ctx, new(big.Int).SetUint64(block))
		if e != nil {
			return e
		}
		ts = time.Unix(int64(h.Time), 0).UTC()
		return nil
	})
	return ts, err
}

func lower(a common.Address) string {
	return strings.ToLower(a.Hex())
}
