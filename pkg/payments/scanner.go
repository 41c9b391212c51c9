package payments

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/dfk-companion/pkg/chain"
	"github.com/dfk-companion/pkg/chat"
	"github.com/dfk-companion/pkg/config"
	"github.com/dfk-companion/pkg/db"
)

var (
	ErrTxNotFound       = errors.New("transaction not found")
	ErrTxFailed         = errors.New("transaction reverted")
	ErrWrongRecipient   = errors.New("transaction does not pay the house wallet")
	ErrWrongSender      = errors.New("transaction sender is not the invoice wallet")
	ErrAmountTooLow     = errors.New("paid amount below invoice amount")
	ErrAlreadyProcessed = errors.New("job is no longer pending")
	ErrScanBusy         = errors.New("a manual scan is already running")
)

// Scanner polls the chain for transfers into the house wallet and flips
// matching jobs to payment_verified.
type Scanner struct {
	cfg      *config.Config
	client   *chain.Client
	store    *db.Store
	registry *Registry
	sender   chat.Sender

	manualMu sync.Mutex // serializes ManualVerify against itself
}

func NewScanner(cfg *config.Config, client *chain.Client, store *db.Store, registry *Registry, sender chat.Sender) *Scanner {
	return &Scanner{cfg: cfg, client: client, store: store, registry: registry, sender: sender}
}

// Run blocks until ctx is cancelled, scanning on cfg.ScanInterval.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ScanInterval)
	defer ticker.Stop()
	log.Info().Dur("interval", s.cfg.ScanInterval).Str("mode", s.cfg.PaymentScanMode).Msg("🔍 payment scanner started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanOnce(ctx)
		}
	}
}

func (s *Scanner) scanOnce(ctx context.Context) {
	s.expireSweep(ctx)
	for _, job := range s.registry.List() {
		if err := s.scanJob(ctx, job); err != nil {
			log.Warn().Err(err).Str("job", job.ID).Msg("payment scan failed")
		}
	}
}

// expireSweep flips timed-out jobs and tells the player.
func (s *Scanner) expireSweep(ctx context.Context) {
	expired, err := s.store.ExpireJobs(time.Now())
	if err != nil {
		log.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	for _, id := range expired {
		job, ok := s.registry.Get(id)
		s.registry.Remove(id)
		if !ok {
			continue
		}
		log.Info().Str("job", id).Msg("⌛ payment window expired")
		msg := "Your payment window for job " + id + " has expired. No payment was detected. Use /optimize to start a fresh quote."
		s.notify(ctx, job, msg)
	}
}

func (s *Scanner) scanJob(ctx context.Context, job *db.PaymentJob) error {
	if s.cfg.PaymentScanMode == "explorer" {
		return s.scanJobExplorer(ctx, job)
	}
	return s.scanJobRPC(ctx, job)
}

// scanJobRPC walks unscanned blocks in chunks, looking at both ERC-20 JEWEL
// transfers and native sends to the house wallet.
func (s *Scanner) scanJobRPC(ctx context.Context, job *db.PaymentJob) error {
	tip, err := s.client.BlockNumber(ctx, job.Chain)
	if err != nil {
		return err
	}
	from := job.LastScannedBlock + 1
	if from < job.StartBlock {
		from = job.StartBlock
	}
	for from <= tip {
		to := from + s.cfg.ScanChunkBlocks - 1
		if to > tip {
			to = tip
		}
		transfers, err := s.collectChunk(ctx, job.Chain, from, to)
		if err != nil {
			return err
		}
		for i := range transfers {
			if Matches(&transfers[i], job, s.cfg.MatchEpsilon) {
				return s.settle(ctx, job, &transfers[i])
			}
		}
		if err := s.store.UpdateLastScanned(job.ID, to); err != nil {
			return err
		}
		job.LastScannedBlock = to
		from = to + 1
	}
	return nil
}

func (s *Scanner) collectChunk(ctx context.Context, ch config.Chain, from, to uint64) ([]chain.Transfer, error) {
	house := s.cfg.HouseWallet
	var out []chain.Transfer
	if token := s.cfg.JewelTokenOn(ch); token != "" {
		erc20, err := s.client.QueryTransferEvents(ctx, ch, common.HexToAddress(token), house, from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, erc20...)
	} else {
		native, err := s.client.QueryNativeTransfersToHouse(ctx, ch, house, from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, native...)
	}
	return out, nil
}

// scanJobExplorer asks the block explorer for recent inbound transfers
// instead of walking blocks over RPC. Chains where JEWEL is an ERC-20 use
// the token-transfer endpoint; the native tx list shows zero value there.
func (s *Scanner) scanJobExplorer(ctx context.Context, job *db.PaymentJob) error {
	var transfers []chain.Transfer
	var err error
	if token := s.cfg.JewelTokenOn(job.Chain); token != "" {
		transfers, err = s.client.QueryRouteScanTokenTransfers(ctx, job.Chain, token, s.cfg.HouseWallet)
	} else {
		transfers, err = s.client.QueryRouteScanTransfers(ctx, job.Chain, s.cfg.HouseWallet)
	}
	if err != nil {
		return err
	}
	for i := range transfers {
		t := &transfers[i]
		if t.Time.Before(job.RequestedAt) {
			continue
		}
		if Matches(t, job, s.cfg.MatchEpsilon) {
			return s.settle(ctx, job, t)
		}
	}
	return nil
}

// Matches reports whether a transfer pays the given invoice: the sender is
// the invoice wallet (case-insensitive) and the amount is within epsilon of
// the quoted amount, in either direction.
func Matches(t *chain.Transfer, job *db.PaymentJob, epsilon decimal.Decimal) bool {
	if !strings.EqualFold(t.From, job.FromWallet) {
		return false
	}
	return t.Amount.Sub(job.ExpectedAmount).Abs().LessThanOrEqual(epsilon)
}

// settle flips the job to payment_verified. The guarded update makes a
// double-detect harmless: the second caller sees ErrNotPending.
func (s *Scanner) settle(ctx context.Context, job *db.PaymentJob, t *chain.Transfer) error {
	err := s.store.MarkVerified(job.ID, t.TxHash, t.Amount, t.Time)
	if errors.Is(err, db.ErrNotPending) {
		s.registry.Remove(job.ID)
		return nil
	}
	if err != nil {
		return err
	}
	s.registry.Remove(job.ID)
	log.Info().Str("job", job.ID).Str("tx", t.TxHash).Str("amount", t.Amount.String()).Msg("✅ payment verified")
	msg := "Payment received: " + t.Amount.String() + " JEWEL (tx " + t.TxHash + "). Your report is being generated."
	s.notify(ctx, job, msg)
	return nil
}

// notify DMs the player who owns the job. Chat routing lives on the player
// row, not the job, so wallet relinks keep working mid-invoice.
func (s *Scanner) notify(ctx context.Context, job *db.PaymentJob, msg string) {
	player, err := s.store.GetPlayerByID(job.PlayerID)
	if err != nil {
		log.Warn().Err(err).Str("job", job.ID).Msg("notify: player lookup failed")
		return
	}
	if err := s.sender.SendDirect(ctx, player.ChatID, msg); err != nil {
		log.Warn().Err(err).Str("job", job.ID).Msg("notify failed")
	}
}

// ManualVerify rescans a fixed lookback window for one job on demand. Only
// one manual scan runs at a time; a second caller gets ErrScanBusy instead
// of queueing.
func (s *Scanner) ManualVerify(ctx context.Context, jobID string) error {
	if !s.manualMu.TryLock() {
		return ErrScanBusy
	}
	defer s.manualMu.Unlock()

	job, ok := s.registry.Get(jobID)
	if !ok {
		stored, err := s.store.GetJob(jobID)
		if err != nil {
			return err
		}
		if stored.Status != db.JobPending {
			return ErrAlreadyProcessed
		}
		job = stored
	}
	tip, err := s.client.BlockNumber(ctx, job.Chain)
	if err != nil {
		return err
	}
	from := uint64(0)
	if tip > s.cfg.ManualLookbackBlocks {
		from = tip - s.cfg.ManualLookbackBlocks
	}
	for from <= tip {
		to := from + s.cfg.ScanChunkBlocks - 1
		if to > tip {
			to = tip
		}
		transfers, err := s.collectChunk(ctx, job.Chain, from, to)
		if err != nil {
			return err
		}
		for i := range transfers {
			if Matches(&transfers[i], job, s.cfg.MatchEpsilon) {
				return s.settle(ctx, job, &transfers[i])
			}
		}
		from = to + 1
	}
	return nil
}

// VerifyByTxHash checks one specific transaction against a job. It accepts
// overpayment but not underpayment beyond epsilon.
func (s *Scanner) VerifyByTxHash(ctx context.Context, jobID, txHash string) error {
	job, err := s.store.GetJob(jobID)
	if err != nil {
		return err
	}
	if job.Status != db.JobPending {
		return ErrAlreadyProcessed
	}
	ok, from, to, raw, err := s.client.GetReceiptStatus(ctx, job.Chain, common.HexToHash(txHash))
	if err != nil {
		return ErrTxNotFound
	}
	if !ok {
		return ErrTxFailed
	}
	if !strings.EqualFold(to, s.cfg.HouseWallet) {
		return ErrWrongRecipient
	}
	if !strings.EqualFold(from, job.FromWallet) {
		return ErrWrongSender
	}
	paid := chain.FromWei(raw, 18)
	if paid.Add(s.cfg.MatchEpsilon).LessThan(job.ExpectedAmount) {
		return ErrAmountTooLow
	}
	t := &chain.Transfer{TxHash: txHash, Chain: job.Chain, From: from, To: to, Amount: paid, Time: time.Now()}
	return s.settle(ctx, job, t)
}
