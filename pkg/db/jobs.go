package db

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dfk-companion/pkg/config"
)

// NewJobID returns a unique payment job identifier.
func NewJobID() string {
	var b [4]byte
	rand.Read(b[:])
	return fmt.Sprintf("pay_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(b[:]))
}

// CreateJob inserts a new pending payment job.
func (s *Store) CreateJob(j *PaymentJob) error {
	_, err := s.db.Exec(`
		INSERT INTO payment_jobs
		(id, player_id, status, chain, from_wallet, expected_amount, requested_at, expires_at,
		 start_block, last_scanned_block, lp_snapshot)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		j.ID, j.PlayerID, string(JobPending), string(j.Chain), strings.ToLower(j.FromWallet),
		j.ExpectedAmount.String(), j.RequestedAt, j.ExpiresAt,
		j.StartBlock, j.LastScannedBlock, j.LPSnapshot)
	return err
}

func (s *Store) GetJob(id string) (*PaymentJob, error) {
	return s.scanJob(s.db.QueryRow(jobSelect+` WHERE id=?`, id))
}

// OpenJobForPlayer returns the player's most recent pending job, if any.
func (s *Store) OpenJobForPlayer(playerID int64) (*PaymentJob, error) {
	return s.scanJob(s.db.QueryRow(jobSelect+` WHERE player_id=? AND status='pending' ORDER BY requested_at DESC LIMIT 1`, playerID))
}

func (s *Store) JobsByStatus(status JobStatus) ([]PaymentJob, error) {
	rows, err := s.db.Query(jobSelect+` WHERE status=? ORDER BY requested_at ASC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []PaymentJob
	for rows.Next() {
		j, err := s.scanJobRows(rows)
		if err != nil {
			continue
		}
		jobs = append(jobs, *j)
	}
	return jobs, nil
}

// MarkVerified performs the guarded pending -> payment_verified transition.
// The WHERE on current status inside one exec makes the flip atomic; a job
// that already advanced returns ErrNotPending.
func (s *Store) MarkVerified(jobID, txHash string, paidAmount decimal.Decimal, paidAt time.Time) error {
	res, err := s.db.Exec(`
		UPDATE payment_jobs
		SET status='payment_verified', tx_hash=?, paid_amount=?, paid_at=?
		WHERE id=? AND status='pending'`,
		txHash, paidAmount.String(), paidAt, jobID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotPending
	}
	return nil
}

// ClaimForProcessing performs the guarded payment_verified -> processing
// transition. Returns false when another worker won the race.
func (s *Store) ClaimForProcessing(jobID string) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE payment_jobs SET status='processing'
		WHERE id=? AND status='payment_verified'`, jobID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CompleteJob stores the report payload and flips processing -> completed.
func (s *Store) CompleteJob(jobID, reportJSON string) error {
	res, err := s.db.Exec(`
		UPDATE payment_jobs SET status='completed', report_payload=?
		WHERE id=? AND status='processing'`, reportJSON, jobID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("job %s not in processing state", jobID)
	}
	return nil
}

// FailJob flips a job to failed and records the error message. The row stays
// for user inspection; there is no automatic retry.
func (s *Store) FailJob(jobID, errMsg string) error {
	_, err := s.db.Exec(`
		UPDATE payment_jobs SET status='failed', error_message=?
		WHERE id=? AND status IN ('pending','payment_verified','processing')`,
		errMsg, jobID)
	return err
}

// ExpireJobs flips every pending job past its deadline to expired and returns
// the affected job IDs. Expired is a terminal sink for pending, so no further
// guard is needed.
func (s *Store) ExpireJobs(now time.Time) ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM payment_jobs WHERE status='pending' AND expires_at < ?`, now)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if rows.Scan(&id) == nil {
			ids = append(ids, id)
		}
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, nil
	}
	_, err = s.db.Exec(`UPDATE payment_jobs SET status='expired' WHERE status='pending' AND expires_at < ?`, now)
	return ids, err
}

func (s *Store) UpdateLastScanned(jobID string, block uint64) error {
	_, err := s.db.Exec(`UPDATE payment_jobs SET last_scanned_block=? WHERE id=?`, block, jobID)
	return err
}

// ---- row scanning ----

const jobSelect = `
	SELECT id, player_id, status, chain, from_wallet, expected_amount, requested_at, expires_at,
	       start_block, last_scanned_block, tx_hash, paid_amount,
	       COALESCE(paid_at, requested_at), error_message, lp_snapshot, report_payload
	FROM payment_jobs`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanJob(r rowScanner) (*PaymentJob, error) {
	var j PaymentJob
	var status, chainName, expected, paid string
	if err := r.Scan(&j.ID, &j.PlayerID, &status, &chainName, &j.FromWallet, &expected,
		&j.RequestedAt, &j.ExpiresAt, &j.StartBlock, &j.LastScannedBlock,
		&j.TxHash, &paid, &j.PaidAt, &j.ErrorMessage, &j.LPSnapshot, &j.ReportPayload); err != nil {
		return nil, err
	}
	j.Status = JobStatus(status)
	j.Chain = config.Chain(chainName)
	var err error
	if j.ExpectedAmount, err = decimal.NewFromString(expected); err != nil {
		return nil, fmt.Errorf("job %s: bad expected_amount %q: %w", j.ID, expected, err)
	}
	if j.PaidAmount, err = decimal.NewFromString(paid); err != nil {
		return nil, fmt.Errorf("job %s: bad paid_amount %q: %w", j.ID, paid, err)
	}
	return &j, nil
}

func (s *Store) scanJobRows(rows *sql.Rows) (*PaymentJob, error) {
	return s.scanJob(rows)
}
