// Package payments matches on-chain transfers to the house wallet against
// open invoices and drives payment-job state.
package payments

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dfk-companion/pkg/db"
)

// Registry holds the open (pending) jobs in memory, keyed by job ID. Every
// add/remove pairs with a DB write elsewhere; the store stays authoritative
// and the registry is rebuilt from it on boot.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]*db.PaymentJob
	store *db.Store
}

func NewRegistry(store *db.Store) *Registry {
	return &Registry{jobs: make(map[string]*db.PaymentJob), store: store}
}

// Load replays all pending jobs from the store.
func (r *Registry) Load() error {
	pending, err := r.store.JobsByStatus(db.JobPending)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = make(map[string]*db.PaymentJob, len(pending))
	for i := range pending {
		j := pending[i]
		r.jobs[j.ID] = &j
	}
	log.Info().Int("jobs", len(pending)).Msg("💰 payment registry loaded")
	return nil
}

func (r *Registry) Add(j *db.PaymentJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.ID] = j
}

func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
}

func (r *Registry) Get(jobID string) (*db.PaymentJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[jobID]
	return j, ok
}

// List returns a copy of the open jobs.
func (r *Registry) List() []*db.PaymentJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*db.PaymentJob, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
