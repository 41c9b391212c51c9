// Package httpapi exposes the ops endpoints: health, stats, pool snapshot,
// and job inspection. JSON only, no auth, meant to sit behind the deploy's
// internal network.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dfk-companion/pkg/config"
	"github.com/dfk-companion/pkg/db"
	"github.com/dfk-companion/pkg/payments"
	"github.com/dfk-companion/pkg/pools"
)

type Server struct {
	cfg      *config.Config
	store    *db.Store
	pools    *pools.Cache
	registry *payments.Registry
	started  time.Time
}

func New(cfg *config.Config, store *db.Store, cache *pools.Cache, registry *payments.Registry) *Server {
	return &Server{cfg: cfg, store: store, pools: cache, registry: registry, started: time.Now()}
}

func (s *Server) Run() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", cors(s.handleHealth))
	mux.HandleFunc("/api/stats", cors(s.handleStats))
	mux.HandleFunc("/api/pools", cors(s.handlePools))
	mux.HandleFunc("/api/jobs", cors(s.handleJobs))
	mux.HandleFunc("/api/jobs/", cors(s.handleJobDetail))

	addr := fmt.Sprintf(":%d", s.cfg.StatusPort)
	log.Info().Str("addr", addr).Msg("🌐 status server started")
	return http.ListenAndServe(addr, mux)
}

func cors(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"cache_ready":    s.pools.IsReady(),
		"cache_updated":  s.pools.LastUpdated(),
		"open_invoices":  s.registry.Len(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	all := s.pools.GetAll()
	if q := r.URL.Query().Get("q"); q != "" {
		all = s.pools.Search(q)
	}
	writeJSON(w, map[string]interface{}{
		"last_updated": s.pools.LastUpdated(),
		"count":        len(all),
		"pools":        all,
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	status := db.JobStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = db.JobPending
	}
	jobs, err := s.store.JobsByStatus(status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"status": status, "count": len(jobs), "jobs": jobs})
}

func (s *Server) handleJobDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id == "" {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}
	job, err := s.store.GetJob(id)
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, job)
}
