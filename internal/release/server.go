// Package release serves the build fingerprint clients poll and stamps new builds.
package release

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/edahouse/shopcore/internal/platform"
	"github.com/edahouse/shopcore/internal/shop/model"
	logx "github.com/edahouse/shopcore/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	testOverrideWindow = 5 * time.Minute
	isoMillis          = "2006-01-02T15:04:05.000Z"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Server answers /api/version and /api/health.
type Server struct {
	cfg     model.ReleaseConfig
	env     string
	clock   platform.Clock
	started time.Time
	checks  map[string]HealthCheck
	log     zerolog.Logger

	mu        sync.Mutex
	testHash  string
	testStart time.Time
}

func NewServer(cfg model.ReleaseConfig, env string, clock platform.Clock) *Server {
	if clock == nil {
		clock = platform.SystemClock
	}
	return &Server{
		cfg:     cfg,
		env:     env,
		clock:   clock,
		started: clock.Now(),
		checks:  make(map[string]HealthCheck),
		log:     logx.Component("release"),
	}
}

// AddCheck registers a dependency probe reported by /api/health.
func (s *Server) AddCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	return r
}

// ListenAndServe serves the router on cfg.Addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("release server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Fingerprint returns the current build descriptor. A ?test=notification request replaces
// the hash with a synthetic one for five minutes so clients can be driven through an update.
func (s *Server) Fingerprint(testOverride bool) model.Fingerprint {
	now := s.clock.Now()
	hash := AppHash(s.cfg.Root, s.cfg.WatchFiles)

	s.mu.Lock()
	switch {
	case testOverride:
		ms := strconv.FormatInt(now.UnixMilli(), 10)
		s.testHash = "test_" + ms[len(ms)-6:]
		s.testStart = now
		hash = s.testHash
	case s.testHash != "" && now.Sub(s.testStart) < testOverrideWindow:
		hash = s.testHash
	case s.testHash != "":
		s.testHash = ""
		s.testStart = time.Time{}
	}
	s.mu.Unlock()

	return model.Fingerprint{
		Version:   s.cfg.Version,
		AppHash:   hash,
		BuildTime: s.buildTime(now),
		Timestamp: now.UTC().Format(isoMillis),
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	fp := s.Fingerprint(r.URL.Query().Get("test") == "notification")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	writeJSON(w, http.StatusOK, fp)
}

type healthResponse struct {
	Status      string            `json:"status"`
	Timestamp   string            `json:"timestamp"`
	Version     string            `json:"version"`
	Environment string            `json:"environment"`
	Uptime      float64           `json:"uptime"`
	AppHash     string            `json:"appHash"`
	BuildTime   string            `json:"buildTime"`
	Checks      map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()
	resp := healthResponse{
		Status:      "healthy",
		Timestamp:   now.UTC().Format(isoMillis),
		Version:     s.cfg.Version,
		Environment: s.env,
		Uptime:      now.Sub(s.started).Seconds(),
		AppHash:     AppHash(s.cfg.Root, s.cfg.WatchFiles),
		BuildTime:   s.buildTime(now),
	}

	status := http.StatusOK
	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
		for name, check := range s.checks {
			if err := check(r.Context()); err != nil {
				s.log.Error().Err(err).Str("check", name).Msg("health check failed")
				resp.Checks[name] = err.Error()
				resp.Status = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) buildTime(now time.Time) string {
	if s.cfg.BuildTime != "" {
		return s.cfg.BuildTime
	}
	return now.UTC().Format(isoMillis)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("failed to write response")
	}
}
