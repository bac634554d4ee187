// Package api exposes the booking engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"mesabook/internal/booking"
	"mesabook/internal/cache"
	"mesabook/internal/capacity"
	"mesabook/internal/database"
)

// Options configures the HTTP server.
type Options struct {
	Addr     string
	APIKey   string // empty disables auth (local development)
	StaffKey string // key required for capacity overrides and staff endpoints

	// Reservation endpoint rate limit per client key.
	ReservationRate  float64
	ReservationBurst int
}

// HTTPServer serves the availability and reservation API.
type HTTPServer struct {
	db       *database.DB
	engine   *capacity.Engine
	coord    *booking.Coordinator
	cache    *cache.AvailabilityCache // nil when redis is disabled
	opts     Options
	log      *zerolog.Logger
	server   *http.Server
	limiters *clientLimiters
}

// NewHTTPServer wires the handlers.
func NewHTTPServer(opts Options, db *database.DB, engine *capacity.Engine, coord *booking.Coordinator, availCache *cache.AvailabilityCache, log *zerolog.Logger) *HTTPServer {
	if opts.ReservationRate <= 0 {
		opts.ReservationRate = 5
	}
	if opts.ReservationBurst <= 0 {
		opts.ReservationBurst = 10
	}

	s := &HTTPServer{
		db:       db,
		engine:   engine,
		coord:    coord,
		cache:    availCache,
		opts:     opts,
		log:      log,
		limiters: newClientLimiters(rate.Limit(opts.ReservationRate), opts.ReservationBurst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/restaurants/{id}/availability", s.handleAvailability)
	mux.HandleFunc("GET /api/restaurants/{id}/daily-capacity", s.handleDailyCapacity)
	mux.HandleFunc("POST /api/restaurants/{id}/reservations", s.handleCreateReservation)
	mux.HandleFunc("GET /api/restaurants/{id}/reservations", s.handleListReservations)
	mux.HandleFunc("GET /api/restaurants/{id}/reservations/export", s.handleExportReservations)
	mux.HandleFunc("PATCH /api/reservations/{id}/status", s.handleUpdateReservationStatus)
	mux.HandleFunc("GET /api/restaurants/{id}/policy", s.handleGetPolicy)
	mux.HandleFunc("PUT /api/restaurants/{id}/policy", s.handleUpdatePolicy)
	mux.HandleFunc("GET /api/restaurants/{id}/slot-overrides", s.handleListOverrides)
	mux.HandleFunc("PUT /api/restaurants/{id}/slot-overrides", s.handleUpsertOverride)
	mux.HandleFunc("DELETE /api/restaurants/{id}/slot-overrides", s.handleDeleteOverride)

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.requireAPIKey(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.server.Addr).Msg("api server started")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler exposes the configured handler for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.APIKey != "" {
			key := r.Header.Get("X-Api-Key")
			if key != s.opts.APIKey && (s.opts.StaffKey == "" || key != s.opts.StaffKey) {
				writeError(w, http.StatusUnauthorized, "invalid or missing API key")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// isStaff reports whether the request presented the staff key.
func (s *HTTPServer) isStaff(r *http.Request) bool {
	return s.opts.StaffKey != "" && r.Header.Get("X-Api-Key") == s.opts.StaffKey
}

func (s *HTTPServer) clientKey(r *http.Request) string {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func restaurantID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid restaurant id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// clientLimiters keeps a token bucket per client key for the
// reservation endpoint.
type clientLimiters struct {
	mu    sync.Mutex
	limit rate.Limit
	burst int
	m     map[string]*rate.Limiter
}

func newClientLimiters(limit rate.Limit, burst int) *clientLimiters {
	return &clientLimiters{limit: limit, burst: burst, m: make(map[string]*rate.Limiter)}
}

func (c *clientLimiters) allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	limiter, ok := c.m[key]
	if !ok {
		limiter = rate.NewLimiter(c.limit, c.burst)
		c.m[key] = limiter
	}
	return limiter.Allow()
}
