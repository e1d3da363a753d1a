package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/echohue/internal/device"
)

// ReadyFunc reports whether the bridge is serving.
type ReadyFunc func() bool

// StatusService serves /health, /ready, /metrics and /lights.
type StatusService struct {
	addr            string
	shutdownTimeout time.Duration
	ready           ReadyFunc
	registry        *device.Registry
	gatherer        prometheus.Gatherer

	server   *http.Server
	listener net.Listener
}

// NewStatusService creates a new StatusService.
func NewStatusService(host string, port int, shutdownTimeout time.Duration, ready ReadyFunc, registry *device.Registry, gatherer prometheus.Gatherer) *StatusService {
	return &StatusService{
		addr:            fmt.Sprintf("%s:%d", host, port),
		shutdownTimeout: shutdownTimeout,
		ready:           ready,
		registry:        registry,
		gatherer:        gatherer,
	}
}

// Handler returns the status routes.
func (s *StatusService) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if s.ready == nil || !s.ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	mux.HandleFunc("/lights", func(w http.ResponseWriter, r *http.Request) {
		type light struct {
			ID       int              `json:"id"`
			Name     string           `json:"name"`
			UniqueID string           `json:"uniqueid"`
			State    device.StateJSON `json:"state"`
		}
		lights := []light{}
		for _, d := range s.registry.All() {
			lights = append(lights, light{
				ID:       d.Index() + 1,
				Name:     d.Name(),
				UniqueID: d.UniqueID(),
				State:    d.State().JSON(),
			})
		}
		writeJSON(w, http.StatusOK, lights)
	})

	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Listen binds the status address.
func (s *StatusService) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	s.listener = ln
	s.server = &http.Server{Handler: s.Handler()}
	return nil
}

// Addr returns the bound address, nil before Listen.
func (s *StatusService) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start serves until ctx is cancelled. Listen must have succeeded.
func (s *StatusService) Start(ctx context.Context) {
	log.Info().Str("addr", s.listener.Addr().String()).Msg("Starting status server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Status server shutdown error")
		}
	}()

	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Status server error")
		}
	}()
}
