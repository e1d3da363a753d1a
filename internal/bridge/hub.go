// Package bridge ties the discovery side, the request server and the device
// registry together under one lifecycle.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dokzlo13/echohue/internal/device"
	"github.com/dokzlo13/echohue/internal/httpd"
	"github.com/dokzlo13/echohue/internal/metrics"
	"github.com/dokzlo13/echohue/internal/ssdp"
)

// Defaults for a zero Config.
const (
	DefaultHTTPPort         = 80
	DefaultMulticastPort    = 1900
	DefaultAnnounceInterval = 200 * time.Second
	DefaultGateway          = "1.1.1.1"
)

// DefaultMulticastAddr is the SSDP group.
var DefaultMulticastAddr = net.IPv4(239, 255, 255, 250)

// Config is the bridge identity and network setup. It is read-only once
// the hub is running.
type Config struct {
	IP               net.IP
	HTTPPort         int
	MulticastAddr    net.IP
	MulticastPort    int
	AnnounceInterval time.Duration
	Serial           string
	MAC              string
	Gateway          string
}

func (c Config) withDefaults() Config {
	if c.MulticastAddr == nil {
		c.MulticastAddr = DefaultMulticastAddr
	}
	if c.AnnounceInterval <= 0 {
		c.AnnounceInterval = DefaultAnnounceInterval
	}
	if c.Gateway == "" {
		c.Gateway = DefaultGateway
	}
	return c
}

// Hub owns the device registry and runs the announcer, the discovery
// responder and the request server.
type Hub struct {
	cfg         Config
	registry    *device.Registry
	metrics     *metrics.Metrics
	onDiscovery ssdp.ReplyFunc

	mu        sync.Mutex
	stopped   bool
	announcer *ssdp.Announcer
	responder *ssdp.Responder
	server    *httpd.Server
	running   atomic.Bool
}

// NewHub creates a hub. Ports are used as given, zero binds an ephemeral
// port.
func NewHub(cfg Config, m *metrics.Metrics) *Hub {
	return &Hub{
		cfg:      cfg.withDefaults(),
		registry: device.NewRegistry(log.Logger.With().Str("component", "device").Logger()),
		metrics:  m,
	}
}

// Config returns the effective configuration.
func (h *Hub) Config() Config {
	return h.cfg
}

// Register adds devices in call order and returns them registered.
func (h *Hub) Register(devices ...*device.Device) []*device.Device {
	return h.registry.Register(devices...)
}

// Registry returns the device registry.
func (h *Hub) Registry() *device.Registry {
	return h.registry
}

// OnDiscovery sets a callback invoked for every answered probe. It must be
// called before Run.
func (h *Hub) OnDiscovery(fn ssdp.ReplyFunc) {
	h.onDiscovery = fn
}

// Running reports whether all three loops are up.
func (h *Hub) Running() bool {
	return h.running.Load()
}

// HTTPAddr returns the bound request server address, or nil.
func (h *Hub) HTTPAddr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.server == nil {
		return nil
	}
	return h.server.Addr()
}

// DiscoveryAddr returns the bound responder address, or nil.
func (h *Hub) DiscoveryAddr() *net.UDPAddr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.responder == nil {
		return nil
	}
	return h.responder.Addr()
}

// Run binds every component, then runs their loops until ctx is cancelled,
// Stop is called or a loop fails. A bind failure releases whatever was
// already bound and is returned.
func (h *Hub) Run(ctx context.Context) error {
	if err := h.bind(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return h.Stop()
	}
	announcer, responder, server := h.announcer, h.responder, h.server
	h.mu.Unlock()

	log.Info().
		Str("ip", h.cfg.IP.String()).
		Int("http_port", h.cfg.HTTPPort).
		Str("serial", h.cfg.Serial).
		Int("lights", h.registry.Len()).
		Msg("Bridge running")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return announcer.Run(gctx) })
	g.Go(func() error { return responder.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })

	// The announcer only watches its context, the socket loops need closing.
	go func() {
		<-gctx.Done()
		h.Stop()
	}()

	h.running.Store(true)
	err := g.Wait()
	h.running.Store(false)
	return err
}

func (h *Hub) bind(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.server != nil {
		return errors.New("bridge: already running")
	}

	discovery := ssdp.Config{
		LocalIP:  h.cfg.IP,
		HTTPPort: h.cfg.HTTPPort,
		Group:    &net.UDPAddr{IP: h.cfg.MulticastAddr, Port: h.cfg.MulticastPort},
		Serial:   h.cfg.Serial,
	}
	identity := httpd.Identity{
		IP:      h.cfg.IP,
		Port:    h.cfg.HTTPPort,
		Serial:  h.cfg.Serial,
		MAC:     h.cfg.MAC,
		Gateway: h.cfg.Gateway,
	}

	server, err := httpd.NewServer(
		net.JoinHostPort(h.cfg.IP.String(), strconv.Itoa(h.cfg.HTTPPort)),
		identity, h.registry, h.metrics)
	if err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	announcer := ssdp.NewAnnouncer(discovery, h.cfg.AnnounceInterval, h.metrics)
	responder := ssdp.NewResponder(discovery, h.metrics)
	responder.OnReply(h.onDiscovery)

	if err := responder.Listen(ctx); err != nil {
		return err
	}
	if err := announcer.Listen(); err != nil {
		responder.Stop()
		return err
	}
	if err := server.Listen(ctx); err != nil {
		responder.Stop()
		announcer.Stop()
		return err
	}

	h.announcer, h.responder, h.server = announcer, responder, server
	return nil
}

// Stop stops all three components, joining their errors. Safe to call
// more than once and before Run.
func (h *Hub) Stop() error {
	h.mu.Lock()
	h.stopped = true
	announcer, responder, server := h.announcer, h.responder, h.server
	h.mu.Unlock()

	if server == nil {
		return nil
	}
	return errors.Join(announcer.Stop(), responder.Stop(), server.Stop())
}
