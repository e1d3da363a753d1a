package app

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/echohue/internal/bridge"
	"github.com/dokzlo13/echohue/internal/config"
	"github.com/dokzlo13/echohue/internal/db"
	"github.com/dokzlo13/echohue/internal/device"
	"github.com/dokzlo13/echohue/internal/eventbus"
	"github.com/dokzlo13/echohue/internal/hue"
	"github.com/dokzlo13/echohue/internal/ledger"
	"github.com/dokzlo13/echohue/internal/mdns"
	"github.com/dokzlo13/echohue/internal/metrics"
	"github.com/dokzlo13/echohue/internal/mqtt"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	Prometheus *prometheus.Registry
	Metrics    *metrics.Metrics
	Bus        *eventbus.Bus
	DB         *db.DB
	Ledger     *LedgerService

	// Backends
	Lua  *LuaService
	MQTT *mqtt.Client

	// Bridge and its surroundings
	Hub    *bridge.Hub
	MDNS   *mdns.Advertiser
	Status *StatusService

	hubDone chan struct{}
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	if err := cfg.Bridge.Resolve(); err != nil {
		return nil, err
	}

	s := &Services{cfg: cfg}

	s.Prometheus = prometheus.NewRegistry()
	s.Prometheus.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(s.Prometheus)
	if err != nil {
		return nil, err
	}
	s.Metrics = m

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	if cfg.Ledger.Enabled {
		database, err := db.Open(cfg.Ledger.Path)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.DB = database

		retention := time.Duration(cfg.Ledger.RetentionDays) * 24 * time.Hour
		s.Ledger = NewLedgerService(ledger.New(database.DB), retention, cfg.Ledger.CleanupInterval.Duration())
		s.Ledger.Subscribe(s.Bus)
	}

	var b backends

	if cfg.UsesBackend(config.BackendLua) {
		s.Lua = NewLuaService(cfg)
		if err := s.Lua.LoadScript(); err != nil {
			s.Close()
			return nil, err
		}
		b.lua = s.Lua
	}

	if cfg.UsesBackend(config.BackendHue) {
		b.hue = hue.NewPassthrough(cfg.Hue.Bridge, cfg.Hue.Token, cfg.Hue.RateLimitRPS)
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.MQTT = client
		b.mqtt = client
		b.mqttTopics = client.Topics()
		mqtt.NewStatePublisher(client, client.Topics()).Subscribe(s.Bus)
	}

	devices, err := buildDevices(cfg.Devices, b)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Hub = bridge.NewHub(hubConfig(cfg.Bridge), s.Metrics)
	s.Hub.Registry().OnChange(func(c device.Change) {
		s.Bus.Publish(eventbus.LightChanged(c))
	})
	s.Hub.OnDiscovery(func(searchTarget string, to *net.UDPAddr) {
		s.Bus.Publish(eventbus.DiscoveryAnswered(searchTarget, to.String()))
	})
	s.Hub.Register(devices...)

	if cfg.MDNS.Enabled {
		s.MDNS = mdns.NewAdvertiser(cfg.MDNS.Instance, net.ParseIP(cfg.Bridge.IP), cfg.Bridge.HTTPPort, cfg.Bridge.Serial)
	}

	if cfg.Status.Enabled {
		s.Status = NewStatusService(cfg.Status.Host, cfg.Status.Port, cfg.ShutdownTimeout.Duration(),
			s.Hub.Running, s.Hub.Registry(), s.Prometheus)
	}

	return s, nil
}

func hubConfig(b config.BridgeConfig) bridge.Config {
	return bridge.Config{
		IP:               net.ParseIP(b.IP).To4(),
		HTTPPort:         b.HTTPPort,
		MulticastAddr:    net.ParseIP(b.MulticastAddr).To4(),
		MulticastPort:    b.MulticastPort,
		AnnounceInterval: b.AnnounceInterval.Duration(),
		Serial:           b.Serial,
		MAC:              b.MAC,
		Gateway:          b.GatewayIP,
	}
}

// Start starts all services in the correct order.
// The onFatalError callback is called when the bridge stops unexpectedly.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	if s.Status != nil {
		if err := s.Status.Listen(); err != nil {
			return err
		}
		s.Status.Start(ctx)
	}

	if s.Lua != nil {
		s.Lua.Start(ctx)
	}

	if s.Ledger != nil {
		s.Ledger.Start(ctx)
	}

	s.hubDone = make(chan struct{})
	go func() {
		defer close(s.hubDone)
		if err := s.Hub.Run(ctx); err != nil {
			onFatalError(err)
		}
	}()

	if s.MDNS != nil {
		if err := s.MDNS.Start(); err != nil {
			log.Warn().Err(err).Msg("mDNS advertisement unavailable")
		}
	}

	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	var errs []error

	if s.Hub != nil {
		errs = append(errs, s.Hub.Stop())
		if s.hubDone != nil {
			<-s.hubDone
		}
	}

	s.Close()
	return errors.Join(errs...)
}

// Close releases all resources.
func (s *Services) Close() {
	if s.MDNS != nil {
		if err := s.MDNS.Shutdown(); err != nil {
			log.Error().Err(err).Msg("mDNS shutdown error")
		}
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.Lua != nil {
		s.Lua.Close()
	}
	if s.MQTT != nil {
		s.MQTT.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
