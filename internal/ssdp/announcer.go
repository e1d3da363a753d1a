package ssdp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/ipv4"

	"github.com/dokzlo13/echohue/internal/metrics"
)

// MulticastTTL lets announcements cross typical home network segments.
const MulticastTTL = 20

// Announcer periodically multicasts the ssdp:alive notification.
type Announcer struct {
	cfg      Config
	interval time.Duration
	message  []byte
	metrics  *metrics.Metrics

	conn     *net.UDPConn
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewAnnouncer creates an announcer. The message is rendered once here.
func NewAnnouncer(cfg Config, interval time.Duration, m *metrics.Metrics) *Announcer {
	return &Announcer{
		cfg:      cfg,
		interval: interval,
		message:  []byte(NotifyMessage(cfg)),
		metrics:  m,
		stopped:  make(chan struct{}),
	}
}

// Listen opens the outbound socket on the local address.
func (a *Announcer) Listen() error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: a.cfg.LocalIP})
	if err != nil {
		return fmt.Errorf("announcer: failed to bind %s: %w", a.cfg.LocalIP, err)
	}
	if err := ipv4.NewPacketConn(conn).SetMulticastTTL(MulticastTTL); err != nil {
		conn.Close()
		return fmt.Errorf("announcer: failed to set multicast ttl: %w", err)
	}
	a.conn = conn
	return nil
}

// Run sends the announcement every interval until Stop is called or ctx is
// cancelled. Listen must have succeeded first.
func (a *Announcer) Run(ctx context.Context) error {
	if a.conn == nil {
		return errors.New("announcer: not listening")
	}

	log.Info().
		Str("group", a.cfg.Group.String()).
		Dur("interval", a.interval).
		Msg("Starting announcement loop")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.stopped:
			return nil
		case <-timer.C:
		}

		log.Debug().Msg("Sending announcement")
		if _, err := a.conn.WriteToUDP(a.message, a.cfg.Group); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn().Err(err).Msg("Failed to send announcement")
		} else {
			a.metrics.Announced()
		}

		timer.Reset(a.interval)
	}
}

// Stop closes the socket and wakes the loop. Safe to call more than once.
func (a *Announcer) Stop() error {
	var err error
	a.stopOnce.Do(func() {
		log.Debug().Msg("Stopping announcement loop")
		close(a.stopped)
		err = closeConn(a.conn)
	})
	return err
}

func closeConn(conn *net.UDPConn) error {
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
