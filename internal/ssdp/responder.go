package ssdp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"syscall"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/ipv4"

	"github.com/dokzlo13/echohue/internal/metrics"
)

// MaxProbeSize is the largest probe read from the socket.
const MaxProbeSize = 1024

// ReplyFunc is called after a probe was answered.
type ReplyFunc func(searchTarget string, to *net.UDPAddr)

// Responder answers M-SEARCH probes with unicast replies.
//
// Probes arrive on a socket joined to the multicast group. Replies leave
// from a second socket bound to the bridge's own address so they appear to
// originate from it.
type Responder struct {
	cfg       Config
	replyAddr *net.UDPAddr
	metrics   *metrics.Metrics
	onReply   ReplyFunc

	recv     *net.UDPConn
	send     *net.UDPConn
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewResponder creates a responder replying from LocalIP on the group port.
func NewResponder(cfg Config, m *metrics.Metrics) *Responder {
	return &Responder{
		cfg:       cfg,
		replyAddr: &net.UDPAddr{IP: cfg.LocalIP, Port: cfg.Group.Port},
		metrics:   m,
		stopped:   make(chan struct{}),
	}
}

// SetReplyAddr overrides the address replies are sent from.
func (r *Responder) SetReplyAddr(addr *net.UDPAddr) {
	r.replyAddr = addr
}

// OnReply registers a callback for answered probes.
func (r *Responder) OnReply(fn ReplyFunc) {
	r.onReply = fn
}

// Addr returns the local address of the receive socket.
func (r *Responder) Addr() *net.UDPAddr {
	if r.recv == nil {
		return nil
	}
	return r.recv.LocalAddr().(*net.UDPAddr)
}

// Listen binds both sockets and joins the multicast group. A failed group
// join is logged and tolerated: unicast probes still work.
func (r *Responder) Listen(ctx context.Context) error {
	lc := net.ListenConfig{Control: reuseAddr}

	pc, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf(":%d", r.cfg.Group.Port))
	if err != nil {
		return fmt.Errorf("responder: failed to bind port %d: %w", r.cfg.Group.Port, err)
	}
	recv := pc.(*net.UDPConn)

	if err := ipv4.NewPacketConn(recv).JoinGroup(nil, &net.UDPAddr{IP: r.cfg.Group.IP}); err != nil {
		log.Warn().Err(err).Str("group", r.cfg.Group.IP.String()).Msg("Failed to join multicast group")
	}

	pc, err = lc.ListenPacket(ctx, "udp4", r.replyAddr.String())
	if err != nil {
		recv.Close()
		return fmt.Errorf("responder: failed to bind reply socket %s: %w", r.replyAddr, err)
	}

	r.recv = recv
	r.send = pc.(*net.UDPConn)
	return nil
}

// Run reads probes until Stop is called or ctx is cancelled.
func (r *Responder) Run(ctx context.Context) error {
	if r.recv == nil || r.send == nil {
		return errors.New("responder: not listening")
	}

	log.Info().Str("addr", r.recv.LocalAddr().String()).Msg("Starting response loop")

	// Blocked reads only return once the socket is closed.
	go func() {
		select {
		case <-ctx.Done():
			r.Stop()
		case <-r.stopped:
		}
	}()

	buf := make([]byte, MaxProbeSize)
	for {
		n, addr, err := r.recv.ReadFromUDP(buf)
		if err != nil {
			if r.isShutdown(ctx, err) {
				return nil
			}
			log.Error().Err(err).Msg("Failed to read probe")
			continue
		}

		payload := buf[:n]
		if !utf8.Valid(payload) {
			log.Debug().Str("from", addr.String()).Msg("Ignoring undecodable datagram")
			continue
		}

		if err := r.handle(string(payload), addr); err != nil {
			if r.isShutdown(ctx, err) {
				return nil
			}
			log.Error().Err(err).Str("to", addr.String()).Msg("Failed to send probe reply")
		}
	}
}

func (r *Responder) handle(payload string, from *net.UDPAddr) error {
	target, ok := MatchTarget(payload)
	if !ok {
		if strings.Contains(payload, SearchMarker) {
			log.Debug().Str("from", from.String()).Msg("Ignoring M-SEARCH for unknown target")
			r.metrics.Probe("", false)
		}
		return nil
	}

	log.Debug().Str("from", from.String()).Str("st", target).Msg("Received M-SEARCH")

	if _, err := r.send.WriteToUDP([]byte(ResponseMessage(r.cfg, target)), from); err != nil {
		r.metrics.Probe(target, false)
		return err
	}
	r.metrics.Probe(target, true)

	if r.onReply != nil {
		r.onReply(target, from)
	}
	return nil
}

func (r *Responder) isShutdown(ctx context.Context, err error) bool {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	select {
	case <-r.stopped:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Stop closes both sockets. Safe to call more than once.
func (r *Responder) Stop() error {
	var err error
	r.stopOnce.Do(func() {
		log.Debug().Msg("Stopping response loop")
		close(r.stopped)
		err = errors.Join(closeConn(r.recv), closeConn(r.send))
	})
	return err
}
