// Package httpd implements the minimal bridge REST surface over raw TCP.
//
// Requests are read with a small fixed budget, routed by substring and
// regular expression, answered with a single write and closed. There is no
// keep-alive and no idle timeout.
package httpd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/echohue/internal/device"
	"github.com/dokzlo13/echohue/internal/metrics"
)

const (
	readChunk   = 1024
	maxReads    = 3
	maxBodySize = 64 << 10
)

var (
	headerEnd     = []byte("\r\n\r\n")
	contentLength = regexp.MustCompile(`(?im)^content-length:\s*(\d+)`)
)

// Server is the raw-TCP request server.
type Server struct {
	addr     string
	registry *device.Registry
	docs     *documents
	metrics  *metrics.Metrics
	now      func() time.Time

	listener net.Listener
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewServer renders the static documents for id and returns a server that
// will listen on addr.
func NewServer(addr string, id Identity, registry *device.Registry, m *metrics.Metrics) (*Server, error) {
	docs, err := renderDocuments(id)
	if err != nil {
		return nil, err
	}
	return &Server{
		addr:     addr,
		registry: registry,
		docs:     docs,
		metrics:  m,
		now:      time.Now,
		stopped:  make(chan struct{}),
	}, nil
}

// Listen binds the TCP listener.
func (s *Server) Listen(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp4", s.addr)
	if err != nil {
		return fmt.Errorf("httpd: failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run accepts connections until Stop is called or ctx is cancelled. Every
// connection is served on its own goroutine and is not awaited on exit.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("httpd: not listening")
	}

	log.Info().Str("addr", s.listener.Addr().String()).Msg("Starting HTTP server")

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopped:
		}
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-s.stopped:
				return nil
			default:
			}
			log.Error().Err(err).Msg("Failed to accept connection")
			continue
		}

		log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Received connection")
		go s.serve(ctx, conn)
	}
}

// Stop closes the listener. Safe to call more than once.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		log.Debug().Msg("Stopping HTTP server")
		close(s.stopped)
		if s.listener != nil {
			if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
				err = cerr
			}
		}
	})
	return err
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	data, err := readRequest(conn)
	if len(data) == 0 {
		if err != nil {
			log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("Connection closed without data")
		}
		return
	}

	resp := s.route(ctx, parseRequest(data))
	if _, err := conn.Write(resp); err != nil {
		log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("Failed to write response")
	}
}

// readRequest reads up to three chunks, stopping at the end of the header
// block, then completes a body announced by Content-Length.
func readRequest(conn net.Conn) ([]byte, error) {
	var data []byte
	buf := make([]byte, readChunk)

	for i := 0; i < maxReads; i++ {
		n, err := conn.Read(buf)
		data = append(data, buf[:n]...)
		if err != nil {
			return data, err
		}
		if bytes.Contains(data, headerEnd) {
			break
		}
	}

	sep := bytes.Index(data, headerEnd)
	if sep < 0 {
		return data, nil
	}
	want := announcedLength(data[:sep])
	if want > maxBodySize {
		want = maxBodySize
	}
	have := len(data) - sep - len(headerEnd)
	if have >= want {
		return data, nil
	}

	rest := make([]byte, want-have)
	n, err := readFull(conn, rest)
	return append(data, rest[:n]...), err
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func announcedLength(header []byte) int {
	m := contentLength.FindSubmatch(header)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
