// Package mdns advertises the emulated bridge as a _hue._tcp service.
package mdns

import (
	"fmt"
	"net"
	"strings"
	"sync"

	hmdns "github.com/hashicorp/mdns"
	"github.com/rs/zerolog/log"
)

const (
	// Service is the DNS-SD service type Hue apps browse for.
	Service = "_hue._tcp"
	// ModelID is the bridge model advertised in TXT.
	ModelID = "BSB002"
)

// Advertiser owns the mDNS responder.
type Advertiser struct {
	instance string
	ip       net.IP
	port     int
	serial   string

	mu     sync.Mutex
	server *hmdns.Server
}

// NewAdvertiser creates an advertiser for the bridge reachable at ip:port.
func NewAdvertiser(instance string, ip net.IP, port int, serial string) *Advertiser {
	return &Advertiser{instance: instance, ip: ip, port: port, serial: serial}
}

// txt returns the TXT records. Real bridges use the lower-case serial.
func (a *Advertiser) txt() []string {
	return []string{
		"bridgeid=" + strings.ToLower(a.serial),
		"modelid=" + ModelID,
	}
}

func (a *Advertiser) service() (*hmdns.MDNSService, error) {
	return hmdns.NewMDNSService(a.instance, Service, "", "", a.port, []net.IP{a.ip}, a.txt())
}

// Start begins answering mDNS queries. Calling Start twice is a no-op.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}

	svc, err := a.service()
	if err != nil {
		return fmt.Errorf("mdns service: %w", err)
	}

	server, err := hmdns.NewServer(&hmdns.Config{Zone: svc})
	if err != nil {
		return fmt.Errorf("mdns server: %w", err)
	}
	a.server = server

	log.Info().
		Str("instance", a.instance).
		Str("service", Service).
		Int("port", a.port).
		Msg("mDNS advertisement started")
	return nil
}

// Shutdown stops answering queries.
func (a *Advertiser) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return nil
	}
	err := a.server.Shutdown()
	a.server = nil
	return err
}
