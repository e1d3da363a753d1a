// Package ssdp implements the discovery side of the emulated bridge: the
// periodic NOTIFY announcement and the M-SEARCH responder.
package ssdp

import (
	"fmt"
	"net"
	"strings"
)

// Search targets understood by the responder.
const (
	SearchMarker  = "M-SEARCH"
	TargetBasic   = "urn:schemas-upnp-org:device:basic:1"
	TargetRoot    = "upnp:rootdevice"
	TargetAll     = "ssdp:all"
	serverBanner  = "FreeRTOS/6.0.5, UPnP/1.0, IpBridge/0.1"
	uuidPrefix    = "2f402f80-da50-11e1-9b23-"
	cacheControl  = "max-age=100"
	descriptionAt = "description.xml"
)

// Config is what the discovery side needs to know about the bridge.
type Config struct {
	// LocalIP is the address announced in LOCATION and used as reply source.
	LocalIP net.IP
	// HTTPPort is the port of the request server.
	HTTPPort int
	// Group is the multicast group and port, normally 239.255.255.250:1900.
	Group *net.UDPAddr
	// Serial is embedded in the USN uuid.
	Serial string
}

func (c Config) location() string {
	return fmt.Sprintf("http://%s:%d/%s", c.LocalIP, c.HTTPPort, descriptionAt)
}

func (c Config) usn() string {
	return fmt.Sprintf("uuid:%s%s::%s", uuidPrefix, c.Serial, TargetRoot)
}

func crlf(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n\r\n"
}

// NotifyMessage renders the ssdp:alive announcement.
func NotifyMessage(c Config) string {
	return crlf(
		"NOTIFY * HTTP/1.1",
		"HOST: "+c.Group.String(),
		"CACHE-CONTROL: "+cacheControl,
		"LOCATION: "+c.location(),
		"SERVER: "+serverBanner,
		"NTS: ssdp:alive",
		"NT: "+TargetRoot,
		"USN: "+c.usn(),
	)
}

// ResponseMessage renders the unicast reply advertising searchTarget.
func ResponseMessage(c Config, searchTarget string) string {
	return crlf(
		"HTTP/1.1 200 OK",
		"CACHE-CONTROL: "+cacheControl,
		"EXT:",
		"LOCATION: "+c.location(),
		"SERVER: "+serverBanner,
		"ST: "+searchTarget,
		"USN: "+c.usn(),
	)
}

// MatchTarget decides which search target a probe should be answered with.
// It returns false when the payload is not a probe or asks for something
// the bridge does not advertise.
func MatchTarget(payload string) (string, bool) {
	if !strings.Contains(payload, SearchMarker) {
		return "", false
	}
	switch {
	case strings.Contains(payload, TargetBasic):
		return TargetBasic, true
	case strings.Contains(payload, TargetRoot):
		return TargetRoot, true
	case strings.Contains(payload, TargetAll):
		// Blanket probes are answered as rootdevice probes.
		return TargetRoot, true
	default:
		return "", false
	}
}
