package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
)

// probeTarget is never contacted; connecting a UDP socket only selects the
// outbound interface.
const probeTarget = "10.254.254.254:1"

// DetectLocalIP returns the address of the interface used for outbound
// traffic, falling back to loopback.
func DetectLocalIP() net.IP {
	conn, err := net.Dial("udp4", probeTarget)
	if err != nil {
		return net.IPv4(127, 0, 0, 1)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP
}

// GenerateSerial returns 12 upper-case hex characters from a random uuid.
func GenerateSerial() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(hex[:12])
}

// MACFromSerial splits a serial into colon separated byte pairs.
func MACFromSerial(serial string) string {
	pairs := make([]string, 0, len(serial)/2)
	for i := 0; i+1 < len(serial); i += 2 {
		pairs = append(pairs, serial[i:i+2])
	}
	return strings.Join(pairs, ":")
}

// Resolve fills in the bridge identity that was left empty and checks the
// addresses parse.
func (b *BridgeConfig) Resolve() error {
	if b.IP == "" {
		b.IP = DetectLocalIP().String()
	}
	if net.ParseIP(b.IP).To4() == nil {
		return fmt.Errorf("bridge.ip %q is not an IPv4 address", b.IP)
	}
	if net.ParseIP(b.MulticastAddr).To4() == nil {
		return fmt.Errorf("bridge.multicast_addr %q is not an IPv4 address", b.MulticastAddr)
	}
	if b.Serial == "" {
		b.Serial = GenerateSerial()
	}
	if b.MAC == "" {
		b.MAC = MACFromSerial(b.Serial)
	}
	return nil
}
