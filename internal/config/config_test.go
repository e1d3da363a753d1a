package config

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("devices:\n  - name: Lamp\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"http_port", cfg.Bridge.HTTPPort, 80},
		{"multicast_addr", cfg.Bridge.MulticastAddr, "239.255.255.250"},
		{"multicast_port", cfg.Bridge.MulticastPort, 1900},
		{"announce_interval", cfg.Bridge.AnnounceInterval.Duration(), 200 * time.Second},
		{"gateway", cfg.Bridge.GatewayIP, "1.1.1.1"},
		{"log_level", cfg.Log.Level, "info"},
		{"status_port", cfg.Status.Port, 9090},
		{"mqtt_prefix", cfg.MQTT.TopicPrefix, "echohue"},
		{"hue_rps", cfg.Hue.RateLimitRPS, 10.0},
		{"device_backend", cfg.Devices[0].Backend, BackendNone},
		{"device_bri", cfg.Devices[0].Bri, 1},
		{"shutdown_timeout", cfg.ShutdownTimeout.Duration(), 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("ECHOHUE_TEST_PORT", "8080")

	cfg, err := Parse([]byte(`
bridge:
  http_port: ${ECHOHUE_TEST_PORT}
  gateway_ip: ${ECHOHUE_TEST_UNSET:10.0.0.1}
  announce_interval: 30s
  serial: abcdef123456
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Bridge.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.Bridge.HTTPPort)
	}
	if cfg.Bridge.GatewayIP != "10.0.0.1" {
		t.Errorf("GatewayIP = %q, want 10.0.0.1", cfg.Bridge.GatewayIP)
	}
	if cfg.Bridge.AnnounceInterval.Duration() != 30*time.Second {
		t.Errorf("AnnounceInterval = %v, want 30s", cfg.Bridge.AnnounceInterval.Duration())
	}
	if cfg.Bridge.Serial != "ABCDEF123456" {
		t.Errorf("Serial = %q, want upper case", cfg.Bridge.Serial)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad_serial",
			yaml:    "bridge:\n  serial: xyz\n",
			wantErr: "bridge.serial",
		},
		{
			name:    "unnamed_device",
			yaml:    "devices:\n  - bri: 10\n",
			wantErr: "name is required",
		},
		{
			name:    "duplicate_device",
			yaml:    "devices:\n  - name: A\n  - name: A\n",
			wantErr: "duplicate name",
		},
		{
			name:    "unknown_backend",
			yaml:    "devices:\n  - name: A\n    backend: zigbee\n",
			wantErr: "unknown backend",
		},
		{
			name:    "hue_without_light",
			yaml:    "hue:\n  bridge: 10.0.0.2\ndevices:\n  - name: A\n    backend: hue\n",
			wantErr: "hue_light",
		},
		{
			name:    "mqtt_disabled",
			yaml:    "devices:\n  - name: A\n    backend: mqtt\n",
			wantErr: "mqtt must be enabled",
		},
		{
			name:    "bad_duration",
			yaml:    "bridge:\n  announce_interval: soon\n",
			wantErr: "duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestUsesBackend(t *testing.T) {
	cfg, err := Parse([]byte("lua:\n  script: x.lua\ndevices:\n  - name: A\n    backend: lua\n  - name: B\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.UsesBackend(BackendLua) || !cfg.UsesBackend(BackendNone) {
		t.Error("expected lua and none backends in use")
	}
	if cfg.UsesBackend(BackendHue) {
		t.Error("hue backend reported in use")
	}
}

func TestGenerateSerial(t *testing.T) {
	serial := GenerateSerial()
	if !serialPattern.MatchString(serial) {
		t.Errorf("GenerateSerial() = %q, want 12 upper-case hex characters", serial)
	}
	if GenerateSerial() == serial {
		t.Error("two serials are equal")
	}
}

func TestMACFromSerial(t *testing.T) {
	tests := []struct {
		serial string
		want   string
	}{
		{"ABCDEF123456", "AB:CD:EF:12:34:56"},
		{"001122", "00:11:22"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MACFromSerial(tt.serial); got != tt.want {
			t.Errorf("MACFromSerial(%q) = %q, want %q", tt.serial, got, tt.want)
		}
	}
}

func TestBridgeConfig_Resolve(t *testing.T) {
	b := BridgeConfig{IP: "127.0.0.1", MulticastAddr: "239.255.255.250"}
	if err := b.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(b.Serial) != 12 {
		t.Errorf("Serial = %q", b.Serial)
	}
	if b.MAC != MACFromSerial(b.Serial) {
		t.Errorf("MAC = %q, want derived from serial", b.MAC)
	}

	detected := BridgeConfig{MulticastAddr: "239.255.255.250"}
	if err := detected.Resolve(); err != nil {
		t.Fatalf("Resolve with detection: %v", err)
	}
	if net.ParseIP(detected.IP) == nil {
		t.Errorf("detected IP = %q", detected.IP)
	}

	bad := BridgeConfig{IP: "not-an-ip", MulticastAddr: "239.255.255.250"}
	if err := bad.Resolve(); err == nil {
		t.Error("expected error for bad ip")
	}
}
