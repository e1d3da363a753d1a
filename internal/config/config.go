package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Device backend names.
const (
	BackendNone = "none"
	BackendLua  = "lua"
	BackendHue  = "hue"
	BackendMQTT = "mqtt"
)

// Config represents the application configuration
type Config struct {
	Bridge          BridgeConfig   `yaml:"bridge"`
	Log             LogConfig      `yaml:"log"`
	Ledger          LedgerConfig   `yaml:"ledger"`
	Status          StatusConfig   `yaml:"status"`
	EventBus        EventBusConfig `yaml:"eventbus"`
	MDNS            MDNSConfig     `yaml:"mdns"`
	MQTT            MQTTConfig     `yaml:"mqtt"`
	Hue             HueConfig      `yaml:"hue"`
	Lua             LuaConfig      `yaml:"lua"`
	Devices         []DeviceConfig `yaml:"devices"`
	ShutdownTimeout Duration       `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// BridgeConfig contains the emulated bridge identity and network settings.
// Empty IP, serial and MAC are filled in by Resolve.
type BridgeConfig struct {
	IP               string   `yaml:"ip"`
	HTTPPort         int      `yaml:"http_port"`
	MulticastAddr    string   `yaml:"multicast_addr"`
	MulticastPort    int      `yaml:"multicast_port"`
	AnnounceInterval Duration `yaml:"announce_interval"`
	Serial           string   `yaml:"serial"`
	MAC              string   `yaml:"mac"`
	GatewayIP        string   `yaml:"gateway_ip"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// LedgerConfig contains audit ledger settings
type LedgerConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Path            string   `yaml:"path"`
	RetentionDays   int      `yaml:"retention_days"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// StatusConfig contains the status server settings (/health, /ready, /metrics, /lights)
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// MDNSConfig contains the _hue._tcp advertisement settings
type MDNSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// MQTTConfig contains broker settings for the mqtt backend and state publisher
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// HueConfig contains the real bridge used by the hue passthrough backend
type HueConfig struct {
	Bridge       string  `yaml:"bridge"`
	Token        string  `yaml:"token"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
}

// LuaConfig contains the script for the lua backend
type LuaConfig struct {
	Script string `yaml:"script"`
}

// DeviceConfig describes one emulated light
type DeviceConfig struct {
	Name     string `yaml:"name"`
	On       bool   `yaml:"on"`
	Bri      int    `yaml:"bri"`
	Backend  string `yaml:"backend"`   // none, lua, hue or mqtt (default: none)
	HueLight int    `yaml:"hue_light"` // Real light ID, hue backend only
	Topic    string `yaml:"topic"`     // Topic segment, mqtt backend only (default: light number)
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes and applies defaults
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	// Bridge defaults
	if cfg.Bridge.HTTPPort == 0 {
		cfg.Bridge.HTTPPort = 80
	}
	if cfg.Bridge.MulticastAddr == "" {
		cfg.Bridge.MulticastAddr = "239.255.255.250"
	}
	if cfg.Bridge.MulticastPort == 0 {
		cfg.Bridge.MulticastPort = 1900
	}
	if cfg.Bridge.AnnounceInterval == 0 {
		cfg.Bridge.AnnounceInterval = Duration(200 * time.Second)
	}
	if cfg.Bridge.GatewayIP == "" {
		cfg.Bridge.GatewayIP = "1.1.1.1"
	}
	cfg.Bridge.Serial = strings.ToUpper(cfg.Bridge.Serial)

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Ledger defaults
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = "./echohue.sqlite"
	}
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// Status server defaults
	if cfg.Status.Port == 0 {
		cfg.Status.Port = 9090
	}
	if cfg.Status.Host == "" {
		cfg.Status.Host = "0.0.0.0"
	}

	if cfg.MDNS.Instance == "" {
		cfg.MDNS.Instance = "Philips Hue"
	}

	// MQTT defaults
	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = "tcp://localhost:1883"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "echohue"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "echohue"
	}

	if cfg.Hue.RateLimitRPS == 0 {
		cfg.Hue.RateLimitRPS = 10.0 // 10 requests per second
	}

	if cfg.Lua.Script == "" {
		cfg.Lua.Script = "devices.lua"
	}

	for i := range cfg.Devices {
		if cfg.Devices[i].Backend == "" {
			cfg.Devices[i].Backend = BackendNone
		}
		if cfg.Devices[i].Bri == 0 {
			cfg.Devices[i].Bri = 1
		}
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate checks settings that have no sensible default
func (cfg *Config) Validate() error {
	if cfg.Bridge.Serial != "" && !serialPattern.MatchString(cfg.Bridge.Serial) {
		return fmt.Errorf("bridge.serial must be 12 hex characters, got %q", cfg.Bridge.Serial)
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
	}

	seen := make(map[string]bool, len(cfg.Devices))
	for i, d := range cfg.Devices {
		if d.Name == "" {
			return fmt.Errorf("devices[%d]: name is required", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("devices[%d]: duplicate name %q", i, d.Name)
		}
		seen[d.Name] = true

		switch d.Backend {
		case BackendNone, BackendLua:
		case BackendHue:
			if d.HueLight <= 0 {
				return fmt.Errorf("devices[%d] %q: hue_light is required for the hue backend", i, d.Name)
			}
			if cfg.Hue.Bridge == "" {
				return fmt.Errorf("devices[%d] %q: hue.bridge is required for the hue backend", i, d.Name)
			}
		case BackendMQTT:
			if !cfg.MQTT.Enabled {
				return fmt.Errorf("devices[%d] %q: mqtt must be enabled for the mqtt backend", i, d.Name)
			}
		default:
			return fmt.Errorf("devices[%d] %q: unknown backend %q", i, d.Name, d.Backend)
		}
	}
	return nil
}

// UsesBackend reports whether any device is driven by the named backend
func (cfg *Config) UsesBackend(name string) bool {
	for _, d := range cfg.Devices {
		if d.Backend == name {
			return true
		}
	}
	return false
}

var serialPattern = regexp.MustCompile(`^[0-9A-F]{12}$`)

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
