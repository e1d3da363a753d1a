package app

import (
	"fmt"

	"github.com/dokzlo13/echohue/internal/config"
	"github.com/dokzlo13/echohue/internal/device"
	"github.com/dokzlo13/echohue/internal/hue"
	"github.com/dokzlo13/echohue/internal/mqtt"
)

// backends holds the shared backend providers, nil when unused.
type backends struct {
	lua        *LuaService
	hue        *hue.Passthrough
	mqtt       mqtt.Publisher
	mqttTopics mqtt.Topics
}

// buildDevices creates the configured lights in config order.
func buildDevices(cfg []config.DeviceConfig, b backends) ([]*device.Device, error) {
	devices := make([]*device.Device, 0, len(cfg))
	for i, dc := range cfg {
		backend, err := b.backendFor(dc)
		if err != nil {
			return nil, fmt.Errorf("devices[%d] %q: %w", i, dc.Name, err)
		}
		devices = append(devices, device.NewWithBackend(dc.Name, dc.On, dc.Bri, backend))
	}
	return devices, nil
}

func (b backends) backendFor(dc config.DeviceConfig) (device.Backend, error) {
	switch dc.Backend {
	case config.BackendNone, "":
		return device.NopBackend{}, nil
	case config.BackendLua:
		if b.lua == nil {
			return nil, fmt.Errorf("lua backend is not available")
		}
		return b.lua.Backend(dc.Name), nil
	case config.BackendHue:
		if b.hue == nil {
			return nil, fmt.Errorf("hue backend is not available")
		}
		return b.hue.Backend(dc.HueLight), nil
	case config.BackendMQTT:
		if b.mqtt == nil {
			return nil, fmt.Errorf("mqtt backend is not available")
		}
		return mqtt.NewBackend(b.mqtt, b.mqttTopics, dc.Topic), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", dc.Backend)
	}
}
