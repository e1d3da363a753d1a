package device

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry is the ordered set of lights served by the bridge.
// Indices are assigned in registration order, starting at zero.
type Registry struct {
	mu       sync.RWMutex
	devices  []*Device
	logger   zerolog.Logger
	onChange func(Change)
}

// NewRegistry creates an empty registry. Registered devices log through
// child loggers of logger.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{logger: logger}
}

// OnChange sets the callback invoked after every Apply on any registered
// device. Must be set before Register to reach every device.
func (r *Registry) OnChange(fn func(Change)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Register appends devices in call order and returns them.
func (r *Registry) Register(devices ...*Device) []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range devices {
		index := len(r.devices)
		logger := r.logger.With().
			Int("light", index+1).
			Str("name", d.name).
			Logger()
		d.register(index, newUniqueID(), logger, r.notify)
		r.devices = append(r.devices, d)

		r.logger.Debug().Int("light", index+1).Str("name", d.name).Msg("Adding device")
	}
	return devices
}

func (r *Registry) notify(c Change) {
	r.mu.RLock()
	fn := r.onChange
	r.mu.RUnlock()
	if fn != nil {
		fn(c)
	}
}

// Get returns the device at a zero-based index.
func (r *Registry) Get(index int) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.devices) {
		return nil, false
	}
	return r.devices[index], true
}

// All returns the devices in registry order.
func (r *Registry) All() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, len(r.devices))
	copy(out, r.devices)
	return out
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// newUniqueID builds an id shaped like "00:11:22:33:44:55:66:77-88".
func newUniqueID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")[:18]
	pairs := make([]string, 0, 8)
	for i := 0; i < 16; i += 2 {
		pairs = append(pairs, hex[i:i+2])
	}
	return strings.Join(pairs, ":") + "-" + hex[16:18]
}
