// Package device models the virtual lights exposed by the emulated bridge.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
)

// ColorMode names the color family that last determined a light's color.
type ColorMode string

const (
	ColorModeHS ColorMode = "hs"
	ColorModeXY ColorMode = "xy"
	ColorModeCT ColorMode = "ct"
)

// Attribute names accepted by Apply.
const (
	AttrOn  = "on"
	AttrBri = "bri"
	AttrCT  = "ct"
	AttrXY  = "xy"
	AttrHue = "hue"
	AttrSat = "sat"
)

// Value ranges
const (
	MinBri = 1
	MaxBri = 254
	MaxHue = 65535
	MaxSat = 254
	MinCT  = 153
	MaxCT  = 500
)

const (
	defaultCT  = 199
	defaultSat = 254
)

var (
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrInvalidValue     = errors.New("invalid attribute value")
	ErrNotRegistered    = errors.New("device not registered")
)

// State is the photometric state of a light.
type State struct {
	On        bool
	Bri       uint8
	Hue       uint16
	Sat       uint8
	CT        uint16
	XY        [2]float64
	ColorMode ColorMode
}

// Change is reported after every Apply.
type Change struct {
	Index   int
	Name    string
	Results []Result
	State   State
}

// Device is a single virtual light.
//
// A Device is created unregistered; Registry.Register gives it an index,
// a unique id and a logger. Apply is serialized per device.
type Device struct {
	mu sync.Mutex

	name     string
	index    int
	uniqueID string
	backend  Backend
	logger   zerolog.Logger
	notify   func(Change)

	registered bool
	state      State
}

// New creates an unregistered device backed by NopBackend.
// Out-of-range brightness falls back to the minimum.
func New(name string, on bool, bri int) *Device {
	return NewWithBackend(name, on, bri, NopBackend{})
}

// NewWithBackend creates an unregistered device driven by backend.
func NewWithBackend(name string, on bool, bri int, backend Backend) *Device {
	if bri < MinBri || bri > MaxBri {
		bri = MinBri
	}
	if backend == nil {
		backend = NopBackend{}
	}
	return &Device{
		name:    name,
		index:   -1,
		backend: backend,
		logger:  zerolog.Nop(),
		state: State{
			On:        on,
			Bri:       uint8(bri),
			Hue:       0,
			Sat:       defaultSat,
			CT:        defaultCT,
			XY:        [2]float64{0, 0},
			ColorMode: ColorModeCT,
		},
	}
}

// Name returns the display name.
func (d *Device) Name() string {
	return d.name
}

// Index returns the zero-based registry index, or -1 before registration.
func (d *Device) Index() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.index
}

// UniqueID returns the Hue-style unique id assigned at registration.
func (d *Device) UniqueID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uniqueID
}

// State returns a copy of the current state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Device) register(index int, uniqueID string, logger zerolog.Logger, notify func(Change)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.index = index
	d.uniqueID = uniqueID
	d.logger = logger
	d.notify = notify
	d.registered = true

	if b, ok := d.backend.(Binder); ok {
		b.Bind(index, d.name)
	}
}

// Apply runs every attribute through the backend in order and commits the
// ones the backend accepts. Each attribute succeeds or fails on its own.
func (d *Device) Apply(ctx context.Context, attrs Attributes) []Result {
	d.mu.Lock()

	results := make([]Result, 0, len(attrs))
	for _, attr := range attrs {
		address := fmt.Sprintf("/lights/%d/state/%s", d.index+1, attr.Key)
		if !d.registered {
			results = append(results, failure(address, attr.Key, ErrNotRegistered))
			continue
		}

		if err := d.applyOne(ctx, attr); err != nil {
			d.logger.Warn().Err(err).Str("attribute", attr.Key).Msg("Attribute update failed")
			results = append(results, failure(address, attr.Key, err))
			continue
		}
		results = append(results, success(address, attr.Key, attr.Value))
	}

	change := Change{Index: d.index, Name: d.name, Results: results, State: d.state}
	notify := d.notify
	d.mu.Unlock()

	if notify != nil && len(results) > 0 {
		notify(change)
	}
	return results
}

// applyOne must be called with d.mu held.
func (d *Device) applyOne(ctx context.Context, attr Attribute) error {
	switch attr.Key {
	case AttrOn:
		var on bool
		if err := json.Unmarshal(attr.Value, &on); err != nil {
			return fmt.Errorf("%w: on: %v", ErrInvalidValue, err)
		}
		d.logger.Debug().Bool("on", on).Msg("on received")
		if on {
			if err := d.backend.TryOn(ctx); err != nil {
				return err
			}
		} else {
			if err := d.backend.TryOff(ctx); err != nil {
				return err
			}
		}
		d.state.On = on

	case AttrBri:
		v, err := decodeInt(attr.Value)
		if err != nil {
			return err
		}
		bri := uint8(clamp(v, MinBri, MaxBri))
		d.logger.Debug().Int("bri", int(bri)).Msg("bri received")
		if err := d.backend.TryBrightness(ctx, bri); err != nil {
			return err
		}
		d.state.Bri = bri

	case AttrCT:
		v, err := decodeInt(attr.Value)
		if err != nil {
			return err
		}
		ct := uint16(clamp(v, MinCT, MaxCT))
		d.logger.Debug().Int("ct", int(ct)).Msg("ct received")
		if err := d.backend.TryColorTemperature(ctx, ct); err != nil {
			return err
		}
		d.state.CT = ct
		d.state.ColorMode = ColorModeCT

	case AttrXY:
		xy, err := decodeXY(attr.Value)
		if err != nil {
			return err
		}
		d.logger.Debug().Floats64("xy", xy[:]).Msg("xy received")
		if err := d.backend.TryXY(ctx, xy); err != nil {
			return err
		}
		d.state.XY = xy
		// Legacy clients expect "hs" here, not "xy".
		d.state.ColorMode = ColorModeHS

	case AttrHue:
		v, err := decodeInt(attr.Value)
		if err != nil {
			return err
		}
		hue := uint16(clamp(v, 0, MaxHue))
		d.logger.Debug().Int("hue", int(hue)).Msg("hue received")
		if err := d.backend.TryHue(ctx, hue); err != nil {
			return err
		}
		d.state.Hue = hue
		d.state.ColorMode = ColorModeHS

	case AttrSat:
		v, err := decodeInt(attr.Value)
		if err != nil {
			return err
		}
		sat := uint8(clamp(v, 0, MaxSat))
		d.logger.Debug().Int("sat", int(sat)).Msg("sat received")
		if err := d.backend.TrySaturation(ctx, sat); err != nil {
			return err
		}
		d.state.Sat = sat
		d.state.ColorMode = ColorModeHS

	default:
		return fmt.Errorf("%w: %s", ErrUnknownAttribute, attr.Key)
	}
	return nil
}

func decodeInt(raw json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	// Out-of-range float to int conversion is implementation-defined.
	if f > math.MaxInt32 {
		f = math.MaxInt32
	} else if f < math.MinInt32 {
		f = math.MinInt32
	}
	return int(f), nil
}

func decodeXY(raw json.RawMessage) ([2]float64, error) {
	var xy []float64
	if err := json.Unmarshal(raw, &xy); err != nil {
		return [2]float64{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if len(xy) != 2 {
		return [2]float64{}, fmt.Errorf("%w: xy needs 2 components, got %d", ErrInvalidValue, len(xy))
	}
	return [2]float64{clampFloat(xy[0]), clampFloat(xy[1])}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
