package lua

import (
	"context"
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/echohue/internal/device"
	"github.com/dokzlo13/echohue/internal/lua/modules"
)

// ErrDeclined is returned when a handler returns false.
var ErrDeclined = errors.New("lua handler declined")

// Backend drives a light through the handlers the script registered with
// bridge.handle. Hooks without a handler succeed without effect.
type Backend struct {
	runtime *Runtime
	name    string
	id      int
}

var (
	_ device.Backend = (*Backend)(nil)
	_ device.Binder  = (*Backend)(nil)
)

// NewBackend creates a backend for the light called name.
func (r *Runtime) NewBackend(name string) *Backend {
	return &Backend{runtime: r, name: name}
}

// Bind implements device.Binder.
func (b *Backend) Bind(index int, name string) {
	b.id = index + 1
	b.name = name
}

func (b *Backend) TryOn(ctx context.Context) error  { return b.call(ctx, "on", nil) }
func (b *Backend) TryOff(ctx context.Context) error { return b.call(ctx, "off", nil) }

func (b *Backend) TryBrightness(ctx context.Context, bri uint8) error {
	return b.call(ctx, "bri", bri)
}

func (b *Backend) TryColorTemperature(ctx context.Context, ct uint16) error {
	return b.call(ctx, "ct", ct)
}

func (b *Backend) TryXY(ctx context.Context, xy [2]float64) error {
	return b.call(ctx, "xy", xy)
}

func (b *Backend) TryHue(ctx context.Context, hue uint16) error {
	return b.call(ctx, "hue", hue)
}

func (b *Backend) TrySaturation(ctx context.Context, sat uint8) error {
	return b.call(ctx, "sat", sat)
}

// call runs handler(light, value) on the Lua worker. The handler fails the
// attribute by raising an error or returning false.
func (b *Backend) call(ctx context.Context, hook string, value any) error {
	return b.runtime.DoSyncWithResult(ctx, func(context.Context) error {
		L := b.runtime.L

		fn := b.runtime.bridgeModule.Lookup(b.name, hook)
		if fn == nil {
			return nil
		}

		light := L.NewTable()
		L.SetField(light, "name", lua.LString(b.name))
		L.SetField(light, "id", lua.LNumber(b.id))

		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, light, modules.GoToLuaValue(L, value)); err != nil {
			return fmt.Errorf("lua %s handler for %q: %w", hook, b.name, err)
		}

		ret := L.Get(-1)
		L.Pop(1)
		if ret == lua.LFalse {
			return fmt.Errorf("%w: %s for %q", ErrDeclined, hook, b.name)
		}
		return nil
	})
}
