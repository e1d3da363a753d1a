package device

import "context"

// Backend carries a state change to whatever actually drives the light.
// Returning a non-nil error declines the change; the device state is then
// left untouched and the attribute is reported as failed.
type Backend interface {
	TryOn(ctx context.Context) error
	TryOff(ctx context.Context) error
	TryBrightness(ctx context.Context, bri uint8) error
	TryColorTemperature(ctx context.Context, ct uint16) error
	TryXY(ctx context.Context, xy [2]float64) error
	TryHue(ctx context.Context, hue uint16) error
	TrySaturation(ctx context.Context, sat uint8) error
}

// Binder is implemented by backends that need to know which light they
// serve. Bind is called once, at registration.
type Binder interface {
	Bind(index int, name string)
}

// NopBackend accepts every change without doing anything.
type NopBackend struct{}

func (NopBackend) TryOn(context.Context) error                      { return nil }
func (NopBackend) TryOff(context.Context) error                     { return nil }
func (NopBackend) TryBrightness(context.Context, uint8) error        { return nil }
func (NopBackend) TryColorTemperature(context.Context, uint16) error { return nil }
func (NopBackend) TryXY(context.Context, [2]float64) error           { return nil }
func (NopBackend) TryHue(context.Context, uint16) error              { return nil }
func (NopBackend) TrySaturation(context.Context, uint8) error        { return nil }

// BackendFuncs adapts plain functions to Backend. Nil fields succeed.
type BackendFuncs struct {
	On               func(ctx context.Context) error
	Off              func(ctx context.Context) error
	Brightness       func(ctx context.Context, bri uint8) error
	ColorTemperature func(ctx context.Context, ct uint16) error
	XY               func(ctx context.Context, xy [2]float64) error
	Hue              func(ctx context.Context, hue uint16) error
	Saturation       func(ctx context.Context, sat uint8) error
}

func (f BackendFuncs) TryOn(ctx context.Context) error {
	if f.On == nil {
		return nil
	}
	return f.On(ctx)
}

func (f BackendFuncs) TryOff(ctx context.Context) error {
	if f.Off == nil {
		return nil
	}
	return f.Off(ctx)
}

func (f BackendFuncs) TryBrightness(ctx context.Context, bri uint8) error {
	if f.Brightness == nil {
		return nil
	}
	return f.Brightness(ctx, bri)
}

func (f BackendFuncs) TryColorTemperature(ctx context.Context, ct uint16) error {
	if f.ColorTemperature == nil {
		return nil
	}
	return f.ColorTemperature(ctx, ct)
}

func (f BackendFuncs) TryXY(ctx context.Context, xy [2]float64) error {
	if f.XY == nil {
		return nil
	}
	return f.XY(ctx, xy)
}

func (f BackendFuncs) TryHue(ctx context.Context, hue uint16) error {
	if f.Hue == nil {
		return nil
	}
	return f.Hue(ctx, hue)
}

func (f BackendFuncs) TrySaturation(ctx context.Context, sat uint8) error {
	if f.Saturation == nil {
		return nil
	}
	return f.Saturation(ctx, sat)
}
