// Package hue forwards emulated light changes to a real Hue bridge.
package hue

import (
	"context"
	"fmt"
	"sync"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/echohue/internal/device"
)

// Passthrough shares one bridge connection and one rate limit between all
// lights forwarded to the same bridge.
type Passthrough struct {
	bridge  *huego.Bridge
	limiter *rate.Limiter
}

// NewPassthrough connects to the bridge at address with the given API user.
// rateLimitRPS bounds the requests sent to the bridge (default 10).
func NewPassthrough(address, token string, rateLimitRPS float64) *Passthrough {
	if rateLimitRPS <= 0 {
		rateLimitRPS = 10.0
	}

	return &Passthrough{
		bridge:  huego.New(address, token),
		limiter: rate.NewLimiter(rate.Limit(rateLimitRPS), int(rateLimitRPS)),
	}
}

// Backend returns a device backend driving the real light lightID.
func (p *Passthrough) Backend(lightID int) *Backend {
	return &Backend{p: p, lightID: lightID}
}

// Backend mirrors every accepted attribute onto one real light.
type Backend struct {
	p       *Passthrough
	lightID int

	mu    sync.Mutex
	light *huego.Light
}

var _ device.Backend = (*Backend)(nil)

// resolve fetches the light once and reuses it afterwards.
func (b *Backend) resolve(ctx context.Context) (*huego.Light, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.light != nil {
		return b.light, nil
	}

	if err := b.p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	light, err := b.p.bridge.GetLight(b.lightID)
	if err != nil {
		return nil, fmt.Errorf("get hue light %d: %w", b.lightID, err)
	}
	b.light = light
	return light, nil
}

func (b *Backend) do(ctx context.Context, what string, fn func(*huego.Light) error) error {
	light, err := b.resolve(ctx)
	if err != nil {
		return err
	}

	if err := b.p.limiter.Wait(ctx); err != nil {
		return err
	}

	log.Info().Int("light", b.lightID).Str("attr", what).Msg("Forwarding to hue light")

	if err := fn(light); err != nil {
		log.Error().Err(err).Int("light", b.lightID).Str("attr", what).Msg("Hue light update failed")
		return fmt.Errorf("hue light %d %s: %w", b.lightID, what, err)
	}
	return nil
}

func (b *Backend) TryOn(ctx context.Context) error {
	return b.do(ctx, "on", func(l *huego.Light) error { return l.On() })
}

func (b *Backend) TryOff(ctx context.Context) error {
	return b.do(ctx, "off", func(l *huego.Light) error { return l.Off() })
}

func (b *Backend) TryBrightness(ctx context.Context, bri uint8) error {
	return b.do(ctx, "bri", func(l *huego.Light) error { return l.Bri(bri) })
}

func (b *Backend) TryColorTemperature(ctx context.Context, ct uint16) error {
	return b.do(ctx, "ct", func(l *huego.Light) error { return l.Ct(ct) })
}

func (b *Backend) TryXY(ctx context.Context, xy [2]float64) error {
	return b.do(ctx, "xy", func(l *huego.Light) error {
		return l.Xy([]float32{float32(xy[0]), float32(xy[1])})
	})
}

func (b *Backend) TryHue(ctx context.Context, hue uint16) error {
	return b.do(ctx, "hue", func(l *huego.Light) error { return l.Hue(hue) })
}

func (b *Backend) TrySaturation(ctx context.Context, sat uint8) error {
	return b.do(ctx, "sat", func(l *huego.Light) error { return l.Sat(sat) })
}
