package mqtt

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/dokzlo13/echohue/internal/device"
)

// Backend publishes every hook as a one-key JSON command. A failed publish
// fails the attribute.
type Backend struct {
	pub     Publisher
	topics  Topics
	segment string
}

var (
	_ device.Backend = (*Backend)(nil)
	_ device.Binder  = (*Backend)(nil)
)

// NewBackend creates a backend publishing to topics.LightSet(segment). An
// empty segment is replaced by the light number at registration.
func NewBackend(pub Publisher, topics Topics, segment string) *Backend {
	return &Backend{pub: pub, topics: topics, segment: segment}
}

// Bind implements device.Binder.
func (b *Backend) Bind(index int, _ string) {
	if b.segment == "" {
		b.segment = strconv.Itoa(index + 1)
	}
}

// Topic returns the command topic.
func (b *Backend) Topic() string {
	return b.topics.LightSet(b.segment)
}

func (b *Backend) send(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{key: value})
	if err != nil {
		return err
	}
	return b.pub.Publish(b.Topic(), payload, false)
}

func (b *Backend) TryOn(ctx context.Context) error  { return b.send(ctx, device.AttrOn, true) }
func (b *Backend) TryOff(ctx context.Context) error { return b.send(ctx, device.AttrOn, false) }

func (b *Backend) TryBrightness(ctx context.Context, bri uint8) error {
	return b.send(ctx, device.AttrBri, bri)
}

func (b *Backend) TryColorTemperature(ctx context.Context, ct uint16) error {
	return b.send(ctx, device.AttrCT, ct)
}

func (b *Backend) TryXY(ctx context.Context, xy [2]float64) error {
	return b.send(ctx, device.AttrXY, xy)
}

func (b *Backend) TryHue(ctx context.Context, hue uint16) error {
	return b.send(ctx, device.AttrHue, hue)
}

func (b *Backend) TrySaturation(ctx context.Context, sat uint8) error {
	return b.send(ctx, device.AttrSat, sat)
}
