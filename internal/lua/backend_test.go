package lua

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/echohue/internal/device"
)

const testScript = `
local bridge = require("bridge")
local log = require("log")

calls = {}

bridge.handle("Lamp", {
  on = function(light) table.insert(calls, light.name .. ":on:" .. light.id) end,
  bri = function(light, bri)
    if bri > 200 then return false end
    table.insert(calls, "bri:" .. bri)
  end,
  xy = function(light, xy) table.insert(calls, "xy:" .. xy[1] .. "," .. xy[2]) end,
  ct = function(light, ct) error("ct not supported") end,
})

bridge.handle(bridge.ANY, {
  off = function(light)
    log.info("off", {light = light.name})
    table.insert(calls, light.name .. ":off")
  end,
})
`

func startRuntime(t *testing.T) *Runtime {
	t.Helper()
	r := NewRuntime()
	if err := r.LoadString(testScript); err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	t.Cleanup(func() {
		cancel()
		r.Close()
	})
	return r
}

func calls(t *testing.T, r *Runtime) []string {
	t.Helper()
	var out []string
	err := r.DoSyncWithResult(context.Background(), func(context.Context) error {
		tbl, ok := r.L.GetGlobal("calls").(*lua.LTable)
		if !ok {
			return errors.New("calls is not a table")
		}
		tbl.ForEach(func(_, v lua.LValue) {
			out = append(out, v.String())
		})
		return nil
	})
	if err != nil {
		t.Fatalf("read calls: %v", err)
	}
	return out
}

func TestBackend_Hooks(t *testing.T) {
	r := startRuntime(t)

	reg := device.NewRegistry(zerolog.Nop())
	lamp := device.NewWithBackend("Lamp", false, 1, r.NewBackend("Lamp"))
	desk := device.NewWithBackend("Desk", true, 1, r.NewBackend("Desk"))
	reg.Register(lamp, desk)

	ctx := context.Background()
	tests := []struct {
		name   string
		dev    *device.Device
		attr   device.Attribute
		wantOK bool
	}{
		{"on", lamp, device.Attr("on", true), true},
		{"bri_accepted", lamp, device.Attr("bri", 100), true},
		{"bri_declined", lamp, device.Attr("bri", 250), false},
		{"ct_raises", lamp, device.Attr("ct", 300), false},
		{"xy", lamp, device.Attr("xy", []float64{0.5, 0.25}), true},
		{"hue_without_handler", lamp, device.Attr("hue", 1000), true},
		{"off_through_any", desk, device.Attr("on", false), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := tt.dev.Apply(ctx, device.Attributes{tt.attr})
			if len(results) != 1 {
				t.Fatalf("got %d results, want 1", len(results))
			}
			if results[0].OK() != tt.wantOK {
				t.Errorf("OK() = %v, want %v (cause %v)", results[0].OK(), tt.wantOK, results[0].Cause)
			}
		})
	}

	if st := lamp.State(); st.Bri != 100 || st.CT != 199 {
		t.Errorf("lamp state = %+v, want bri 100 and default ct", st)
	}

	want := []string{"Lamp:on:1", "bri:100", "xy:0.5,0.25", "Desk:off"}
	got := calls(t, r)
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBackend_DeclinedError(t *testing.T) {
	r := startRuntime(t)
	b := r.NewBackend("Lamp")
	b.Bind(0, "Lamp")

	err := b.TryBrightness(context.Background(), 254)
	if !errors.Is(err, ErrDeclined) {
		t.Errorf("TryBrightness(254) = %v, want ErrDeclined", err)
	}
}

func TestRuntime_Handles(t *testing.T) {
	r := NewRuntime()
	defer r.Close()
	if err := r.LoadString(`require("bridge").handle("Lamp", {})`); err != nil {
		t.Fatalf("LoadString: %v", err)
	}
	if !r.Handles("Lamp") {
		t.Error("Handles(Lamp) = false")
	}
	if r.Handles("Desk") {
		t.Error("Handles(Desk) = true without a wildcard handler")
	}
}

func TestRuntime_BadHandlerTable(t *testing.T) {
	r := NewRuntime()
	defer r.Close()
	if err := r.LoadString(`require("bridge").handle("Lamp", {on = 5})`); err == nil {
		t.Error("expected error for non-function hook")
	}
}

func TestRuntime_ClosedRejectsWork(t *testing.T) {
	r := NewRuntime()
	r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := r.DoSyncWithResult(ctx, func(context.Context) error { return nil })
	if !errors.Is(err, ErrRuntimeClosed) {
		t.Errorf("DoSyncWithResult after Close = %v, want ErrRuntimeClosed", err)
	}
}
