package modules

import (
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
)

// AnyLight is the handler name matching every light without its own handler.
const AnyLight = "*"

// Hook names accepted in a handler table.
var hookNames = []string{"on", "off", "bri", "ct", "xy", "hue", "sat"}

// BridgeModule provides the bridge Lua module where scripts register the
// functions that back emulated lights.
type BridgeModule struct {
	handlers map[string]*lua.LTable
}

// NewBridgeModule creates a new bridge module
func NewBridgeModule() *BridgeModule {
	return &BridgeModule{handlers: make(map[string]*lua.LTable)}
}

// Loader is the module loader for Lua
func (m *BridgeModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "handle", L.NewFunction(m.handle))
	L.SetField(mod, "ANY", lua.LString(AnyLight))

	L.Push(mod)
	return 1
}

// handle(name, {on=fn, off=fn, bri=fn, ...}) - Register hooks for a light
func (m *BridgeModule) handle(L *lua.LState) int {
	name := L.CheckString(1)
	hooks := L.CheckTable(2)

	registered := make([]string, 0, len(hookNames))
	for _, hook := range hookNames {
		switch v := hooks.RawGetString(hook).(type) {
		case *lua.LFunction:
			registered = append(registered, hook)
		case *lua.LNilType:
		default:
			L.ArgError(2, hook+" must be a function, got "+v.Type().String())
			return 0
		}
	}

	m.handlers[name] = hooks

	log.Info().
		Str("light", name).
		Strs("hooks", registered).
		Msg("Registered Lua light handler")

	return 0
}

// Lookup returns the function registered for a light's hook. A handler
// registered for the exact name wins over the AnyLight handler.
func (m *BridgeModule) Lookup(name, hook string) *lua.LFunction {
	for _, key := range []string{name, AnyLight} {
		tbl, ok := m.handlers[key]
		if !ok {
			continue
		}
		// A named handler without this hook falls through to AnyLight.
		if fn, ok := tbl.RawGetString(hook).(*lua.LFunction); ok {
			return fn
		}
	}
	return nil
}

// Handles reports whether any handler is registered for name, directly or
// through AnyLight.
func (m *BridgeModule) Handles(name string) bool {
	_, named := m.handlers[name]
	_, wildcard := m.handlers[AnyLight]
	return named || wildcard
}
