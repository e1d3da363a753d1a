package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/echohue/internal/config"
	luart "github.com/dokzlo13/echohue/internal/lua"
)

// LuaService wraps the Lua runtime behind the lua device backend.
type LuaService struct {
	cfg     *config.Config
	Runtime *luart.Runtime
}

// NewLuaService creates a new LuaService.
func NewLuaService(cfg *config.Config) *LuaService {
	return &LuaService{
		cfg:     cfg,
		Runtime: luart.NewRuntime(),
	}
}

// LoadScript loads and executes the Lua script.
// Must be called before Start().
func (s *LuaService) LoadScript() error {
	return s.Runtime.LoadScript(s.cfg.Lua.Script)
}

// Backend returns the backend for the light called name, warning when the
// script has no handler for it.
func (s *LuaService) Backend(name string) *luart.Backend {
	if !s.Runtime.Handles(name) {
		log.Warn().Str("name", name).Msg("Lua script has no handler for light, changes will be accepted as-is")
	}
	return s.Runtime.NewBackend(name)
}

// Start begins the Lua worker goroutine.
func (s *LuaService) Start(ctx context.Context) {
	// Start Lua worker goroutine - this is the ONLY goroutine that touches Lua
	go s.Runtime.Run(ctx)
}

// Close closes the Lua runtime.
func (s *LuaService) Close() {
	if s.Runtime != nil {
		s.Runtime.Close()
	}
}
