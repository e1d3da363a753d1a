// Package lua runs the device script. A single goroutine owns the Lua VM;
// everything else submits work through the queue.
package lua

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/echohue/internal/lua/modules"
)

// ErrRuntimeClosed is returned when the Lua runtime is closed
var ErrRuntimeClosed = fmt.Errorf("lua runtime closed")

// LuaWork represents work to be executed on the Lua VM
// All Lua execution MUST go through this to ensure thread safety
type LuaWork func(ctx context.Context)

// Runtime manages the Lua VM with single-threaded execution
type Runtime struct {
	L *lua.LState

	bridgeModule *modules.BridgeModule

	// Work queue for thread-safe Lua execution
	workQueue chan LuaWork

	// Shutdown signaling - closing this channel signals senders to stop
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	mu       sync.Mutex
	started  bool
	finished bool
}

// NewRuntime creates a new Lua runtime with the log and bridge modules preloaded
func NewRuntime() *Runtime {
	r := &Runtime{
		L:            lua.NewState(),
		bridgeModule: modules.NewBridgeModule(),
		workQueue:    make(chan LuaWork, 100),
		closing:      make(chan struct{}),
		done:         make(chan struct{}),
	}

	r.L.PreloadModule("log", modules.NewLogModule().Loader)
	r.L.PreloadModule("bridge", r.bridgeModule.Loader)

	return r
}

// Close signals the runtime to stop accepting new work. A running worker
// drains the queue and closes the Lua state; otherwise it is closed here.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		close(r.closing)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started && !r.finished {
		r.finished = true
		r.L.Close()
		close(r.done)
	}
}

// DoSyncWithResult queues work, waits for space, and waits for the result.
func (r *Runtime) DoSyncWithResult(ctx context.Context, work func(context.Context) error) error {
	done := make(chan error, 1)
	wrappedWork := LuaWork(func(c context.Context) {
		done <- work(c)
	})

	// Queue the work
	select {
	case <-r.closing:
		return ErrRuntimeClosed
	case <-ctx.Done():
		return ctx.Err()
	case r.workQueue <- wrappedWork:
		// Successfully queued
	}

	// Wait for result
	select {
	case <-r.done:
		select {
		case err := <-done:
			return err
		default:
			return ErrRuntimeClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Run starts the Lua worker goroutine - this is the ONLY goroutine that touches Lua.
// Exits when context is cancelled or runtime is closed.
func (r *Runtime) Run(ctx context.Context) {
	r.mu.Lock()
	if r.started || r.finished {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	defer close(r.done)
	defer r.L.Close()

	for {
		select {
		case <-ctx.Done():
			r.drainQueue(ctx)
			return
		case <-r.closing:
			r.drainQueue(ctx)
			return
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		}
	}
}

// drainQueue processes any remaining work in the queue before exiting
func (r *Runtime) drainQueue(ctx context.Context) {
	for {
		select {
		case work := <-r.workQueue:
			r.executeWork(ctx, work)
		default:
			return
		}
	}
}

// executeWork runs a single work item with panic recovery
func (r *Runtime) executeWork(ctx context.Context, work LuaWork) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Msg("Lua work panicked - worker continuing")
		}
	}()
	// Set context on LState so modules can access it via L.Context()
	r.L.SetContext(ctx)
	work(ctx)
}

// LoadScript loads and executes a Lua script (must be called before Run)
func (r *Runtime) LoadScript(path string) error {
	log.Info().Str("path", path).Msg("Loading Lua script")

	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to execute Lua script: %w", err)
	}

	log.Info().Msg("Lua script loaded successfully")
	return nil
}

// LoadString executes Lua source (must be called before Run)
func (r *Runtime) LoadString(source string) error {
	if err := r.L.DoString(source); err != nil {
		return fmt.Errorf("failed to execute Lua source: %w", err)
	}
	return nil
}

// Handles reports whether the script registered a handler covering name
func (r *Runtime) Handles(name string) bool {
	return r.bridgeModule.Handles(name)
}
