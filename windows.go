package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// windowRegistry maps fixed window names to their adapters. Wails v2 drives
// a single window per app; the registry keeps the lookup-by-name contract so
// the tray controller never touches the framework directly.
type windowRegistry struct {
	mu      sync.Mutex
	windows map[string]appWindow
}

func newWindowRegistry() *windowRegistry {
	return &windowRegistry{windows: make(map[string]appWindow)}
}

func (r *windowRegistry) register(name string, w appWindow) {
	r.mu.Lock()
	r.windows[name] = w
	r.mu.Unlock()
}

// Window implements windowFinder.
func (r *windowRegistry) Window(name string) (appWindow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[name]
	return w, ok
}

// wailsWindow adapts the Wails v2 runtime to appWindow. The v2 runtime
// cannot be asked whether the window is hidden, so visibility is tracked
// here: seeded from the start-minimized setting and updated on every
// show/hide that goes through the adapter.
type wailsWindow struct {
	mu      sync.Mutex
	ctx     context.Context
	visible bool
}

func newWailsWindow(ctx context.Context, visible bool) *wailsWindow {
	return &wailsWindow{ctx: ctx, visible: visible}
}

func (w *wailsWindow) runtimeCtx() (context.Context, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx == nil {
		return nil, fmt.Errorf("window: runtime not ready")
	}
	return w.ctx, nil
}

func (w *wailsWindow) Show() error {
	ctx, err := w.runtimeCtx()
	if err != nil {
		return err
	}
	runtime.WindowShow(ctx)
	w.setVisible(true)
	return nil
}

func (w *wailsWindow) Hide() error {
	ctx, err := w.runtimeCtx()
	if err != nil {
		return err
	}
	runtime.WindowHide(ctx)
	w.setVisible(false)
	return nil
}

// Focus raises the window. Wails v2 has no direct focus call; unminimising
// plus an always-on-top pulse brings it to the foreground on all three
// platforms.
func (w *wailsWindow) Focus() error {
	ctx, err := w.runtimeCtx()
	if err != nil {
		return err
	}
	runtime.WindowUnminimise(ctx)
	runtime.WindowSetAlwaysOnTop(ctx, true)
	runtime.WindowSetAlwaysOnTop(ctx, false)
	return nil
}

func (w *wailsWindow) Visible() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx == nil {
		return false, fmt.Errorf("window: runtime not ready")
	}
	return w.visible, nil
}

func (w *wailsWindow) setVisible(v bool) {
	w.mu.Lock()
	w.visible = v
	w.mu.Unlock()
}
