package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.design/x/hotkey"
)

// ErrHotkeyConflict is returned when the combo is already registered by another app.
var ErrHotkeyConflict = errors.New("hotkey: key combination already registered by another application")

// ErrHotkeyInvalid is returned when the combo string cannot be parsed.
var ErrHotkeyInvalid = errors.New("hotkey: invalid key combination")

// hotkeyBackend abstracts the real hotkey implementation so tests can use a mock.
type hotkeyBackend interface {
	Register() error
	Unregister() error
	Keydown() <-chan struct{}
}

// realHotkeyBackend wraps golang.design/x/hotkey for production use.
// The hotkey.Hotkey is created lazily in Register() to keep CGo goroutines
// out of construction (and out of unit tests).
type realHotkeyBackend struct {
	hk        *hotkey.Hotkey
	mods      []hotkey.Modifier
	key       hotkey.Key
	keyCh     chan struct{}
	closeOnce sync.Once // guards close(keyCh)
}

func newRealBackendFromCombo(combo string) (*realHotkeyBackend, error) {
	mods, key, err := parseHotkey(combo)
	if err != nil {
		return nil, err
	}
	return &realHotkeyBackend{mods: mods, key: key}, nil
}

func (r *realHotkeyBackend) Register() error {
	r.hk = hotkey.New(r.mods, r.key)
	if err := r.hk.Register(); err != nil {
		// Release any OS-level state hotkey.New created so the abandoned
		// object doesn't leak goroutines.
		_ = r.hk.Unregister()
		r.hk = nil
		return ErrHotkeyConflict
	}
	// Buffered relay; the goroutine owns the hk.Keydown read loop and exits
	// when the source channel closes.
	r.keyCh = make(chan struct{}, 4)
	src := r.hk.Keydown()
	go func() {
		for range src {
			select {
			case r.keyCh <- struct{}{}:
			default: // drop on rapid presses
			}
		}
		r.closeOnce.Do(func() { close(r.keyCh) })
	}()
	return nil
}

func (r *realHotkeyBackend) Unregister() error {
	if r.hk == nil {
		return nil
	}
	return r.hk.Unregister()
}

func (r *realHotkeyBackend) Keydown() <-chan struct{} {
	return r.keyCh
}

// HotkeyService manages the global dictation hotkey.
type HotkeyService struct {
	mu             sync.Mutex
	backend        hotkeyBackend
	combo          string
	registered     atomic.Bool
	shuttingDown   atomic.Bool        // set during app quit; defers skip the CGo Unregister
	doneCh         chan struct{}      // closed when the active listen goroutine exits
	parentCtx      context.Context    // root context from Start, inherited by Reregister
	cancel         context.CancelFunc // cancels the listen goroutine
	onTrigger      func()
	backendFactory func(string) (hotkeyBackend, error)
}

// NewHotkeyService creates a HotkeyService backed by the real OS hotkey API.
// The combo comes from settings at Start time.
func NewHotkeyService() *HotkeyService {
	return &HotkeyService{
		backendFactory: func(c string) (hotkeyBackend, error) {
			return newRealBackendFromCombo(c)
		},
	}
}

// newHotkeyServiceWithBackend creates a HotkeyService with a custom backend (tests only).
func newHotkeyServiceWithBackend(b hotkeyBackend) *HotkeyService {
	return &HotkeyService{
		backend: b,
		combo:   defaultSettings().Hotkey,
		backendFactory: func(c string) (hotkeyBackend, error) {
			if _, _, err := parseHotkey(c); err != nil {
				return nil, err
			}
			return b, nil
		},
	}
}

// Start registers combo and launches a listener goroutine calling onTrigger
// on every press. The goroutine exits when ctx is cancelled. Returns
// ErrHotkeyConflict when another app owns the combo, ErrHotkeyInvalid when
// it cannot be parsed.
func (s *HotkeyService) Start(ctx context.Context, combo string, onTrigger func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if combo == "" {
		combo = defaultSettings().Hotkey
	}
	if s.backend == nil || combo != s.combo {
		b, err := s.backendFactory(combo)
		if err != nil {
			return err
		}
		s.backend = b
		s.combo = combo
	}

	if err := s.backend.Register(); err != nil {
		return err
	}
	s.registered.Store(true)
	s.onTrigger = onTrigger
	s.parentCtx = ctx
	zap.S().Infof("hotkey: %s registered", s.combo)

	listenCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	// Capture the current backend/combo now so a later Reregister swap
	// cannot affect this goroutine's cleanup.
	curBackend := s.backend
	curCombo := s.combo
	keydown := curBackend.Keydown()
	doneCh := make(chan struct{})
	s.doneCh = doneCh
	go s.listen(listenCtx, curBackend, curCombo, keydown, onTrigger, doneCh)
	return nil
}

// listen pumps keydown events into the trigger until cancelled.
func (s *HotkeyService) listen(ctx context.Context, backend hotkeyBackend, combo string,
	keydown <-chan struct{}, onTrigger func(), doneCh chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Warnf("hotkey: recovered panic during cleanup (shutdown race): %v", r)
		}
		// Skip the CGo call during app shutdown; the OS reclaims the monitor.
		if !s.shuttingDown.Load() {
			backend.Unregister() //nolint:errcheck
		}
		// Only the active listener may clear the flag; a listener replaced
		// by Reregister must not unregister its successor.
		s.mu.Lock()
		if s.doneCh == doneCh {
			s.registered.Store(false)
		}
		s.mu.Unlock()
		zap.S().Infof("hotkey: %s listener stopped", combo)
		close(doneCh)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-keydown:
			if !ok {
				return
			}
			zap.S().Debugf("hotkey: %s triggered", combo)
			if onTrigger != nil {
				onTrigger()
			}
		}
	}
}

// Reregister swaps to a new combo at runtime. The new combo is registered
// before the old one is released, so on any error the original stays live.
func (s *HotkeyService) Reregister(newCombo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newBackend, err := s.backendFactory(newCombo)
	if err != nil {
		return err
	}
	if err := newBackend.Register(); err != nil {
		return err // conflict; old hotkey still live
	}
	if s.cancel != nil {
		s.cancel()
	}
	oldCombo := s.combo

	s.backend = newBackend
	s.combo = newCombo
	s.registered.Store(true)
	zap.S().Infof("hotkey: re-registered %s -> %s", oldCombo, newCombo)

	parent := s.parentCtx
	if parent == nil {
		parent = context.Background()
	}
	listenCtx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	doneCh := make(chan struct{})
	s.doneCh = doneCh
	go s.listen(listenCtx, newBackend, newCombo, newBackend.Keydown(), s.onTrigger, doneCh)
	return nil
}

// Stop unregisters the hotkey and waits briefly for the listener to exit.
// Unregister runs BEFORE the context is cancelled so the event-monitor block
// is removed while the native event loop is still alive; tearing down in the
// other order crashes Cocoa's work queue on quit.
func (s *HotkeyService) Stop() {
	s.shuttingDown.Store(true)

	s.mu.Lock()
	backend := s.backend
	doneCh := s.doneCh
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	if backend != nil {
		if err := backend.Unregister(); err != nil {
			zap.S().Warnf("hotkey: unregister on stop: %v", err)
		}
	}

	if doneCh != nil {
		select {
		case <-doneCh:
		case <-time.After(200 * time.Millisecond):
			zap.S().Warn("hotkey: Stop timed out waiting for listener exit")
		}
	}
}

// IsRegistered reports whether the hotkey is currently registered.
func (s *HotkeyService) IsRegistered() bool {
	return s.registered.Load()
}

// Combo returns the currently active combo string.
func (s *HotkeyService) Combo() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.combo
}

var modMap = map[string]hotkey.Modifier{
	"ctrl":    hotkey.ModCtrl,
	"control": hotkey.ModCtrl,
	"option":  hotkey.ModOption,
	"alt":     hotkey.ModOption,
	"shift":   hotkey.ModShift,
	"cmd":     hotkey.ModCmd,
	"command": hotkey.ModCmd,
}

var keyMap = map[string]hotkey.Key{
	"space":  hotkey.KeySpace,
	"tab":    hotkey.KeyTab,
	"return": hotkey.KeyReturn,
	"enter":  hotkey.KeyReturn,
	"a":      hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,
	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}

// parseHotkey parses a combo like "ctrl+space" or "option+shift+f" into
// hotkey modifiers and key.
func parseHotkey(combo string) ([]hotkey.Modifier, hotkey.Key, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(combo)), "+")
	if len(parts) < 2 {
		return nil, 0, fmt.Errorf("%w: %q (need at least one modifier)", ErrHotkeyInvalid, combo)
	}
	keyPart := parts[len(parts)-1]
	modParts := parts[:len(parts)-1]

	key, ok := keyMap[keyPart]
	if !ok {
		return nil, 0, fmt.Errorf("%w: unknown key %q", ErrHotkeyInvalid, keyPart)
	}

	var mods []hotkey.Modifier
	seen := map[string]bool{}
	for _, m := range modParts {
		if seen[m] {
			continue
		}
		seen[m] = true
		mod, ok := modMap[m]
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown modifier %q", ErrHotkeyInvalid, m)
		}
		mods = append(mods, mod)
	}
	if len(mods) == 0 {
		return nil, 0, fmt.Errorf("%w: no valid modifier in %q", ErrHotkeyInvalid, combo)
	}
	return mods, key, nil
}

// FormatHotkey converts a combo string to a display string,
// e.g. "ctrl+space" -> "⌃Space", "option+f" -> "⌥F".
func FormatHotkey(combo string) string {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(combo)), "+")
	if len(parts) < 2 {
		return combo
	}
	modSymbols := map[string]string{
		"ctrl": "⌃", "control": "⌃",
		"option": "⌥", "alt": "⌥",
		"shift": "⇧",
		"cmd":   "⌘", "command": "⌘",
	}
	keyDisplay := map[string]string{
		"space": "Space", "tab": "Tab", "return": "Return", "enter": "Return",
	}

	var out strings.Builder
	for _, p := range parts[:len(parts)-1] {
		if sym, ok := modSymbols[p]; ok {
			out.WriteString(sym)
		}
	}
	key := parts[len(parts)-1]
	if d, ok := keyDisplay[key]; ok {
		out.WriteString(d)
	} else {
		out.WriteString(strings.ToUpper(key))
	}
	return out.String()
}
