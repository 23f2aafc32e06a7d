package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"
)

// hotkeyRunner is the slice of HotkeyService the App depends on. Using an
// interface keeps real CGo goroutines out of unit tests.
type hotkeyRunner interface {
	Start(ctx context.Context, combo string, onTrigger func()) error
	Reregister(combo string) error
	Stop()
	IsRegistered() bool
	Combo() string
}

// App owns every service and exposes the methods the frontend calls through
// Wails bindings. ctx and cfg are guarded by mu.
type App struct {
	mu  sync.RWMutex
	ctx context.Context
	cfg Settings

	dataDir     string
	windows     *windowRegistry
	tray        *TrayService
	settings    *SettingsService
	audio       *AudioService
	transcriber *TranscribeService
	keys        *KeyringService
	history     *HistoryService
	output      *OutputService
	autostart   *AutostartService
	hotkeys     hotkeyRunner // nil in unit tests; injected by main.go

	jobs     chan []float32
	quitting atomic.Bool // lets Quit bypass the close-to-tray intercept
}

// NewApp wires the service graph. The hotkey service is intentionally not
// built here; main.go injects it via SetHotkeyService so unit tests never
// touch the OS hotkey API. The history store opens later, in startup.
func NewApp() *App {
	a := &App{
		dataDir:  appDir(),
		windows:  newWindowRegistry(),
		settings: NewSettingsService(),
		keys:     NewKeyringService(),
		audio:    NewAudioService(),
		output:   NewOutputService(),
		jobs:     make(chan []float32, 4),
	}
	a.cfg = a.settings.Load()
	a.tray = NewTrayService(a.windows, a.dataDir, quitProcess)
	a.tray.UpdateSettings(a.cfg.CloseToTray, a.cfg.StartMinimized)
	a.transcriber = NewTranscribeService(a.cfg, a.lookupAPIKey)

	autostart, err := NewAutostartService()
	if err != nil {
		zap.S().Warnf("app: autostart unavailable: %v", err)
	}
	a.autostart = autostart
	return a
}

// SetHotkeyService injects the hotkey service (called by main.go before wails.Run).
func (a *App) SetHotkeyService(hs hotkeyRunner) {
	a.hotkeys = hs
}

// lookupAPIKey feeds the transcriber's Authorization header from the keychain.
func (a *App) lookupAPIKey() string {
	key, err := a.keys.APIKey()
	if err != nil {
		zap.S().Warnf("app: keychain read: %v", err)
		return ""
	}
	return key
}

// startup is called by Wails when the runtime is ready. Everything that needs
// a live native event loop or the runtime context starts here.
func (a *App) startup(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	cfg := a.cfg
	a.mu.Unlock()

	a.windows.register(mainWindowName, newWailsWindow(ctx, !cfg.StartMinimized))

	if err := EnsureTrayIcons(a.dataDir); err != nil {
		zap.S().Warnf("app: materialize tray icons: %v", err)
	}
	StartSystray(a.tray)

	history, err := NewHistoryService()
	if err != nil {
		zap.S().Warnf("app: history store unavailable: %v", err)
	} else {
		a.mu.Lock()
		a.history = history
		a.mu.Unlock()
	}

	a.transcriber.Start(a.jobs, a.onTranscribed)

	if a.hotkeys != nil {
		if err := a.hotkeys.Start(ctx, cfg.Hotkey, func() {
			if err := a.ToggleDictation(); err != nil {
				zap.S().Warnf("app: hotkey toggle: %v", err)
			}
		}); err != nil {
			if errors.Is(err, ErrHotkeyConflict) {
				zap.S().Warnf("hotkey: %s is already registered by another app", cfg.Hotkey)
				a.emitEvent("hotkey:conflict", cfg.Hotkey)
			} else {
				zap.S().Warnf("hotkey: register: %v", err)
			}
		}
	}

	if err := a.settings.Watch(a.applySettings); err != nil {
		zap.S().Warnf("app: settings watcher: %v", err)
	}
}

// beforeClose intercepts the window close button. With close-to-tray enabled
// the window hides and the app keeps running; otherwise the app quits. An
// explicit Quit always passes through.
func (a *App) beforeClose(_ context.Context) bool {
	if a.quitting.Load() || !a.tray.ShouldCloseToTray() {
		return false
	}
	if err := a.tray.HideWindow(); err != nil {
		zap.S().Warnf("app: hide on close: %v", err)
	}
	zap.S().Info("app: close intercepted, hiding to tray")
	return true
}

// shutdown is called by Wails on quit.
func (a *App) shutdown(_ context.Context) {
	if a.hotkeys != nil {
		a.hotkeys.Stop()
	}
	if a.audio.IsRecording() {
		if _, err := a.audio.StopRecording(); err != nil {
			zap.S().Warnf("app: stop recording on shutdown: %v", err)
		}
	}
	close(a.jobs)
	if err := a.settings.Close(); err != nil {
		zap.S().Warnf("app: close settings watcher: %v", err)
	}
	a.mu.RLock()
	history := a.history
	a.mu.RUnlock()
	if history != nil {
		if err := history.Close(); err != nil {
			zap.S().Warnf("app: close history store: %v", err)
		}
	}
}

// applySettings pushes a (re)loaded configuration into the running services.
// Called from the fsnotify watcher and after UI-driven saves.
func (a *App) applySettings(cfg Settings) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()

	a.tray.UpdateSettings(cfg.CloseToTray, cfg.StartMinimized)
	a.transcriber.Configure(cfg)
	if a.hotkeys != nil && cfg.Hotkey != "" && cfg.Hotkey != a.hotkeys.Combo() {
		if err := a.hotkeys.Reregister(cfg.Hotkey); err != nil {
			zap.S().Warnf("hotkey: switch to %s: %v", cfg.Hotkey, err)
			a.emitEvent("hotkey:conflict", cfg.Hotkey)
		}
	}
	a.emitEvent("settings:changed", cfg)
}

// emitEvent forwards an event to the frontend once the runtime exists.
// Events raised before startup are dropped.
func (a *App) emitEvent(name string, data ...interface{}) {
	a.mu.RLock()
	ctx := a.ctx
	a.mu.RUnlock()
	if ctx == nil {
		return
	}
	runtime.EventsEmit(ctx, name, data...)
}

// runCtx returns the runtime context, or Background before startup.
func (a *App) runCtx() context.Context {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

// ── Dictation flow ────────────────────────────────────────

// ToggleDictation starts capture when idle; when recording it stops capture
// and hands the audio to the transcription worker. The tray icon tracks the
// transition in both directions.
func (a *App) ToggleDictation() error {
	if a.audio.IsRecording() {
		pcm, err := a.audio.StopRecording()
		a.tray.SetRecordingDisplay(false)
		if err != nil {
			a.emitEvent("dictation:error", err.Error())
			return fmt.Errorf("stop recording: %w", err)
		}
		if len(pcm) == 0 {
			zap.S().Debug("app: empty capture, nothing to transcribe")
			return nil
		}
		a.tray.SetProcessingDisplay(true)
		a.emitEvent("dictation:state", "processing")
		select {
		case a.jobs <- pcm:
		default:
			a.tray.SetProcessingDisplay(false)
			a.emitEvent("dictation:error", "transcription backlog full")
			return errors.New("transcription backlog full, capture dropped")
		}
		return nil
	}

	if err := a.audio.StartRecording(a.runCtx()); err != nil {
		a.emitEvent("dictation:error", err.Error())
		if errors.Is(err, ErrMicPermissionDenied) {
			return err
		}
		return fmt.Errorf("start recording: %w", err)
	}
	a.tray.SetRecordingDisplay(true)
	a.emitEvent("dictation:state", "recording")
	return nil
}

// onTranscribed runs on the transcription worker goroutine, once per job.
func (a *App) onTranscribed(text string, audioDur time.Duration, err error) {
	a.tray.SetProcessingDisplay(false)
	if err != nil {
		a.emitEvent("dictation:error", err.Error())
		return
	}
	if text == "" {
		a.emitEvent("dictation:state", "idle")
		return
	}

	a.output.Send(text, func() {
		a.emitEvent("output:clipboard", text)
	})

	a.mu.RLock()
	history := a.history
	model := a.cfg.Model
	a.mu.RUnlock()
	if history != nil {
		if _, err := history.Insert(text, model, audioDur); err != nil {
			zap.S().Warnf("app: record history: %v", err)
		}
	}
	a.emitEvent("transcription:done", text)
}

// ── Tray commands (frontend-facing) ───────────────────────

// SetRecordingState overwrites the recording flag and refreshes the tray
// icon to match.
func (a *App) SetRecordingState(recording bool) error {
	a.tray.SetRecordingDisplay(recording)
	return nil
}

// SetProcessingState refreshes the tray icon for the processing state. The
// flag is not stored.
func (a *App) SetProcessingState(processing bool) error {
	a.tray.SetProcessingDisplay(processing)
	return nil
}

// IsTraySupported reports tray availability to the frontend.
func (a *App) IsTraySupported() bool {
	return true
}

// ToggleWindowVisibility hides the main window if visible, shows and focuses
// it otherwise.
func (a *App) ToggleWindowVisibility() error {
	return a.tray.ToggleWindow()
}

// SetTraySettings updates the close-to-tray and start-minimized flags and
// persists them.
func (a *App) SetTraySettings(closeToTray, startMinimized bool) error {
	a.mu.RLock()
	cfg := a.cfg
	a.mu.RUnlock()
	cfg.CloseToTray = closeToTray
	cfg.StartMinimized = startMinimized
	if err := a.settings.Save(cfg); err != nil {
		return err
	}
	a.applySettings(cfg)
	zap.S().Infof("app: tray settings updated (close_to_tray=%v start_minimized=%v)",
		closeToTray, startMinimized)
	return nil
}

// ── Settings commands ─────────────────────────────────────

// GetSettings returns the active configuration.
func (a *App) GetSettings() Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// UpdateSettings persists cfg and applies it to the running services.
func (a *App) UpdateSettings(cfg Settings) error {
	if err := a.settings.Save(cfg); err != nil {
		return err
	}
	a.applySettings(cfg)
	return nil
}

// ── Hotkey commands ───────────────────────────────────────

// GetHotkeyStatus returns the current hotkey registration status.
func (a *App) GetHotkeyStatus() string {
	if a.hotkeys == nil || !a.hotkeys.IsRegistered() {
		return "unregistered"
	}
	return "registered"
}

// GetHotkeyDisplay returns the active combo formatted for the UI,
// e.g. "⌃Space".
func (a *App) GetHotkeyDisplay() string {
	if a.hotkeys == nil {
		a.mu.RLock()
		defer a.mu.RUnlock()
		return FormatHotkey(a.cfg.Hotkey)
	}
	return FormatHotkey(a.hotkeys.Combo())
}

// ── API key commands ──────────────────────────────────────

// SetAPIKey stores the transcription API key in the OS keychain.
func (a *App) SetAPIKey(key string) error {
	return a.keys.SetAPIKey(key)
}

// GetAPIKey returns the stored API key, or "" when none is set.
func (a *App) GetAPIKey() (string, error) {
	return a.keys.APIKey()
}

// ClearAPIKey removes the API key from the keychain.
func (a *App) ClearAPIKey() error {
	return a.keys.DeleteAPIKey()
}

// ── History commands ──────────────────────────────────────

var errHistoryUnavailable = errors.New("history store unavailable")

func (a *App) historyStore() (*HistoryService, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.history == nil {
		return nil, errHistoryUnavailable
	}
	return a.history, nil
}

// GetHistory returns the most recent transcriptions, newest first.
func (a *App) GetHistory(limit int) ([]Transcription, error) {
	h, err := a.historyStore()
	if err != nil {
		return nil, err
	}
	return h.Recent(limit)
}

// DeleteTranscription removes a single history entry.
func (a *App) DeleteTranscription(id string) error {
	h, err := a.historyStore()
	if err != nil {
		return err
	}
	return h.Delete(id)
}

// ClearHistory removes all history entries.
func (a *App) ClearHistory() error {
	h, err := a.historyStore()
	if err != nil {
		return err
	}
	return h.Clear()
}

// ── Autostart commands ────────────────────────────────────

// GetLaunchAtLogin reports whether the app is registered to start at login.
func (a *App) GetLaunchAtLogin() bool {
	if a.autostart == nil {
		return false
	}
	return a.autostart.IsEnabled()
}

// SetLaunchAtLogin enables or disables starting the app at login.
func (a *App) SetLaunchAtLogin(enabled bool) error {
	if a.autostart == nil {
		return errors.New("autostart unavailable on this system")
	}
	if enabled {
		execPath, err := os.Executable()
		if err != nil {
			return err
		}
		return a.autostart.Enable(execPath)
	}
	return a.autostart.Disable()
}

// ── Status & lifecycle ────────────────────────────────────

// GetStatus returns a one-line app status for the UI.
func (a *App) GetStatus() string {
	if a.audio.IsRecording() {
		return "Recording"
	}
	return "Ready to dictate"
}

// Quit exits the application through the normal Wails shutdown, skipping the
// close-to-tray intercept. Before startup it falls back to a plain exit.
func (a *App) Quit() {
	a.quitting.Store(true)
	a.mu.RLock()
	ctx := a.ctx
	a.mu.RUnlock()
	if ctx == nil {
		os.Exit(0)
	}
	runtime.Quit(ctx)
}
