package main

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png" // icon files are PNG; register the decoder
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// DisplayState classifies what the tray icon should show.
type DisplayState int

const (
	StateIdle DisplayState = iota
	StateRecording
	StateProcessing
)

func (s DisplayState) String() string {
	switch s {
	case StateRecording:
		return "Recording"
	case StateProcessing:
		return "Processing"
	default:
		return "Idle"
	}
}

// trayDisplay is the icon file + tooltip pair rendered for a DisplayState.
type trayDisplay struct {
	IconPath string
	Tooltip  string
}

// displayFor maps a display state to its icon path and tooltip. The mapping
// is total: unrecognized values render as idle.
func displayFor(state DisplayState) trayDisplay {
	switch state {
	case StateRecording:
		return trayDisplay{IconPath: "icons/tray-recording.png", Tooltip: "Recording"}
	case StateProcessing:
		return trayDisplay{IconPath: "icons/tray-processing.png", Tooltip: "Processing"}
	default:
		return trayDisplay{IconPath: "icons/tray-idle.png", Tooltip: "Idle"}
	}
}

// trayHandle is the live tray icon stored at setup and used for later
// refreshes. The systray adapter provides the real one; tests inject a
// recorder.
type trayHandle interface {
	SetTooltip(tooltip string)
	SetIcon(data []byte)
}

// Menu item ids, string-matched on menu-selection events.
const (
	menuIDShow = "show"
	menuIDQuit = "quit"
)

// mainWindowName is the fixed identifier of the application's primary window.
const mainWindowName = "main"

type trayButton int

const (
	trayButtonLeft trayButton = iota
	trayButtonRight
)

func (b trayButton) String() string {
	if b == trayButtonRight {
		return "right"
	}
	return "left"
}

// TrayClick describes a tray icon event as delivered by the platform adapter.
type TrayClick struct {
	Button trayButton
	Up     bool // button release
	Double bool
}

// appWindow is one application window as the tray controller sees it.
type appWindow interface {
	Show() error
	Hide() error
	Focus() error
	Visible() (bool, error)
}

// windowFinder looks application windows up by name.
type windowFinder interface {
	Window(name string) (appWindow, bool)
}

// TrayService owns the tray-related shared state and drives icon, tooltip
// and main-window visibility in response to UI commands and tray events.
// One mutex guards the state; no critical section spans a framework call.
type TrayService struct {
	mu             sync.Mutex
	recording      bool
	closeToTray    bool
	startMinimized bool
	handle         trayHandle

	windows  windowFinder
	iconRoot string // base dir the relative icon paths resolve against
	quit     func() // invoked on the quit menu item
}

// NewTrayService creates the controller. iconRoot anchors the relative
// icons/ paths; quit is what the quit menu item runs (process exit in
// production).
func NewTrayService(windows windowFinder, iconRoot string, quit func()) *TrayService {
	return &TrayService{
		windows:  windows,
		iconRoot: iconRoot,
		quit:     quit,
	}
}

// SetRecording overwrites the recording flag.
func (t *TrayService) SetRecording(recording bool) {
	t.mu.Lock()
	t.recording = recording
	t.mu.Unlock()
}

// IsRecording reports the recording flag.
func (t *TrayService) IsRecording() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recording
}

// UpdateSettings overwrites both tray settings flags. The fields carry no
// cross-constraint; each is just the latest value the UI sent.
func (t *TrayService) UpdateSettings(closeToTray, startMinimized bool) {
	t.mu.Lock()
	t.closeToTray = closeToTray
	t.startMinimized = startMinimized
	t.mu.Unlock()
}

// ShouldCloseToTray reports whether closing the window should hide it
// instead of quitting.
func (t *TrayService) ShouldCloseToTray() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeToTray
}

// ShouldStartMinimized reports whether the window stays hidden at launch.
func (t *TrayService) ShouldStartMinimized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startMinimized
}

// Setup stores the live tray handle and applies the default idle display.
// Called from the systray adapter once the platform tray exists.
func (t *TrayService) Setup(h trayHandle) error {
	if h == nil {
		return fmt.Errorf("tray: setup: no tray handle")
	}
	icon, err := defaultTrayIcon()
	if err != nil {
		return fmt.Errorf("tray: setup: default icon: %w", err)
	}
	h.SetIcon(icon)
	h.SetTooltip(displayFor(StateIdle).Tooltip)
	t.mu.Lock()
	t.handle = h
	t.mu.Unlock()
	return nil
}

func (t *TrayService) currentHandle() trayHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handle
}

// ShowWindow unhides the main window and gives it focus. Missing window is
// a no-op.
func (t *TrayService) ShowWindow() error {
	w, ok := t.windows.Window(mainWindowName)
	if !ok {
		return nil
	}
	if err := w.Show(); err != nil {
		return fmt.Errorf("tray: show window: %w", err)
	}
	if err := w.Focus(); err != nil {
		return fmt.Errorf("tray: focus window: %w", err)
	}
	return nil
}

// HideWindow hides the main window. Missing window is a no-op.
func (t *TrayService) HideWindow() error {
	w, ok := t.windows.Window(mainWindowName)
	if !ok {
		return nil
	}
	if err := w.Hide(); err != nil {
		return fmt.Errorf("tray: hide window: %w", err)
	}
	return nil
}

// ToggleWindow hides the main window when visible and shows it otherwise.
func (t *TrayService) ToggleWindow() error {
	w, ok := t.windows.Window(mainWindowName)
	if !ok {
		return nil
	}
	visible, err := w.Visible()
	if err != nil {
		return fmt.Errorf("tray: query visibility: %w", err)
	}
	if visible {
		return t.HideWindow()
	}
	return t.ShowWindow()
}

// HandleTrayClick dispatches a tray icon event. A plain left-button release
// toggles the main window; every other event is noted at debug level and
// ignored.
func (t *TrayService) HandleTrayClick(click TrayClick) {
	if click.Button == trayButtonLeft && click.Up && !click.Double {
		if err := t.ToggleWindow(); err != nil {
			zap.S().Warnf("tray: toggle from tray click: %v", err)
		}
		return
	}
	zap.S().Debugf("tray: ignoring %s click (up=%v double=%v)", click.Button, click.Up, click.Double)
}

// HandleMenuEvent dispatches a menu selection by item id. Show errors are
// logged, not surfaced: this path is framework-invoked, not a UI command.
func (t *TrayService) HandleMenuEvent(id string) {
	switch id {
	case menuIDShow:
		if err := t.ShowWindow(); err != nil {
			zap.S().Warnf("tray: show from menu: %v", err)
		}
	case menuIDQuit:
		zap.S().Info("tray: quit selected")
		if t.quit != nil {
			t.quit()
		}
	default:
		zap.S().Debugf("tray: ignoring menu event %q", id)
	}
}

// UpdateIcon applies the tooltip and icon for state to the live tray icon.
// The tooltip is always set; the icon file is read fresh from disk on every
// call and any failure leaves the previous icon in place. Failures are
// logged, never reported to the caller.
func (t *TrayService) UpdateIcon(state DisplayState) {
	d := displayFor(state)
	h := t.currentHandle()
	if h == nil {
		zap.S().Debugf("tray: no icon handle yet, wanted state %s", state)
		return
	}
	h.SetTooltip(d.Tooltip)

	path := filepath.Join(t.iconRoot, filepath.FromSlash(d.IconPath))
	data, err := os.ReadFile(path)
	if err != nil {
		zap.S().Warnf("tray: read icon %s: %v (keeping previous icon)", path, err)
		return
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		zap.S().Warnf("tray: decode icon %s: %v (keeping previous icon)", path, err)
		return
	}
	h.SetIcon(data)
	zap.S().Infof("tray: showing %s", state)
}

// SetRecordingDisplay overwrites the recording flag and refreshes the icon
// to match.
func (t *TrayService) SetRecordingDisplay(recording bool) {
	t.SetRecording(recording)
	state := StateIdle
	if recording {
		state = StateRecording
	}
	t.UpdateIcon(state)
}

// SetProcessingDisplay refreshes the icon for the processing condition.
// No flag is stored; processing is display-only.
func (t *TrayService) SetProcessingDisplay(processing bool) {
	state := StateIdle
	if processing {
		state = StateProcessing
	}
	t.UpdateIcon(state)
}
