package main

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// fakeTrayHandle records tooltip and icon writes.
type fakeTrayHandle struct {
	mu       sync.Mutex
	tooltips []string
	icons    [][]byte
}

func (h *fakeTrayHandle) SetTooltip(tooltip string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tooltips = append(h.tooltips, tooltip)
}

func (h *fakeTrayHandle) SetIcon(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.icons = append(h.icons, data)
}

func (h *fakeTrayHandle) lastTooltip() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.tooltips) == 0 {
		return ""
	}
	return h.tooltips[len(h.tooltips)-1]
}

func (h *fakeTrayHandle) iconWrites() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.icons)
}

// fakeWindow implements appWindow with call counts and scriptable errors.
type fakeWindow struct {
	visible    bool
	shows      int
	hides      int
	focuses    int
	showErr    error
	hideErr    error
	visibleErr error
}

func (w *fakeWindow) Show() error {
	if w.showErr != nil {
		return w.showErr
	}
	w.shows++
	w.visible = true
	return nil
}

func (w *fakeWindow) Hide() error {
	if w.hideErr != nil {
		return w.hideErr
	}
	w.hides++
	w.visible = false
	return nil
}

func (w *fakeWindow) Focus() error {
	w.focuses++
	return nil
}

func (w *fakeWindow) Visible() (bool, error) {
	if w.visibleErr != nil {
		return false, w.visibleErr
	}
	return w.visible, nil
}

// fakeWindows is a windowFinder over a plain map.
type fakeWindows map[string]appWindow

func (f fakeWindows) Window(name string) (appWindow, bool) {
	w, ok := f[name]
	return w, ok
}

// newTestTray builds a TrayService over a temp icon dir with the actual icon
// files materialized, a registered main window and a quit spy.
func newTestTray(t *testing.T) (*TrayService, *fakeWindow, *bool) {
	t.Helper()
	dir := t.TempDir()
	if err := EnsureTrayIcons(dir); err != nil {
		t.Fatalf("EnsureTrayIcons: %v", err)
	}
	win := &fakeWindow{visible: true}
	quitCalled := false
	tray := NewTrayService(fakeWindows{mainWindowName: win}, dir, func() { quitCalled = true })
	return tray, win, &quitCalled
}

// ── Tests ────────────────────────────────────────────────

func TestDisplayForTable(t *testing.T) {
	tests := []struct {
		state   DisplayState
		icon    string
		tooltip string
	}{
		{StateIdle, "icons/tray-idle.png", "Idle"},
		{StateRecording, "icons/tray-recording.png", "Recording"},
		{StateProcessing, "icons/tray-processing.png", "Processing"},
		{DisplayState(99), "icons/tray-idle.png", "Idle"}, // unknown renders idle
	}
	for _, tt := range tests {
		t.Run(tt.tooltip, func(t *testing.T) {
			d := displayFor(tt.state)
			if d.IconPath != tt.icon {
				t.Errorf("displayFor(%v).IconPath = %q; want %q", tt.state, d.IconPath, tt.icon)
			}
			if d.Tooltip != tt.tooltip {
				t.Errorf("displayFor(%v).Tooltip = %q; want %q", tt.state, d.Tooltip, tt.tooltip)
			}
		})
	}
}

func TestRecordingFlagRoundTrip(t *testing.T) {
	tray, _, _ := newTestTray(t)

	if tray.IsRecording() {
		t.Error("IsRecording() = true on a fresh service; want false")
	}
	tray.SetRecording(true)
	if !tray.IsRecording() {
		t.Error("IsRecording() = false after SetRecording(true)")
	}
	tray.SetRecording(false)
	if tray.IsRecording() {
		t.Error("IsRecording() = true after SetRecording(false)")
	}
}

func TestUpdateSettingsIndependentOfRecording(t *testing.T) {
	tray, _, _ := newTestTray(t)

	tray.SetRecording(true)
	tray.UpdateSettings(true, true)

	if !tray.IsRecording() {
		t.Error("UpdateSettings clobbered the recording flag")
	}
	if !tray.ShouldCloseToTray() {
		t.Error("ShouldCloseToTray() = false after UpdateSettings(true, true)")
	}
	if !tray.ShouldStartMinimized() {
		t.Error("ShouldStartMinimized() = false after UpdateSettings(true, true)")
	}

	tray.UpdateSettings(false, false)
	if tray.ShouldCloseToTray() || tray.ShouldStartMinimized() {
		t.Error("flags still set after UpdateSettings(false, false)")
	}
	if !tray.IsRecording() {
		t.Error("second UpdateSettings clobbered the recording flag")
	}
}

func TestSetupNilHandle(t *testing.T) {
	tray, _, _ := newTestTray(t)
	if err := tray.Setup(nil); err == nil {
		t.Fatal("Setup(nil) = nil; want error")
	}
}

func TestSetupAppliesIdleDisplay(t *testing.T) {
	tray, _, _ := newTestTray(t)
	h := &fakeTrayHandle{}

	if err := tray.Setup(h); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if h.iconWrites() != 1 {
		t.Errorf("icon writes after Setup = %d; want 1", h.iconWrites())
	}
	if got := h.lastTooltip(); got != "Idle" {
		t.Errorf("tooltip after Setup = %q; want %q", got, "Idle")
	}
}

func TestUpdateIconAppliesStateDisplay(t *testing.T) {
	tray, _, _ := newTestTray(t)
	h := &fakeTrayHandle{}
	if err := tray.Setup(h); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	tray.UpdateIcon(StateRecording)

	if got := h.lastTooltip(); got != "Recording" {
		t.Errorf("tooltip = %q; want %q", got, "Recording")
	}
	if h.iconWrites() != 2 { // Setup + UpdateIcon
		t.Fatalf("icon writes = %d; want 2", h.iconWrites())
	}
	want, err := os.ReadFile(filepath.Join(tray.iconRoot, "icons", "tray-recording.png"))
	if err != nil {
		t.Fatal(err)
	}
	if string(h.icons[1]) != string(want) {
		t.Error("icon bytes do not match the recording icon file")
	}
}

func TestUpdateIconReadsFileEveryCall(t *testing.T) {
	tray, _, _ := newTestTray(t)
	h := &fakeTrayHandle{}
	if err := tray.Setup(h); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	tray.UpdateIcon(StateRecording)

	// Replace the file on disk; the next refresh must pick up the new bytes.
	repainted, err := renderTrayIcon(stateColor(StateProcessing))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(tray.iconRoot, "icons", "tray-recording.png")
	if err := os.WriteFile(path, repainted, 0o644); err != nil {
		t.Fatal(err)
	}

	tray.UpdateIcon(StateRecording)
	if h.iconWrites() != 3 {
		t.Fatalf("icon writes = %d; want 3", h.iconWrites())
	}
	if string(h.icons[2]) != string(repainted) {
		t.Error("second refresh did not re-read the icon file from disk")
	}
}

func TestUpdateIconMissingFileKeepsPrevious(t *testing.T) {
	tray, _, _ := newTestTray(t)
	h := &fakeTrayHandle{}
	if err := tray.Setup(h); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	writes := h.iconWrites()

	if err := os.Remove(filepath.Join(tray.iconRoot, "icons", "tray-processing.png")); err != nil {
		t.Fatal(err)
	}

	tray.UpdateIcon(StateProcessing)

	if got := h.lastTooltip(); got != "Processing" {
		t.Errorf("tooltip = %q; want %q (tooltip must update even when the icon fails)", got, "Processing")
	}
	if h.iconWrites() != writes {
		t.Errorf("icon writes = %d; want %d (missing file must keep the previous icon)", h.iconWrites(), writes)
	}
}

func TestUpdateIconCorruptFileKeepsPrevious(t *testing.T) {
	tray, _, _ := newTestTray(t)
	h := &fakeTrayHandle{}
	if err := tray.Setup(h); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	writes := h.iconWrites()

	path := filepath.Join(tray.iconRoot, "icons", "tray-recording.png")
	if err := os.WriteFile(path, []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	tray.UpdateIcon(StateRecording)

	if got := h.lastTooltip(); got != "Recording" {
		t.Errorf("tooltip = %q; want %q", got, "Recording")
	}
	if h.iconWrites() != writes {
		t.Errorf("icon writes = %d; want %d (undecodable file must keep the previous icon)", h.iconWrites(), writes)
	}
}

func TestUpdateIconWithoutHandle(t *testing.T) {
	tray, _, _ := newTestTray(t)
	// No Setup: must be a quiet no-op, not a panic.
	tray.UpdateIcon(StateRecording)
}

func TestToggleWindowHidesVisible(t *testing.T) {
	tray, win, _ := newTestTray(t)
	win.visible = true

	if err := tray.ToggleWindow(); err != nil {
		t.Fatalf("ToggleWindow: %v", err)
	}
	if win.visible {
		t.Error("window still visible after toggling a visible window")
	}
	if win.hides != 1 {
		t.Errorf("hides = %d; want 1", win.hides)
	}
}

func TestToggleWindowShowsAndFocusesHidden(t *testing.T) {
	tray, win, _ := newTestTray(t)
	win.visible = false

	if err := tray.ToggleWindow(); err != nil {
		t.Fatalf("ToggleWindow: %v", err)
	}
	if !win.visible {
		t.Error("window still hidden after toggling a hidden window")
	}
	if win.shows != 1 || win.focuses != 1 {
		t.Errorf("shows = %d, focuses = %d; want 1, 1", win.shows, win.focuses)
	}
}

func TestToggleWindowTwiceRestoresVisibility(t *testing.T) {
	for _, initial := range []bool{true, false} {
		tray, win, _ := newTestTray(t)
		win.visible = initial

		if err := tray.ToggleWindow(); err != nil {
			t.Fatalf("first ToggleWindow: %v", err)
		}
		if err := tray.ToggleWindow(); err != nil {
			t.Fatalf("second ToggleWindow: %v", err)
		}
		if win.visible != initial {
			t.Errorf("visibility after double toggle = %v; want %v", win.visible, initial)
		}
	}
}

func TestToggleWindowMissingWindow(t *testing.T) {
	dir := t.TempDir()
	tray := NewTrayService(fakeWindows{}, dir, nil)

	if err := tray.ToggleWindow(); err != nil {
		t.Errorf("ToggleWindow with no main window = %v; want nil", err)
	}
	if err := tray.ShowWindow(); err != nil {
		t.Errorf("ShowWindow with no main window = %v; want nil", err)
	}
	if err := tray.HideWindow(); err != nil {
		t.Errorf("HideWindow with no main window = %v; want nil", err)
	}
}

func TestShowWindowWrapsErrors(t *testing.T) {
	tray, win, _ := newTestTray(t)
	win.showErr = os.ErrPermission

	err := tray.ShowWindow()
	if err == nil {
		t.Fatal("ShowWindow = nil; want error")
	}
	if !strings.Contains(err.Error(), "show window") {
		t.Errorf("error %q does not name the failed operation", err)
	}
}

func TestHandleTrayClickTogglesOnLeftUp(t *testing.T) {
	tray, win, _ := newTestTray(t)
	win.visible = true

	tray.HandleTrayClick(TrayClick{Button: trayButtonLeft, Up: true})

	if win.visible {
		t.Error("left button release did not toggle the window")
	}
}

func TestHandleTrayClickIgnoresOtherEvents(t *testing.T) {
	tests := []struct {
		name  string
		click TrayClick
	}{
		{"right up", TrayClick{Button: trayButtonRight, Up: true}},
		{"left down", TrayClick{Button: trayButtonLeft, Up: false}},
		{"left double", TrayClick{Button: trayButtonLeft, Up: true, Double: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tray, win, _ := newTestTray(t)
			win.visible = true

			tray.HandleTrayClick(tt.click)

			if !win.visible || win.hides != 0 || win.shows != 0 {
				t.Errorf("%s changed window state (visible=%v shows=%d hides=%d)",
					tt.name, win.visible, win.shows, win.hides)
			}
		})
	}
}

func TestHandleMenuEventShow(t *testing.T) {
	tray, win, _ := newTestTray(t)
	win.visible = false

	tray.HandleMenuEvent(menuIDShow)

	if !win.visible {
		t.Error("window not visible after show menu item")
	}
	if win.focuses != 1 {
		t.Errorf("focuses = %d; want 1", win.focuses)
	}
}

func TestHandleMenuEventQuit(t *testing.T) {
	tray, win, quitCalled := newTestTray(t)

	tray.HandleMenuEvent(menuIDQuit)

	if !*quitCalled {
		t.Error("quit function not invoked for quit menu item")
	}
	if win.shows != 0 || win.hides != 0 {
		t.Error("quit touched the window")
	}
}

func TestHandleMenuEventUnknown(t *testing.T) {
	tray, win, quitCalled := newTestTray(t)
	win.visible = true

	tray.HandleMenuEvent("preferences")

	if *quitCalled {
		t.Error("unknown menu id triggered quit")
	}
	if !win.visible || win.shows != 0 || win.hides != 0 {
		t.Error("unknown menu id changed window state")
	}
}

func TestSetRecordingDisplay(t *testing.T) {
	tray, _, _ := newTestTray(t)
	h := &fakeTrayHandle{}
	if err := tray.Setup(h); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	tray.SetRecordingDisplay(true)
	if !tray.IsRecording() {
		t.Error("IsRecording() = false after SetRecordingDisplay(true)")
	}
	if got := h.lastTooltip(); got != "Recording" {
		t.Errorf("tooltip = %q; want %q", got, "Recording")
	}

	tray.SetRecordingDisplay(false)
	if tray.IsRecording() {
		t.Error("IsRecording() = true after SetRecordingDisplay(false)")
	}
	if got := h.lastTooltip(); got != "Idle" {
		t.Errorf("tooltip = %q; want %q", got, "Idle")
	}
}

func TestSetProcessingDisplayLeavesRecordingFlag(t *testing.T) {
	tray, _, _ := newTestTray(t)
	h := &fakeTrayHandle{}
	if err := tray.Setup(h); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	tray.SetRecording(true)
	tray.SetProcessingDisplay(true)

	if got := h.lastTooltip(); got != "Processing" {
		t.Errorf("tooltip = %q; want %q", got, "Processing")
	}
	if !tray.IsRecording() {
		t.Error("SetProcessingDisplay changed the recording flag")
	}

	tray.SetProcessingDisplay(false)
	if got := h.lastTooltip(); got != "Idle" {
		t.Errorf("tooltip = %q; want %q", got, "Idle")
	}
}
