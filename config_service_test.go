package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSettingsDefaults(t *testing.T) {
	dir := t.TempDir()
	svc := newSettingsServiceAt(filepath.Join(dir, "config.yaml"))

	cfg := svc.Load()
	if cfg.Hotkey != "ctrl+space" {
		t.Errorf("default hotkey = %q; want %q", cfg.Hotkey, "ctrl+space")
	}
	if cfg.Language != "en" {
		t.Errorf("default language = %q; want %q", cfg.Language, "en")
	}
	if cfg.Model != "whisper-1" {
		t.Errorf("default model = %q; want %q", cfg.Model, "whisper-1")
	}
	if cfg.CloseToTray || cfg.StartMinimized {
		t.Error("tray flags should default to false")
	}
}

func TestSettingsSaveLoad(t *testing.T) {
	dir := t.TempDir()
	svc := newSettingsServiceAt(filepath.Join(dir, "config.yaml"))

	want := Settings{
		CloseToTray:    true,
		StartMinimized: true,
		Hotkey:         "option+d",
		Language:       "auto",
		Endpoint:       "http://localhost:9000/v1/audio/transcriptions",
		Model:          "whisper-large",
	}
	if err := svc.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := svc.Load()
	if got != want {
		t.Errorf("Load() = %+v; want %+v", got, want)
	}
}

func TestSettingsSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	svc := newSettingsServiceAt(path)

	if err := svc.Save(defaultSettings()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file %s left behind after Save", e.Name())
		}
	}
}

func TestSettingsCorruptFileResets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(":\n  - [unbalanced"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := newSettingsServiceAt(path)
	cfg := svc.Load()

	if cfg != defaultSettings() {
		t.Errorf("corrupt fallback = %+v; want defaults", cfg)
	}

	// The broken file must have been rewritten with parseable defaults.
	again := svc.Load()
	if again != defaultSettings() {
		t.Errorf("reloaded after reset = %+v; want defaults", again)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reset did not rewrite the file: %v", err)
	}
	if !strings.Contains(string(data), "hotkey") {
		t.Errorf("rewritten file lacks expected keys:\n%s", data)
	}
}

func TestSettingsUnknownFieldResets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "hotkey: ctrl+space\nturbo_mode: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := newSettingsServiceAt(path)
	cfg := svc.Load()

	if cfg != defaultSettings() {
		t.Errorf("unknown-field fallback = %+v; want defaults", cfg)
	}
}

func TestSettingsEmptyFileGivesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	svc := newSettingsServiceAt(path)
	if cfg := svc.Load(); cfg != defaultSettings() {
		t.Errorf("empty-file settings = %+v; want defaults", cfg)
	}
}

func TestSettingsPartialFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("close_to_tray: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := newSettingsServiceAt(path)
	cfg := svc.Load()

	if !cfg.CloseToTray {
		t.Error("close_to_tray = false; want true from file")
	}
	if cfg.Hotkey != "ctrl+space" {
		t.Errorf("hotkey = %q; want default %q", cfg.Hotkey, "ctrl+space")
	}
	if cfg.Endpoint == "" || cfg.Model == "" || cfg.Language == "" {
		t.Errorf("partial file left zero-value fields: %+v", cfg)
	}
}

func TestSettingsWatchReloadsOnExternalEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	svc := newSettingsServiceAt(path)
	if err := svc.Save(defaultSettings()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	defer svc.Close()

	reloaded := make(chan Settings, 1)
	if err := svc.Watch(func(cfg Settings) { reloaded <- cfg }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// Simulate an external editor: atomic replace of the file.
	edited := defaultSettings()
	edited.CloseToTray = true
	if err := svc.Save(edited); err != nil {
		t.Fatalf("Save: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if !cfg.CloseToTray {
			t.Errorf("reloaded settings = %+v; want close_to_tray=true", cfg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not deliver the edited settings")
	}
}

func TestSettingsCloseWithoutWatch(t *testing.T) {
	svc := newSettingsServiceAt(filepath.Join(t.TempDir(), "config.yaml"))
	if err := svc.Close(); err != nil {
		t.Errorf("Close without Watch: %v", err)
	}
}
