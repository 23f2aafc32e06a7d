package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Settings holds persistent user preferences. Stored as YAML at
// ~/.murmur/config.yaml; the json tags shape what the frontend sees.
type Settings struct {
	CloseToTray    bool   `yaml:"close_to_tray" json:"close_to_tray"`     // window close hides to tray instead of quitting
	StartMinimized bool   `yaml:"start_minimized" json:"start_minimized"` // launch hidden, tray icon only
	Hotkey         string `yaml:"hotkey" json:"hotkey"`                   // e.g. "ctrl+space", "option+f"
	Language       string `yaml:"language" json:"language"`               // "en", "auto", "es", ...
	Endpoint       string `yaml:"endpoint" json:"endpoint"`               // OpenAI-compatible transcription URL
	Model          string `yaml:"model" json:"model"`                     // model name sent with each request
}

// defaultSettings returns factory defaults.
func defaultSettings() Settings {
	return Settings{
		Hotkey:   "ctrl+space",
		Language: "en",
		Endpoint: "http://127.0.0.1:8080/v1/audio/transcriptions",
		Model:    "whisper-1",
	}
}

// appDir returns murmur's per-user data directory (~/.murmur).
func appDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".murmur")
}

// SettingsService loads, saves and watches user configuration.
type SettingsService struct {
	mu       sync.Mutex
	path     string
	watcher  *fsnotify.Watcher
	debounce *time.Timer
	onChange func(Settings)
}

// NewSettingsService creates a SettingsService pointing at the standard
// config path.
func NewSettingsService() *SettingsService {
	return &SettingsService{path: filepath.Join(appDir(), "config.yaml")}
}

// newSettingsServiceAt creates a SettingsService with a custom path (tests only).
func newSettingsServiceAt(path string) *SettingsService {
	return &SettingsService{path: path}
}

// Load reads settings from disk. Returns defaults if the file doesn't exist.
// A corrupt or unrecognized file is logged and rewritten with defaults.
func (s *SettingsService) Load() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *SettingsService) loadLocked() Settings {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return defaultSettings()
	}
	if err != nil {
		zap.S().Warnf("settings: read error: %v (using defaults)", err)
		return defaultSettings()
	}

	var cfg Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return defaultSettings()
		}
		zap.S().Warnf("settings: parse error: %v (resetting to defaults)", err)
		defaults := defaultSettings()
		if werr := s.saveLocked(defaults); werr != nil {
			zap.S().Warnf("settings: reset failed: %v", werr)
		}
		return defaults
	}

	// Fill zero-value fields with defaults so older files keep working.
	d := defaultSettings()
	if cfg.Hotkey == "" {
		cfg.Hotkey = d.Hotkey
	}
	if cfg.Language == "" {
		cfg.Language = d.Language
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = d.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = d.Model
	}
	return cfg
}

// Save writes the settings to disk atomically (write to temp, then rename).
func (s *SettingsService) Save(cfg Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(cfg)
}

func (s *SettingsService) saveLocked(cfg Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Watch starts watching the settings file for external edits and calls
// onChange (debounced) with freshly loaded settings. The parent directory is
// watched rather than the file itself because editors and atomic saves
// replace the file.
func (s *SettingsService) Watch(onChange func(Settings)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings: watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		w.Close()
		return fmt.Errorf("settings: watch dir: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("settings: watch %s: %w", dir, err)
	}

	s.mu.Lock()
	s.watcher = w
	s.onChange = onChange
	s.mu.Unlock()

	go s.watchLoop(w)
	return nil
}

func (s *SettingsService) watchLoop(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filepath.Base(s.path) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				s.scheduleReload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			zap.S().Warnf("settings: watch error: %v", err)
		}
	}
}

// scheduleReload coalesces bursts of file events into a single reload.
func (s *SettingsService) scheduleReload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(300*time.Millisecond, func() {
		cfg := s.Load()
		s.mu.Lock()
		fn := s.onChange
		s.mu.Unlock()
		zap.S().Info("settings: reloaded after external edit")
		if fn != nil {
			fn(cfg)
		}
	})
}

// Close stops the watcher. Safe to call when Watch was never started.
func (s *SettingsService) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.mu.Unlock()
	if w != nil {
		return w.Close()
	}
	return nil
}
