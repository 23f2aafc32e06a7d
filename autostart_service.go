package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

const autostartLabel = "com.murmur"

// launchdTemplate is the launchd property list for launch-at-login on macOS.
// RunAtLoad=true  → start app when user logs in.
// KeepAlive=false → don't restart if it exits cleanly.
var launchdTemplate = template.Must(template.New("plist").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN"
  "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecPath}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`))

// desktopTemplate is the XDG autostart entry for Linux desktops.
var desktopTemplate = template.Must(template.New("desktop").Parse(`[Desktop Entry]
Type=Application
Name=Murmur
Exec={{.ExecPath}}
Hidden=false
X-GNOME-Autostart-enabled=true
`))

// AutostartService manages the OS launch-at-login entry. Each platform keeps
// a single file in entryDir whose presence means autostart is enabled:
// a launchd plist on macOS, an XDG .desktop file on Linux, a starter script
// in the Startup folder on Windows. entryDir is overridable for unit tests.
type AutostartService struct {
	entryDir string
	goos     string
}

// NewAutostartService returns an AutostartService pointing at the current
// user's autostart location for this OS.
func NewAutostartService() (*AutostartService, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("autostart: resolve home dir: %w", err)
	}
	var dir string
	switch runtime.GOOS {
	case "darwin":
		dir = filepath.Join(home, "Library", "LaunchAgents")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"),
			"Microsoft", "Windows", "Start Menu", "Programs", "Startup")
	default:
		cfg := os.Getenv("XDG_CONFIG_HOME")
		if cfg == "" {
			cfg = filepath.Join(home, ".config")
		}
		dir = filepath.Join(cfg, "autostart")
	}
	return &AutostartService{entryDir: dir, goos: runtime.GOOS}, nil
}

// Enable writes the autostart entry so the app launches at login.
// execPath is the path to the executable to launch.
func (s *AutostartService) Enable(execPath string) error {
	if err := os.MkdirAll(s.entryDir, 0o755); err != nil {
		return fmt.Errorf("autostart: create entry dir: %w", err)
	}

	f, err := os.Create(s.entryPath())
	if err != nil {
		return fmt.Errorf("autostart: create entry: %w", err)
	}
	defer f.Close()

	data := struct {
		Label    string
		ExecPath string
	}{
		Label:    autostartLabel,
		ExecPath: execPath,
	}
	switch s.goos {
	case "darwin":
		err = launchdTemplate.Execute(f, data)
	case "windows":
		_, err = fmt.Fprintf(f, "start \"\" \"%s\"\r\n", execPath)
	default:
		err = desktopTemplate.Execute(f, data)
	}
	if err != nil {
		return fmt.Errorf("autostart: write entry: %w", err)
	}
	return nil
}

// Disable removes the autostart entry. Returns nil if it does not exist.
func (s *AutostartService) Disable() error {
	err := os.Remove(s.entryPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("autostart: remove entry: %w", err)
	}
	return nil
}

// IsEnabled reports whether the autostart entry currently exists.
func (s *AutostartService) IsEnabled() bool {
	_, err := os.Stat(s.entryPath())
	return err == nil
}

// entryPath returns the full path to this platform's autostart entry.
func (s *AutostartService) entryPath() string {
	switch s.goos {
	case "darwin":
		return filepath.Join(s.entryDir, autostartLabel+".plist")
	case "windows":
		return filepath.Join(s.entryDir, "murmur.bat")
	default:
		return filepath.Join(s.entryDir, "murmur.desktop")
	}
}
