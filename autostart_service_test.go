package main

import (
	"os"
	"strings"
	"testing"
)

// newTestAutostart returns an AutostartService writing to a temp dir for the
// given platform.
func newTestAutostart(t *testing.T, goos string) *AutostartService {
	t.Helper()
	return &AutostartService{entryDir: t.TempDir(), goos: goos}
}

func TestAutostartEnablePerPlatform(t *testing.T) {
	execPath := "/opt/murmur/murmur"
	tests := []struct {
		goos     string
		wantFile string
		wantIn   []string
	}{
		{"darwin", autostartLabel + ".plist", []string{autostartLabel, execPath, "RunAtLoad"}},
		{"linux", "murmur.desktop", []string{"[Desktop Entry]", "Exec=" + execPath}},
		{"windows", "murmur.bat", []string{execPath, "start"}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			svc := newTestAutostart(t, tt.goos)

			if err := svc.Enable(execPath); err != nil {
				t.Fatalf("Enable() unexpected error: %v", err)
			}

			data, err := os.ReadFile(svc.entryPath())
			if err != nil {
				t.Fatalf("entry not created: %v", err)
			}
			content := string(data)
			if !strings.HasSuffix(svc.entryPath(), tt.wantFile) {
				t.Errorf("entry path = %q; want suffix %q", svc.entryPath(), tt.wantFile)
			}
			for _, want := range tt.wantIn {
				if !strings.Contains(content, want) {
					t.Errorf("%s entry missing %q:\n%s", tt.goos, want, content)
				}
			}
		})
	}
}

func TestAutostartDisable(t *testing.T) {
	svc := newTestAutostart(t, "darwin")

	if err := svc.Enable("/usr/local/bin/murmur"); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	if err := svc.Disable(); err != nil {
		t.Fatalf("Disable() error: %v", err)
	}

	if _, err := os.Stat(svc.entryPath()); !os.IsNotExist(err) {
		t.Errorf("entry still exists after Disable(); stat err: %v", err)
	}
}

func TestAutostartIsEnabled(t *testing.T) {
	svc := newTestAutostart(t, "linux")

	if svc.IsEnabled() {
		t.Error("IsEnabled() = true before Enable(); want false")
	}

	if err := svc.Enable("/usr/local/bin/murmur"); err != nil {
		t.Fatalf("Enable() error: %v", err)
	}
	if !svc.IsEnabled() {
		t.Error("IsEnabled() = false after Enable(); want true")
	}
}

func TestAutostartToggleRoundtrip(t *testing.T) {
	svc := newTestAutostart(t, "darwin")
	exec := "/Applications/murmur.app/Contents/MacOS/murmur"

	// off → on → off → on
	for i, enable := range []bool{true, false, true} {
		var err error
		if enable {
			err = svc.Enable(exec)
		} else {
			err = svc.Disable()
		}
		if err != nil {
			t.Fatalf("step %d: error: %v", i, err)
		}
		if got := svc.IsEnabled(); got != enable {
			t.Errorf("step %d: IsEnabled() = %v, want %v", i, got, enable)
		}
	}
}

func TestAutostartDisableWhenNotEnabled(t *testing.T) {
	svc := newTestAutostart(t, "windows")
	if err := svc.Disable(); err != nil {
		t.Errorf("Disable() on missing entry returned error: %v", err)
	}
}
