package main

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// outputter abstracts the two output strategies so we can swap them in tests.
type outputter interface {
	Paste(text string) error
	CopyToClipboard(text string) error
}

// OutputService tries to type the text into the frontmost app and falls back
// to the clipboard when that fails.
type OutputService struct {
	backend outputter
}

// NewOutputService returns a production-ready OutputService.
func NewOutputService() *OutputService {
	return &OutputService{backend: &realOutputter{}}
}

// newOutputServiceWithBackend wires in a custom backend (tests only).
func newOutputServiceWithBackend(b outputter) *OutputService {
	return &OutputService{backend: b}
}

// Send attempts to paste text into the frontmost app. If paste fails it
// copies to clipboard and calls onFallback so the caller can notify the UI.
func (s *OutputService) Send(text string, onFallback func()) {
	if text == "" {
		return
	}
	if err := s.backend.Paste(text); err != nil {
		zap.S().Warnf("output: paste failed (%v), falling back to clipboard", err)
		if cbErr := s.backend.CopyToClipboard(text); cbErr != nil {
			zap.S().Warnf("output: clipboard fallback also failed: %v", cbErr)
			return
		}
		zap.S().Info("output: copied to clipboard")
		if onFallback != nil {
			onFallback()
		}
	} else {
		zap.S().Infof("output: typed %d chars", len(text))
	}
}

// ── Real implementation ───────────────────────────────────

type realOutputter struct{}

// Paste injects text as keystrokes into the frontmost application using the
// platform's scripting tool.
func (r *realOutputter) Paste(text string) error {
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(
			`tell application "System Events" to keystroke "%s"`,
			escapeForAppleScript(text),
		)
		return runTool("osascript", "-e", script)
	case "linux":
		if _, err := exec.LookPath("xdotool"); err != nil {
			return fmt.Errorf("xdotool not installed: %w", err)
		}
		return runTool("xdotool", "type", "--clearmodifiers", "--", text)
	case "windows":
		// SendKeys treats several characters as control sequences.
		script := fmt.Sprintf(
			`Add-Type -AssemblyName System.Windows.Forms; [System.Windows.Forms.SendKeys]::SendWait('%s')`,
			escapeForSendKeys(text),
		)
		return runTool("powershell", "-NoProfile", "-Command", script)
	default:
		return fmt.Errorf("paste not supported on %s", runtime.GOOS)
	}
}

// CopyToClipboard writes text to the system clipboard.
func (r *realOutputter) CopyToClipboard(text string) error {
	switch runtime.GOOS {
	case "darwin":
		return runToolStdin(text, "pbcopy")
	case "linux":
		if _, err := exec.LookPath("wl-copy"); err == nil {
			return runToolStdin(text, "wl-copy")
		}
		if _, err := exec.LookPath("xclip"); err == nil {
			return runToolStdin(text, "xclip", "-selection", "clipboard")
		}
		return fmt.Errorf("no clipboard tool found (need wl-copy or xclip)")
	case "windows":
		return runToolStdin(text, "clip")
	default:
		return fmt.Errorf("clipboard not supported on %s", runtime.GOOS)
	}
}

func runTool(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func runToolStdin(stdin, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// escapeForAppleScript escapes characters that are special inside an
// AppleScript double-quoted string literal.
func escapeForAppleScript(s string) string {
	// Backslash must be first to avoid double-escaping.
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// escapeForSendKeys wraps SendKeys metacharacters in braces and doubles
// single quotes for the PowerShell literal.
func escapeForSendKeys(s string) string {
	var out strings.Builder
	for _, r := range s {
		switch r {
		case '+', '^', '%', '~', '(', ')', '{', '}', '[', ']':
			out.WriteRune('{')
			out.WriteRune(r)
			out.WriteRune('}')
		case '\'':
			out.WriteString("''")
		default:
			out.WriteRune(r)
		}
	}
	return out.String()
}
