package main

import (
	"os"
	"runtime"

	"github.com/energye/systray"
	"go.uber.org/zap"
)

// StartSystray launches the system-tray icon in a background goroutine.
// It must be called AFTER Wails startup() fires so the native run loop is
// already running; calling it earlier deadlocks on macOS.
func StartSystray(tray *TrayService) {
	go func() {
		// The hidden message window systray creates and its event loop must
		// share one OS thread.
		runtime.LockOSThread()
		systray.Run(
			func() { onSystrayReady(tray) },
			func() { /* onExit: nothing to clean up */ },
		)
	}()
}

func onSystrayReady(tray *TrayService) {
	HideFromDock() // runs on the native tray thread where NSApp is safe to touch

	if err := tray.Setup(platformTrayHandle{}); err != nil {
		zap.S().Errorf("tray: setup failed: %v", err)
		return
	}

	mShow := systray.AddMenuItem("Show", "Show the murmur window")
	mShow.Click(func() { tray.HandleMenuEvent(menuIDShow) })
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit murmur")
	mQuit.Click(func() { tray.HandleMenuEvent(menuIDQuit) })

	// A plain left-click release toggles the window; right click opens the
	// menu. Double clicks reach the controller as their own event and are
	// ignored there.
	systray.SetOnClick(func(_ systray.IMenu) {
		tray.HandleTrayClick(TrayClick{Button: trayButtonLeft, Up: true})
	})
	systray.SetOnDClick(func(_ systray.IMenu) {
		tray.HandleTrayClick(TrayClick{Button: trayButtonLeft, Up: true, Double: true})
	})
	systray.SetOnRClick(func(menu systray.IMenu) {
		tray.HandleTrayClick(TrayClick{Button: trayButtonRight, Up: true})
		if menu != nil {
			menu.ShowMenu()
		}
	})
}

// platformTrayHandle is the live tray icon as stored by the controller.
// energye/systray addresses the single process tray icon through package
// functions, so the handle is stateless.
type platformTrayHandle struct{}

func (platformTrayHandle) SetTooltip(tooltip string) {
	systray.SetTooltip(tooltip)
}

func (platformTrayHandle) SetIcon(data []byte) {
	if runtime.GOOS == "windows" {
		systray.SetIcon(pngToICO(data))
		return
	}
	systray.SetIcon(data)
}

// quitProcess removes the tray icon and exits immediately with code 0.
// The quit menu item is the one deliberate hard exit in the app.
func quitProcess() {
	systray.Quit()
	os.Exit(0)
}
