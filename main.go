package main

import (
	"embed"
	"flag"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"go.uber.org/zap"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger := initLogger(*verbose)
	defer logger.Sync() //nolint:errcheck

	app := NewApp()
	app.SetHotkeyService(NewHotkeyService())
	cfg := app.GetSettings()

	// Application menu: keyboard shortcuts while the window is focused.
	appMenu := menu.NewMenu()
	fileMenu := appMenu.AddSubmenu("murmur")
	fileMenu.AddText("Show / Hide", keys.CmdOrCtrl(","), func(_ *menu.CallbackData) {
		if err := app.ToggleWindowVisibility(); err != nil {
			zap.S().Warnf("menu: toggle window: %v", err)
		}
	})
	fileMenu.AddSeparator()
	fileMenu.AddText("Quit", keys.CmdOrCtrl("q"), func(_ *menu.CallbackData) {
		app.Quit()
	})

	err := wails.Run(&options.App{
		Title:  "murmur",
		Width:  420,
		Height: 560,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 18, G: 18, B: 18, A: 0},
		OnStartup:        app.startup,
		OnBeforeClose:    app.beforeClose,
		OnShutdown:       app.shutdown,
		Bind:             []interface{}{app},
		Mac: &mac.Options{
			TitleBar:             mac.TitleBarHiddenInset(),
			Appearance:           mac.NSAppearanceNameDarkAqua,
			WebviewIsTransparent: true,
			WindowIsTranslucent:  true,
			About: &mac.AboutInfo{
				Title:   "murmur",
				Message: "Dictation that types where you are.",
			},
		},
		// The hidden start preference also hides the window at launch; the
		// tray icon stays the way back in.
		StartHidden: cfg.StartMinimized,
		Menu:        appMenu,
	})
	if err != nil {
		zap.S().Fatalf("wails.Run: %v", err)
	}
}
