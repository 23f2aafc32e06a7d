package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
)

// trayIconSize is the rendered icon edge in pixels. Tray implementations
// scale as needed; 32 stays crisp on HiDPI status bars.
const trayIconSize = 32

// stateColor returns the dot color for a display state.
func stateColor(state DisplayState) color.NRGBA {
	switch state {
	case StateRecording:
		return color.NRGBA{R: 0xE5, G: 0x48, B: 0x4D, A: 0xFF}
	case StateProcessing:
		return color.NRGBA{R: 0xF2, G: 0xA6, B: 0x3C, A: 0xFF}
	default:
		return color.NRGBA{R: 0x9A, G: 0xA0, B: 0xA6, A: 0xFF}
	}
}

// renderTrayIcon draws a filled circle on a transparent canvas and returns
// the PNG encoding.
func renderTrayIcon(fill color.NRGBA) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, trayIconSize, trayIconSize))
	c := trayIconSize / 2
	r := c - 2
	for y := 0; y < trayIconSize; y++ {
		for x := 0; x < trayIconSize; x++ {
			dx, dy := x-c, y-c
			if dx*dx+dy*dy <= r*r {
				img.SetNRGBA(x, y, fill)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("icons: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// defaultTrayIcon returns the idle rendering applied at tray setup.
func defaultTrayIcon() ([]byte, error) {
	return renderTrayIcon(stateColor(StateIdle))
}

// EnsureTrayIcons materializes the per-state icon files under root so the
// disk-read refresh path has something to read on a fresh install. Existing
// files are left alone so users can drop in their own art.
func EnsureTrayIcons(root string) error {
	for _, state := range []DisplayState{StateIdle, StateRecording, StateProcessing} {
		path := filepath.Join(root, filepath.FromSlash(displayFor(state).IconPath))
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("icons: mkdir: %w", err)
		}
		data, err := renderTrayIcon(stateColor(state))
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("icons: write %s: %w", path, err)
		}
	}
	return nil
}

// pngToICO wraps raw PNG bytes in a minimal single-image ICO container.
// Windows LoadImage(IMAGE_ICON) requires ICO; since Vista the container may
// embed PNG data directly.
func pngToICO(data []byte) []byte {
	buf := new(bytes.Buffer)
	// ICONDIR
	binary.Write(buf, binary.LittleEndian, uint16(0)) // reserved
	binary.Write(buf, binary.LittleEndian, uint16(1)) // type: icon
	binary.Write(buf, binary.LittleEndian, uint16(1)) // image count

	// ICONDIRENTRY
	buf.WriteByte(trayIconSize) // width
	buf.WriteByte(trayIconSize) // height
	buf.WriteByte(0)            // palette colors
	buf.WriteByte(0)            // reserved
	binary.Write(buf, binary.LittleEndian, uint16(1))         // color planes
	binary.Write(buf, binary.LittleEndian, uint16(32))        // bits per pixel
	binary.Write(buf, binary.LittleEndian, uint32(len(data))) // image size
	binary.Write(buf, binary.LittleEndian, uint32(6+16))      // data offset

	buf.Write(data)
	return buf.Bytes()
}
