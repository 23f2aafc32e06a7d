package main

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework AppKit
#import <AppKit/AppKit.h>

// hideFromDock sets the process activation policy to Accessory,
// which removes the Dock icon and Task Switcher entry.
// Safe to call only after the Cocoa run loop is running.
void hideFromDock() {
    if ([NSApp isRunning]) {
        [NSApp setActivationPolicy:NSApplicationActivationPolicyAccessory];
    }
}
*/
import "C"

import "go.uber.org/zap"

// HideFromDock removes the app's Dock icon at runtime, turning murmur into
// a tray-only accessory. No-op before the Cocoa run loop exists (e.g. tests).
func HideFromDock() {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Debugf("dock: HideFromDock skipped (no run loop): %v", r)
		}
	}()
	C.hideFromDock()
}
