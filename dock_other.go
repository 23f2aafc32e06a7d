//go:build !darwin

package main

// HideFromDock is a no-op outside macOS; only Cocoa has an activation
// policy to flip.
func HideFromDock() {}
