// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package panel defines the contract between the display gate and the
// e-paper glass, plus the drivers implementing it: the AC073TC1 7-color
// panel over SPI and an ANSI terminal preview for screen-less
// development.
package panel

// Panel pushes full frames to a display. PushFrame blocks for the whole
// refresh, around 30 seconds on real glass; the display gate serializes
// callers.
type Panel interface {
	// PushFrame displays a packed RGB888 buffer of width×height×3 bytes,
	// with the geometry reported by Size.
	PushFrame(rgb []byte) error
	// Size returns the native geometry.
	Size() (width, height int)
}
