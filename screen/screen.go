// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package screen is the single gate in front of the panel: it owns the
// panel, the mutex serializing pushes and the current-image pointer
// file. Each push builds its own frame; no frame buffer is kept between
// pushes.
//
// At most one frame push is in flight at any time. Callers on the
// interactive path use TryShow and handle Busy; background callers use
// Show, which waits up to five seconds before giving up.
package screen

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/bmp"
	"periph.io/x/photoframe"
	"periph.io/x/photoframe/palette"
	"periph.io/x/photoframe/panel"
)

const acquireTimeout = 5 * time.Second

// PointerName is the file holding the path of the currently displayed
// image, kept next to the image root (or in RAM on card-less boards).
const PointerName = ".current.lnk"

// Gate serializes access to the panel.
type Gate struct {
	p       panel.Panel
	pointer string

	// One-slot semaphore. A held token means a push is in flight.
	sem chan struct{}
}

// New returns a Gate over p. pointerDir is the directory holding the
// current-image pointer file.
func New(p panel.Panel, pointerDir string) *Gate {
	g := &Gate{
		p:       p,
		pointer: filepath.Join(pointerDir, PointerName),
		sem:     make(chan struct{}, 1),
	}
	return g
}

func (g *Gate) acquire(timeout time.Duration) error {
	select {
	case g.sem <- struct{}{}:
		return nil
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-t.C:
		return fmt.Errorf("screen: %w: display busy after %s", photoframe.ErrTimeout, timeout)
	}
}

func (g *Gate) tryAcquire() bool {
	select {
	case g.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (g *Gate) release() {
	<-g.sem
}

// IsBusy reports whether a push is in flight. The answer is stale the
// moment it returns; correctness-critical callers must call TryShow and
// handle Busy instead.
func (g *Gate) IsBusy() bool {
	if g.tryAcquire() {
		g.release()
		return false
	}
	return true
}

// Show displays the stored image at path and updates the current-image
// pointer. Waits up to five seconds for the panel.
func (g *Gate) Show(path string) error {
	if err := g.acquire(acquireTimeout); err != nil {
		return err
	}
	defer g.release()
	return g.showLocked(path)
}

// TryShow is Show for interactive callers: when a push is already in
// flight it fails immediately with Busy, never queues.
func (g *Gate) TryShow(path string) error {
	if !g.tryAcquire() {
		return fmt.Errorf("screen: %w", photoframe.ErrBusy)
	}
	defer g.release()
	return g.showLocked(path)
}

func (g *Gate) showLocked(path string) error {
	rgb, err := g.readFrame(path)
	if err != nil {
		return err
	}
	if err := g.p.PushFrame(rgb); err != nil {
		return fmt.Errorf("screen: %w: %v", photoframe.ErrIO, err)
	}
	// Only a successfully displayed image becomes current.
	return g.setPointer(path)
}

// ShowRGB displays a raw frame, bypassing file I/O. Used on boards with
// no SD card and for downloaded images.
func (g *Gate) ShowRGB(rgb []byte, w, h int) error {
	pw, ph := g.p.Size()
	if w != pw || h != ph || len(rgb) != w*h*3 {
		return fmt.Errorf("screen: %w: frame %dx%d (%d bytes)", photoframe.ErrInvalidSize, w, h, len(rgb))
	}
	if err := g.acquire(acquireTimeout); err != nil {
		return err
	}
	defer g.release()
	if err := g.p.PushFrame(rgb); err != nil {
		return fmt.Errorf("screen: %w: %v", photoframe.ErrIO, err)
	}
	return nil
}

// Clear pushes a white frame and forgets the current image.
func (g *Gate) Clear() error {
	if err := g.acquire(acquireTimeout); err != nil {
		return err
	}
	defer g.release()
	w, h := g.p.Size()
	rgb := make([]byte, w*h*3)
	for i := range rgb {
		rgb[i] = 0xFF
	}
	if err := g.p.PushFrame(rgb); err != nil {
		return fmt.Errorf("screen: %w: %v", photoframe.ErrIO, err)
	}
	if err := os.Remove(g.pointer); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("screen: %w: %v", photoframe.ErrIO, err)
	}
	return nil
}

// CurrentImage returns the path of the most recently displayed image, or
// "" when there is none.
func (g *Gate) CurrentImage() string {
	raw, err := os.ReadFile(g.pointer)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// setPointer atomically replaces the pointer file.
func (g *Gate) setPointer(path string) error {
	tmp := g.pointer + ".tmp"
	if err := os.WriteFile(tmp, []byte(path+"\n"), 0o644); err != nil {
		return fmt.Errorf("screen: %w: %v", photoframe.ErrIO, err)
	}
	if err := os.Rename(tmp, g.pointer); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("screen: %w: %v", photoframe.ErrIO, err)
	}
	return nil
}

// readFrame loads a stored .png or .bmp into a packed RGB888 frame.
func (g *Gate) readFrame(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("screen: %w: %v", photoframe.ErrNotFound, err)
	}
	defer f.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		img, err = png.Decode(f)
	case ".bmp":
		img, err = bmp.Decode(f)
	default:
		return nil, fmt.Errorf("screen: %w: %q", photoframe.ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("screen: %w: %v", photoframe.ErrDecode, err)
	}

	w, h := g.p.Size()
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		return nil, fmt.Errorf("screen: %w: stored image is %dx%d, want %dx%d", photoframe.ErrInvalidSize, b.Dx(), b.Dy(), w, h)
	}
	rgb := make([]byte, w*h*3)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, gr, bl, _ := img.At(x, y).RGBA()
			rgb[i] = uint8(r >> 8)
			rgb[i+1] = uint8(gr >> 8)
			rgb[i+2] = uint8(bl >> 8)
			i += 3
		}
	}
	return rgb, nil
}

// ShowCalibration draws the built-in calibration pattern: one solid bar
// per active palette slot, filling the display.
func (g *Gate) ShowCalibration() error {
	if err := g.acquire(acquireTimeout); err != nil {
		return err
	}
	defer g.release()
	w, h := g.p.Size()
	rgb := make([]byte, w*h*3)
	bars := palette.Active[:]
	for x := 0; x < w; x++ {
		c := palette.Theoretical[bars[x*len(bars)/w]]
		for y := 0; y < h; y++ {
			i := (y*w + x) * 3
			rgb[i] = c.R
			rgb[i+1] = c.G
			rgb[i+2] = c.B
		}
	}
	if err := g.p.PushFrame(rgb); err != nil {
		return fmt.Errorf("screen: %w: %v", photoframe.ErrIO, err)
	}
	return nil
}
