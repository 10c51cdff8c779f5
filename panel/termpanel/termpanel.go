// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package termpanel renders frames as ANSI color blocks on the terminal.
//
// It lets the whole firmware stack run on a development machine before
// the e-paper glass arrives: the display gate pushes frames to it exactly
// as it would to the real panel.
package termpanel

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"periph.io/x/photoframe"
)

// Opts represents the options available for this panel.
type Opts struct {
	// Cols is the width of the preview in terminal cells. Defaults to 100.
	Cols int
	// Palette used for the ANSI approximation.
	Palette *ansi256.Palette

	_ struct{}
}

// Dev is a preview panel writing to stdout.
type Dev struct {
	w       io.Writer
	tty     bool
	cols    int
	rows    int
	palette ansi256.Palette

	width  int
	height int
	buf    bytes.Buffer
}

// New returns a Dev previewing at the console. When stdout is not a
// terminal the device swallows frames silently.
func New(opts *Opts) *Dev {
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	cols := opts.Cols
	if cols <= 0 {
		cols = 100
	}
	d := &Dev{
		w:       colorable.NewColorableStdout(),
		tty:     isatty.IsTerminal(os.Stdout.Fd()),
		cols:    cols,
		rows:    cols * photoframe.DisplayHeight / photoframe.DisplayWidth / 2,
		palette: *p,
		width:   photoframe.DisplayWidth,
		height:  photoframe.DisplayHeight,
	}
	return d
}

func (d *Dev) String() string {
	return "TermPanel"
}

// Size implements panel.Panel.
func (d *Dev) Size() (int, int) {
	return d.width, d.height
}

// PushFrame implements panel.Panel. The frame is downsampled to the
// preview grid; terminal cells are roughly twice as tall as wide, so the
// row count is halved.
func (d *Dev) PushFrame(rgb []byte) error {
	if len(rgb) != d.width*d.height*3 {
		return fmt.Errorf("termpanel: frame is %d bytes, want %d", len(rgb), d.width*d.height*3)
	}
	if !d.tty {
		return nil
	}
	d.buf.Reset()
	d.buf.WriteString("\033[0m\n")
	for ty := 0; ty < d.rows; ty++ {
		y := ty * d.height / d.rows
		for tx := 0; tx < d.cols; tx++ {
			x := tx * d.width / d.cols
			i := (y*d.width + x) * 3
			c := color.NRGBA{rgb[i], rgb[i+1], rgb[i+2], 255}
			io.WriteString(&d.buf, d.palette.Block(c))
		}
		d.buf.WriteString("\033[0m\n")
	}
	_, err := d.buf.WriteTo(d.w)
	return err
}
