// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package screen

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
	"periph.io/x/photoframe"
)

const setupTitle = "ESP32-PhotoFrame"

var setupLines = []string{
	"Connect to the PhotoFrame-Setup WiFi network",
	"then open http://192.168.4.1 to configure.",
}

const checkerSize = 40

// ShowSetupScreen paints the first-boot screen: a purple checkerboard
// with the centered title and connection instructions.
func (g *Gate) ShowSetupScreen() error {
	if err := g.acquire(acquireTimeout); err != nil {
		return err
	}
	defer g.release()

	w, h := g.p.Size()
	img, err := renderSetup(w, h)
	if err != nil {
		return err
	}
	rgb := make([]byte, w*h*3)
	for i, o := 0, 0; o < len(rgb); i, o = i+4, o+3 {
		rgb[o] = img.Pix[i]
		rgb[o+1] = img.Pix[i+1]
		rgb[o+2] = img.Pix[i+2]
	}
	if err := g.p.PushFrame(rgb); err != nil {
		return fmt.Errorf("screen: %w: %v", photoframe.ErrIO, err)
	}
	return nil
}

func renderSetup(w, h int) (*image.RGBA, error) {
	fnt, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("screen: %w: %v", photoframe.ErrInvalidState, err)
	}

	dc := gg.NewContext(w, h)
	for y := 0; y < h; y += checkerSize {
		for x := 0; x < w; x += checkerSize {
			if (x/checkerSize+y/checkerSize)%2 == 0 {
				dc.SetRGB255(128, 0, 128)
			} else {
				dc.SetRGB255(96, 0, 96)
			}
			dc.DrawRectangle(float64(x), float64(y), checkerSize, checkerSize)
			dc.Fill()
		}
	}

	// The title gets the largest size that still fits with a margin;
	// instruction lines follow at half that.
	titleSize := fitFontSize(dc, fnt, setupTitle, 0.9*float64(w), 96)
	dc.SetFontFace(truetype.NewFace(fnt, &truetype.Options{Size: titleSize}))
	dc.SetRGB255(255, 255, 255)
	dc.DrawStringAnchored(setupTitle, float64(w)/2, float64(h)*0.35, 0.5, 0.5)

	lineSize := titleSize / 2
	for _, line := range setupLines {
		if s := fitFontSize(dc, fnt, line, 0.9*float64(w), lineSize); s < lineSize {
			lineSize = s
		}
	}
	dc.SetFontFace(truetype.NewFace(fnt, &truetype.Options{Size: lineSize}))
	for i, line := range setupLines {
		y := float64(h)*0.55 + float64(i)*lineSize*1.6
		dc.DrawStringAnchored(line, float64(w)/2, y, 0.5, 0.5)
	}

	out, ok := dc.Image().(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("screen: %w: unexpected context image", photoframe.ErrInvalidState)
	}
	return out, nil
}

// fitFontSize shrinks from max until s fits in maxWidth.
func fitFontSize(dc *gg.Context, fnt *truetype.Font, s string, maxWidth, max float64) float64 {
	for size := max; size > 8; size -= 2 {
		dc.SetFontFace(truetype.NewFace(fnt, &truetype.Options{Size: size}))
		if tw, _ := dc.MeasureString(s); tw <= maxWidth {
			return size
		}
	}
	return 8
}
