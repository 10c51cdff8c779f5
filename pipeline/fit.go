// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pipeline

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// fit produces a display-sized RGBA frame from src: cover scaling with a
// center crop, then a 90° clockwise rotation when the source and display
// orientations differ.
//
// When the orientations differ the scaling targets the rotated geometry
// (height×width) so the rotation lands exactly on the display size.
func (p *Processor) fit(src image.Image) *image.RGBA {
	sb := src.Bounds()
	srcPortrait := sb.Dy() > sb.Dx()
	dispPortrait := p.height > p.width

	tw, th := p.width, p.height
	rotate := srcPortrait != dispPortrait
	if rotate {
		tw, th = p.height, p.width
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, coverRect(sb, tw, th), xdraw.Src, nil)

	if !rotate {
		return dst
	}
	return rotate90CW(dst)
}

// coverRect returns the centered sub-rectangle of src whose aspect ratio
// matches tw:th. Scaling that rectangle to tw×th is cover fit plus center
// crop in one pass.
func coverRect(src image.Rectangle, tw, th int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	// scale = max(tw/sw, th/sh); the crop window is the target divided
	// by that scale.
	cw := sw
	ch := sh
	if sw*th > sh*tw {
		// Source is wider than the target: crop width.
		cw = sh * tw / th
		if cw < 1 {
			cw = 1
		}
	} else if sw*th < sh*tw {
		// Source is taller: crop height.
		ch = sw * th / tw
		if ch < 1 {
			ch = 1
		}
	}
	x0 := src.Min.X + (sw-cw)/2
	y0 := src.Min.Y + (sh-ch)/2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}

// rotate90CW maps (x,y) to (h-1-y, x) with width and height swapped.
func rotate90CW(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		srow := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			si := x * 4
			di := x*dst.Stride + (h-1-y)*4
			dst.Pix[di] = srow[si]
			dst.Pix[di+1] = srow[si+1]
			dst.Pix[di+2] = srow[si+2]
			dst.Pix[di+3] = srow[si+3]
		}
	}
	return dst
}
