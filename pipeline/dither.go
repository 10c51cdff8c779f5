// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pipeline

import (
	"image"
	"runtime"

	"periph.io/x/photoframe/palette"
	"periph.io/x/photoframe/procset"
)

// tap is one target of the error distribution kernel.
type tap struct {
	dx, dy int
	num    int
}

// kernel is an error-diffusion kernel with a common denominator. All
// kernels reach at most two rows down, so one rolling 3-row error buffer
// serves every algorithm.
type kernel struct {
	taps []tap
	den  int
}

var kernels = map[procset.DitherAlgorithm]kernel{
	procset.FloydSteinberg: {
		taps: []tap{{1, 0, 7}, {-1, 1, 3}, {0, 1, 5}, {1, 1, 1}},
		den:  16,
	},
	procset.Stucki: {
		taps: []tap{
			{1, 0, 8}, {2, 0, 4},
			{-2, 1, 2}, {-1, 1, 4}, {0, 1, 8}, {1, 1, 4}, {2, 1, 2},
			{-2, 2, 1}, {-1, 2, 2}, {0, 2, 4}, {1, 2, 2}, {2, 2, 1},
		},
		den: 42,
	},
	procset.Burkes: {
		taps: []tap{
			{1, 0, 8}, {2, 0, 4},
			{-2, 1, 2}, {-1, 1, 4}, {0, 1, 8}, {1, 1, 4}, {2, 1, 2},
		},
		den: 32,
	},
	procset.Sierra: {
		taps: []tap{
			{1, 0, 5}, {2, 0, 3},
			{-2, 1, 2}, {-1, 1, 4}, {0, 1, 5}, {1, 1, 4}, {2, 1, 2},
			{-1, 2, 2}, {0, 2, 3}, {1, 2, 2},
		},
		den: 32,
	},
}

func clamp255(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// dither quantizes img to the measured palette, writing theoretical
// palette colors into out (packed RGB888, len w*h*3). Scan order is
// left-to-right per row; error that would land outside the frame is
// dropped.
func dither(img *image.RGBA, out []byte, measured *palette.Palette, algo procset.DitherAlgorithm) {
	k, ok := kernels[algo]
	if !ok {
		k = kernels[procset.FloydSteinberg]
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	// Rolling rows of accumulated error: current, +1, +2.
	rows := [3][]float32{}
	for i := range rows {
		rows[i] = make([]float32, w*3)
	}

	n := 0
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride:]
		cur := rows[0]
		for x := 0; x < w; x++ {
			si := x * 4
			ei := x * 3
			// Value with accumulated error, before clamping. The
			// quantization error is computed from this so energy is
			// conserved across saturated regions.
			er := float32(src[si]) + cur[ei]
			eg := float32(src[si+1]) + cur[ei+1]
			eb := float32(src[si+2]) + cur[ei+2]

			ci := palette.ClosestColor(measured, uint8(clamp255(er)+0.5), uint8(clamp255(eg)+0.5), uint8(clamp255(eb)+0.5))
			chosen := measured[ci]
			theo := palette.Theoretical[ci]

			oi := (y*w + x) * 3
			out[oi] = theo.R
			out[oi+1] = theo.G
			out[oi+2] = theo.B

			qr := er - float32(chosen.R)
			qg := eg - float32(chosen.G)
			qb := eb - float32(chosen.B)

			for _, t := range k.taps {
				tx := x + t.dx
				if tx < 0 || tx >= w || y+t.dy >= h {
					continue
				}
				f := float32(t.num) / float32(k.den)
				ti := tx * 3
				trow := rows[t.dy]
				trow[ti] += qr * f
				trow[ti+1] += qg * f
				trow[ti+2] += qb * f
			}

			if n++; n%yieldEvery == 0 {
				runtime.Gosched()
			}
		}
		// Rotate the error rows down one scanline.
		spent := rows[0]
		for i := range spent {
			spent[i] = 0
		}
		rows[0], rows[1], rows[2] = rows[1], rows[2], spent
	}
}
