// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pipeline

import (
	"image"
	"math"
	"runtime"

	"periph.io/x/photoframe/palette"
)

// Pixels processed between cooperative yields in the hot loops.
const yieldEvery = 2000

// Rec.709 luma coefficients, applied in linear light.
const (
	lumR = 0.2126729
	lumG = 0.7151522
	lumB = 0.0721750
)

// srgbToLinear maps an 8-bit sRGB sample to linear light.
var srgbToLinear [256]float32

// linearToSRGB maps linear light quantized to 4096 steps back to an
// 8-bit sRGB sample.
var linearToSRGB [4096]uint8

func init() {
	for i := range srgbToLinear {
		c := float64(i) / 255
		if c <= 0.04045 {
			c = c / 12.92
		} else {
			c = math.Pow((c+0.055)/1.055, 2.4)
		}
		srgbToLinear[i] = float32(c)
	}
	for i := range linearToSRGB {
		c := float64(i) / float64(len(linearToSRGB)-1)
		if c <= 0.0031308 {
			c = c * 12.92
		} else {
			c = 1.055*math.Pow(c, 1/2.4) - 0.055
		}
		v := math.Round(c * 255)
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		linearToSRGB[i] = uint8(v)
	}
}

func linearLum(r, g, b float32) float32 {
	return lumR*r + lumG*g + lumB*b
}

func toSRGB(c float32) uint8 {
	if c <= 0 {
		return linearToSRGB[0]
	}
	if c >= 1 {
		return linearToSRGB[len(linearToSRGB)-1]
	}
	return linearToSRGB[int(c*float32(len(linearToSRGB)-1)+0.5)]
}

// compressRange remaps every pixel's luminance into the panel's measured
// [black, white] luminance range so shadows and highlights survive the
// narrow dynamic range of the glass. No-op when the measured range
// already spans [0,1].
func compressRange(img *image.RGBA, measured *palette.Palette) {
	black := measured[palette.Black]
	white := measured[palette.White]
	blackY := linearLum(srgbToLinear[black.R], srgbToLinear[black.G], srgbToLinear[black.B])
	whiteY := linearLum(srgbToLinear[white.R], srgbToLinear[white.G], srgbToLinear[white.B])
	rangeY := whiteY - blackY
	if blackY <= 0 && whiteY >= 1-1e-6 {
		return
	}

	b := img.Bounds()
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			i := x * 4
			lr := srgbToLinear[row[i]]
			lg := srgbToLinear[row[i+1]]
			lb := srgbToLinear[row[i+2]]
			yy := linearLum(lr, lg, lb)
			if yy > 1e-6 {
				scale := (blackY + yy*rangeY) / yy
				row[i] = toSRGB(lr * scale)
				row[i+1] = toSRGB(lg * scale)
				row[i+2] = toSRGB(lb * scale)
			} else {
				v := toSRGB(blackY)
				row[i] = v
				row[i+1] = v
				row[i+2] = v
			}
			if n++; n%yieldEvery == 0 {
				runtime.Gosched()
			}
		}
	}
}
