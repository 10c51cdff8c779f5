// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"periph.io/x/photoframe"
)

// Format is the declared or sniffed input encoding.
type Format int

// Accepted input formats.
const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatPNG
	FormatBMP
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Sniff inspects the first bytes of data and returns the format, or
// FormatUnknown.
func Sniff(data []byte) Format {
	if len(data) >= 8 && bytes.Equal(data[:8], pngMagic) {
		return FormatPNG
	}
	if len(data) >= 2 && data[0] == 0x42 && data[1] == 0x4D {
		return FormatBMP
	}
	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8 {
		return FormatJPEG
	}
	return FormatUnknown
}

func decodeConfig(data []byte, f Format) (image.Config, error) {
	var cfg image.Config
	var err error
	switch f {
	case FormatJPEG:
		cfg, err = jpeg.DecodeConfig(bytes.NewReader(data))
	case FormatPNG:
		cfg, err = png.DecodeConfig(bytes.NewReader(data))
	case FormatBMP:
		cfg, err = bmp.DecodeConfig(bytes.NewReader(data))
	default:
		return cfg, fmt.Errorf("pipeline: %w", photoframe.ErrUnsupportedFormat)
	}
	if err != nil {
		return cfg, fmt.Errorf("pipeline: %w: %v", photoframe.ErrDecode, err)
	}
	return cfg, nil
}

func decode(data []byte, f Format) (image.Image, error) {
	var img image.Image
	var err error
	switch f {
	case FormatJPEG:
		img, err = jpeg.Decode(bytes.NewReader(data))
	case FormatPNG:
		// 16-bit, alpha and paletted variants are normalized later
		// when pixels are flattened to RGB888.
		img, err = png.Decode(bytes.NewReader(data))
	case FormatBMP:
		img, err = bmp.Decode(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("pipeline: %w", photoframe.ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w: %v", photoframe.ErrDecode, err)
	}
	return img, nil
}

// decodeBounded decodes data enforcing the intermediate memory ceiling.
// For JPEG the decoder's output scale request is honored first: sources
// more than 4× the display in either dimension are brought down to 1/4,
// more than 2× to 1/2.
func (p *Processor) decodeBounded(data []byte, f Format) (image.Image, error) {
	cfg, err := decodeConfig(data, f)
	if err != nil {
		return nil, err
	}

	div := 1
	if f == FormatJPEG {
		if cfg.Width > 4*p.width || cfg.Height > 4*p.height {
			div = 4
		} else if cfg.Width > 2*p.width || cfg.Height > 2*p.height {
			div = 2
		}
	}
	w := cfg.Width / div
	h := cfg.Height / div
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("pipeline: %w: %dx%d", photoframe.ErrDecode, cfg.Width, cfg.Height)
	}
	if w*h*3 > maxDecodedBytes {
		return nil, fmt.Errorf("pipeline: %w: %dx%d after 1/%d scaling", photoframe.ErrInvalidSize, w, h, div)
	}

	img, err := decode(data, f)
	if err != nil {
		return nil, err
	}
	if div == 1 {
		return img, nil
	}
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return scaled, nil
}
