// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package palette holds the two 7-slot color palettes of the panel: the
// theoretical palette written to output frames and the measured palette
// used as the error-diffusion reference, plus the store persisting the
// measured one.
//
// Slot 4 is reserved by the panel controller and never consulted.
package palette

import (
	"encoding/json"
	"fmt"

	"periph.io/x/photoframe/nvs"
)

// Slots of the palette. The panel's controller assigns these positions;
// they match the 4-bit pixel codes sent over SPI.
const (
	Black = iota
	White
	Yellow
	Red
	reserved
	Blue
	Green
	Slots // 7
)

// Active indexes the six usable slots in ascending order.
var Active = [6]int{Black, White, Yellow, Red, Blue, Green}

// RGB is one palette entry.
type RGB struct {
	R, G, B uint8
}

// Palette is a full 7-slot palette. Slot 4 content is unspecified.
type Palette [Slots]RGB

// Theoretical is the canonical palette written to output pixels, so files
// produced by the pipeline are portable and re-ingestion is idempotent.
var Theoretical = Palette{
	Black:  {0, 0, 0},
	White:  {255, 255, 255},
	Yellow: {255, 255, 0},
	Red:    {255, 0, 0},
	Blue:   {0, 0, 255},
	Green:  {0, 255, 0},
}

// Defaults returns the factory measured palette. Until the user
// calibrates, the panel is assumed to reproduce the theoretical colors.
func Defaults() Palette {
	return Theoretical
}

// ClosestColor returns the active slot whose measured color minimizes the
// squared Euclidean distance to (r,g,b). Ties break to the lower slot.
func ClosestColor(p *Palette, r, g, b uint8) int {
	best := Active[0]
	bestDist := int64(1) << 62
	for _, i := range Active {
		dr := int64(r) - int64(p[i].R)
		dg := int64(g) - int64(p[i].G)
		db := int64(b) - int64(p[i].B)
		d := dr*dr + dg*dg + db*db
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

const blobKey = "measured"

// Store persists the measured palette in an nvs namespace as one 18-byte
// blob (six active slots, three channels each).
type Store struct {
	ns nvs.Namespace

	// Invoked after a successful Save so the pipeline can refresh its
	// cached copy before the next frame.
	onSave func()
}

// NewStore returns a Store over ns. onSave may be nil.
func NewStore(ns nvs.Namespace, onSave func()) *Store {
	return &Store{ns: ns, onSave: onSave}
}

// Load returns the persisted measured palette, or Defaults() when the
// blob is missing or malformed.
func (s *Store) Load() Palette {
	raw, err := s.ns.GetBlob(blobKey)
	if err != nil || len(raw) != len(Active)*3 {
		return Defaults()
	}
	p := Defaults()
	for n, i := range Active {
		p[i] = RGB{raw[n*3], raw[n*3+1], raw[n*3+2]}
	}
	return p
}

// Save persists the measured palette and notifies the pipeline.
func (s *Store) Save(p Palette) error {
	raw := make([]byte, len(Active)*3)
	for n, i := range Active {
		raw[n*3] = p[i].R
		raw[n*3+1] = p[i].G
		raw[n*3+2] = p[i].B
	}
	if err := s.ns.SetBlob(blobKey, raw); err != nil {
		return fmt.Errorf("palette: %v", err)
	}
	if s.onSave != nil {
		s.onSave()
	}
	return nil
}

type colorJSON struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// MarshalJSON encodes the six active slots as an array of {r,g,b}.
func (p Palette) MarshalJSON() ([]byte, error) {
	out := make([]colorJSON, len(Active))
	for n, i := range Active {
		out[n] = colorJSON{p[i].R, p[i].G, p[i].B}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an array of six {r,g,b} objects.
func (p *Palette) UnmarshalJSON(raw []byte) error {
	var in []colorJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return err
	}
	if len(in) != len(Active) {
		return fmt.Errorf("palette: expected %d colors, got %d", len(Active), len(in))
	}
	*p = Defaults()
	for n, i := range Active {
		p[i] = RGB{in[n].R, in[n].G, in[n].B}
	}
	return nil
}
