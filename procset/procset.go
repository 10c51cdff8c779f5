// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package procset persists the image processing settings. The pipeline
// consumes the dither algorithm and the dynamic-range flag; the remaining
// tunables are carried verbatim for the web UI.
package procset

import (
	"encoding/json"
	"fmt"

	"periph.io/x/photoframe/nvs"
)

// DitherAlgorithm selects the error-diffusion kernel.
type DitherAlgorithm string

// Supported algorithms. The strings are the stable JSON values.
const (
	FloydSteinberg DitherAlgorithm = "floyd-steinberg"
	Stucki         DitherAlgorithm = "stucki"
	Burkes         DitherAlgorithm = "burkes"
	Sierra         DitherAlgorithm = "sierra"
)

// Settings is the full tunable set.
type Settings struct {
	DitherAlgorithm      DitherAlgorithm `json:"ditherAlgorithm"`
	Exposure             float64         `json:"exposure"`
	Saturation           float64         `json:"saturation"`
	ToneMode             string          `json:"toneMode"`
	Contrast             float64         `json:"contrast"`
	Strength             float64         `json:"strength"`
	ShadowBoost          float64         `json:"shadowBoost"`
	HighlightCompress    float64         `json:"highlightCompress"`
	Midpoint             float64         `json:"midpoint"`
	ColorMethod          string          `json:"colorMethod"`
	CompressDynamicRange bool            `json:"compressDynamicRange"`
}

// Defaults returns the factory settings.
func Defaults() Settings {
	return Settings{
		DitherAlgorithm:      FloydSteinberg,
		Exposure:             1.0,
		Saturation:           1.0,
		ToneMode:             "none",
		Contrast:             1.0,
		Strength:             1.0,
		ShadowBoost:          0,
		HighlightCompress:    0,
		Midpoint:             0.5,
		ColorMethod:          "rgb",
		CompressDynamicRange: true,
	}
}

const blobKey = "settings"

// Store persists Settings as one JSON blob in an nvs namespace.
type Store struct {
	ns     nvs.Namespace
	onSave func()
}

// NewStore returns a Store over ns. onSave may be nil.
func NewStore(ns nvs.Namespace, onSave func()) *Store {
	return &Store{ns: ns, onSave: onSave}
}

// Load returns the persisted settings, or Defaults() when missing or
// unreadable. An unrecognized dither algorithm falls back to
// floyd-steinberg.
func (s *Store) Load() Settings {
	raw, err := s.ns.GetBlob(blobKey)
	if err != nil {
		return Defaults()
	}
	out := Defaults()
	if err := json.Unmarshal(raw, &out); err != nil {
		return Defaults()
	}
	switch out.DitherAlgorithm {
	case FloydSteinberg, Stucki, Burkes, Sierra:
	default:
		out.DitherAlgorithm = FloydSteinberg
	}
	return out
}

// Save persists the settings and notifies the pipeline.
func (s *Store) Save(v Settings) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("procset: %v", err)
	}
	if err := s.ns.SetBlob(blobKey, raw); err != nil {
		return fmt.Errorf("procset: %v", err)
	}
	if s.onSave != nil {
		s.onSave()
	}
	return nil
}
