// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rotation

import (
	"fmt"

	"periph.io/x/photoframe/nvs"
	"periph.io/x/photoframe/sched"
)

// Mode selects the image source.
type Mode uint8

// Rotation modes, in their persisted encoding.
const (
	ModeSDCard Mode = 0
	ModeURL    Mode = 1
	ModeAI     Mode = 2
)

// SDMode selects how the next stored image is picked.
type SDMode uint8

// SD card sub-modes, in their persisted encoding.
const (
	Random     SDMode = 0
	Sequential SDMode = 1
)

// Config is the rotation configuration as persisted in the photoframe
// namespace.
type Config struct {
	AutoRotate bool
	Interval   int
	Aligned    bool
	Mode       Mode
	Sleep      sched.Window

	// SD card mode.
	SDMode SDMode

	// URL mode.
	URL            string
	Token          string
	HeaderKey      string
	HeaderVal      string
	SaveDownloaded bool

	// AI mode.
	Prompt   string
	Provider string
	Model    string
}

// ConfigStore reads and writes the rotation keys.
type ConfigStore struct {
	ns nvs.Namespace
}

// NewConfigStore returns a ConfigStore over ns.
func NewConfigStore(ns nvs.Namespace) *ConfigStore {
	return &ConfigStore{ns: ns}
}

func u8Bool(ns nvs.Namespace, key string, def bool) bool {
	v, err := ns.GetU8(key)
	if err != nil {
		return def
	}
	return v != 0
}

func i32Or(ns nvs.Namespace, key string, def int32) int32 {
	v, err := ns.GetI32(key)
	if err != nil {
		return def
	}
	return v
}

func strOr(ns nvs.Namespace, key, def string) string {
	v, err := ns.GetString(key)
	if err != nil {
		return def
	}
	return v
}

// Load returns the persisted configuration, applying defaults for
// missing keys.
func (s *ConfigStore) Load() Config {
	return Config{
		AutoRotate: u8Bool(s.ns, "auto_rotate", true),
		Interval:   int(i32Or(s.ns, "rotate_int", 3600)),
		Aligned:    u8Bool(s.ns, "ar_align", false),
		Mode:       Mode(i32Or(s.ns, "rotation_mode", 0)),
		Sleep: sched.Window{
			Enabled:  u8Bool(s.ns, "sleep_sched_en", false),
			StartMin: int(i32Or(s.ns, "sleep_start", 0)),
			EndMin:   int(i32Or(s.ns, "sleep_end", 0)),
		},
		SDMode:         SDMode(i32Or(s.ns, "sd_rot_mode", 0)),
		URL:            strOr(s.ns, "image_url", ""),
		Token:          strOr(s.ns, "access_token", ""),
		HeaderKey:      strOr(s.ns, "http_hdr_key", ""),
		HeaderVal:      strOr(s.ns, "http_hdr_val", ""),
		SaveDownloaded: u8Bool(s.ns, "save_dl", false),
		Prompt:         strOr(s.ns, "ai_prompt", ""),
		Provider:       strOr(s.ns, "ai_provider", "openai"),
		Model:          strOr(s.ns, "ai_model", "gpt-image-1"),
	}
}

// Save persists the configuration.
func (s *ConfigStore) Save(c Config) error {
	b2u := func(b bool) uint8 {
		if b {
			return 1
		}
		return 0
	}
	for _, err := range []error{
		s.ns.SetU8("auto_rotate", b2u(c.AutoRotate)),
		s.ns.SetI32("rotate_int", int32(c.Interval)),
		s.ns.SetU8("ar_align", b2u(c.Aligned)),
		s.ns.SetU8("rotation_mode", uint8(c.Mode)),
		s.ns.SetU8("sleep_sched_en", b2u(c.Sleep.Enabled)),
		s.ns.SetI32("sleep_start", int32(c.Sleep.StartMin)),
		s.ns.SetI32("sleep_end", int32(c.Sleep.EndMin)),
		s.ns.SetU8("sd_rot_mode", uint8(c.SDMode)),
		s.ns.SetString("image_url", c.URL),
		s.ns.SetString("access_token", c.Token),
		s.ns.SetString("http_hdr_key", c.HeaderKey),
		s.ns.SetString("http_hdr_val", c.HeaderVal),
		s.ns.SetU8("save_dl", b2u(c.SaveDownloaded)),
		s.ns.SetString("ai_prompt", c.Prompt),
		s.ns.SetString("ai_provider", c.Provider),
		s.ns.SetString("ai_model", c.Model),
	} {
		if err != nil {
			return fmt.Errorf("rotation: %v", err)
		}
	}
	return nil
}
