// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package rotation decides which image is shown next: the next stored
// image from the enabled albums, a freshly downloaded URL, or an
// AI-generated one, and hands it to the display gate.
package rotation

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"periph.io/x/photoframe"
	"periph.io/x/photoframe/album"
	"periph.io/x/photoframe/nvs"
	"periph.io/x/photoframe/pipeline"
)

const (
	lastImageKey = "last_image"
	lastIndexKey = "last_idx"
)

// Display is the slice of the display gate the engine needs. Satisfied
// by *screen.Gate.
type Display interface {
	Show(path string) error
	ShowRGB(rgb []byte, w, h int) error
}

// Processor converts downloaded bytes into a frame. Satisfied by
// *pipeline.Processor.
type Processor interface {
	ProcessToRGB(data []byte, f pipeline.Format) ([]byte, error)
}

// Opts are the optional collaborators of an Engine, all defaultable.
type Opts struct {
	// Client is used for URL and AI fetches.
	Client *http.Client
	// Rand drives random image selection.
	Rand *rand.Rand
	// Now is the clock.
	Now func() time.Time
	// AIEndpoint overrides the image-generation endpoint.
	AIEndpoint string
}

// Engine is the rotation engine. One Rotate call is a full cycle:
// select, process if needed, display, persist progress.
type Engine struct {
	ns     nvs.Namespace
	cfg    *ConfigStore
	albums *album.Store
	disp   Display
	proc   Processor

	client *http.Client
	rand   *rand.Rand
	now    func() time.Time
	aiURL  string

	aiMu     sync.Mutex
	aiBusy   bool
	aiStatus AIStatus
}

// New returns an Engine. opts may be nil.
func New(ns nvs.Namespace, cfg *ConfigStore, albums *album.Store, disp Display, proc Processor, opts *Opts) *Engine {
	e := &Engine{
		ns:     ns,
		cfg:    cfg,
		albums: albums,
		disp:   disp,
		proc:   proc,
		client: http.DefaultClient,
		now:    time.Now,
		aiURL:  defaultAIEndpoint,
	}
	if opts != nil {
		if opts.Client != nil {
			e.client = opts.Client
		}
		if opts.Rand != nil {
			e.rand = opts.Rand
		}
		if opts.Now != nil {
			e.now = opts.Now
		}
		if opts.AIEndpoint != "" {
			e.aiURL = opts.AIEndpoint
		}
	}
	if e.rand == nil {
		e.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e
}

// Rotate advances to the next image according to the configured mode.
func (e *Engine) Rotate(ctx context.Context) error {
	cfg := e.cfg.Load()
	switch cfg.Mode {
	case ModeSDCard:
		return e.rotateSDCard(cfg)
	case ModeURL:
		return e.rotateURL(ctx, cfg)
	case ModeAI:
		return e.rotateAI(ctx, cfg)
	}
	return fmt.Errorf("rotation: %w: mode %d", photoframe.ErrInvalidArgument, cfg.Mode)
}

// LastImage returns the path of the last successfully displayed stored
// image, or "".
func (e *Engine) LastImage() string {
	v, err := e.ns.GetString(lastImageKey)
	if err != nil {
		return ""
	}
	return v
}

// rotateSDCard picks the next stored image from the enabled albums.
// Enabled names whose directory disappeared are disabled on the way, so
// the persisted set heals itself.
func (e *Engine) rotateSDCard(cfg Config) error {
	enabled := e.albums.Enabled()
	if len(enabled) == 0 {
		enabled = []string{album.DefaultName}
	}
	var live []string
	for _, name := range enabled {
		if !e.albums.Exists(name) {
			log.Printf("rotation: disabling stale album %q", name)
			if err := e.albums.SetEnabled(name, false); err != nil {
				log.Printf("rotation: disabling %q: %s", name, err)
			}
			continue
		}
		live = append(live, name)
	}

	// One enumeration serves both counting and display so the index
	// stays consistent within this call.
	var pool []string
	for _, name := range live {
		files, err := e.albums.Images(name)
		if err != nil {
			return err
		}
		pool = append(pool, files...)
	}
	if len(pool) == 0 {
		return fmt.Errorf("rotation: %w: no images in enabled albums", photoframe.ErrNotFound)
	}

	var idx int
	switch cfg.SDMode {
	case Sequential:
		last := i32Or(e.ns, lastIndexKey, -1)
		idx = (int(last) + 1) % len(pool)
	default:
		idx = pickRandom(pool, e.LastImage(), e.rand.Intn)
	}

	if err := e.disp.Show(pool[idx]); err != nil {
		return err
	}
	return e.commitSDCard(cfg, pool[idx], idx)
}

// pickRandom draws an index, retrying up to ten times to avoid an
// immediate repeat of last. The repeat is accepted on the final draw.
func pickRandom(pool []string, last string, intn func(int) int) int {
	idx := intn(len(pool))
	for retry := 0; retry < 10 && pool[idx] == last && len(pool) > 1; retry++ {
		idx = intn(len(pool))
	}
	return idx
}

// commitSDCard records progress. Only called after the panel accepted
// the frame, so failures never advance the cursor.
func (e *Engine) commitSDCard(cfg Config, path string, idx int) error {
	if err := e.ns.SetString(lastImageKey, path); err != nil {
		return fmt.Errorf("rotation: %v", err)
	}
	if cfg.SDMode == Sequential {
		if err := e.ns.SetI32(lastIndexKey, int32(idx)); err != nil {
			return fmt.Errorf("rotation: %v", err)
		}
	}
	return nil
}
