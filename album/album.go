// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package album manages the album directories under the image root and
// the persisted set of enabled albums.
//
// An album is a flat directory of stored images (.png, .bmp) with
// optional .jpg thumbnails. The enabled set is a comma-separated list in
// the key-value store; stale entries are tolerated until the rotation
// engine prunes them.
package album

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"periph.io/x/photoframe"
	"periph.io/x/photoframe/nvs"
)

// DefaultName always exists while the card is mounted and cannot be
// deleted.
const DefaultName = "Default"

// DownloadsName receives originals saved from URL and AI rotations.
const DownloadsName = "Downloads"

const enabledKey = "enabled_albums"

const maxNameLen = 127

// Store enumerates and mutates albums under a root directory.
type Store struct {
	root string
	ns   nvs.Namespace
}

// NewStore returns a Store over root, persisting the enabled set in ns.
func NewStore(root string, ns nvs.Namespace) *Store {
	return &Store{root: root, ns: ns}
}

// Root returns the image root directory.
func (s *Store) Root() string {
	return s.root
}

// EnsureDefault creates the root and the Default album if missing. Called
// once after the card is mounted.
func (s *Store) EnsureDefault() error {
	if err := os.MkdirAll(s.Path(DefaultName), 0o755); err != nil {
		return fmt.Errorf("album: %w: %v", photoframe.ErrIO, err)
	}
	return nil
}

func validName(name string) error {
	if name == "" || len(name) > maxNameLen {
		return fmt.Errorf("album: %w: bad name length", photoframe.ErrInvalidArgument)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("album: %w: name contains path separator", photoframe.ErrInvalidArgument)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("album: %w: hidden name", photoframe.ErrInvalidArgument)
	}
	return nil
}

// List returns the album names in directory order. Hidden entries and
// non-directories are skipped.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("album: %w: %v", photoframe.ErrIO, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Enabled returns the persisted enabled set, whitespace trimmed, empty
// entries dropped.
func (s *Store) Enabled() []string {
	raw, err := s.ns.GetString(enabledKey)
	if err != nil || raw == "" {
		return nil
	}
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}

// SetEnabled adds or removes name from the enabled set. Enabling requires
// the directory to exist; disabling never checks, so stale names can be
// cleaned up.
func (s *Store) SetEnabled(name string, enabled bool) error {
	if err := validName(name); err != nil {
		return err
	}
	if enabled && !s.Exists(name) {
		return fmt.Errorf("album: %w: %q", photoframe.ErrNotFound, name)
	}
	cur := s.Enabled()
	out := cur[:0]
	for _, n := range cur {
		if n != name {
			out = append(out, n)
		}
	}
	if enabled {
		out = append(out, name)
	}
	if err := s.ns.SetString(enabledKey, strings.Join(out, ",")); err != nil {
		return fmt.Errorf("album: %v", err)
	}
	return nil
}

// Create makes a new album directory.
func (s *Store) Create(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if s.Exists(name) {
		return fmt.Errorf("album: %w: %q", photoframe.ErrAlreadyExists, name)
	}
	if err := os.Mkdir(s.Path(name), 0o755); err != nil {
		return fmt.Errorf("album: %w: %v", photoframe.ErrIO, err)
	}
	return nil
}

// Delete removes the album's regular files, the directory itself and the
// name from the enabled set. The Default album is refused.
func (s *Store) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if name == DefaultName {
		return fmt.Errorf("album: %w: cannot delete %q", photoframe.ErrInvalidArgument, DefaultName)
	}
	if !s.Exists(name) {
		return fmt.Errorf("album: %w: %q", photoframe.ErrNotFound, name)
	}
	dir := s.Path(name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("album: %w: %v", photoframe.ErrIO, err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				return fmt.Errorf("album: %w: %v", photoframe.ErrIO, err)
			}
		}
	}
	if err := os.Remove(dir); err != nil {
		return fmt.Errorf("album: %w: %v", photoframe.ErrIO, err)
	}
	return s.SetEnabled(name, false)
}

// Exists reports whether the album directory is present.
func (s *Store) Exists(name string) bool {
	if validName(name) != nil {
		return false
	}
	fi, err := os.Stat(s.Path(name))
	return err == nil && fi.IsDir()
}

// Path joins the root and the album name. Pure; no existence check.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name)
}

// Images returns the stored image files (.png, .bmp) of an album in
// lexicographic order. Thumbnails and hidden files are skipped.
func (s *Store) Images(name string) ([]string, error) {
	entries, err := os.ReadDir(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("album: %w: %v", photoframe.ErrIO, err)
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".bmp":
			files = append(files, filepath.Join(s.Path(name), e.Name()))
		}
	}
	return files, nil
}
