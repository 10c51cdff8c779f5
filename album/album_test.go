// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package album

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/photoframe"
	"periph.io/x/photoframe/nvs"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	ns, err := nvs.NewMem().Open("photoframe")
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(t.TempDir(), ns)
	if err := s.EnsureDefault(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestListSkipsHiddenAndFiles(t *testing.T) {
	s := newStore(t)
	if err := s.Create("Vacation"); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(s.Root(), ".Trash"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Root(), "stray.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(got, []string{"Default", "Vacation"}); diff != "" {
		t.Errorf("List difference (-got +want):\n%s", diff)
	}
}

func TestCreateTwice(t *testing.T) {
	s := newStore(t)
	if err := s.Create("Pets"); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if err := s.Create("Pets"); !errors.Is(err, photoframe.ErrAlreadyExists) {
		t.Errorf("second Create = %v, want ErrAlreadyExists", err)
	}
	got, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, name := range got {
		if name == "Pets" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("album set contains %d entries named Pets, want 1", n)
	}
}

func TestEnabledRoundTrip(t *testing.T) {
	s := newStore(t)
	if err := s.Create("A"); err != nil {
		t.Fatal(err)
	}
	if err := s.Create("B"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetEnabled("A", true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetEnabled("B", true); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(s.Enabled(), []string{"A", "B"}); diff != "" {
		t.Errorf("Enabled difference (-got +want):\n%s", diff)
	}
	if err := s.SetEnabled("A", false); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(s.Enabled(), []string{"B"}); diff != "" {
		t.Errorf("Enabled difference (-got +want):\n%s", diff)
	}
}

func TestSetEnabledMissingDirectory(t *testing.T) {
	s := newStore(t)
	if err := s.SetEnabled("Ghost", true); !errors.Is(err, photoframe.ErrNotFound) {
		t.Errorf("SetEnabled(Ghost, true) = %v, want ErrNotFound", err)
	}
	// Disabling a stale name must succeed so cleanup works.
	if err := s.SetEnabled("Ghost", false); err != nil {
		t.Errorf("SetEnabled(Ghost, false) = %v, want nil", err)
	}
}

func TestDelete(t *testing.T) {
	s := newStore(t)
	if err := s.Create("Old"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetEnabled("Old", true); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.Path("Old"), "a.png"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("Old"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists("Old") {
		t.Error("Exists(Old) = true after Delete")
	}
	for _, n := range s.Enabled() {
		if n == "Old" {
			t.Error("Old still in enabled set after Delete")
		}
	}
}

func TestDeleteDefaultRefused(t *testing.T) {
	s := newStore(t)
	if err := s.Delete(DefaultName); !errors.Is(err, photoframe.ErrInvalidArgument) {
		t.Errorf("Delete(Default) = %v, want ErrInvalidArgument", err)
	}
}

func TestImages(t *testing.T) {
	s := newStore(t)
	dir := s.Path(DefaultName)
	for _, name := range []string{"b.png", "a.bmp", "c.jpg", ".hidden.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Images(DefaultName)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "a.bmp"),
		filepath.Join(dir, "b.png"),
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Images difference (-got +want):\n%s", diff)
	}
}
