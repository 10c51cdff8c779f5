// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rotation

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"periph.io/x/photoframe"
	"periph.io/x/photoframe/album"
)

// Minimal JPEG: just the SOI marker plus padding, enough for the sniffing
// and for the fake processor.
var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func TestRotateURL(t *testing.T) {
	var gotAuth, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotHeader = r.Header.Get("X-Frame-Key")
		w.Write(jpegBytes)
	}))
	defer srv.Close()

	f := newFixture(t, &Opts{Now: fixedNow})
	cfg := f.cfg.Load()
	cfg.Mode = ModeURL
	cfg.URL = srv.URL
	cfg.Token = "secret"
	cfg.HeaderKey = "X-Frame-Key"
	cfg.HeaderVal = "abc"
	cfg.SaveDownloaded = true
	if err := f.cfg.Save(cfg); err != nil {
		t.Fatal(err)
	}

	if err := f.eng.Rotate(context.Background()); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotHeader != "abc" {
		t.Errorf("X-Frame-Key = %q, want %q", gotHeader, "abc")
	}
	if f.disp.frames != 1 {
		t.Errorf("pushed %d frames, want 1", f.disp.frames)
	}
	if !bytes.Equal(f.proc.got, jpegBytes) {
		t.Error("processor did not receive the downloaded bytes")
	}

	// The original was archived under Downloads with the sniffed
	// extension and the timestamped name.
	saved := f.albums.Path(album.DownloadsName) + "/20250615-103000.jpg"
	if _, err := os.Stat(saved); err != nil {
		t.Errorf("archived download missing: %v", err)
	}
}

func TestRotateURLServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	f := newFixture(t, nil)
	cfg := f.cfg.Load()
	cfg.Mode = ModeURL
	cfg.URL = srv.URL
	if err := f.cfg.Save(cfg); err != nil {
		t.Fatal(err)
	}
	if err := f.eng.Rotate(context.Background()); !errors.Is(err, photoframe.ErrIO) {
		t.Errorf("Rotate = %v, want ErrIO", err)
	}
	if f.disp.frames != 0 {
		t.Errorf("pushed %d frames, want 0", f.disp.frames)
	}
}

func TestRotateURLUnconfigured(t *testing.T) {
	f := newFixture(t, nil)
	cfg := f.cfg.Load()
	cfg.Mode = ModeURL
	if err := f.cfg.Save(cfg); err != nil {
		t.Fatal(err)
	}
	if err := f.eng.Rotate(context.Background()); !errors.Is(err, photoframe.ErrInvalidArgument) {
		t.Errorf("Rotate = %v, want ErrInvalidArgument", err)
	}
}
