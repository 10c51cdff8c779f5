// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rotation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"periph.io/x/photoframe"
)

func aiFixture(t *testing.T, srvURL string) *fixture {
	t.Helper()
	f := newFixture(t, &Opts{AIEndpoint: srvURL, Now: fixedNow})
	if err := f.ns.SetString("openai_key", "sk-test"); err != nil {
		t.Fatal(err)
	}
	cfg := f.cfg.Load()
	cfg.Mode = ModeAI
	cfg.Prompt = "a lighthouse in fog"
	if err := f.cfg.Save(cfg); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestRotateAIBase64(t *testing.T) {
	var gotBody aiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			t.Errorf("request body: %v", err)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		fmt.Fprintf(w, `{"data":[{"b64_json":%q}]}`, base64.StdEncoding.EncodeToString(jpegBytes))
	}))
	defer srv.Close()

	f := aiFixture(t, srv.URL)
	if err := f.eng.Rotate(context.Background()); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if f.disp.frames != 1 {
		t.Errorf("pushed %d frames, want 1", f.disp.frames)
	}
	if got := f.eng.AIStatus(); got != AIComplete {
		t.Errorf("AIStatus = %v, want complete", got)
	}
	if gotBody.N != 1 || gotBody.Quality != "high" || gotBody.OutputFormat != "jpeg" || gotBody.OutputCompression != 90 {
		t.Errorf("request body = %+v", gotBody)
	}
	// Landscape panel requests a landscape generation.
	if gotBody.Size != "1536x1024" {
		t.Errorf("size = %q, want 1536x1024", gotBody.Size)
	}
	if gotBody.Prompt != "a lighthouse in fog" {
		t.Errorf("prompt = %q", gotBody.Prompt)
	}
}

func TestRotateAIDownloadsURL(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/v1/images/generations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[{"url":%q}]}`, srv.URL+"/img.jpg")
	})
	mux.HandleFunc("/img.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Write(jpegBytes)
	})

	f := aiFixture(t, srv.URL+"/v1/images/generations")
	if err := f.eng.Rotate(context.Background()); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if f.disp.frames != 1 {
		t.Errorf("pushed %d frames, want 1", f.disp.frames)
	}
	if got := f.eng.AIStatus(); got != AIComplete {
		t.Errorf("AIStatus = %v, want complete", got)
	}
}

func TestRotateAIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"prompt rejected"}}`)
	}))
	defer srv.Close()

	f := aiFixture(t, srv.URL)
	if err := f.eng.Rotate(context.Background()); !errors.Is(err, photoframe.ErrIO) {
		t.Errorf("Rotate = %v, want ErrIO", err)
	}
	if got := f.eng.AIStatus(); got != AIError {
		t.Errorf("AIStatus = %v, want error", got)
	}
}

func TestRotateAISingleFlight(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprintf(w, `{"data":[{"b64_json":%q}]}`, base64.StdEncoding.EncodeToString(jpegBytes))
	}))
	defer srv.Close()

	f := aiFixture(t, srv.URL)
	done := make(chan error, 1)
	go func() {
		done <- f.eng.Rotate(context.Background())
	}()
	for f.eng.AIStatus() != AIGenerating {
		time.Sleep(time.Millisecond)
	}
	if err := f.eng.Rotate(context.Background()); !errors.Is(err, photoframe.ErrBusy) {
		t.Errorf("concurrent Rotate = %v, want ErrBusy", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Rotate: %v", err)
	}
	if got := f.eng.AIStatus(); got != AIComplete {
		t.Errorf("AIStatus = %v, want complete", got)
	}
}

func TestRotateAIMissingKey(t *testing.T) {
	f := newFixture(t, nil)
	cfg := f.cfg.Load()
	cfg.Mode = ModeAI
	cfg.Prompt = "anything"
	if err := f.cfg.Save(cfg); err != nil {
		t.Fatal(err)
	}
	if err := f.eng.Rotate(context.Background()); !errors.Is(err, photoframe.ErrInvalidState) {
		t.Errorf("Rotate = %v, want ErrInvalidState", err)
	}
}
