// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rotation

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"periph.io/x/photoframe"
	"periph.io/x/photoframe/album"
	"periph.io/x/photoframe/pipeline"
)

// Downloads larger than this are cut off rather than exhausting memory.
const maxDownloadBytes = 12 << 20

// rotateURL fetches the configured URL, runs it through the pipeline and
// pushes the frame directly, optionally archiving the original bytes
// under the Downloads album.
func (e *Engine) rotateURL(ctx context.Context, cfg Config) error {
	if cfg.URL == "" {
		return fmt.Errorf("rotation: %w: no image URL configured", photoframe.ErrInvalidArgument)
	}
	data, err := e.fetch(ctx, cfg.URL, cfg.Token, cfg.HeaderKey, cfg.HeaderVal)
	if err != nil {
		return err
	}

	if cfg.SaveDownloaded {
		// Archiving is best effort; the rotation still proceeds.
		if err := e.saveDownload(data); err != nil {
			log.Printf("rotation: archiving download: %s", err)
		}
	}

	rgb, err := e.proc.ProcessToRGB(data, pipeline.FormatUnknown)
	if err != nil {
		return err
	}
	return e.disp.ShowRGB(rgb, photoframe.DisplayWidth, photoframe.DisplayHeight)
}

func (e *Engine) fetch(ctx context.Context, url, token, hdrKey, hdrVal string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("rotation: %w: %v", photoframe.ErrInvalidArgument, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if hdrKey != "" {
		req.Header.Set(hdrKey, hdrVal)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rotation: %w: %v", photoframe.ErrIO, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rotation: %w: fetching %s: %s", photoframe.ErrIO, url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("rotation: %w: %v", photoframe.ErrIO, err)
	}
	return data, nil
}

// saveDownload archives original bytes under the Downloads album with a
// timestamped name.
func (e *Engine) saveDownload(data []byte) error {
	ext := ".jpg"
	switch pipeline.Sniff(data) {
	case pipeline.FormatPNG:
		ext = ".png"
	case pipeline.FormatBMP:
		ext = ".bmp"
	}
	dir := e.albums.Path(album.DownloadsName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("rotation: %w: %v", photoframe.ErrIO, err)
	}
	name := e.now().Format("20060102-150405") + ext
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("rotation: %w: %v", photoframe.ErrIO, err)
	}
	return nil
}
