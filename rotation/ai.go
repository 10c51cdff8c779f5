// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package rotation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"periph.io/x/photoframe"
	"periph.io/x/photoframe/pipeline"
)

const defaultAIEndpoint = "https://api.openai.com/v1/images/generations"

// AIStatus is the state of the AI generation machine. Readers see
// eventually-consistent snapshots; the worker is the single writer.
type AIStatus int

// Generation states.
const (
	AIIdle AIStatus = iota
	AIGenerating
	AIDownloading
	AIComplete
	AIError
)

func (s AIStatus) String() string {
	switch s {
	case AIGenerating:
		return "generating"
	case AIDownloading:
		return "downloading"
	case AIComplete:
		return "complete"
	case AIError:
		return "error"
	}
	return "idle"
}

// AIStatus returns the current generation state.
func (e *Engine) AIStatus() AIStatus {
	e.aiMu.Lock()
	defer e.aiMu.Unlock()
	return e.aiStatus
}

func (e *Engine) setAIStatus(s AIStatus) {
	e.aiMu.Lock()
	e.aiStatus = s
	e.aiMu.Unlock()
}

type aiRequest struct {
	Model             string `json:"model"`
	Prompt            string `json:"prompt"`
	N                 int    `json:"n"`
	Size              string `json:"size"`
	Quality           string `json:"quality"`
	OutputFormat      string `json:"output_format"`
	OutputCompression int    `json:"output_compression"`
}

type aiResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// rotateAI generates one image from the configured prompt and displays
// it. A single generation is allowed in flight.
func (e *Engine) rotateAI(ctx context.Context, cfg Config) error {
	e.aiMu.Lock()
	if e.aiBusy {
		e.aiMu.Unlock()
		return fmt.Errorf("rotation: %w: generation already in flight", photoframe.ErrBusy)
	}
	e.aiBusy = true
	e.aiStatus = AIGenerating
	e.aiMu.Unlock()
	defer func() {
		e.aiMu.Lock()
		e.aiBusy = false
		e.aiMu.Unlock()
	}()

	err := e.generateAndShow(ctx, cfg)
	if err != nil {
		e.setAIStatus(AIError)
		return err
	}
	e.setAIStatus(AIComplete)
	return nil
}

func (e *Engine) generateAndShow(ctx context.Context, cfg Config) error {
	if cfg.Prompt == "" {
		return fmt.Errorf("rotation: %w: no prompt configured", photoframe.ErrInvalidArgument)
	}
	key := e.providerKey(cfg.Provider)
	if key == "" {
		return fmt.Errorf("rotation: %w: no API key for provider %q", photoframe.ErrInvalidState, cfg.Provider)
	}

	size := "1536x1024"
	if photoframe.DisplayHeight > photoframe.DisplayWidth {
		size = "1024x1536"
	}
	body, err := json.Marshal(aiRequest{
		Model:             cfg.Model,
		Prompt:            cfg.Prompt,
		N:                 1,
		Size:              size,
		Quality:           "high",
		OutputFormat:      "jpeg",
		OutputCompression: 90,
	})
	if err != nil {
		return fmt.Errorf("rotation: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.aiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rotation: %w: %v", photoframe.ErrInvalidArgument, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("rotation: %w: %v", photoframe.ErrIO, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return fmt.Errorf("rotation: %w: %v", photoframe.ErrIO, err)
	}

	var parsed aiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("rotation: %w: %v", photoframe.ErrDecode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return fmt.Errorf("rotation: %w: generation failed: %s", photoframe.ErrIO, msg)
	}
	if len(parsed.Data) == 0 {
		return fmt.Errorf("rotation: %w: empty generation response", photoframe.ErrDecode)
	}

	var jpg []byte
	switch {
	case parsed.Data[0].B64JSON != "":
		jpg, err = base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
		if err != nil {
			return fmt.Errorf("rotation: %w: %v", photoframe.ErrDecode, err)
		}
	case parsed.Data[0].URL != "":
		e.setAIStatus(AIDownloading)
		jpg, err = e.fetch(ctx, parsed.Data[0].URL, "", "", "")
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("rotation: %w: response carries neither url nor b64", photoframe.ErrDecode)
	}

	if cfg.SaveDownloaded {
		if err := e.saveDownload(jpg); err != nil {
			log.Printf("rotation: archiving generation: %s", err)
		}
	}

	rgb, err := e.proc.ProcessToRGB(jpg, pipeline.FormatUnknown)
	if err != nil {
		return err
	}
	return e.disp.ShowRGB(rgb, photoframe.DisplayWidth, photoframe.DisplayHeight)
}

func (e *Engine) providerKey(provider string) string {
	key := "openai_key"
	if provider == "google" {
		key = "google_key"
	}
	v, err := e.ns.GetString(key)
	if err != nil {
		return ""
	}
	return v
}
