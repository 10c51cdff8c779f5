// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package photoframe holds the shared pieces of the photo frame firmware
// core: the display geometry and the error taxonomy that every subsystem
// reports through.
//
// Subsystems live in their own packages (palette, pipeline, screen,
// rotation, ...) and are wired together by cmd/photoframe.
package photoframe

import "errors"

// Native resolution of the panel. Every frame buffer in the core is
// DisplayWidth×DisplayHeight×3 bytes of RGB888.
const (
	DisplayWidth  = 800
	DisplayHeight = 480
)

// FrameBytes is the size of one RGB888 frame.
const FrameBytes = DisplayWidth * DisplayHeight * 3

// Core error taxonomy. HTTP collaborators map these onto status codes;
// inside the core they are matched with errors.Is.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrBusy              = errors.New("busy")
	ErrOutOfMemory       = errors.New("out of memory")
	ErrInvalidSize       = errors.New("invalid size")
	ErrDecode            = errors.New("decode error")
	ErrEncode            = errors.New("encode error")
	ErrIO                = errors.New("i/o error")
	ErrTimeout           = errors.New("timeout")
	ErrInvalidState      = errors.New("invalid state")
	ErrUnsupportedFormat = errors.New("unsupported format")
)
