// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package button polls the front buttons and dispatches debounced
// presses: BOOT restarts the auto-sleep countdown, KEY advances the
// rotation, CLEAR blanks the panel.
//
// The buttons are active low with internal pull-ups; the same pins are
// armed as EXT1 wake sources across deep sleep.
package button

import (
	"context"
	"time"

	"periph.io/x/conn/v3/gpio"
)

const (
	pollInterval = 50 * time.Millisecond // 20 Hz

	// A press shorter than this is bounce; one this long or longer is
	// a hold (reserved for factory reset) and is ignored here.
	minPress = 50 * time.Millisecond
	maxPress = 3 * time.Second
)

// Button is one polled input with its action.
type Button struct {
	Pin gpio.PinIn
	// Fired on a debounced short press.
	Press func()

	pressed bool
	since   time.Time
}

// Poller debounces a set of buttons.
type Poller struct {
	buttons []*Button
	now     func() time.Time
}

// New returns a Poller over buttons. now may be nil.
func New(buttons []*Button, now func() time.Time) *Poller {
	if now == nil {
		now = time.Now
	}
	return &Poller{buttons: buttons, now: now}
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Step()
		}
	}
}

// Step samples every pin once and fires the released presses. Split out
// of Run so tests can drive the poll loop directly.
func (p *Poller) Step() {
	now := p.now()
	for _, b := range p.buttons {
		down := b.Pin.Read() == gpio.Low
		switch {
		case down && !b.pressed:
			b.pressed = true
			b.since = now
		case !down && b.pressed:
			b.pressed = false
			held := now.Sub(b.since)
			if held >= minPress && held < maxPress && b.Press != nil {
				b.Press()
			}
		}
	}
}
