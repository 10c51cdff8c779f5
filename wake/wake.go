// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package wake classifies the cause of the current boot: a scheduled
// timer wake, one of the wake buttons, or a cold start. It also detects
// clock drift across deep sleeps.
package wake

import "log"

// Cause is the classified wake reason.
type Cause int

// Classified causes. NotFromDeepSleep is the zero value and the fallback;
// the others are listed in precedence order.
const (
	NotFromDeepSleep Cause = iota
	Timer
	WakeKey
	RotateKey
	ClearKey
	Ext1Unknown
)

func (c Cause) String() string {
	switch c {
	case Timer:
		return "timer"
	case WakeKey:
		return "wake-key"
	case RotateKey:
		return "rotate-key"
	case ClearKey:
		return "clear-key"
	case Ext1Unknown:
		return "ext1-unknown"
	}
	return "not-from-deep-sleep"
}

// Causes is the runtime's wake-cause bitmap.
type Causes uint32

// Wake cause bits.
const (
	CauseTimer Causes = 1 << iota
	CauseExt1
)

// Buttons holds the GPIO numbers of the three configured wake buttons.
type Buttons struct {
	WakeGPIO   int
	RotateGPIO int
	ClearGPIO  int
}

// Allowed drift between the recorded expected wake time and the actual
// one before a clock sync is forced.
const maxDriftSeconds = 30

// TaskName is the periodic task forced when drift is detected.
const TaskName = "sntp_sync"

// Forcer marks a periodic task due. Satisfied by *periodic.Registry.
type Forcer interface {
	Force(name string) error
}

// Classify maps the wake-cause bitmap and the EXT1 pin mask to a Cause.
//
// A timer wake with expectedWake recorded is checked for drift: more
// than maxDriftSeconds off forces an SNTP sync on the next periodic
// check. expectedWake zero means the wake was not scheduled and drift is
// not evaluated.
func Classify(causes Causes, ext1Mask uint64, btn Buttons, now, expectedWake int64, f Forcer) Cause {
	if causes&CauseTimer != 0 {
		if expectedWake != 0 {
			drift := now - expectedWake
			if drift < -maxDriftSeconds || drift > maxDriftSeconds {
				log.Printf("wake: clock drifted %d s across deep sleep", drift)
				if err := f.Force(TaskName); err != nil {
					log.Printf("wake: forcing %s: %s", TaskName, err)
				}
			}
		}
		return Timer
	}
	if causes&CauseExt1 != 0 {
		for _, m := range []struct {
			gpio  int
			cause Cause
		}{
			{btn.WakeGPIO, WakeKey},
			{btn.RotateGPIO, RotateKey},
			{btn.ClearGPIO, ClearKey},
		} {
			if m.gpio >= 0 && ext1Mask&(1<<uint(m.gpio)) != 0 {
				return m.cause
			}
		}
		return Ext1Unknown
	}
	return NotFromDeepSleep
}
