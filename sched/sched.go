// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sched computes the time until the next scheduled wake honoring
// the rotation interval, wall-clock alignment and the nightly sleep
// window.
package sched

import "time"

const daySeconds = 24 * 60 * 60

// Skipping threshold: an aligned wake less than a minute away is assumed
// to be clock drift from the previous cycle and is skipped.
const minAlignedLead = 60

// Window is the sleep schedule: a contiguous minutes-of-day span during
// which wakes are suppressed. Start > End spans midnight.
type Window struct {
	Enabled  bool
	StartMin int
	EndMin   int
}

// contains reports whether the seconds-of-day tod falls inside the
// window.
func (w Window) contains(tod int) bool {
	s := w.StartMin * 60
	e := w.EndMin * 60
	if s > e {
		// Overnight span.
		return tod >= s || tod < e
	}
	return tod >= s && tod < e
}

// SecondsUntilNextWake returns the non-negative seconds from tm to the
// next wake. With aligned set, wakes land on integer multiples of
// interval from midnight; otherwise they are relative to tm. A wake that
// would land inside the sleep window is postponed to the window's end.
func SecondsUntilNextWake(tm time.Time, interval int, aligned bool, w Window) int {
	if interval <= 0 {
		interval = 3600
	}
	t := tm.Hour()*3600 + tm.Minute()*60 + tm.Second()

	var delta int
	if aligned {
		next := (t/interval + 1) * interval
		delta = next - t
		if delta < minAlignedLead {
			delta += interval
		}
	} else {
		delta = interval
	}

	if !w.Enabled {
		return delta
	}

	wakeTod := (t + delta) % daySeconds
	if !w.contains(wakeTod) {
		return delta
	}

	// Postpone past the window's end: aligned wakes land on the first
	// interval multiple at or after it.
	end := w.EndMin * 60
	target := end
	if aligned {
		target = (end + interval - 1) / interval * interval
	}
	out := target - t
	for out <= 0 {
		out += daySeconds
	}
	return out
}
