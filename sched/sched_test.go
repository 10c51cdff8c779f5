// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sched

import (
	"testing"
	"time"
)

func at(hour, min, sec int) time.Time {
	return time.Date(2025, 6, 15, hour, min, sec, 0, time.UTC)
}

func TestSecondsUntilNextWake(t *testing.T) {
	for _, tc := range []struct {
		name     string
		tm       time.Time
		interval int
		aligned  bool
		w        Window
		want     int
	}{
		{
			name:     "aligned hourly",
			tm:       at(10, 47, 12),
			interval: 3600,
			aligned:  true,
			want:     768,
		},
		{
			name:     "aligned too-soon skips an interval",
			tm:       at(10, 59, 30),
			interval: 3600,
			aligned:  true,
			want:     3630,
		},
		{
			name:     "aligned exactly 60s away is accepted",
			tm:       at(10, 59, 0),
			interval: 3600,
			aligned:  true,
			want:     60,
		},
		{
			name:     "relative interval",
			tm:       at(10, 47, 12),
			interval: 900,
			aligned:  false,
			want:     900,
		},
		{
			name:     "overnight window postpones to its end",
			tm:       at(22, 30, 0),
			interval: 3600,
			aligned:  true,
			w:        Window{Enabled: true, StartMin: 23 * 60, EndMin: 7 * 60},
			want:     30600,
		},
		{
			name:     "window disabled is ignored",
			tm:       at(22, 30, 0),
			interval: 3600,
			aligned:  true,
			w:        Window{Enabled: false, StartMin: 23 * 60, EndMin: 7 * 60},
			want:     1800,
		},
		{
			name:     "wake before window start is untouched",
			tm:       at(20, 30, 0),
			interval: 3600,
			aligned:  true,
			w:        Window{Enabled: true, StartMin: 23 * 60, EndMin: 7 * 60},
			want:     1800,
		},
		{
			name:     "daytime window",
			tm:       at(11, 45, 0),
			interval: 3600,
			aligned:  true,
			w:        Window{Enabled: true, StartMin: 12 * 60, EndMin: 14 * 60},
			want:     2*3600 + 15*60,
		},
		{
			name:     "unaligned postpone lands exactly on window end",
			tm:       at(23, 30, 0),
			interval: 3600,
			aligned:  false,
			w:        Window{Enabled: true, StartMin: 23 * 60, EndMin: 7 * 60},
			want:     7*3600 + 30*60,
		},
		{
			name:     "after midnight inside window",
			tm:       at(1, 0, 0),
			interval: 3600,
			aligned:  true,
			w:        Window{Enabled: true, StartMin: 23 * 60, EndMin: 7 * 60},
			want:     6 * 3600,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := SecondsUntilNextWake(tc.tm, tc.interval, tc.aligned, tc.w)
			if got != tc.want {
				t.Errorf("SecondsUntilNextWake() = %d, want %d", got, tc.want)
			}
		})
	}
}

// Aligned wakes are never scheduled less than a minute out.
func TestAlignedMinimumLead(t *testing.T) {
	for sec := 0; sec < 3600; sec += 7 {
		tm := at(9, sec/60, sec%60)
		got := SecondsUntilNextWake(tm, 3600, true, Window{})
		if got < 60 {
			t.Fatalf("at 09:%02d:%02d: wake in %d s, want >= 60", sec/60, sec%60, got)
		}
	}
}

// A wake never lands inside an enabled window, for a sweep of times and
// both window shapes.
func TestWakeNeverInsideWindow(t *testing.T) {
	windows := []Window{
		{Enabled: true, StartMin: 23 * 60, EndMin: 7 * 60},
		{Enabled: true, StartMin: 9 * 60, EndMin: 17 * 60},
	}
	for _, w := range windows {
		for hour := 0; hour < 24; hour++ {
			for _, min := range []int{0, 13, 37, 59} {
				tm := at(hour, min, 21)
				for _, aligned := range []bool{true, false} {
					d := SecondsUntilNextWake(tm, 3600, aligned, w)
					tod := (hour*3600 + min*60 + 21 + d) % (24 * 3600)
					if w.contains(tod) {
						t.Fatalf("wake at tod %d inside window %+v (from %02d:%02d, aligned=%v)", tod, w, hour, min, aligned)
					}
				}
			}
		}
	}
}
