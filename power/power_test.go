// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package power

import (
	"context"
	"sync"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/photoframe/nvs"
	"periph.io/x/photoframe/rotation"
	"periph.io/x/photoframe/sched"
)

type fakeSystem struct {
	mu         sync.Mutex
	onBattery  bool
	timerWake  time.Duration
	timerArmed bool
	ext1Armed  bool
	slept      chan struct{}
}

func newFakeSystem(onBattery bool) *fakeSystem {
	return &fakeSystem{onBattery: onBattery, slept: make(chan struct{}, 1)}
}

func (s *fakeSystem) OnBattery() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onBattery
}

func (s *fakeSystem) ArmTimerWake(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timerArmed = true
	s.timerWake = d
	return nil
}

func (s *fakeSystem) ArmButtonWake() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ext1Armed = true
	return nil
}

func (s *fakeSystem) DeepSleep() error {
	select {
	case s.slept <- struct{}{}:
	default:
	}
	return nil
}

func newTestConfig(t *testing.T) (nvs.Namespace, *rotation.ConfigStore) {
	t.Helper()
	ns, err := nvs.NewMem().Open("photoframe")
	if err != nil {
		t.Fatal(err)
	}
	return ns, rotation.NewConfigStore(ns)
}

func TestEnterSleepArmsWakeSources(t *testing.T) {
	ns, cfgStore := newTestConfig(t)
	cfg := cfgStore.Load()
	cfg.AutoRotate = true
	cfg.Interval = 1800
	cfg.Aligned = false
	if err := cfgStore.Save(cfg); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	sys := newFakeSystem(true)
	c := New(sys, &gpiotest.Pin{N: "LED"}, ns, cfgStore, nil, &Opts{Now: func() time.Time { return now }})

	c.EnterSleep()

	if !sys.timerArmed || sys.timerWake != 1800*time.Second {
		t.Errorf("timer wake = %v (armed=%v), want 1800s", sys.timerWake, sys.timerArmed)
	}
	if !sys.ext1Armed {
		t.Error("EXT1 wake not armed")
	}
	select {
	case <-sys.slept:
	default:
		t.Error("DeepSleep not called")
	}
	want := now.Unix() + 1800
	if got, err := ns.GetI64("expected_wake"); err != nil || got != want {
		t.Errorf("expected_wake = %d, %v, want %d", got, err, want)
	}
}

func TestEnterSleepWithoutAutoRotate(t *testing.T) {
	ns, cfgStore := newTestConfig(t)
	cfg := cfgStore.Load()
	cfg.AutoRotate = false
	if err := cfgStore.Save(cfg); err != nil {
		t.Fatal(err)
	}
	sys := newFakeSystem(true)
	c := New(sys, gpio.INVALID, ns, cfgStore, nil, nil)

	c.EnterSleep()

	if sys.timerArmed {
		t.Error("timer wake armed despite auto-rotate off")
	}
	if !sys.ext1Armed {
		t.Error("EXT1 wake not armed")
	}
	// Zero marks an unscheduled wake for the classifier.
	if got, err := ns.GetI64("expected_wake"); err != nil || got != 0 {
		t.Errorf("expected_wake = %d, %v, want 0", got, err)
	}
}

func TestAutoSleepCountsDownOnBattery(t *testing.T) {
	ns, cfgStore := newTestConfig(t)
	sys := newFakeSystem(true)

	base := time.Now()
	var mu sync.Mutex
	now := base
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	c := New(sys, gpio.INVALID, ns, cfgStore, nil, &Opts{Tick: time.Millisecond, Now: clock})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		c.RunAutoSleep(ctx)
		close(done)
	}()

	// Jump the clock past the timeout; the next tick must sleep.
	mu.Lock()
	now = base.Add(autoSleepTimeout + time.Second)
	mu.Unlock()

	select {
	case <-sys.slept:
	case <-time.After(5 * time.Second):
		t.Fatal("device did not enter deep sleep")
	}
	<-done
}

func TestAutoSleepHeldOffByUSB(t *testing.T) {
	ns, cfgStore := newTestConfig(t)
	sys := newFakeSystem(false)

	base := time.Now()
	var mu sync.Mutex
	now := base
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	c := New(sys, gpio.INVALID, ns, cfgStore, nil, &Opts{Tick: time.Millisecond, Now: clock})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.RunAutoSleep(ctx)

	mu.Lock()
	now = base.Add(10 * autoSleepTimeout)
	mu.Unlock()

	select {
	case <-sys.slept:
		t.Fatal("entered deep sleep while on USB power")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestResetSleepTimerPostponesSleep(t *testing.T) {
	ns, cfgStore := newTestConfig(t)
	sys := newFakeSystem(true)

	base := time.Now()
	var mu sync.Mutex
	now := base
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	c := New(sys, gpio.INVALID, ns, cfgStore, nil, &Opts{Tick: time.Millisecond, Now: clock})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.RunAutoSleep(ctx)

	// Advance close to the deadline, then reset: no sleep yet.
	mu.Lock()
	now = base.Add(autoSleepTimeout - time.Second)
	mu.Unlock()
	c.ResetSleepTimer()

	select {
	case <-sys.slept:
		t.Fatal("entered deep sleep despite timer reset")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestActiveRotateFires(t *testing.T) {
	ns, cfgStore := newTestConfig(t)
	cfg := cfgStore.Load()
	cfg.AutoRotate = true
	cfg.Interval = 1 // 1 second, unaligned: fires quickly
	cfg.Aligned = false
	cfg.Sleep = sched.Window{}
	if err := cfgStore.Save(cfg); err != nil {
		t.Fatal(err)
	}

	rotated := make(chan struct{}, 4)
	c := New(newFakeSystem(false), gpio.INVALID, ns, cfgStore, func(context.Context) error {
		rotated <- struct{}{}
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.RunActiveRotate(ctx)

	select {
	case <-rotated:
	case <-time.After(5 * time.Second):
		t.Fatal("rotation never fired")
	}
}

func TestActiveRotateWaitsWhenDisabled(t *testing.T) {
	ns, cfgStore := newTestConfig(t)
	cfg := cfgStore.Load()
	cfg.AutoRotate = false
	if err := cfgStore.Save(cfg); err != nil {
		t.Fatal(err)
	}

	rotated := make(chan struct{}, 1)
	c := New(newFakeSystem(false), gpio.INVALID, ns, cfgStore, func(context.Context) error {
		rotated <- struct{}{}
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.RunActiveRotate(ctx)

	select {
	case <-rotated:
		t.Fatal("rotated despite auto-rotate off")
	case <-time.After(50 * time.Millisecond):
	}
}
