// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package power coordinates the two runtime modes of the frame: counting
// down to deep sleep on battery, and rotating on a timer while mains
// powered. It also arms the wake sources and performs the final descent
// into deep sleep.
package power

import (
	"context"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/photoframe/nvs"
	"periph.io/x/photoframe/rotation"
	"periph.io/x/photoframe/sched"
)

// System is the platform surface the coordinator drives. A fake stands
// in during tests; the real one wraps the board's power and RTC
// facilities.
type System interface {
	// OnBattery reports whether USB power is absent.
	OnBattery() bool
	// ArmTimerWake schedules a timer wake d from now.
	ArmTimerWake(d time.Duration) error
	// ArmButtonWake arms EXT1 any-low wake on the configured button
	// GPIOs, with pull-ups held through sleep so the pins cannot
	// float.
	ArmButtonWake() error
	// DeepSleep enters deep sleep. On real hardware it does not
	// return.
	DeepSleep() error
}

// Default seconds of inactivity on battery before deep sleep.
const (
	autoSleepTimeout      = 120 * time.Second
	autoSleepTimeoutDebug = 60 * time.Second
)

const ledBlinkEvery = 10 * time.Second

const expectedWakeKey = "expected_wake"

// Opts tune a Coordinator. The zero value gives production behavior.
type Opts struct {
	// Debug halves the auto-sleep timeout.
	Debug bool
	// Tick overrides the countdown granularity (default one second).
	Tick time.Duration
	// Now is the clock.
	Now func() time.Time
}

// Coordinator owns the sleep and rotate timers.
type Coordinator struct {
	sys    System
	led    gpio.PinOut
	ns     nvs.Namespace
	cfg    *rotation.ConfigStore
	rotate func(context.Context) error

	timeout time.Duration
	tick    time.Duration
	now     func() time.Time

	mu            sync.Mutex
	sleepDeadline time.Time

	sleepReset  chan struct{}
	rotateReset chan struct{}
}

// New returns a Coordinator. rotate is invoked on every due rotation;
// led may be gpio.INVALID on boards without a status LED.
func New(sys System, led gpio.PinOut, ns nvs.Namespace, cfg *rotation.ConfigStore, rotate func(context.Context) error, opts *Opts) *Coordinator {
	c := &Coordinator{
		sys:         sys,
		led:         led,
		ns:          ns,
		cfg:         cfg,
		rotate:      rotate,
		timeout:     autoSleepTimeout,
		tick:        time.Second,
		now:         time.Now,
		sleepReset:  make(chan struct{}, 1),
		rotateReset: make(chan struct{}, 1),
	}
	if opts != nil {
		if opts.Debug {
			c.timeout = autoSleepTimeoutDebug
		}
		if opts.Tick > 0 {
			c.tick = opts.Tick
		}
		if opts.Now != nil {
			c.now = opts.Now
		}
	}
	c.sleepDeadline = c.now().Add(c.timeout)
	return c
}

func (c *Coordinator) deepSleepEnabled() bool {
	v, err := c.ns.GetU8("deep_sleep")
	if err != nil {
		return true
	}
	return v != 0
}

// ResetSleepTimer restarts the auto-sleep countdown, e.g. on button
// activity or an HTTP request.
func (c *Coordinator) ResetSleepTimer() {
	c.mu.Lock()
	c.sleepDeadline = c.now().Add(c.timeout)
	c.mu.Unlock()
	select {
	case c.sleepReset <- struct{}{}:
	default:
	}
}

// ResetRotateTimer makes the active-rotate loop recompute its deadline,
// e.g. after a configuration change.
func (c *Coordinator) ResetRotateTimer() {
	select {
	case c.rotateReset <- struct{}{}:
	default:
	}
}

func (c *Coordinator) deadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleepDeadline
}

// RunAutoSleep counts down to deep sleep while on battery with deep
// sleep enabled. Activity elsewhere calls ResetSleepTimer to start over.
// Returns when ctx is done or after entering sleep.
func (c *Coordinator) RunAutoSleep(ctx context.Context) {
	t := time.NewTicker(c.tick)
	defer t.Stop()
	lastBlink := c.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.sleepReset:
			continue
		case <-t.C:
		}
		now := c.now()
		if !c.sys.OnBattery() || !c.deepSleepEnabled() {
			// Mains powered: the countdown idles at full.
			c.mu.Lock()
			c.sleepDeadline = now.Add(c.timeout)
			c.mu.Unlock()
			continue
		}
		if now.Sub(lastBlink) >= ledBlinkEvery {
			lastBlink = now
			c.blink()
		}
		if !now.Before(c.deadline()) {
			c.EnterSleep()
			return
		}
	}
}

func (c *Coordinator) blink() {
	if c.led == nil || c.led == gpio.INVALID {
		return
	}
	if err := c.led.Out(gpio.High); err != nil {
		return
	}
	time.Sleep(30 * time.Millisecond)
	if err := c.led.Out(gpio.Low); err != nil {
		log.Printf("power: led: %s", err)
	}
}

// RunActiveRotate rotates on schedule while the device stays awake (on
// USB power or with deep sleep disabled). Returns when ctx is done.
func (c *Coordinator) RunActiveRotate(ctx context.Context) {
	for {
		cfg := c.cfg.Load()
		if !cfg.AutoRotate {
			select {
			case <-ctx.Done():
				return
			case <-c.rotateReset:
				continue
			}
		}
		d := sched.SecondsUntilNextWake(c.now(), cfg.Interval, cfg.Aligned, cfg.Sleep)
		t := time.NewTimer(time.Duration(d) * time.Second)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-c.rotateReset:
			t.Stop()
			continue
		case <-t.C:
		}
		if c.sys.OnBattery() && c.deepSleepEnabled() {
			// The device deep-sleeps between rotations; EnterSleep's
			// timer wake drives them instead.
			continue
		}
		if err := c.rotate(ctx); err != nil {
			log.Printf("power: rotation: %s", err)
		}
	}
}

// EnterSleep arms the wake sources and enters deep sleep. The expected
// wake time is recorded just before sleeping so the next boot can detect
// clock drift.
func (c *Coordinator) EnterSleep() {
	if c.led != nil && c.led != gpio.INVALID {
		if err := c.led.Out(gpio.Low); err != nil {
			log.Printf("power: led: %s", err)
		}
	}

	cfg := c.cfg.Load()
	expected := int64(0)
	if cfg.AutoRotate {
		d := sched.SecondsUntilNextWake(c.now(), cfg.Interval, cfg.Aligned, cfg.Sleep)
		if err := c.sys.ArmTimerWake(time.Duration(d) * time.Second); err != nil {
			log.Printf("power: arming timer wake: %s", err)
		} else {
			expected = c.now().Unix() + int64(d)
		}
	}
	if err := c.ns.SetI64(expectedWakeKey, expected); err != nil {
		log.Printf("power: recording expected wake: %s", err)
	}
	if err := c.sys.ArmButtonWake(); err != nil {
		log.Printf("power: arming button wake: %s", err)
	}
	if err := c.sys.DeepSleep(); err != nil {
		log.Printf("power: deep sleep: %s", err)
	}
}
