// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// linuxSystem adapts a Linux board to the power coordinator. Timer wakes
// go through rtcwake; EXT1-style button wake is board configuration and
// has nothing to arm at runtime.
type linuxSystem struct {
	wakeIn time.Duration
}

func (s *linuxSystem) OnBattery() bool {
	raw, err := os.ReadFile("/sys/class/power_supply/usb/online")
	if err != nil {
		// No USB supply node: assume mains powered.
		return false
	}
	return strings.TrimSpace(string(raw)) == "0"
}

func (s *linuxSystem) ArmTimerWake(d time.Duration) error {
	s.wakeIn = d
	return nil
}

func (s *linuxSystem) ArmButtonWake() error {
	// The wake pins carry pull-ups at the hardware level and are wired
	// to the PMIC; nothing to do from userspace.
	return nil
}

func (s *linuxSystem) DeepSleep() error {
	args := []string{"-m", "off"}
	if s.wakeIn > 0 {
		args = append(args, "-s", strconv.Itoa(int(s.wakeIn/time.Second)))
	}
	log.Printf("photoframe: entering deep sleep (rtcwake %s)", strings.Join(args, " "))
	return exec.Command("rtcwake", args...).Run()
}

// syncClock is the sntp_sync periodic task. Time sync itself is owned by
// the OS; kicking chronyc covers boards where NTP was paused during
// sleep.
func syncClock() error {
	if err := exec.Command("chronyc", "makestep").Run(); err != nil {
		log.Printf("photoframe: clock sync: %s", err)
	}
	return nil
}

func nowUnix() int64 {
	return time.Now().Unix()
}

// gpioNumber extracts the number from a pin name like "GPIO5". Unknown
// shapes yield -1, which never matches an EXT1 mask bit.
func gpioNumber(name string) int {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) {
		return -1
	}
	n, err := strconv.Atoi(name[i:])
	if err != nil {
		return -1
	}
	return n
}
