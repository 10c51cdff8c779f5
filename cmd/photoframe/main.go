// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// photoframe is the firmware core of the e-paper photo frame: it boots,
// classifies the wake cause, shows the next image and either stays awake
// rotating on a timer or arms its wake sources and goes back to sleep.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"periph.io/x/photoframe/album"
	"periph.io/x/photoframe/button"
	"periph.io/x/photoframe/nvs"
	"periph.io/x/photoframe/palette"
	"periph.io/x/photoframe/panel"
	"periph.io/x/photoframe/panel/impression"
	"periph.io/x/photoframe/panel/termpanel"
	"periph.io/x/photoframe/periodic"
	"periph.io/x/photoframe/pipeline"
	"periph.io/x/photoframe/power"
	"periph.io/x/photoframe/procset"
	"periph.io/x/photoframe/rotation"
	"periph.io/x/photoframe/screen"
	"periph.io/x/photoframe/wake"
)

func mainImpl() error {
	dataDir := flag.String("data", "/var/lib/photoframe", "directory for the persistent key-value store")
	imageRoot := flag.String("images", "/sdcard/images", "image root directory")
	term := flag.Bool("term", false, "preview on the terminal instead of driving the panel")
	spiPort := flag.String("spi", "", "SPI port of the panel (empty for the first available)")
	dcPin := flag.String("dc", "GPIO25", "data/command pin")
	resetPin := flag.String("reset", "GPIO17", "reset pin")
	busyPin := flag.String("busy", "GPIO24", "busy pin")
	bootBtn := flag.String("boot-btn", "GPIO0", "BOOT button pin")
	keyBtn := flag.String("key-btn", "GPIO5", "KEY (rotate) button pin")
	clearBtn := flag.String("clear-btn", "GPIO6", "CLEAR button pin")
	debug := flag.Bool("debug", false, "debug timing (shorter auto-sleep)")
	wakeCause := flag.Int("wake-cause", 0, "wake cause bitmap handed over by the bootloader")
	ext1Mask := flag.Uint64("ext1-mask", 0, "EXT1 pin mask handed over by the bootloader")
	flag.Parse()

	if _, err := host.Init(); err != nil {
		return err
	}

	store, err := nvs.NewFile(*dataDir)
	if err != nil {
		return err
	}
	ns, err := store.Open("photoframe")
	if err != nil {
		return err
	}
	palNS, err := store.Open("palette")
	if err != nil {
		return err
	}

	// The image root is the SD card mount. Losing it means the frame
	// cannot do anything useful; powering off beats draining the
	// battery in a reset loop.
	if _, err := os.Stat(*imageRoot); err != nil {
		log.Printf("photoframe: image root %s unavailable: %s", *imageRoot, err)
		log.Printf("photoframe: powering off")
		return err
	}
	albums := album.NewStore(*imageRoot, ns)
	if err := albums.EnsureDefault(); err != nil {
		return err
	}

	// Stores before the pipeline, config before rotation and power.
	var proc *pipeline.Processor
	reload := func() {
		if proc != nil {
			proc.Reload()
		}
	}
	palStore := palette.NewStore(palNS, reload)
	setStore := procset.NewStore(ns, reload)
	proc = pipeline.New(palStore, setStore)

	var pnl panel.Panel
	if *term {
		pnl = termpanel.New(&termpanel.Opts{})
	} else {
		port, err := spireg.Open(*spiPort)
		if err != nil {
			return err
		}
		defer port.Close()
		dev, err := impression.New(port, byName(*dcPin), byName(*resetPin), byName(*busyPin))
		if err != nil {
			return err
		}
		pnl = dev
	}

	gate := screen.New(pnl, filepath.Dir(*imageRoot))
	cfgStore := rotation.NewConfigStore(ns)
	engine := rotation.New(ns, cfgStore, albums, gate, proc, nil)

	tasks := periodic.New(ns, nil)
	tasks.Register(wake.TaskName, 24*time.Hour, syncClock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord := power.New(&linuxSystem{}, byName("GPIO26"), ns, cfgStore, engine.Rotate, &power.Opts{Debug: *debug})

	// Classify this boot before settling into steady state.
	expected, _ := ns.GetI64("expected_wake")
	cause := wake.Classify(wake.Causes(*wakeCause), *ext1Mask, wake.Buttons{
		WakeGPIO:   gpioNumber(*bootBtn),
		RotateGPIO: gpioNumber(*keyBtn),
		ClearGPIO:  gpioNumber(*clearBtn),
	}, nowUnix(), expected, tasks)
	log.Printf("photoframe: wake cause: %s", cause)

	tasks.CheckAndRunAll()

	switch cause {
	case wake.Timer, wake.RotateKey:
		if err := engine.Rotate(ctx); err != nil {
			log.Printf("photoframe: rotation: %s", err)
		}
	case wake.ClearKey:
		if err := gate.Clear(); err != nil {
			log.Printf("photoframe: clear: %s", err)
		}
	case wake.NotFromDeepSleep:
		if _, err := ns.GetString("wifi_ssid"); err != nil {
			// Unprovisioned: show how to connect.
			if err := gate.ShowSetupScreen(); err != nil {
				log.Printf("photoframe: setup screen: %s", err)
			}
		}
	}

	buttons := button.New([]*button.Button{
		{Pin: inByName(*bootBtn), Press: coord.ResetSleepTimer},
		{Pin: inByName(*keyBtn), Press: func() {
			if err := engine.Rotate(ctx); err != nil {
				log.Printf("photoframe: rotation: %s", err)
			}
		}},
		{Pin: inByName(*clearBtn), Press: func() {
			if err := gate.Clear(); err != nil {
				log.Printf("photoframe: clear: %s", err)
			}
		}},
	}, nil)

	go buttons.Run(ctx)
	go coord.RunActiveRotate(ctx)
	go coord.RunAutoSleep(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	return nil
}

func byName(name string) gpio.PinOut {
	if p := gpioreg.ByName(name); p != nil {
		return p
	}
	return gpio.INVALID
}

func inByName(name string) gpio.PinIn {
	if p := gpioreg.ByName(name); p != nil {
		return p
	}
	return gpio.INVALID
}

func main() {
	if err := mainImpl(); err != nil {
		log.Fatalf("photoframe: %s", err)
	}
}
