// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package impression drives the 7.3" AC073TC1 7-color e-paper panel over
// SPI. It accepts full RGB888 frames whose pixels are drawn from the
// theoretical palette and converts them to the controller's 4-bit color
// codes.
package impression

import (
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/photoframe"
	"periph.io/x/photoframe/palette"
)

const spiSpeed = 5000 * physic.KiloHertz

// AC073TC1 command set.
const (
	cmdPSR   = 0x00
	cmdPWR   = 0x01
	cmdPOF   = 0x02
	cmdPOFS  = 0x03
	cmdPON   = 0x04
	cmdBTST1 = 0x05
	cmdBTST2 = 0x06
	cmdDSLP  = 0x07
	cmdBTST3 = 0x08
	cmdDTM   = 0x10
	cmdDRF   = 0x12
	cmdIPC   = 0x13
	cmdPLL   = 0x30
	cmdTSE   = 0x41
	cmdCDI   = 0x50
	cmdTCON  = 0x60
	cmdTRES  = 0x61
	cmdVDCS  = 0x82
	cmdTVDCS = 0x84
	cmdAGID  = 0x86
	cmdCMDH  = 0xAA
	cmdCCSET = 0xE0
	cmdPWS   = 0xE3
	cmdTSSET = 0xE6
)

// Dev is a handle to the panel.
type Dev struct {
	c         conn.Conn
	maxTxSize int
	dc        gpio.PinOut
	r         gpio.PinOut
	busy      gpio.PinIn

	width  int
	height int
}

// New opens a handle to the panel on p with the usual dc/reset/busy pin
// trio.
func New(p spi.Port, dc gpio.PinOut, reset gpio.PinOut, busy gpio.PinIn) (*Dev, error) {
	c, err := p.Connect(spiSpeed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("impression: failed to connect over spi: %v", err)
	}
	maxTxSize := 0
	if limits, ok := c.(conn.Limits); ok {
		maxTxSize = limits.MaxTxSize()
	}
	if maxTxSize == 0 {
		maxTxSize = 4096 // Conservative default.
	}
	return &Dev{
		c:         c,
		maxTxSize: maxTxSize,
		dc:        dc,
		r:         reset,
		busy:      busy,
		width:     photoframe.DisplayWidth,
		height:    photoframe.DisplayHeight,
	}, nil
}

// String implements conn.Resource.
func (d *Dev) String() string {
	return "AC073TC1 7.3\" 7-color"
}

// Halt implements conn.Resource. It puts the controller into deep sleep.
func (d *Dev) Halt() error {
	return d.sendCommand(cmdDSLP, []byte{0xA5})
}

// Size implements panel.Panel.
func (d *Dev) Size() (int, int) {
	return d.width, d.height
}

// PushFrame implements panel.Panel. It blocks until the refresh cycle
// completes, waiting up to 45 seconds for the refresh itself.
func (d *Dev) PushFrame(rgb []byte) error {
	if len(rgb) != d.width*d.height*3 {
		return fmt.Errorf("impression: frame is %d bytes, want %d", len(rgb), d.width*d.height*3)
	}
	pix := indexFrame(rgb)

	merged := make([]byte, len(pix)/2)
	for i, offset := 0, 0; i < len(pix)-1; i, offset = i+2, offset+1 {
		merged[offset] = (pix[i]<<4)&0xF0 | pix[i+1]&0x0F
	}
	return d.update(merged)
}

// indexFrame maps RGB888 pixels to the controller's 4-bit color codes.
// Frames from the pipeline match the theoretical palette exactly;
// anything else snaps to the closest theoretical entry.
func indexFrame(rgb []byte) []uint8 {
	theo := palette.Theoretical
	pix := make([]uint8, len(rgb)/3)
	for i := range pix {
		c := palette.RGB{rgb[i*3], rgb[i*3+1], rgb[i*3+2]}
		code := -1
		for _, n := range palette.Active {
			if theo[n] == c {
				code = n
				break
			}
		}
		if code < 0 {
			code = palette.ClosestColor(&theo, c.R, c.G, c.B)
		}
		pix[i] = uint8(code)
	}
	return pix
}

func (d *Dev) cycleResetGPIO() error {
	if err := d.r.Out(gpio.Low); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return d.r.Out(gpio.High)
}

func (d *Dev) reset() error {
	if err := d.cycleResetGPIO(); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	if err := d.cycleResetGPIO(); err != nil {
		return err
	}
	d.wait(1 * time.Second)

	init := []struct {
		cmd  byte
		data []byte
	}{
		{cmdCMDH, []byte{0x49, 0x55, 0x20, 0x08, 0x09, 0x18}},
		{cmdPWR, []byte{0x3F, 0x00, 0x32, 0x2A, 0x0E, 0x2A}},
		{cmdPSR, []byte{0x5F, 0x69}},
		{cmdPOFS, []byte{0x00, 0x54, 0x00, 0x44}},
		{cmdBTST1, []byte{0x40, 0x1F, 0x1F, 0x2C}},
		{cmdBTST2, []byte{0x6F, 0x1F, 0x16, 0x25}},
		{cmdBTST3, []byte{0x6F, 0x1F, 0x1F, 0x22}},
		{cmdIPC, []byte{0x00, 0x04}},
		{cmdPLL, []byte{0x02}},
		{cmdTSE, []byte{0x00}},
		{cmdCDI, []byte{0x3F}},
		{cmdTCON, []byte{0x02, 0x00}},
		{cmdTRES, []byte{0x03, 0x20, 0x01, 0xE0}},
		{cmdVDCS, []byte{0x1E}},
		{cmdTVDCS, []byte{0x00}},
		{cmdAGID, []byte{0x00}},
		{cmdPWS, []byte{0x2F}},
		{cmdCCSET, []byte{0x00}},
		{cmdTSSET, []byte{0x00}},
	}
	for _, c := range init {
		if err := d.sendCommand(c.cmd, c.data); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dev) update(pix []byte) error {
	if err := d.reset(); err != nil {
		return err
	}

	if err := d.sendCommand(cmdDTM, pix); err != nil {
		return err
	}

	if err := d.sendCommand(cmdPON, nil); err != nil {
		return err
	}
	d.wait(400 * time.Millisecond)

	if err := d.sendCommand(cmdDRF, []byte{0x00}); err != nil {
		return err
	}
	// 41 seconds observed on hardware; the datasheet says less.
	d.wait(45 * time.Second)

	if err := d.sendCommand(cmdPOF, []byte{0x00}); err != nil {
		return err
	}
	d.wait(400 * time.Millisecond)

	return nil
}

// Wait for the busy pin or the timeout.
func (d *Dev) wait(dur time.Duration) {
	if err := d.busy.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		log.Printf("impression: %s", err)
		return
	}
	d.busy.WaitForEdge(dur)
}

func (d *Dev) sendCommand(command byte, data []byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.c.Tx([]byte{command}, nil); err != nil {
		return fmt.Errorf("impression: failed to send command %x: %v", command, err)
	}
	if data != nil {
		if err := d.sendData(data); err != nil {
			return fmt.Errorf("impression: failed to send data for command %x: %v", command, err)
		}
	}
	return nil
}

func (d *Dev) sendData(data []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(data) != 0 {
		var chunk []byte
		if len(data) > d.maxTxSize {
			chunk, data = data[:d.maxTxSize], data[d.maxTxSize:]
		} else {
			chunk, data = data, nil
		}
		if err := d.c.Tx(chunk, nil); err != nil {
			return err
		}
	}
	return nil
}
