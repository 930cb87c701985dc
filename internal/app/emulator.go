// Package app provides emulator integration for the main application.
package app

import (
	"time"

	"nesdeck/internal/bus"
)

// Emulator drives a Deck at a fixed 60Hz cadence. It deliberately avoids
// adaptive frame-time smoothing: THE CORE's ClockFrame is already
// cycle-exact, so the only job left here is not calling it too often.
type Emulator struct {
	Deck *bus.Deck

	targetFrameTime time.Duration
	lastUpdateTime  time.Time
	frameCount      uint64
	running         bool
}

// NewEmulator wraps a Deck with fixed 60fps pacing.
func NewEmulator(deck *bus.Deck) *Emulator {
	e := &Emulator{
		Deck:            deck,
		targetFrameTime: time.Second / 60,
	}
	e.Reset()
	return e
}

func (e *Emulator) Reset() {
	e.lastUpdateTime = time.Now()
	e.frameCount = 0
}

func (e *Emulator) Start() { e.running = true; e.lastUpdateTime = time.Now() }
func (e *Emulator) Stop()  { e.running = false }
func (e *Emulator) IsRunning() bool { return e.running }

// Update clocks exactly one frame and returns any error from doing so.
func (e *Emulator) Update() error {
	if err := e.Deck.ClockFrame(); err != nil {
		return err
	}
	e.frameCount++
	return nil
}

// FrameCount returns how many frames have been clocked since Reset.
func (e *Emulator) FrameCount() uint64 { return e.frameCount }

// SleepForNextFrame blocks until targetFrameTime has elapsed since the last
// call, for hosts (e.g. the terminal backend) that don't already vsync.
func (e *Emulator) SleepForNextFrame() {
	elapsed := time.Since(e.lastUpdateTime)
	if elapsed < e.targetFrameTime {
		time.Sleep(e.targetFrameTime - elapsed)
	}
	e.lastUpdateTime = time.Now()
}
