// Package app wires the Control Deck core to a graphics backend, config
// file, and save-state manager into a runnable application.
package app

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"nesdeck/internal/bus"
	"nesdeck/internal/cart"
	"nesdeck/internal/graphics"
	"nesdeck/internal/graphics/filter"
	"nesdeck/internal/input"
)

// Application is the top-level object cmd/nesdeck constructs: it owns the
// Deck, the graphics backend/window, and the run loop that ties them
// together every frame.
type Application struct {
	deck *bus.Deck

	graphicsBackend graphics.Backend
	window          graphics.Window

	config   *Config
	emulator *Emulator
	states   *StateManager

	romPath  string
	running  bool
	paused   bool
	headless bool

	frameCount  uint64
	startTime   time.Time
	lastFPSTime time.Time
	fpsFrames   uint64
	currentFPS  float64

	lastESCTime time.Time
}

// NewApplication loads configuration from configPath (writing defaults if
// absent) and builds an Application in GUI mode.
func NewApplication(configPath string) (*Application, error) {
	return NewApplicationWithMode(configPath, false)
}

// NewApplicationWithMode is NewApplication with an explicit headless flag.
func NewApplicationWithMode(configPath string, headless bool) (*Application, error) {
	config := NewConfig()
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	states, err := NewStateManager(config.Paths.SaveStates, config.Emulation.SaveStateSlots)
	if err != nil {
		return nil, errors.Wrap(err, "create state manager")
	}

	app := &Application{
		config:   config,
		states:   states,
		headless: headless,
	}

	if err := app.initializeComponents(headless); err != nil {
		return nil, errors.Wrap(err, "initialize components")
	}
	return app, nil
}

func (app *Application) initializeComponents(headless bool) error {
	region := cart.RegionNTSC
	switch app.config.Emulation.Region {
	case "PAL":
		region = cart.RegionPAL
	case "Dendy":
		region = cart.RegionDendy
	}
	app.deck = bus.New(bus.WithRegion(region))
	app.applyFilter()
	app.emulator = NewEmulator(app.deck)

	if headless {
		app.graphicsBackend = graphics.NewHeadlessBackend()
	} else {
		backendType := graphics.BackendType(app.config.Video.Backend)
		backend, err := graphics.CreateBackend(backendType)
		if err != nil {
			return errors.Wrap(err, "create graphics backend")
		}
		app.graphicsBackend = backend
	}

	gcfg := graphics.Config{
		WindowTitle:  "Control Deck",
		WindowWidth:  app.config.Window.Width,
		WindowHeight: app.config.Window.Height,
		Fullscreen:   app.config.Window.Fullscreen,
		VSync:        app.config.Video.VSync,
		Filter:       app.config.Video.Filter,
		AspectRatio:  app.config.Video.AspectRatio,
		Headless:     headless,
		Debug:        app.config.Debug.ShowDebugInfo,
	}
	if err := app.graphicsBackend.Initialize(gcfg); err != nil {
		return errors.Wrap(err, "initialize graphics backend")
	}

	width, height := app.config.GetWindowResolution()
	window, err := app.graphicsBackend.CreateWindow(gcfg.WindowTitle, width, height)
	if err != nil {
		return errors.Wrap(err, "create window")
	}
	app.window = window

	app.startTime = time.Now()
	app.lastFPSTime = app.startTime
	return nil
}

// applyFilter wires the configured post-processing filter into the Deck.
func (app *Application) applyFilter() {
	switch app.config.Video.Filter {
	case "ntsc":
		app.deck.SetFilter(filter.NewNtsc())
	default:
		app.deck.SetFilter(filter.Pixellate{})
	}
}

// LoadROM reads romPath and powers the Deck on with it.
func (app *Application) LoadROM(romPath string) error {
	data, err := readFile(romPath)
	if err != nil {
		return errors.Wrapf(err, "read ROM %s", romPath)
	}
	if err := app.deck.LoadROM(romPath, data); err != nil {
		return errors.Wrapf(err, "load ROM %s", romPath)
	}
	app.romPath = romPath

	if battery, ok := app.deck.BatteryRAM(); ok {
		if sram, err := readSaveFile(app.config.Paths.SaveData, romPath); err == nil {
			if loadErr := app.deck.LoadBatteryRAM(sram); loadErr != nil {
				glog.Warningf("battery RAM for %s ignored: %v", romPath, loadErr)
			}
		}
		_ = battery
	}
	return nil
}

// Run drives the main loop until Stop is called or the window closes.
func (app *Application) Run() error {
	app.running = true
	app.emulator.Start()
	defer app.Cleanup()

	for app.running {
		if app.window != nil && app.window.ShouldClose() {
			app.Stop()
			break
		}
		if err := app.processInput(); err != nil {
			return errors.Wrap(err, "process input")
		}
		if err := app.updateEmulator(); err != nil {
			return errors.Wrap(err, "update emulator")
		}
		if err := app.render(); err != nil {
			return errors.Wrap(err, "render")
		}
		app.updateFPS()
		if app.headless {
			app.emulator.SleepForNextFrame()
		}
	}
	return nil
}

func (app *Application) updateEmulator() error {
	if app.paused {
		return nil
	}
	if err := app.emulator.Update(); err != nil {
		return err
	}
	app.frameCount++
	return nil
}

func (app *Application) render() error {
	if app.window == nil {
		return nil
	}
	frame := [256 * 240 * 4]uint8(app.deck.Frame())
	if err := app.window.RenderFrame(frame); err != nil {
		return err
	}
	app.window.SwapBuffers()
	return nil
}

func (app *Application) updateFPS() {
	app.fpsFrames++
	now := time.Now()
	if elapsed := now.Sub(app.lastFPSTime); elapsed >= time.Second {
		app.currentFPS = float64(app.fpsFrames) / elapsed.Seconds()
		app.fpsFrames = 0
		app.lastFPSTime = now
	}
}

func (app *Application) processInput() error {
	if app.window == nil {
		return nil
	}
	events := app.window.PollEvents()
	for _, event := range events {
		switch event.Type {
		case graphics.InputEventTypeQuit:
			app.Stop()
			return nil
		case graphics.InputEventTypeKey:
			app.handleSpecialInput(event)
		case graphics.InputEventTypeButton:
			app.handleButtonInput(event)
		}
	}
	return nil
}

func (app *Application) handleButtonInput(event graphics.InputEvent) {
	slot := 0
	button := event.Button
	if is2PButton(button) {
		slot = 1
		button = to1PButton(button)
	}
	b, ok := graphicsButtonToInputButton(button)
	if !ok {
		return
	}
	if joypad := app.deck.Joypad(slot); joypad != nil {
		joypad.SetButton(b, event.Pressed)
	}
}

// handleSpecialInput processes non-gameplay keys: ESC double-tap to quit,
// F1-F10 for save/load state (shift = load).
func (app *Application) handleSpecialInput(event graphics.InputEvent) {
	if !event.Pressed {
		return
	}
	if event.Key == graphics.KeyEscape {
		now := time.Now()
		if !app.lastESCTime.IsZero() && now.Sub(app.lastESCTime) < 3*time.Second {
			app.Stop()
		} else {
			app.lastESCTime = now
		}
		return
	}
	app.lastESCTime = time.Time{}

	if event.Key >= graphics.KeyF1 && event.Key <= graphics.KeyF10 {
		slot := int(event.Key - graphics.KeyF1)
		if event.Modifiers&graphics.ModifierShift != 0 {
			if err := app.LoadState(slot); err != nil {
				glog.Warningf("load state %d: %v", slot, err)
			}
		} else if err := app.SaveState(slot); err != nil {
			glog.Warningf("save state %d: %v", slot, err)
		}
	}
}

func graphicsButtonToInputButton(b graphics.Button) (input.Button, bool) {
	switch b {
	case graphics.ButtonA:
		return input.ButtonA, true
	case graphics.ButtonB:
		return input.ButtonB, true
	case graphics.ButtonSelect:
		return input.ButtonSelect, true
	case graphics.ButtonStart:
		return input.ButtonStart, true
	case graphics.ButtonUp:
		return input.ButtonUp, true
	case graphics.ButtonDown:
		return input.ButtonDown, true
	case graphics.ButtonLeft:
		return input.ButtonLeft, true
	case graphics.ButtonRight:
		return input.ButtonRight, true
	default:
		return 0, false
	}
}

func is2PButton(b graphics.Button) bool {
	switch b {
	case graphics.Button2A, graphics.Button2B, graphics.Button2Select, graphics.Button2Start,
		graphics.Button2Up, graphics.Button2Down, graphics.Button2Left, graphics.Button2Right:
		return true
	default:
		return false
	}
}

func to1PButton(b graphics.Button) graphics.Button {
	switch b {
	case graphics.Button2A:
		return graphics.ButtonA
	case graphics.Button2B:
		return graphics.ButtonB
	case graphics.Button2Select:
		return graphics.ButtonSelect
	case graphics.Button2Start:
		return graphics.ButtonStart
	case graphics.Button2Up:
		return graphics.ButtonUp
	case graphics.Button2Down:
		return graphics.ButtonDown
	case graphics.Button2Left:
		return graphics.ButtonLeft
	case graphics.Button2Right:
		return graphics.ButtonRight
	default:
		return graphics.ButtonUnknown
	}
}

func (app *Application) SaveState(slot int) error {
	if app.romPath == "" {
		return fmt.Errorf("no ROM loaded")
	}
	return app.states.Save(app.deck, app.romPath, slot)
}

func (app *Application) LoadState(slot int) error {
	if app.romPath == "" {
		return fmt.Errorf("no ROM loaded")
	}
	return app.states.Load(app.deck, app.romPath, slot)
}

func (app *Application) Reset()              { app.deck.Reset() }
func (app *Application) Stop()               { app.running = false }
func (app *Application) Pause()              { app.paused = true }
func (app *Application) Resume()             { app.paused = false }
func (app *Application) TogglePause()        { app.paused = !app.paused }
func (app *Application) IsRunning() bool     { return app.running }
func (app *Application) IsPaused() bool      { return app.paused }
func (app *Application) GetFPS() float64     { return app.currentFPS }
func (app *Application) GetFrameCount() uint64 { return app.frameCount }
func (app *Application) GetUptime() time.Duration { return time.Since(app.startTime) }
func (app *Application) GetROMPath() string  { return app.romPath }
func (app *Application) GetConfig() *Config  { return app.config }
func (app *Application) GetDeck() *bus.Deck  { return app.deck }

// Cleanup persists battery RAM (if any) and releases the graphics backend.
func (app *Application) Cleanup() error {
	if app.romPath != "" {
		if battery, ok := app.deck.BatteryRAM(); ok {
			if err := writeSaveFile(app.config.Paths.SaveData, app.romPath, battery); err != nil {
				glog.Warningf("persist battery RAM for %s: %v", app.romPath, err)
			}
		}
	}
	if app.window != nil {
		_ = app.window.Cleanup()
	}
	if app.graphicsBackend != nil {
		return app.graphicsBackend.Cleanup()
	}
	return nil
}
