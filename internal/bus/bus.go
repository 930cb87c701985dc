// Package bus wires the CPU, PPU, APU, cartridge, and input subsystems
// into the Control Deck, running the scanline-accurate clocking loop spec.md
// §4.6 describes: CPU steps its next instruction, PPU and APU are advanced
// in lockstep at the 1:3:1 cycle ratio, and NMI/IRQ/OAM-DMA are arbitrated
// each sub-step.
package bus

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"nesdeck/internal/apu"
	"nesdeck/internal/cart"
	"nesdeck/internal/cpu"
	"nesdeck/internal/deckerr"
	"nesdeck/internal/input"
	"nesdeck/internal/graphics/filter"
	"nesdeck/internal/memory"
	"nesdeck/internal/ppu"
	"nesdeck/internal/savestate"
)

// Option configures a Deck at construction time.
type Option func(*Deck)

// WithRegion sets the initial TV timing; LoadROM may override it from the
// cartridge's NES 2.0 region byte unless WithRegion was explicit.
func WithRegion(r cart.Region) Option {
	return func(d *Deck) { d.region = r; d.regionPinned = true }
}

// Deck is the Control Deck: the host-facing API from spec.md §6, realizing
// THE CORE as a single exclusively-owned struct rather than a web of shared
// pointers (spec.md §9's re-architecture guidance).
type Deck struct {
	CPU   *cpu.CPU
	PPU   *ppu.PPU
	APU   *apu.APU
	Mem   *memory.Memory
	Input *input.Input

	cartridge *Cartridge

	region       cart.Region
	regionPinned bool
	speed        float32

	cycles uint64

	oamDMAPage      int
	oamDMAPending   bool
	oamDMARemaining int

	filter       filter.Filter
	filteredFrame [256 * 240 * 4]uint8
}

// Cartridge is a thin alias for cart.Cartridge; a nil *Cartridge means no
// cartridge is loaded.
type Cartridge = cart.Cartridge

// New constructs a Deck with no cartridge loaded. Call LoadROM before
// ClockFrame.
func New(opts ...Option) *Deck {
	d := &Deck{
		PPU:   ppu.New(),
		Input: input.NewInput(),
		speed: 1.0,
	}
	d.APU = apu.New(d.cpuReadMemory, d.stallCPU)
	d.Mem = memory.New(d.PPU, d.APU, noCartridge{}, d.Input)
	d.Mem.SetDMACallback(d.triggerOAMDMA)
	d.Mem.SetBeamSource(d.beamPosition, d.PPU)
	d.CPU = cpu.New(d.Mem)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// noCartridge answers $4020-$FFFF reads as open bus when no cartridge is
// loaded, so the Deck is constructible before LoadROM.
type noCartridge struct{}

func (noCartridge) CPURead(addr uint16) uint8     { return 0 }
func (noCartridge) CPUWrite(addr uint16, v uint8) {}

// cpuReadMemory services the DMC's sample fetch, modeled as a real CPU bus
// read (with open-bus latch update and any read side effects) rather than
// a side-effect-free Peek, since DMC DMA is itself a repeated bus read.
func (d *Deck) cpuReadMemory(addr uint16) uint8 { return d.Mem.Read(addr) }

func (d *Deck) stallCPU(cycles int) { d.CPU.AddStall(cycles) }

func (d *Deck) beamPosition() (scanline, cycle int) { return d.PPU.Scanline, d.PPU.Cycle }

// LoadROM parses an iNES/NES 2.0 image, wires its mapper into the bus, and
// performs a power-on reset.
func (d *Deck) LoadROM(name string, data []byte) error {
	c, err := cart.Load(name, data)
	if err != nil {
		return errors.Wrapf(err, "bus: load rom %q", name)
	}
	d.cartridge = c
	d.Mem = memory.New(d.PPU, d.APU, c.Mapper(), d.Input)
	d.Mem.SetDMACallback(d.triggerOAMDMA)
	d.Mem.SetBeamSource(d.beamPosition, d.PPU)
	d.CPU.SetBus(d.Mem)
	d.PPU.SetCart(c.Mapper())

	if !d.regionPinned {
		d.region = c.Region
	}
	d.PPU.Region = toPPURegion(d.region)

	d.PowerCycle()
	return nil
}

func toPPURegion(r cart.Region) ppu.Region {
	switch r {
	case cart.RegionPAL:
		return ppu.PAL
	case cart.RegionDendy:
		return ppu.Dendy
	default:
		return ppu.NTSC
	}
}

// Reset performs the 6502 reset line sequence without clearing RAM, PPU
// VRAM, or mapper state, matching the console's physical reset button.
func (d *Deck) Reset() {
	d.CPU.Reset()
	d.PPU.Reset()
	d.APU.Reset()
	d.Input.Reset()
	d.cycles = 0
}

// PowerCycle simulates a full power-off/power-on cycle: every component
// (including RAM's capacitor-charge pattern) re-initializes from scratch.
func (d *Deck) PowerCycle() {
	d.Mem = memory.New(d.PPU, d.APU, d.cartridgeMapper(), d.Input)
	d.Mem.SetDMACallback(d.triggerOAMDMA)
	d.Mem.SetBeamSource(d.beamPosition, d.PPU)
	d.CPU.SetBus(d.Mem)
	d.CPU.PowerOn()
	d.PPU.Reset()
	d.APU.Reset()
	d.Input.Reset()
	d.cycles = 0
	d.oamDMAPending = false
}

func (d *Deck) cartridgeMapper() memory.Cart {
	if d.cartridge == nil {
		return noCartridge{}
	}
	return d.cartridge.Mapper()
}

// PowerOff releases the loaded cartridge; the Deck can be reused for a
// fresh LoadROM afterward.
func (d *Deck) PowerOff() {
	d.cartridge = nil
	d.Mem = memory.New(d.PPU, d.APU, noCartridge{}, d.Input)
	d.Mem.SetDMACallback(d.triggerOAMDMA)
	d.Mem.SetBeamSource(d.beamPosition, d.PPU)
	d.CPU.SetBus(d.Mem)
	d.PPU.SetCart(nil)
}

// triggerOAMDMA is called by Memory on a $4014 write; the actual 256-byte
// copy and CPU stall happen in the clocking loop so the DMA competes for
// bus cycles like real hardware rather than completing instantaneously.
func (d *Deck) triggerOAMDMA(page uint8) {
	if d.oamDMAPending {
		return
	}
	stall := 513
	if d.cycles%2 == 1 {
		stall = 514
	}
	d.oamDMAPending = true
	d.oamDMAPage = int(page)
	d.oamDMARemaining = stall
	d.CPU.AddStall(stall)
}

// runOAMDMAByte copies one byte once the stall cycles set aside for the
// alignment/dummy-read phase have elapsed; it's driven from
// clockOneCPUCycle so each byte lands on its own CPU cycle like the real
// DMA unit.
func (d *Deck) runOAMDMAByte(i int) {
	src := uint16(d.oamDMAPage)<<8 + uint16(i)
	d.Mem.WriteOAMByte(d.Mem.Read(src))
}

// ClockFrame advances the deck until the PPU reports a completed frame.
// The CPU:PPU:APU 1:3:1 cycle ratio (spec.md invariant 1) is enforced by
// clocking PPU three times and APU once per CPU cycle.
func (d *Deck) ClockFrame() error {
	for {
		d.clockOneCPUCycle()
		if d.PPU.FrameComplete() {
			return nil
		}
	}
}

func (d *Deck) clockOneCPUCycle() {
	d.CPU.SetIRQLine(d.APU.IRQAsserted() || d.cartridgeIRQAsserted())
	d.CPU.SetNMILine(d.PPU.NMIAsserted())

	cpuCyclesBefore := d.CPU.Cycles
	d.CPU.Step()
	spent := d.CPU.Cycles - cpuCyclesBefore

	// The DMA's 256 transfer bytes occupy the tail end of the stall
	// window (after the 1-2 cycle alignment wait); each CPU-stall cycle
	// ticks oamDMARemaining down by one.
	for i := uint64(0); i < spent && d.oamDMAPending; i++ {
		d.oamDMARemaining--
		if d.oamDMARemaining < 256 {
			d.runOAMDMAByte(255 - d.oamDMARemaining)
		}
		if d.oamDMARemaining == 0 {
			d.oamDMAPending = false
		}
	}

	for i := uint64(0); i < spent; i++ {
		d.PPU.Clock()
		d.PPU.Clock()
		d.PPU.Clock()
		d.APU.Clock()
		d.Input.Clock()
		d.cycles++
	}
}

func (d *Deck) cartridgeIRQAsserted() bool {
	if d.cartridge == nil {
		return false
	}
	return d.cartridge.Mapper().IRQAsserted()
}

// Frame returns the current 256x240 RGBA8 frame buffer.
// Frame returns the current 256x240 RGBA8 frame, run through the active
// Filter (Pixellate's identity pass by default).
func (d *Deck) Frame() []byte {
	if d.filter == nil {
		return d.PPU.FrameBuffer[:]
	}
	d.filter.Apply(d.filteredFrame[:], d.PPU.FrameBuffer[:])
	return d.filteredFrame[:]
}

// SetFilter installs the post-processing filter applied by Frame. A nil
// filter (or filter.Pixellate{}) is the identity pass.
func (d *Deck) SetFilter(f filter.Filter) { d.filter = f }

// AudioSamples drains the APU's filtered sample buffer. Destructive and
// single-read: call it once per frame and feed the result to the host's
// audio sink, don't call it again expecting the same samples.
func (d *Deck) AudioSamples() []float32 { return d.APU.Samples() }

// ClearAudioSamples discards any buffered but undrained audio, used when
// the host falls behind and wants to resynchronize rather than play stale
// samples.
func (d *Deck) ClearAudioSamples() { d.APU.DropSamples() }

// Joypad returns the joypad in logical slot 0-3 (a Four Score multitap
// occupies slots 2-3; most games only read slots 0-1).
func (d *Deck) Joypad(slot int) *input.Joypad { return d.Input.Joypad(slot) }

// Zapper returns the light gun plugged into physical port 0 or 1.
func (d *Deck) Zapper(slot int) *input.Zapper { return d.Input.Zapper(slot) }

// SetFourscore enables/disables the four-controller multitap adapter.
func (d *Deck) SetFourscore(enabled bool) { d.Input.SetFourscore(enabled) }

// SetSpeed sets a host-side playback speed multiplier; THE CORE itself
// always steps at its native cycle rate, so this is advisory metadata for
// the host's frame pacer, not a clock-rate change.
func (d *Deck) SetSpeed(f float32) { d.speed = f }

// Speed returns the last speed multiplier set by SetSpeed.
func (d *Deck) Speed() float32 { return d.speed }

// SetRegion pins the Deck's TV timing, overriding what LoadROM would infer
// from the cartridge header.
func (d *Deck) SetRegion(r cart.Region) {
	d.region = r
	d.regionPinned = true
	d.PPU.Region = toPPURegion(r)
}

// Region returns the Deck's current TV timing.
func (d *Deck) Region() cart.Region { return d.region }

// CPUCorrupted reports whether the CPU has executed an unimplemented
// illegal opcode since the last PowerCycle/Reset (spec.md §4.2); THE CORE
// never returns this as an error from the clocking loop itself.
func (d *Deck) CPUCorrupted() bool { return d.CPU.Corrupted }

// BatteryRAM returns the cartridge's battery-backed PRG-RAM and whether
// the cartridge actually has a battery (spec.md §5's save-lifecycle rule:
// the host should not write a file for carts that don't have one).
func (d *Deck) BatteryRAM() ([]byte, bool) {
	if d.cartridge == nil || !d.cartridge.Battery {
		return nil, false
	}
	return d.cartridge.ReadSRAM(), true
}

// LoadBatteryRAM restores a previously saved battery-backed PRG-RAM image.
func (d *Deck) LoadBatteryRAM(data []byte) error {
	if d.cartridge == nil {
		return errors.Wrap(deckerr.ErrIOError, "bus: no cartridge loaded")
	}
	return d.cartridge.LoadSRAM(bytes.NewReader(data))
}

// SaveState serializes the full machine state (spec.md §6's save-state
// format): CPU/PPU/APU/mapper snapshots plus cartridge identity, gob
// encoded and DEFLATE compressed behind a magic/version header.
func (d *Deck) SaveState(w io.Writer) error {
	if d.cartridge == nil {
		return errors.Wrap(deckerr.ErrIOError, "bus: no cartridge loaded")
	}
	snap := savestate.Snapshot{
		CartName:      d.cartridge.Name,
		CPU:           d.CPU.Snapshot(),
		PPU:           d.PPU.Snapshot(),
		APU:           d.APU.Snapshot(),
		Mapper:        d.cartridge.Mapper().Snapshot(),
		PRGRAM:        append([]byte(nil), d.cartridge.ReadSRAM()...),
		Region:        uint8(d.region),
		Cycles:        d.cycles,
		OAMDMAPending: d.oamDMAPending,
		OAMDMAPage:    uint8(d.oamDMAPage),
	}
	return savestate.Write(w, snap)
}

// LoadState restores a previously saved machine state. The cartridge
// currently loaded must match the state's cart name; the deck does not
// load ROMs on the host's behalf.
func (d *Deck) LoadState(r io.Reader) error {
	if d.cartridge == nil {
		return errors.Wrap(deckerr.ErrIOError, "bus: no cartridge loaded")
	}
	snap, err := savestate.Read(r)
	if err != nil {
		return err
	}
	if snap.CartName != d.cartridge.Name {
		return errors.Wrapf(deckerr.ErrSaveFormatInvalid, "state is for %q, loaded cart is %q", snap.CartName, d.cartridge.Name)
	}
	d.CPU.Restore(snap.CPU)
	d.PPU.Restore(snap.PPU)
	d.APU.Restore(snap.APU)
	d.cartridge.Mapper().Restore(snap.Mapper)
	copy(d.cartridge.ReadSRAM(), snap.PRGRAM)
	d.region = cart.Region(snap.Region)
	d.cycles = snap.Cycles
	d.oamDMAPending = snap.OAMDMAPending
	d.oamDMAPage = int(snap.OAMDMAPage)
	return nil
}
