// Package memory implements the NES CPU bus: 2KiB internal RAM mirrored
// through $1FFF, PPU/APU/input register windows, and the $4020-$FFFF
// cartridge window, with an open-bus latch for unmapped reads.
package memory

import "nesdeck/internal/input"

// PPU is the CPU-visible register interface implemented by internal/ppu.PPU.
type PPU interface {
	ReadRegister(reg uint16) uint8
	WriteRegister(reg uint16, val uint8)
	Peek(reg uint16) uint8
}

// APU is the CPU-visible register interface implemented by internal/apu.APU.
type APU interface {
	WriteRegister(addr uint16, v uint8) error
	ReadStatus() uint8
}

// Cart is the $4020-$FFFF window, implemented by internal/cart.Mapper.
type Cart interface {
	CPURead(addr uint16) uint8
	CPUWrite(addr uint16, v uint8)
}

// Memory is the CPU's view of the full $0000-$FFFF address space.
type Memory struct {
	ram [0x800]uint8

	ppu   PPU
	apu   APU
	cart  Cart
	input *input.Input

	// beam reports the PPU's current (scanline, cycle) for the Zapper's
	// light-sense test, without requiring PPU to expose Scanline/Cycle as
	// methods (they're plain fields the render loop hits every dot).
	beam func() (scanline, cycle int)
	// frame is the Zapper's FrameSource (pixel brightness lookup).
	frame input.FrameSource

	// dmaCallback triggers an OAM DMA transfer; the bus sets this so the
	// CPU stall accounting lives in one place (513/514 cycles depending on
	// CPU parity, spec.md §4.2).
	dmaCallback func(page uint8)

	openBusValue uint8
}

// New creates a Memory wired to the PPU/APU/cartridge/input subsystems.
// Power-up RAM is patterned rather than zeroed, matching hardware's
// semi-random capacitor-charge state that several test ROMs rely on.
func New(ppu PPU, apu APU, cart Cart, in *input.Input) *Memory {
	m := &Memory{ppu: ppu, apu: apu, cart: cart, input: in}
	m.initializePowerUpRAM()
	return m
}

// SetDMACallback wires the OAM DMA trigger to the bus's stall accounting.
func (m *Memory) SetDMACallback(callback func(page uint8)) { m.dmaCallback = callback }

// SetBeamSource wires the Zapper's beam-position and pixel-brightness
// lookups to the PPU.
func (m *Memory) SetBeamSource(beam func() (scanline, cycle int), frame input.FrameSource) {
	m.beam, m.frame = beam, frame
}

// initializePowerUpRAM fills RAM with the alternating/checkerboard pattern
// hardware measurements show real NES capacitors settle into, rather than
// all zeros; some test ROMs (and a few commercial carts) rely on it.
func (m *Memory) initializePowerUpRAM() {
	for i := 0; i < 0x800; i++ {
		switch {
		case i < 0x100:
			if i%2 == 0 {
				m.ram[i] = 0x00
			} else {
				m.ram[i] = 0xFF
			}
		case i < 0x200:
			if i%16 < 2 {
				m.ram[i] = 0xFF
			} else {
				m.ram[i] = 0x00
			}
		case i < 0x300:
			if (i/8)%2 == (i%8)/4 {
				m.ram[i] = 0xAA
			} else {
				m.ram[i] = 0x55
			}
		case i < 0x400:
			if i%8 == 0 {
				m.ram[i] = 0x00
			} else {
				m.ram[i] = 0xFF
			}
		default:
			switch i % 4 {
			case 0:
				m.ram[i] = 0x00
			case 1:
				m.ram[i] = 0xFF
			case 2:
				m.ram[i] = 0xAA
			case 3:
				m.ram[i] = 0x55
			}
		}
	}
}

// Read services a CPU read with side effects (PPU/APU register reads,
// controller shifts), updating the open-bus latch on every access.
func (m *Memory) Read(addr uint16) uint8 {
	var v uint8
	switch {
	case addr < 0x2000:
		v = m.ram[addr&0x07FF]
	case addr < 0x4000:
		v = m.ppu.ReadRegister(0x2000 + (addr & 0x0007))
	case addr == 0x4015:
		v = m.apu.ReadStatus()
	case addr == 0x4016:
		v = m.readController(0)
	case addr == 0x4017:
		v = m.readController(1)
	case addr < 0x4020:
		v = m.openBusValue
	default:
		v = m.cart.CPURead(addr)
	}
	m.openBusValue = v
	return v
}

// Peek mirrors Read without side effects, for the debugger/disassembler
// pathway (spec.md invariant 2).
func (m *Memory) Peek(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		return m.ram[addr&0x07FF]
	case addr < 0x4000:
		return m.ppu.Peek(0x2000 + (addr & 0x0007))
	case addr == 0x4015:
		return m.openBusValue
	case addr == 0x4016:
		return m.peekController(0)
	case addr == 0x4017:
		return m.peekController(1)
	case addr < 0x4020:
		return m.openBusValue
	default:
		return m.cart.CPURead(addr)
	}
}

func (m *Memory) readController(port int) uint8 {
	if m.input == nil {
		return 0
	}
	sl, cyc := 0, 0
	if m.beam != nil {
		sl, cyc = m.beam()
	}
	return m.input.Read(port, m.frame, sl, cyc)
}

func (m *Memory) peekController(port int) uint8 {
	if m.input == nil {
		return 0
	}
	sl, cyc := 0, 0
	if m.beam != nil {
		sl, cyc = m.beam()
	}
	return m.input.Peek(port, m.frame, sl, cyc)
}

// Write services a CPU write, dispatching $4014's OAM DMA trigger and the
// controller strobe alongside the PPU/APU/cartridge windows.
func (m *Memory) Write(addr uint16, v uint8) {
	switch {
	case addr < 0x2000:
		m.ram[addr&0x07FF] = v
	case addr < 0x4000:
		m.ppu.WriteRegister(0x2000+(addr&0x0007), v)
	case addr == 0x4014:
		if m.dmaCallback != nil {
			m.dmaCallback(v)
		}
	case addr == 0x4016:
		if m.input != nil {
			m.input.Write(v)
		}
	case addr >= 0x4000 && addr <= 0x4013, addr == 0x4015, addr == 0x4017:
		_ = m.apu.WriteRegister(addr, v)
	case addr < 0x4020:
		// Test-mode registers $4018-$401F are ignored.
	default:
		m.cart.CPUWrite(addr, v)
	}
}

// WriteOAMByte feeds one OAM DMA byte directly to the PPU's OAMDATA
// register, used by the bus's DMA stepper.
func (m *Memory) WriteOAMByte(v uint8) { m.ppu.WriteRegister(0x2004, v) }
