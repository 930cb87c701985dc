// Package cpu implements the Ricoh 2A03's 6502 core: the legal instruction
// set, the commonly-tested illegal opcodes, cycle-accurate addressing mode
// penalties, and the NMI/IRQ/reset/BRK interrupt dispatch sequence.
package cpu

import "github.com/golang/glog"

// Status register flag bits (NVUBDIZC, high to low).
const (
	FlagC uint8 = 1 << 0 // Carry
	FlagZ uint8 = 1 << 1 // Zero
	FlagI uint8 = 1 << 2 // Interrupt disable
	FlagD uint8 = 1 << 3 // Decimal (accepted but has no effect on the 2A03)
	FlagB uint8 = 1 << 4 // Break (only meaningful on the stack image)
	FlagU uint8 = 1 << 5 // Unused, always pushed/read as 1
	FlagV uint8 = 1 << 6 // Overflow
	FlagN uint8 = 1 << 7 // Negative
)

const (
	stackBase   = 0x0100
	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
)

// Interrupt names a pending interrupt source sampled between instructions.
type Interrupt uint8

const (
	None Interrupt = iota
	IRQ
	NMI
)

// Bus is the CPU's view of the full $0000-$FFFF address space. Read may
// have side effects (PPU/APU register reads, mapper IRQ acknowledgement);
// Peek must not — it backs the debugger/disassembler pathway spec.md's
// invariant 2 requires.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
	Peek(addr uint16) uint8
}

// CPU holds the 2A03's programmer-visible registers plus the bookkeeping
// the Control Deck needs to interleave it with the PPU and APU.
type CPU struct {
	A, X, Y, SP uint8
	PC          uint16
	P           uint8 // NVUBDIZC

	Cycles uint64 // Total CPU cycles since power-on
	Stall  int    // Cycles the CPU must burn without fetching (DMA holds)

	pendingIRQ bool // level-sensitive; set by the deck each time a source asserts
	pendingNMI bool // edge-triggered latch, cleared once serviced
	nmiLine    bool // previous sampled NMI line, for edge detection

	// Corrupted is set when an unimplemented illegal opcode is executed.
	// The CPU never returns an error (spec.md §4.2); the deck surfaces
	// this flag to the host instead.
	Corrupted bool

	bus Bus
}

// New creates a CPU wired to bus. Call Reset (or PowerOn) before Step.
func New(bus Bus) *CPU {
	return &CPU{bus: bus, SP: 0xFD, P: FlagU | FlagI}
}

// SetBus rewires the CPU to a new bus, used when the deck reconstructs
// itself around a freshly loaded cartridge.
func (c *CPU) SetBus(bus Bus) { c.bus = bus }

// Reset performs the 6502 reset sequence: SP -= 3 (without writing), I is
// set, and PC loads from the reset vector. Internal RAM is left untouched
// by the CPU itself — the deck's power-on RAM fill strategy lives in the
// bus constructor, never as process-wide state.
func (c *CPU) Reset() {
	c.SP -= 3
	c.P |= FlagI
	c.P |= FlagU
	c.PC = c.readVector(resetVector)
	c.Cycles = 7
	c.Stall = 0
	c.pendingIRQ = false
	c.pendingNMI = false
	c.nmiLine = false
	c.Corrupted = false
}

// PowerOn sets the documented power-on register values and loads PC from
// the reset vector; used for a hard power cycle rather than the user reset
// line.
func (c *CPU) PowerOn() {
	c.A, c.X, c.Y = 0, 0, 0
	c.SP = 0xFD
	c.P = FlagU | FlagI
	c.PC = c.readVector(resetVector)
	c.Cycles = 7
	c.Stall = 0
	c.pendingIRQ = false
	c.pendingNMI = false
	c.nmiLine = false
	c.Corrupted = false
}

func (c *CPU) readVector(addr uint16) uint16 {
	lo := uint16(c.bus.Read(addr))
	hi := uint16(c.bus.Read(addr + 1))
	return hi<<8 | lo
}

// SetIRQLine is called by the deck once per sub-step with the OR of every
// enabled, asserted IRQ source (level-sensitive per spec.md invariant 4).
func (c *CPU) SetIRQLine(asserted bool) { c.pendingIRQ = asserted }

// SetNMILine is called by the deck with the PPU's vblank-and-enabled
// state; NMI is edge triggered on the rising transition (spec.md invariant 4).
func (c *CPU) SetNMILine(asserted bool) {
	if asserted && !c.nmiLine {
		c.pendingNMI = true
	}
	c.nmiLine = asserted
}

// Stalled reports whether the CPU is currently burning DMA-stall cycles.
func (c *CPU) Stalled() bool { return c.Stall > 0 }

// AddStall charges n cycles of DMA hold, consumed one at a time by Step.
func (c *CPU) AddStall(n int) { c.Stall += n }

// Step executes one instruction, servicing a pending interrupt first, and
// returns the number of CPU cycles consumed (base cycles plus any
// page-cross/branch-taken penalty, or the 7-cycle interrupt dispatch cost).
// If the CPU is mid-DMA-stall it instead burns exactly one cycle.
func (c *CPU) Step() int {
	if c.Stall > 0 {
		c.Stall--
		c.Cycles++
		return 1
	}

	if n := c.serviceInterrupts(); n > 0 {
		c.Cycles += uint64(n)
		return n
	}

	opcode := c.fetch()
	instr := &opcodeTable[opcode]

	addr, crossed, useAcc := c.resolveOperand(instr.Mode)
	cycles := int(instr.BaseCycles)
	if instr.PageCrossPenalty && crossed {
		cycles++
	}

	extra := c.execute(instr, addr, useAcc)
	cycles += extra

	c.Cycles += uint64(cycles)
	return cycles
}

// serviceInterrupts handles a pending NMI (highest priority) or a pending
// IRQ when the interrupt-disable flag is clear, pushing PC and P (B
// cleared, U set) and loading the appropriate vector. Returns the number of
// cycles charged, or 0 if nothing was serviced.
func (c *CPU) serviceInterrupts() int {
	switch {
	case c.pendingNMI:
		c.pendingNMI = false
		c.push16(c.PC)
		c.push(c.P&^FlagB | FlagU)
		c.P |= FlagI
		c.PC = c.readVector(nmiVector)
		return 7
	case c.pendingIRQ && c.P&FlagI == 0:
		c.push16(c.PC)
		c.push(c.P&^FlagB | FlagU)
		c.P |= FlagI
		c.PC = c.readVector(irqVector)
		return 7
	default:
		return 0
	}
}

func (c *CPU) fetch() uint8 {
	v := c.bus.Read(c.PC)
	c.PC++
	return v
}

func (c *CPU) push(v uint8) {
	c.bus.Write(stackBase+uint16(c.SP), v)
	c.SP--
}

func (c *CPU) pull() uint8 {
	c.SP++
	return c.bus.Read(stackBase + uint16(c.SP))
}

func (c *CPU) push16(v uint16) {
	c.push(uint8(v >> 8))
	c.push(uint8(v))
}

func (c *CPU) pull16() uint16 {
	lo := uint16(c.pull())
	hi := uint16(c.pull())
	return hi<<8 | lo
}

func (c *CPU) setZN(v uint8) {
	if v == 0 {
		c.P |= FlagZ
	} else {
		c.P &^= FlagZ
	}
	if v&0x80 != 0 {
		c.P |= FlagN
	} else {
		c.P &^= FlagN
	}
}

func (c *CPU) flag(mask uint8) bool { return c.P&mask != 0 }

func (c *CPU) setFlag(mask uint8, v bool) {
	if v {
		c.P |= mask
	} else {
		c.P &^= mask
	}
}

// Snapshot is a pure-value copy of register state, used by the debugger's
// peek pathway and by save-state serialization.
type Snapshot struct {
	A, X, Y, SP uint8
	PC          uint16
	P           uint8
	Cycles      uint64
}

// Snapshot captures register state without touching the bus.
func (c *CPU) Snapshot() Snapshot {
	return Snapshot{A: c.A, X: c.X, Y: c.Y, SP: c.SP, PC: c.PC, P: c.P, Cycles: c.Cycles}
}

// Restore reinstates a previously captured Snapshot, used by save-state load.
func (c *CPU) Restore(s Snapshot) {
	c.A, c.X, c.Y, c.SP, c.PC, c.P, c.Cycles = s.A, s.X, s.Y, s.SP, s.PC, s.P, s.Cycles
}

func logCorruptedOpcode(opcode uint8, pc uint16) {
	glog.Errorf("cpu: unimplemented illegal opcode $%02X at $%04X", opcode, pc)
}
