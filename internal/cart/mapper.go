package cart

import "github.com/pkg/errors"

import "nesdeck/internal/deckerr"

// boardKind enumerates the concrete mapper boards this deck supports.
// Mapper is modeled as a sum type over this fixed enum rather than an
// interface with heap-allocated implementations, per spec.md's guidance
// that virtual dispatch on every bus access is not worth paying for a
// fixed, small set of board kinds.
type boardKind uint8

const (
	boardNROM boardKind = iota
	boardSxROM
	boardUxROM
	boardCNROM
	boardTxROM
	boardAxROM
	boardMMC2
	boardGxROM
	boardColorDreams
	boardNINA
	boardExROM
)

// Mapper holds every board's state side by side; only the fields for the
// active `kind` are exercised. cpu_read/write, ppu_read/write, mirroring,
// clock, and irq_asserted (spec.md §4.5) are implemented as a switch over
// kind in the methods below.
type Mapper struct {
	cart *Cartridge
	kind boardKind

	mirroring Mirroring

	// NROM / generic fixed-bank fallback
	prgBanks int

	// SxROM (MMC1)
	sxShift    uint8
	sxShiftPos uint8
	sxControl  uint8
	sxCHR0     uint8
	sxCHR1     uint8
	sxPRG      uint8
	sxLastWriteCycle uint64

	// UxROM / CNROM / GxROM / ColorDreams / NINA common bank selects
	prgBank uint8
	chrBank uint8
	prgBankHi uint8 // GxROM/ColorDreams high PRG select

	// TxROM (MMC3)
	txBankSelect uint8
	txPRGMode    uint8
	txCHRMode    uint8
	txRegisters  [8]uint8
	txRAMEnabled bool
	txRAMProtect bool
	txIRQLatch   uint8
	txIRQCounter uint8
	txIRQEnabled bool
	txIRQPending bool
	txIRQReload  bool
	txLastA12    bool
	txA12LowCount int

	// AxROM
	axBank       uint8
	axSingleHalf uint8

	// MMC2 (PxROM)
	mmc2PRGBank    uint8
	mmc2CHR0FD     uint8
	mmc2CHR0FE     uint8
	mmc2CHR1FD     uint8
	mmc2CHR1FE     uint8
	mmc2Latch0     uint8
	mmc2Latch1     uint8

	// ExROM (MMC5)
	exPRGMode, exCHRMode             uint8 // $5100, $5101
	exRAMProtectA, exRAMProtectB     bool  // $5102, $5103
	exRAMMode                        uint8 // $5104
	exNTMirroring                    uint8 // $5105, two bits per quadrant
	exFillTile, exFillAttr           uint8 // $5106, $5107
	exPRGBanks                       [5]uint8
	exCHRBanks                       [12]uint16 // 8 sprite ($5120-27) + 4 bg ($5128-2B)
	exCHRHiBit                       uint8      // $5130
	exLastCHRIsBG                    bool
	exIRQLatch                       uint8 // $5203
	exIRQEnabled, exIRQPending       bool  // $5204
	exIRQInFrame                     bool
	exIRQCounter                     uint16
	exPrevNTAddr                     uint16
	exPrevNTMatch                    uint8
	exPPUIdle                        uint8
	exPPUReadSeen                    bool
	exMultiplicand                   uint8
	exMultResult                     uint16
	exRAM                            [1024]uint8
}

func newMapper(c *Cartridge) (*Mapper, error) {
	m := &Mapper{cart: c, mirroring: c.Mirroring}
	m.prgBanks = len(c.PRGROM) / 0x4000

	switch c.MapperID {
	case 0:
		m.kind = boardNROM
	case 1:
		m.kind = boardSxROM
		m.sxControl = 0x0C
	case 2:
		m.kind = boardUxROM
	case 3:
		m.kind = boardCNROM
	case 4:
		m.kind = boardTxROM
		m.txRAMEnabled = true
	case 7:
		m.kind = boardAxROM
	case 9:
		m.kind = boardMMC2
		m.mmc2Latch0, m.mmc2Latch1 = 0xFE, 0xFE
	case 66:
		m.kind = boardGxROM
	case 11:
		m.kind = boardColorDreams
	case 34:
		m.kind = boardNINA
	case 5:
		m.kind = boardExROM
		m.exPRGMode, m.exCHRMode = 3, 3
		banks8k := len(c.PRGROM) / 0x2000
		if banks8k < 2 {
			banks8k = 2
		}
		m.exPRGBanks[3] = 0x80 | uint8(banks8k-2)
		m.exPRGBanks[4] = 0x80 | uint8(banks8k-1)
	default:
		return nil, errors.Wrapf(deckerr.ErrMapperUnsupported, "mapper id %d", c.MapperID)
	}
	return m, nil
}

// CPURead handles CPU reads of $4020-$FFFF (PRG-RAM and PRG-ROM).
func (m *Mapper) CPURead(addr uint16) uint8 {
	switch m.kind {
	case boardNROM:
		return m.nromCPURead(addr)
	case boardSxROM:
		return m.sxCPURead(addr)
	case boardUxROM:
		return m.uxCPURead(addr)
	case boardCNROM:
		return m.cnCPURead(addr)
	case boardTxROM:
		return m.txCPURead(addr)
	case boardAxROM:
		return m.axCPURead(addr)
	case boardMMC2:
		return m.mmc2CPURead(addr)
	case boardGxROM, boardColorDreams, boardNINA:
		return m.gxCPURead(addr)
	case boardExROM:
		return m.exCPURead(addr)
	}
	return 0
}

// CPUWrite handles CPU writes, including bank-select register writes that
// land in the $8000-$FFFF ROM window.
func (m *Mapper) CPUWrite(addr uint16, v uint8) {
	switch m.kind {
	case boardNROM:
		m.nromCPUWrite(addr, v)
	case boardSxROM:
		m.sxCPUWrite(addr, v)
	case boardUxROM:
		m.uxCPUWrite(addr, v)
	case boardCNROM:
		m.cnCPUWrite(addr, v)
	case boardTxROM:
		m.txCPUWrite(addr, v)
	case boardAxROM:
		m.axCPUWrite(addr, v)
	case boardMMC2:
		m.mmc2CPUWrite(addr, v)
	case boardGxROM, boardColorDreams, boardNINA:
		m.gxCPUWrite(addr, v)
	case boardExROM:
		m.exCPUWrite(addr, v)
	}
}

// PPURead implements ppu.Cart for the $0000-$1FFF pattern-table window.
func (m *Mapper) PPURead(addr uint16) uint8 {
	switch m.kind {
	case boardMMC2:
		return m.mmc2PPURead(addr)
	case boardTxROM:
		return m.txPPURead(addr)
	case boardSxROM:
		return m.sxPPURead(addr)
	case boardExROM:
		return m.exPPURead(addr)
	default:
		return m.genericCHRRead(addr)
	}
}

func (m *Mapper) PPUWrite(addr uint16, v uint8) {
	if m.cart.CHRIsRAM {
		m.cart.CHRROM[int(addr)%len(m.cart.CHRROM)] = v
	}
}

// NotifyPPUAddress is called on every PPU VRAM address change so A12-edge
// boards (MMC3) can count rising edges for their scanline IRQ counter, and
// so ExROM (MMC5) can detect the twice-fetched nametable byte that marks a
// new scanline for its own IRQ counter.
func (m *Mapper) NotifyPPUAddress(addr uint16) {
	switch m.kind {
	case boardTxROM:
		a12 := addr&0x1000 != 0
		if a12 && !m.txLastA12 {
			m.txClockIRQCounter()
		}
		m.txLastA12 = a12
	case boardExROM:
		m.exNotifyPPUAddress(addr)
	}
}

// NametableRead lets ExROM serve $2000-$2FFF out of ExRAM or its fill
// pattern instead of the PPU's own CIRAM; every other board falls through.
func (m *Mapper) NametableRead(addr uint16) (uint8, bool) {
	if m.kind != boardExROM {
		return 0, false
	}
	switch m.exNametableMode(addr) {
	case 2:
		return m.exRAM[addr%0x400], true
	case 3:
		if addr%0x400 < 0x3C0 {
			return m.exFillTile, true
		}
		return m.exFillAttr, true
	default:
		return 0, false
	}
}

// NametableWrite is ExROM's write-side counterpart to NametableRead.
func (m *Mapper) NametableWrite(addr uint16, v uint8) bool {
	if m.kind != boardExROM {
		return false
	}
	switch m.exNametableMode(addr) {
	case 2:
		m.exRAM[addr%0x400] = v
		return true
	case 3:
		return true
	default:
		return false
	}
}

func (m *Mapper) exNametableMode(addr uint16) uint8 {
	quadrant := ((addr - 0x2000) % 0x1000) / 0x400
	return (m.exNTMirroring >> (2 * quadrant)) & 0x03
}

func (m *Mapper) MirrorNametable(addr uint16) uint16 {
	if m.kind == boardExROM {
		addr &= 0x0FFF
		if m.exNametableMode(0x2000+addr)&0x01 != 0 {
			return 0x400 + addr&0x3FF
		}
		return addr & 0x3FF
	}

	mirror := m.mirroring
	if m.kind == boardAxROM {
		if m.axSingleHalf == 0 {
			mirror = MirrorSingleScreenA
		} else {
			mirror = MirrorSingleScreenB
		}
	}

	addr &= 0x0FFF
	nt := (addr >> 10) & 3
	offset := addr & 0x3FF

	switch mirror {
	case MirrorHorizontal:
		if nt >= 2 {
			return 0x400 + offset
		}
		return offset
	case MirrorVertical:
		if nt == 1 || nt == 3 {
			return 0x400 + offset
		}
		return offset
	case MirrorSingleScreenA:
		return offset
	case MirrorSingleScreenB:
		return 0x400 + offset
	case MirrorFourScreen:
		return uint16(nt)*0x400 + offset
	}
	return offset
}

// IRQAsserted reports whether the board wants to pull the CPU's IRQ line
// low right now (MMC3's and MMC5's scanline counters; all other boards
// never assert).
func (m *Mapper) IRQAsserted() bool {
	switch m.kind {
	case boardTxROM:
		return m.txIRQPending
	case boardExROM:
		return m.exIRQEnabled && m.exIRQPending
	default:
		return false
	}
}

// ClockCPUCycle advances boards that run a counter on the flat CPU-cycle
// schedule rather than off PPU bus activity. Only ExROM (MMC5) needs this,
// to notice when rendering has stopped driving PPU fetches and drop its
// in-frame IRQ state.
func (m *Mapper) ClockCPUCycle() {
	if m.kind != boardExROM {
		return
	}
	if m.exPPUReadSeen {
		m.exPPUIdle = 0
	} else if m.exIRQInFrame {
		m.exPPUIdle++
		if m.exPPUIdle >= 3 {
			m.exPPUIdle = 0
			m.exIRQInFrame = false
		}
	}
	m.exPPUReadSeen = false
}

func (m *Mapper) prgBankOffset(bank int, windowSize int, addr uint16, base uint16) uint8 {
	n := len(m.cart.PRGROM)
	off := bank*windowSize + int(addr-base)
	if n == 0 {
		return 0
	}
	return m.cart.PRGROM[off%n]
}

func (m *Mapper) chrBankOffset(bank int, windowSize int, addr uint16, base uint16) uint8 {
	n := len(m.cart.CHRROM)
	if n == 0 {
		return 0
	}
	off := bank*windowSize + int(addr-base)
	return m.cart.CHRROM[off%n]
}

func (m *Mapper) genericCHRRead(addr uint16) uint8 {
	switch m.kind {
	case boardCNROM, boardGxROM, boardColorDreams, boardNINA:
		return m.chrBankOffset(int(m.chrBank), 0x2000, addr, 0)
	default:
		n := len(m.cart.CHRROM)
		if n == 0 {
			return 0
		}
		return m.cart.CHRROM[int(addr)%n]
	}
}

// MapperSnapshot captures the full union of board state for save states.
type MapperSnapshot struct {
	Kind      boardKind
	Mirroring Mirroring
	SxShift, SxShiftPos, SxControl, SxCHR0, SxCHR1, SxPRG uint8
	PRGBank, CHRBank, PRGBankHi                           uint8
	TxBankSelect, TxPRGMode, TxCHRMode                    uint8
	TxRegisters                                           [8]uint8
	TxRAMEnabled, TxRAMProtect                            bool
	TxIRQLatch, TxIRQCounter                              uint8
	TxIRQEnabled, TxIRQPending, TxIRQReload, TxLastA12     bool
	AxBank, AxSingleHalf                                   uint8
	MMC2PRGBank, MMC2CHR0FD, MMC2CHR0FE, MMC2CHR1FD, MMC2CHR1FE uint8
	MMC2Latch0, MMC2Latch1                                      uint8

	ExPRGMode, ExCHRMode                     uint8
	ExRAMProtectA, ExRAMProtectB             bool
	ExRAMMode, ExNTMirroring                 uint8
	ExFillTile, ExFillAttr                   uint8
	ExPRGBanks                               [5]uint8
	ExCHRBanks                               [12]uint16
	ExCHRHiBit                               uint8
	ExLastCHRIsBG                            bool
	ExIRQLatch                                uint8
	ExIRQEnabled, ExIRQPending, ExIRQInFrame bool
	ExIRQCounter                              uint16
	ExPrevNTAddr                              uint16
	ExPrevNTMatch                             uint8
	ExPPUIdle                                 uint8
	ExPPUReadSeen                             bool
	ExMultiplicand                            uint8
	ExMultResult                              uint16
	ExRAM                                     [1024]uint8
}

func (m *Mapper) Snapshot() MapperSnapshot {
	return MapperSnapshot{
		Kind: m.kind, Mirroring: m.mirroring,
		SxShift: m.sxShift, SxShiftPos: m.sxShiftPos, SxControl: m.sxControl,
		SxCHR0: m.sxCHR0, SxCHR1: m.sxCHR1, SxPRG: m.sxPRG,
		PRGBank: m.prgBank, CHRBank: m.chrBank, PRGBankHi: m.prgBankHi,
		TxBankSelect: m.txBankSelect, TxPRGMode: m.txPRGMode, TxCHRMode: m.txCHRMode,
		TxRegisters: m.txRegisters, TxRAMEnabled: m.txRAMEnabled, TxRAMProtect: m.txRAMProtect,
		TxIRQLatch: m.txIRQLatch, TxIRQCounter: m.txIRQCounter, TxIRQEnabled: m.txIRQEnabled,
		TxIRQPending: m.txIRQPending, TxIRQReload: m.txIRQReload, TxLastA12: m.txLastA12,
		AxBank: m.axBank, AxSingleHalf: m.axSingleHalf,
		MMC2PRGBank: m.mmc2PRGBank, MMC2CHR0FD: m.mmc2CHR0FD, MMC2CHR0FE: m.mmc2CHR0FE,
		MMC2CHR1FD: m.mmc2CHR1FD, MMC2CHR1FE: m.mmc2CHR1FE,
		MMC2Latch0: m.mmc2Latch0, MMC2Latch1: m.mmc2Latch1,
		ExPRGMode: m.exPRGMode, ExCHRMode: m.exCHRMode,
		ExRAMProtectA: m.exRAMProtectA, ExRAMProtectB: m.exRAMProtectB,
		ExRAMMode: m.exRAMMode, ExNTMirroring: m.exNTMirroring,
		ExFillTile: m.exFillTile, ExFillAttr: m.exFillAttr,
		ExPRGBanks: m.exPRGBanks, ExCHRBanks: m.exCHRBanks,
		ExCHRHiBit: m.exCHRHiBit, ExLastCHRIsBG: m.exLastCHRIsBG,
		ExIRQLatch: m.exIRQLatch, ExIRQEnabled: m.exIRQEnabled,
		ExIRQPending: m.exIRQPending, ExIRQInFrame: m.exIRQInFrame,
		ExIRQCounter: m.exIRQCounter, ExPrevNTAddr: m.exPrevNTAddr,
		ExPrevNTMatch: m.exPrevNTMatch, ExPPUIdle: m.exPPUIdle,
		ExPPUReadSeen: m.exPPUReadSeen, ExMultiplicand: m.exMultiplicand,
		ExMultResult: m.exMultResult, ExRAM: m.exRAM,
	}
}

func (m *Mapper) Restore(s MapperSnapshot) {
	m.kind, m.mirroring = s.Kind, s.Mirroring
	m.sxShift, m.sxShiftPos, m.sxControl = s.SxShift, s.SxShiftPos, s.SxControl
	m.sxCHR0, m.sxCHR1, m.sxPRG = s.SxCHR0, s.SxCHR1, s.SxPRG
	m.prgBank, m.chrBank, m.prgBankHi = s.PRGBank, s.CHRBank, s.PRGBankHi
	m.txBankSelect, m.txPRGMode, m.txCHRMode = s.TxBankSelect, s.TxPRGMode, s.TxCHRMode
	m.txRegisters = s.TxRegisters
	m.txRAMEnabled, m.txRAMProtect = s.TxRAMEnabled, s.TxRAMProtect
	m.txIRQLatch, m.txIRQCounter, m.txIRQEnabled = s.TxIRQLatch, s.TxIRQCounter, s.TxIRQEnabled
	m.txIRQPending, m.txIRQReload, m.txLastA12 = s.TxIRQPending, s.TxIRQReload, s.TxLastA12
	m.axBank, m.axSingleHalf = s.AxBank, s.AxSingleHalf
	m.mmc2PRGBank = s.MMC2PRGBank
	m.mmc2CHR0FD, m.mmc2CHR0FE = s.MMC2CHR0FD, s.MMC2CHR0FE
	m.mmc2CHR1FD, m.mmc2CHR1FE = s.MMC2CHR1FD, s.MMC2CHR1FE
	m.mmc2Latch0, m.mmc2Latch1 = s.MMC2Latch0, s.MMC2Latch1
	m.exPRGMode, m.exCHRMode = s.ExPRGMode, s.ExCHRMode
	m.exRAMProtectA, m.exRAMProtectB = s.ExRAMProtectA, s.ExRAMProtectB
	m.exRAMMode, m.exNTMirroring = s.ExRAMMode, s.ExNTMirroring
	m.exFillTile, m.exFillAttr = s.ExFillTile, s.ExFillAttr
	m.exPRGBanks, m.exCHRBanks = s.ExPRGBanks, s.ExCHRBanks
	m.exCHRHiBit, m.exLastCHRIsBG = s.ExCHRHiBit, s.ExLastCHRIsBG
	m.exIRQLatch, m.exIRQEnabled = s.ExIRQLatch, s.ExIRQEnabled
	m.exIRQPending, m.exIRQInFrame = s.ExIRQPending, s.ExIRQInFrame
	m.exIRQCounter, m.exPrevNTAddr = s.ExIRQCounter, s.ExPrevNTAddr
	m.exPrevNTMatch, m.exPPUIdle = s.ExPrevNTMatch, s.ExPPUIdle
	m.exPPUReadSeen, m.exMultiplicand = s.ExPPUReadSeen, s.ExMultiplicand
	m.exMultResult, m.exRAM = s.ExMultResult, s.ExRAM
}
