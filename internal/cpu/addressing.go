package cpu

// AddrMode names one of the 6502's addressing modes.
type AddrMode uint8

const (
	IMP AddrMode = iota // implied, no operand
	ACC                 // operate on the accumulator
	IMM                 // #$nn
	ZP0                 // $nn
	ZPX                 // $nn,X
	ZPY                 // $nn,Y
	ABS                 // $nnnn
	ABX                 // $nnnn,X
	ABY                 // $nnnn,Y
	IND                 // ($nnnn), 6502 page-wrap bug on $xxFF
	IDX                 // ($nn,X)
	IDY                 // ($nn),Y
	REL                 // branch offset
)

// resolveOperand computes the effective address for mode, fetching operand
// bytes from PC as a side effect, and reports whether an indexed read
// crossed a page boundary (the condition that costs the extra cycle on
// ABX/ABY/IDY reads). For ACC/IMP it returns useAcc/neither since the
// instruction operates without a memory operand.
func (c *CPU) resolveOperand(mode AddrMode) (addr uint16, crossed bool, useAcc bool) {
	switch mode {
	case IMP:
		return 0, false, false
	case ACC:
		return 0, false, true
	case IMM:
		addr = c.PC
		c.PC++
		return addr, false, false
	case ZP0:
		return uint16(c.fetch()), false, false
	case ZPX:
		return uint16(c.fetch()+c.X) & 0xFF, false, false
	case ZPY:
		return uint16(c.fetch()+c.Y) & 0xFF, false, false
	case ABS:
		lo := uint16(c.fetch())
		hi := uint16(c.fetch())
		return hi<<8 | lo, false, false
	case ABX:
		base := c.fetchAbs()
		addr = base + uint16(c.X)
		return addr, pageCrossed(base, addr), false
	case ABY:
		base := c.fetchAbs()
		addr = base + uint16(c.Y)
		return addr, pageCrossed(base, addr), false
	case IND:
		ptr := c.fetchAbs()
		// The famous $xxFF page-wrap bug: the high byte is fetched from
		// the start of the same page, not the next page.
		lo := uint16(c.bus.Read(ptr))
		hiAddr := (ptr & 0xFF00) | ((ptr + 1) & 0x00FF)
		hi := uint16(c.bus.Read(hiAddr))
		return hi<<8 | lo, false, false
	case IDX:
		zp := c.fetch() + c.X
		lo := uint16(c.bus.Read(uint16(zp)))
		hi := uint16(c.bus.Read(uint16(zp + 1)))
		return hi<<8 | lo, false, false
	case IDY:
		zp := c.fetch()
		lo := uint16(c.bus.Read(uint16(zp)))
		hi := uint16(c.bus.Read(uint16(zp + 1)))
		base := hi<<8 | lo
		addr = base + uint16(c.Y)
		return addr, pageCrossed(base, addr), false
	case REL:
		off := int8(c.fetch())
		addr = uint16(int32(c.PC) + int32(off))
		return addr, pageCrossed(c.PC, addr), false
	default:
		return 0, false, false
	}
}

func (c *CPU) fetchAbs() uint16 {
	lo := uint16(c.fetch())
	hi := uint16(c.fetch())
	return hi<<8 | lo
}

func pageCrossed(a, b uint16) bool { return a&0xFF00 != b&0xFF00 }

// dummyReadForIndexed performs the documented dummy read that STA/STX/STY and
// every read-modify-write instruction issue on an indexed address before
// the real access, at (base & 0xFF00) | (effective & 0x00FF). It never
// costs an extra cycle beyond the instruction's fixed base count.
func (c *CPU) dummyReadForIndexed(mode AddrMode, addr uint16, x, y uint8) {
	var base uint16
	switch mode {
	case ABX:
		base = addr - uint16(x)
	case ABY, IDY:
		base = addr - uint16(y)
	default:
		return
	}
	c.bus.Read((base & 0xFF00) | (addr & 0x00FF))
}

// operand reads the value an instruction operates on, given the resolved
// address/useAcc from resolveOperand.
func (c *CPU) operand(mode AddrMode, addr uint16, useAcc bool) uint8 {
	if useAcc {
		return c.A
	}
	return c.bus.Read(addr)
}
