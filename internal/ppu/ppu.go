// Package ppu implements the Ricoh 2C02 picture processing unit: the
// scanline/cycle state machine, background and sprite pipelines, OAM, and
// the nametable/palette VRAM with mapper-controlled mirroring.
package ppu

// Mirroring is resolved per-access through Cart.MirrorNametable so a mapper
// (e.g. MMC1, MMC3) can change it mid-frame, per spec.md §3's invariant 3.
type Mirroring uint8

const (
	MirrorHorizontal Mirroring = iota
	MirrorVertical
	MirrorSingleScreenA
	MirrorSingleScreenB
	MirrorFourScreen
)

// Cart is the PPU's view of the cartridge: CHR pattern-table access and
// nametable mirroring, both of which a mapper may change at runtime.
type Cart interface {
	PPURead(addr uint16) uint8
	PPUWrite(addr uint16, value uint8)
	// MirrorNametable maps a $2000-$2FFF address to an index into the
	// PPU's 4 KiB CIRAM-and-then-some buffer, honoring the current
	// mirroring mode (four-screen boards use the full 4 KiB as distinct
	// nametables instead of mirroring into 2 KiB of CIRAM).
	MirrorNametable(addr uint16) uint16
	// NotifyPPUAddress is called on every internal VRAM/pattern address
	// the PPU puts on its bus, so an MMC3-class mapper can detect A12
	// rising edges for its scanline IRQ counter.
	NotifyPPUAddress(addr uint16)
	// NametableRead/NametableWrite let a mapper serve a $2000-$2FFF access
	// directly out of its own memory (MMC5's ExRAM-as-nametable and
	// fill-mode) instead of the PPU's CIRAM. ok=false falls through to
	// the normal CIRAM path via MirrorNametable.
	NametableRead(addr uint16) (v uint8, ok bool)
	NametableWrite(addr uint16, v uint8) (ok bool)
}

// Region selects NTSC/PAL/Dendy frame geometry (spec.md §3's Region field;
// only NTSC is cycle-accurate per spec.md's Non-goals).
type Region uint8

const (
	NTSC Region = iota
	PAL
	Dendy
)

func (r Region) scanlinesPerFrame() int {
	switch r {
	case PAL:
		return 312
	default:
		return 262
	}
}

// PPU is the 2C02 core.
type PPU struct {
	ctrl   uint8 // $2000
	mask   uint8 // $2001
	status uint8 // $2002 (bits 7/6/5 only: V, S, O)

	oamAddr uint8

	v, t uint16 // 15-bit VRAM address / temp address (Loopy registers)
	x    uint8  // fine X scroll (3 bits)
	w    bool   // write toggle

	readBuffer uint8

	OAM          [256]uint8
	secondaryOAM [32]uint8
	spriteCount  int
	spriteIdx    [8]uint8 // original OAM index of each secondary-OAM entry
	sprPatLo     [8]uint8
	sprPatHi     [8]uint8
	sprAttr      [8]uint8
	sprX         [8]uint8
	sprite0InSec bool

	nametables [0x1000]uint8 // 4 KiB: enough for four-screen boards
	palette    [32]uint8

	Scanline int
	Cycle    int
	Frame    uint64
	oddFrame bool
	Region   Region

	// Background fetch pipeline state, latched every 8 dots.
	ntLatch, atLatch, bgLoLatch, bgHiLatch uint8
	bgShiftLo, bgShiftHi                   uint16
	atShiftLo, atShiftHi                   uint16

	FrameBuffer [256 * 240 * 4]uint8

	nmiOutput   bool // CTRL bit 7
	nmiOccurred bool // internal vblank flag mirror
	nmiPrev     bool

	frameDone bool

	cart Cart
}

// New creates an unconfigured PPU; call SetCart before Reset/Clock.
func New() *PPU { return &PPU{Scanline: 261, Region: NTSC} }

// SetCart wires the PPU to its cartridge/mapper.
func (p *PPU) SetCart(c Cart) { p.cart = c }

// Reset restores power-on register state.
func (p *PPU) Reset() {
	p.ctrl, p.mask = 0, 0
	p.status = 0
	p.oamAddr = 0
	p.v, p.t, p.x, p.w = 0, 0, 0, false
	p.readBuffer = 0
	p.Scanline = 261
	p.Cycle = 0
	p.Frame = 0
	p.oddFrame = false
	p.nmiOutput, p.nmiOccurred, p.nmiPrev = false, false, false
	p.frameDone = false
	for i := range p.OAM {
		p.OAM[i] = 0
	}
}

// --- CPU-visible register interface ($2000-$2007, mirrored every 8 bytes) ---

// ReadRegister services a CPU read with side effects (spec.md §4.3).
func (p *PPU) ReadRegister(reg uint16) uint8 {
	switch reg & 7 {
	case 2: // PPUSTATUS
		v := p.status & 0xE0
		p.status &^= 0x80 // clear V
		p.nmiOccurred = false
		p.w = false
		return v
	case 4: // OAMDATA
		return p.OAM[p.oamAddr]
	case 7: // PPUDATA
		return p.readData()
	default:
		return 0
	}
}

// Peek mirrors ReadRegister but performs no side effects, for the
// debugger/disassembler pathway (spec.md invariant 2).
func (p *PPU) Peek(reg uint16) uint8 {
	switch reg & 7 {
	case 2:
		return p.status & 0xE0
	case 4:
		return p.OAM[p.oamAddr]
	case 7:
		return p.readBuffer
	default:
		return 0
	}
}

// WriteRegister services a CPU write to a PPU register.
func (p *PPU) WriteRegister(reg uint16, val uint8) {
	switch reg & 7 {
	case 0: // PPUCTRL
		wasNMI := p.nmiOutput
		p.ctrl = val
		p.t = (p.t & 0xF3FF) | (uint16(val&0x03) << 10)
		p.nmiOutput = val&0x80 != 0
		// Quirk: enabling NMI while the vblank flag is already set fires
		// NMI immediately rather than waiting for the next vblank edge.
		if !wasNMI && p.nmiOutput && p.nmiOccurred {
			p.nmiPrev = false
		}
	case 1: // PPUMASK
		p.mask = val
	case 3: // OAMADDR
		p.oamAddr = val
	case 4: // OAMDATA
		p.OAM[p.oamAddr] = val
		p.oamAddr++
	case 5: // PPUSCROLL
		if !p.w {
			p.t = (p.t & 0xFFE0) | uint16(val>>3)
			p.x = val & 0x07
		} else {
			p.t = (p.t & 0x8FFF) | (uint16(val&0x07) << 12)
			p.t = (p.t & 0xFC1F) | (uint16(val&0xF8) << 2)
		}
		p.w = !p.w
	case 6: // PPUADDR
		if !p.w {
			p.t = (p.t & 0x00FF) | (uint16(val&0x3F) << 8)
		} else {
			p.t = (p.t & 0xFF00) | uint16(val)
			p.v = p.t
		}
		p.w = !p.w
	case 7: // PPUDATA
		p.writeData(val)
	}
}

func (p *PPU) vramIncrement() uint16 {
	if p.ctrl&0x04 != 0 {
		return 32
	}
	return 1
}

func (p *PPU) readData() uint8 {
	addr := p.v & 0x3FFF
	var ret uint8
	if addr >= 0x3F00 {
		ret = p.readPalette(addr)
		p.readBuffer = p.busRead(addr - 0x1000)
	} else {
		ret = p.readBuffer
		p.readBuffer = p.busRead(addr)
	}
	p.v += p.vramIncrement()
	return ret
}

func (p *PPU) writeData(val uint8) {
	addr := p.v & 0x3FFF
	if addr >= 0x3F00 {
		p.writePalette(addr, val)
	} else {
		p.busWrite(addr, val)
	}
	p.v += p.vramIncrement()
}

func (p *PPU) busRead(addr uint16) uint8 {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		p.cart.NotifyPPUAddress(addr)
		return p.cart.PPURead(addr)
	case addr < 0x3F00:
		p.cart.NotifyPPUAddress(addr)
		if v, ok := p.cart.NametableRead(addr); ok {
			return v
		}
		return p.nametables[p.cart.MirrorNametable(addr)&0x0FFF]
	default:
		return p.readPalette(addr)
	}
}

func (p *PPU) busWrite(addr uint16, val uint8) {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		p.cart.NotifyPPUAddress(addr)
		p.cart.PPUWrite(addr, val)
	case addr < 0x3F00:
		p.cart.NotifyPPUAddress(addr)
		if p.cart.NametableWrite(addr, val) {
			return
		}
		p.nametables[p.cart.MirrorNametable(addr)&0x0FFF] = val
	default:
		p.writePalette(addr, val)
	}
}

func (p *PPU) paletteIndex(addr uint16) uint16 {
	idx := addr & 0x1F
	// $10/$14/$18/$1C mirror $00/$04/$08/$0C (spec.md §3).
	if idx&0x13 == 0x10 {
		idx &= 0x0F
	}
	return idx
}

func (p *PPU) readPalette(addr uint16) uint8 { return p.palette[p.paletteIndex(addr)] }
func (p *PPU) writePalette(addr uint16, v uint8) {
	p.palette[p.paletteIndex(addr)] = v & 0x3F
}

// renderingEnabled reports whether background or sprites are enabled.
func (p *PPU) renderingEnabled() bool { return p.mask&0x18 != 0 }

// SpriteHeight returns 8 or 16 depending on CTRL bit 5.
func (p *PPU) spriteHeight() int {
	if p.ctrl&0x20 != 0 {
		return 16
	}
	return 8
}

// FrameComplete reports and clears the end-of-frame flag; the deck's
// ClockFrame loop uses this to know when to stop stepping (spec.md §4.6).
func (p *PPU) FrameComplete() bool {
	if p.frameDone {
		p.frameDone = false
		return true
	}
	return false
}

// NMIAsserted reports the CPU-visible NMI line: vblank flag AND NMI enable.
func (p *PPU) NMIAsserted() bool { return p.nmiOccurred && p.nmiOutput }

// Clock advances the PPU exactly one dot (one PPU cycle = 1/3 CPU cycle).
func (p *PPU) Clock() {
	p.tick()
	p.Cycle++
	if p.Cycle > 340 {
		p.Cycle = 0
		p.Scanline++
		lastLine := p.Region.scanlinesPerFrame() - 1
		if p.Scanline > lastLine {
			p.Scanline = 0
			p.Frame++
			p.oddFrame = !p.oddFrame
		}
	}
	// Odd-frame skipped dot: pre-render line drops dot 339->340 directly
	// to 0,0 when rendering is enabled.
	if p.Scanline == lastPreRenderLine(p.Region) && p.Cycle == 339 && p.oddFrame && p.renderingEnabled() {
		p.Cycle = 0
		p.Scanline = 0
		p.Frame++
		p.oddFrame = !p.oddFrame
	}
	p.tick()
}

func lastPreRenderLine(r Region) int { return r.scanlinesPerFrame() - 1 }

func (p *PPU) tick() {
	sl, cyc := p.Scanline, p.Cycle
	preRender := sl == lastPreRenderLine(p.Region)
	visible := sl >= 0 && sl <= 239

	if preRender && cyc == 1 {
		p.status &^= 0xE0 // clear V, S, O
		p.nmiOccurred = false
	}
	if sl == 241 && cyc == 1 {
		p.status |= 0x80
		p.nmiOccurred = true
		p.frameDone = true
	}

	if !p.renderingEnabled() {
		return
	}

	if visible || preRender {
		p.renderStep(cyc, visible, sl)
	}
	if preRender && cyc >= 280 && cyc <= 304 {
		// Copy vertical bits from t to v.
		p.v = (p.v & 0x841F) | (p.t & 0x7BE0)
	}
	if visible && cyc == 256 {
		p.evaluateSprites(sl)
	}
	if (visible || preRender) && cyc == 257 {
		p.oamAddr = 0
	}
}

func (p *PPU) renderStep(cyc int, visible bool, sl int) {
	fetchPhase := (cyc >= 1 && cyc <= 256) || (cyc >= 321 && cyc <= 336)
	if fetchPhase {
		p.shiftBackground()
		switch (cyc - 1) % 8 {
		case 0:
			p.loadBackgroundShifters()
			p.ntLatch = p.busRead(0x2000 | (p.v & 0x0FFF))
		case 2:
			addr := 0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
			at := p.busRead(addr)
			shift := ((p.v >> 4) & 4) | (p.v & 2)
			p.atLatch = (at >> shift) & 0x03
		case 4:
			base := uint16(0)
			if p.ctrl&0x10 != 0 {
				base = 0x1000
			}
			fineY := (p.v >> 12) & 7
			p.bgLoLatch = p.busRead(base + uint16(p.ntLatch)*16 + fineY)
		case 6:
			base := uint16(0)
			if p.ctrl&0x10 != 0 {
				base = 0x1000
			}
			fineY := (p.v >> 12) & 7
			p.bgHiLatch = p.busRead(base + uint16(p.ntLatch)*16 + fineY + 8)
		case 7:
			p.incrementCoarseX()
		}
	}
	if cyc == 337 || cyc == 339 {
		// Unused nametable fetches; MMC5 counts scanlines off the repeat.
		p.busRead(0x2000 | (p.v & 0x0FFF))
	}
	if cyc == 256 {
		p.incrementY()
	}
	if cyc == 257 {
		// Copy horizontal bits from t to v.
		p.v = (p.v & 0xFBE0) | (p.t & 0x041F)
	}
	if visible && cyc >= 1 && cyc <= 256 {
		p.emitPixel(cyc-1, sl)
	}
	if cyc == 257 && visible {
		p.fetchSpritePatterns(sl)
	}
}

func (p *PPU) loadBackgroundShifters() {
	p.bgShiftLo = (p.bgShiftLo & 0xFF00) | uint16(p.bgLoLatch)
	p.bgShiftHi = (p.bgShiftHi & 0xFF00) | uint16(p.bgHiLatch)
	lo, hi := uint16(0), uint16(0)
	if p.atLatch&1 != 0 {
		lo = 0xFF
	}
	if p.atLatch&2 != 0 {
		hi = 0xFF
	}
	p.atShiftLo = (p.atShiftLo & 0xFF00) | lo
	p.atShiftHi = (p.atShiftHi & 0xFF00) | hi
}

func (p *PPU) shiftBackground() {
	p.bgShiftLo <<= 1
	p.bgShiftHi <<= 1
	p.atShiftLo <<= 1
	p.atShiftHi <<= 1
}

func (p *PPU) incrementCoarseX() {
	if p.v&0x001F == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

func (p *PPU) incrementY() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	p.v = (p.v & 0xFC1F) | (y << 5)
}

// --- sprite pipeline ---

func (p *PPU) evaluateSprites(sl int) {
	for i := range p.secondaryOAM {
		p.secondaryOAM[i] = 0xFF
	}
	p.spriteCount = 0
	p.sprite0InSec = false
	h := p.spriteHeight()
	n := 0
	i := 0
	for ; i < 64 && p.spriteCount < 8; i++ {
		y := int(p.OAM[i*4])
		if sl < y || sl >= y+h {
			continue
		}
		base := p.spriteCount * 4
		copy(p.secondaryOAM[base:base+4], p.OAM[i*4:i*4+4])
		p.spriteIdx[p.spriteCount] = uint8(i)
		if i == 0 {
			p.sprite0InSec = true
		}
		p.spriteCount++
		n++
	}
	// Sprite overflow: the hardware's buggy diagonal search continues
	// scanning with a non-reset byte index after 8 matches are found.
	if n >= 8 {
		m := 0
		for i < 64 {
			y := int(p.OAM[i*4+m])
			if sl >= y && sl < y+h {
				p.status |= 0x20
				break
			}
			i++
			m = (m + 1) & 3
		}
	}
}

func (p *PPU) fetchSpritePatterns(sl int) {
	h := p.spriteHeight()
	for i := 0; i < p.spriteCount; i++ {
		y := p.secondaryOAM[i*4]
		tile := p.secondaryOAM[i*4+1]
		attr := p.secondaryOAM[i*4+2]
		x := p.secondaryOAM[i*4+3]
		row := sl - int(y)
		flipV := attr&0x80 != 0
		flipH := attr&0x40 != 0
		if flipV {
			row = h - 1 - row
		}
		var base, index uint16
		if h == 16 {
			base = uint16(tile&1) * 0x1000
			index = uint16(tile &^ 1)
			if row >= 8 {
				index++
				row -= 8
			}
		} else {
			base = 0
			if p.ctrl&0x08 != 0 {
				base = 0x1000
			}
			index = uint16(tile)
		}
		lo := p.busRead(base + index*16 + uint16(row))
		hi := p.busRead(base + index*16 + uint16(row) + 8)
		if flipH {
			lo = reverseBits(lo)
			hi = reverseBits(hi)
		}
		p.sprPatLo[i] = lo
		p.sprPatHi[i] = hi
		p.sprAttr[i] = attr
		p.sprX[i] = x
	}
}

func reverseBits(b uint8) uint8 {
	var r uint8
	for i := 0; i < 8; i++ {
		r <<= 1
		r |= b & 1
		b >>= 1
	}
	return r
}

func (p *PPU) emitPixel(x, sl int) {
	bgPixel, bgPal := p.backgroundPixelAt(x)
	sprPixel, sprPal, sprPriority, isSprite0 := p.spritePixelAt(x)

	leftMask := x < 8
	if leftMask && p.mask&0x02 == 0 {
		bgPixel = 0
	}
	if leftMask && p.mask&0x04 == 0 {
		sprPixel = 0
	}
	if p.mask&0x08 == 0 {
		bgPixel = 0
	}
	if p.mask&0x10 == 0 {
		sprPixel = 0
	}

	var palIdx uint16
	switch {
	case bgPixel == 0 && sprPixel == 0:
		palIdx = 0x3F00
	case bgPixel == 0:
		palIdx = 0x3F10 + uint16(sprPal)*4 + uint16(sprPixel)
	case sprPixel == 0:
		palIdx = 0x3F00 + uint16(bgPal)*4 + uint16(bgPixel)
	case sprPriority:
		palIdx = 0x3F00 + uint16(bgPal)*4 + uint16(bgPixel)
	default:
		palIdx = 0x3F10 + uint16(sprPal)*4 + uint16(sprPixel)
	}

	if bgPixel != 0 && sprPixel != 0 && isSprite0 && x != 255 {
		p.status |= 0x40
	}

	idx := p.readPalette(palIdx)
	off := (sl*256 + x) * 4
	rgba(idx, p.FrameBuffer[off:off+4])
}

func (p *PPU) backgroundPixelAt(x int) (pixel, attr uint8) {
	shift := uint(15 - p.x)
	lo := uint8((p.bgShiftLo >> shift) & 1)
	hi := uint8((p.bgShiftHi >> shift) & 1)
	pixel = hi<<1 | lo
	aLo := uint8((p.atShiftLo >> shift) & 1)
	aHi := uint8((p.atShiftHi >> shift) & 1)
	attr = aHi<<1 | aLo
	return pixel, attr
}

func (p *PPU) spritePixelAt(x int) (pixel, pal uint8, priority bool, isSprite0 bool) {
	for i := 0; i < p.spriteCount; i++ {
		off := x - int(p.sprX[i])
		if off < 0 || off > 7 {
			continue
		}
		lo := (p.sprPatLo[i] >> uint(7-off)) & 1
		hi := (p.sprPatHi[i] >> uint(7-off)) & 1
		px := hi<<1 | lo
		if px == 0 {
			continue
		}
		attr := p.sprAttr[i]
		return px, attr & 0x03, attr&0x20 != 0, p.sprite0InSec && p.spriteIdx[i] == 0 && i == 0
	}
	return 0, 0, false, false
}

// Snapshot captures PPU state for save-state serialization.
type Snapshot struct {
	Ctrl, Mask, Status, OAMAddr uint8
	V, T                        uint16
	X                           uint8
	W                           bool
	ReadBuffer                  uint8
	OAM                         [256]uint8
	Nametables                  [0x1000]uint8
	Palette                     [32]uint8
	Scanline, Cycle             int
	Frame                       uint64
	OddFrame                    bool
	NMIOutput, NMIOccurred      bool
}

func (p *PPU) Snapshot() Snapshot {
	return Snapshot{
		Ctrl: p.ctrl, Mask: p.mask, Status: p.status, OAMAddr: p.oamAddr,
		V: p.v, T: p.t, X: p.x, W: p.w, ReadBuffer: p.readBuffer,
		OAM: p.OAM, Nametables: p.nametables, Palette: p.palette,
		Scanline: p.Scanline, Cycle: p.Cycle, Frame: p.Frame, OddFrame: p.oddFrame,
		NMIOutput: p.nmiOutput, NMIOccurred: p.nmiOccurred,
	}
}

func (p *PPU) Restore(s Snapshot) {
	p.ctrl, p.mask, p.status, p.oamAddr = s.Ctrl, s.Mask, s.Status, s.OAMAddr
	p.v, p.t, p.x, p.w = s.V, s.T, s.X, s.W
	p.readBuffer = s.ReadBuffer
	p.OAM, p.nametables, p.palette = s.OAM, s.Nametables, s.Palette
	p.Scanline, p.Cycle, p.Frame, p.oddFrame = s.Scanline, s.Cycle, s.Frame, s.OddFrame
	p.nmiOutput, p.nmiOccurred = s.NMIOutput, s.NMIOccurred
}

// MarkFrameDone sets the end-of-frame flag that FrameComplete reports.
// tick sets the same flag itself at scanline 241 dot 1.
func (p *PPU) MarkFrameDone() { p.frameDone = true }

// PixelBrightness returns the luma of the pixel last written to the frame
// buffer at (x, y), used by the Zapper's light sensor.
func (p *PPU) PixelBrightness(x, y int) uint8 {
	if x < 0 || x >= 256 || y < 0 || y >= 240 {
		return 0
	}
	off := (y*256 + x) * 4
	r, g, b := p.FrameBuffer[off], p.FrameBuffer[off+1], p.FrameBuffer[off+2]
	return uint8((uint16(r)*299 + uint16(g)*587 + uint16(b)*114) / 1000)
}
