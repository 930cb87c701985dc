package input

const zapperTriggerCycles = 1789773 / 10 // ~100ms at the NTSC CPU rate

// FrameSource lets the Zapper sample pixel brightness near its aim point
// without depending on the ppu package directly.
type FrameSource interface {
	PixelBrightness(x, y int) uint8
}

// Zapper models the NES light gun: a trigger latch that stays "pulled"
// for ~100ms, and a photodiode that reports light only for pixels the
// CRT beam has recently redrawn near the aim point (original_source's
// input.rs light_sense).
type Zapper struct {
	x, y      int
	radius    int
	triggered int
	connected bool
}

func NewZapper() *Zapper {
	return &Zapper{radius: 3}
}

func (z *Zapper) Aim(x, y int)        { z.x, z.y = x, y }
func (z *Zapper) SetConnected(c bool) { z.connected = c }
func (z *Zapper) Connected() bool     { return z.connected }

func (z *Zapper) Trigger() {
	if z.triggered <= 0 {
		z.triggered = zapperTriggerCycles
	}
}

// Clock decrements the trigger latch by one CPU cycle.
func (z *Zapper) Clock() {
	if z.triggered > 0 {
		z.triggered--
	}
}

// Read samples the light sensor against the PPU's current beam position
// (scanline, cycle), since FrameSource only exposes pixel brightness.
func (z *Zapper) Read(scanline, cycle int, frame FrameSource) uint8 {
	var v uint8
	if z.triggered > 0 {
		v |= 0x10
	}
	v |= z.lightSense(scanline, cycle, frame)
	return v
}

func (z *Zapper) lightSense(scanline, cycle int, frame FrameSource) uint8 {
	const width, height = 256, 240
	if z.x < 0 || z.y < 0 || frame == nil {
		return 0x08
	}
	for y := z.y - z.radius; y <= z.y+z.radius; y++ {
		if y < 0 || y >= height {
			continue
		}
		for x := z.x - z.radius; x <= z.x+z.radius; x++ {
			if x < 0 || x >= width {
				continue
			}
			behindBeam := scanline >= y && scanline-y <= 20 && (scanline != y || cycle > x)
			if behindBeam && frame.PixelBrightness(x, y) >= 85 {
				return 0x00
			}
		}
	}
	return 0x08
}

func (z *Zapper) Reset() { z.triggered = 0 }
