package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeFrame struct {
	bright map[[2]int]uint8
}

func (f fakeFrame) PixelBrightness(x, y int) uint8 { return f.bright[[2]int{x, y}] }

func TestZapperTriggerLatchDecaysOverTime(t *testing.T) {
	z := NewZapper()
	z.Trigger()

	v := z.Read(0, 0, fakeFrame{})
	assert.NotZero(t, v&0x10, "trigger bit should be set immediately after Trigger")

	for i := 0; i < zapperTriggerCycles; i++ {
		z.Clock()
	}
	v = z.Read(0, 0, fakeFrame{})
	assert.Zero(t, v&0x10, "trigger bit should clear once the latch decays")
}

func TestZapperLightSenseDetectsBrightPixelBehindBeam(t *testing.T) {
	z := NewZapper()
	z.Aim(100, 50)

	frame := fakeFrame{bright: map[[2]int]uint8{{100, 50}: 200}}

	// Beam already past (100,50) within the 20-scanline detection window.
	v := z.lightSense(55, 10, frame)
	assert.Zero(t, v, "bright pixel recently drawn by the beam should report light (bit clear)")
}

func TestZapperLightSenseDarkWhenBeamHasNotReachedPixel(t *testing.T) {
	z := NewZapper()
	z.Aim(100, 50)

	frame := fakeFrame{bright: map[[2]int]uint8{{100, 50}: 200}}

	v := z.lightSense(40, 10, frame) // beam hasn't reached scanline 50 yet
	assert.Equal(t, uint8(0x08), v)
}

func TestZapperUnaimedReportsDark(t *testing.T) {
	z := NewZapper()
	v := z.lightSense(100, 100, fakeFrame{})
	assert.Equal(t, uint8(0x08), v)
}
