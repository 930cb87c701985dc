package bus

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nromROM builds a minimal but valid NROM (mapper 0) iNES image whose reset
// vector points at a single infinite JMP loop, enough to exercise power-on
// and a handful of frames without crashing into an illegal opcode.
func nromROM() []byte {
	header := []byte{'N', 'E', 'S', 0x1A, 2, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	prg := make([]byte, 32768)
	// Reset vector $FFFC/$FFFD -> $8000; place JMP $8000 there (infinite loop).
	prg[0x7FFC&0x7FFF] = 0x00
	prg[0x7FFD&0x7FFF] = 0x80
	prg[0x0000] = 0x4C // JMP absolute
	prg[0x0001] = 0x00
	prg[0x0002] = 0x80
	chr := make([]byte, 8192)
	return append(append(header, prg...), chr...)
}

func TestLoadROMAndClockFrame(t *testing.T) {
	d := New()
	require.NoError(t, d.LoadROM("loop.nes", nromROM()))

	require.NoError(t, d.ClockFrame())

	frame := d.Frame()
	assert.Equal(t, 256*240*4, len(frame))
}

func TestSaveLoadStateRoundTrip(t *testing.T) {
	d := New()
	require.NoError(t, d.LoadROM("loop.nes", nromROM()))
	require.NoError(t, d.ClockFrame())

	var buf bytes.Buffer
	require.NoError(t, d.SaveState(&buf))

	d2 := New()
	require.NoError(t, d2.LoadROM("loop.nes", nromROM()))
	require.NoError(t, d2.LoadState(&buf))

	assert.Equal(t, d.CPU.PC, d2.CPU.PC)
	assert.Equal(t, d.CPU.Cycles, d2.CPU.Cycles)
}

func TestJoypadWiredThroughToController(t *testing.T) {
	d := New()
	require.NoError(t, d.LoadROM("loop.nes", nromROM()))

	pad := d.Joypad(0)
	require.NotNil(t, pad)

	d.Mem.Write(0x4016, 1)
	d.Mem.Write(0x4016, 0)
	v := d.Mem.Read(0x4016)
	assert.Equal(t, uint8(0x40), v&0x40)
}

func TestSetFilterNilLeavesFrameUnchanged(t *testing.T) {
	d := New()
	require.NoError(t, d.LoadROM("loop.nes", nromROM()))
	require.NoError(t, d.ClockFrame())

	before := append([]byte(nil), d.Frame()...)
	d.SetFilter(nil)
	after := d.Frame()
	assert.Equal(t, before, after)
}
