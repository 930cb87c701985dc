package savestate

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nesdeck/internal/apu"
	"nesdeck/internal/cpu"
	"nesdeck/internal/ppu"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		CartName: "smoke.nes",
		CPU:      cpu.Snapshot{A: 0x12, X: 0x34, Y: 0x56, SP: 0xFD, PC: 0xC000, P: 0x24, Cycles: 7},
		PPU:      ppu.Snapshot{Ctrl: 0x80, Scanline: 241, Cycle: 1, NMIOutput: true},
		APU:      apu.Snapshot{FrameMode: true, FrameCounter: 100},
		Region:   0,
		Cycles:   21,
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	snap := sampleSnapshot()

	require.NoError(t, Write(&buf, snap))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, snap.CartName, got.CartName)
	assert.Equal(t, snap.CPU, got.CPU)
	assert.Equal(t, snap.PPU.Scanline, got.PPU.Scanline)
	assert.Equal(t, snap.APU.FrameCounter, got.APU.FrameCounter)
	assert.True(t, got.PPU.NMIOutput)
}

func TestReadRejectsBadMagic(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("NOTAREALSAVE\x00\x00")))
	assert.Error(t, err)
}

func TestReadRejectsTruncatedHeader(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("NES")))
	assert.Error(t, err)
}

func TestReadRejectsUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleSnapshot()))
	raw := buf.Bytes()
	raw[len(magic)] = 99 // corrupt the version byte

	_, err := Read(bytes.NewReader(raw))
	assert.Error(t, err)
}
