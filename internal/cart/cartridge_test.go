package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// iNESROM builds a minimal iNES image: a 16-byte header, prgBanks*16KiB of
// PRG-ROM, chrBanks*8KiB of CHR-ROM.
func iNESROM(prgBanks, chrBanks uint8, flags6, flags7 uint8) []byte {
	header := []byte{'N', 'E', 'S', 0x1A, prgBanks, chrBanks, flags6, flags7, 0, 0, 0, 0, 0, 0, 0, 0}
	body := make([]byte, int(prgBanks)*16384+int(chrBanks)*8192)
	return append(header, body...)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	data := iNESROM(1, 1, 0, 0)
	data[0] = 'X'

	_, err := Load("bad.nes", data)
	assert.Error(t, err)
}

func TestLoadRejectsTruncatedFile(t *testing.T) {
	_, err := Load("short.nes", []byte{'N', 'E', 'S'})
	assert.Error(t, err)
}

func TestLoadParsesNROM(t *testing.T) {
	data := iNESROM(2, 1, 0x00, 0x00) // mapper 0, horizontal mirroring, no battery
	c, err := Load("nrom.nes", data)
	require.NoError(t, err)

	assert.Equal(t, uint16(0), c.MapperID)
	assert.Equal(t, 2*16384, len(c.PRGROM))
	assert.Equal(t, 8192, len(c.CHRROM))
	assert.Equal(t, MirrorHorizontal, c.Mirroring)
	assert.False(t, c.Battery)
	assert.False(t, c.CHRIsRAM)
}

func TestLoadDetectsBatteryAndVerticalMirroring(t *testing.T) {
	data := iNESROM(1, 0, 0x03, 0x00) // battery + vertical mirroring, CHR-RAM (0 banks)
	c, err := Load("battery.nes", data)
	require.NoError(t, err)

	assert.True(t, c.Battery)
	assert.Equal(t, MirrorVertical, c.Mirroring)
	assert.True(t, c.CHRIsRAM)
	assert.NotZero(t, len(c.CHRROM), "CHR-RAM should still back a readable/writable buffer")
}

func TestLoadDecodesMapperIDFromBothFlagBytes(t *testing.T) {
	data := iNESROM(1, 1, 0x20, 0x40) // mapper 0x42 (66, GxROM) = flags7 high nibble << 4 | flags6 high nibble
	c, err := Load("mapper.nes", data)
	require.NoError(t, err)

	assert.Equal(t, uint16(0x42), c.MapperID)
}
