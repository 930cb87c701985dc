package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapperROM(mapperID uint16, prgBanks, chrBanks uint8) (*Cartridge, *Mapper) {
	flags6 := uint8((mapperID & 0x0F) << 4)
	flags7 := uint8(mapperID & 0xF0)
	data := iNESROM(prgBanks, chrBanks, flags6, flags7)
	// Stamp each 16KiB PRG bank with its bank index so bank-switch tests
	// can tell which bank landed in the CPU window.
	body := data[headerSize:]
	for b := 0; b < int(prgBanks); b++ {
		for i := 0; i < 16384; i++ {
			body[b*16384+i] = byte(b)
		}
	}
	c, err := Load("mapper.nes", data)
	if err != nil {
		panic(err)
	}
	return c, c.Mapper()
}

func TestUxROMSwitchableLowBankFixedHighBank(t *testing.T) {
	_, m := mapperROM(2, 4, 0) // UxROM, 4x 16KiB PRG banks

	m.CPUWrite(0x8000, 2) // select bank 2 for the low window

	assert.Equal(t, uint8(2), m.CPURead(0x8000), "low window reflects the selected bank")
	assert.Equal(t, uint8(3), m.CPURead(0xC000), "high window is hardwired to the last bank")
}

func TestCNROMSwitchesCHRBank(t *testing.T) {
	data := iNESROM(1, 4, 0x00, 0x00) // CNROM needs mapperID 3
	data[6] = 0x30
	for b := 0; b < 4; b++ {
		for i := 0; i < 8192; i++ {
			data[headerSize+16384+b*8192+i] = byte(b)
		}
	}
	c, err := Load("cnrom.nes", data)
	require.NoError(t, err)
	m := c.Mapper()

	m.CPUWrite(0x8000, 3)

	assert.Equal(t, uint8(3), m.PPURead(0x0000))
}

func TestAxROMBankAndSingleScreenMirroring(t *testing.T) {
	_, m := mapperROM(7, 4, 0) // AxROM, 4x 16KiB stamped banks (2 AxROM 32KiB banks)

	m.CPUWrite(0x8000, 0x01) // bank 1, mirror-select bit clear -> screen A

	assert.Equal(t, uint8(1), m.axBank)
	assert.Equal(t, uint8(0), m.axSingleHalf)

	m.CPUWrite(0x8000, 0x11) // same bank, mirror-select bit set -> screen B
	assert.Equal(t, uint8(1), m.axSingleHalf)
}

func TestSxROM5BitShiftCommitsOnFifthWrite(t *testing.T) {
	_, m := mapperROM(1, 4, 2) // MMC1, 4x16KiB PRG, 2x8KiB CHR

	// Write control register ($8000-$9FFF) with value 0x0F (CHR mode 0,
	// PRG mode 3, mirroring bits 3 = horizontal), one bit per write, LSB first.
	for i := 0; i < 5; i++ {
		bit := uint8((0x0F >> i) & 1)
		m.CPUWrite(0x8000, bit)
	}

	assert.Equal(t, uint8(0x0F), m.sxControl)
	assert.Equal(t, MirrorHorizontal, m.mirroring, "control bits 0-1 = 3 selects horizontal mirroring")
}

func TestSxROMResetBitClearsShiftAndForcesPRGMode3(t *testing.T) {
	_, m := mapperROM(1, 4, 2)

	m.CPUWrite(0x8000, 1) // partial shift in progress
	m.CPUWrite(0x8000, 0x80) // bit 7 set -> reset

	assert.Equal(t, uint8(0), m.sxShift)
	assert.Equal(t, uint8(0), m.sxShiftPos)
	assert.NotZero(t, m.sxControl&0x0C)
}

func TestTxROMBankSelectSwitchesPRGR6(t *testing.T) {
	_, m := mapperROM(4, 8, 4) // MMC3, 8x16KiB PRG (4 8KiB banks each half)

	// Select register 6 (R6, PRG bank at $8000-$9FFF in mode 0), value 2.
	m.CPUWrite(0x8000, 6)
	m.CPUWrite(0x8001, 2)

	assert.Equal(t, uint8(6), m.txBankSelect&0x07)
	assert.Equal(t, uint8(2), m.txRegisters[6])
}

func TestTxROMIRQCounterReloadsAndAssertsOnA12Edges(t *testing.T) {
	_, m := mapperROM(4, 8, 4)

	m.CPUWrite(0xC000, 1) // IRQ latch = 1
	m.CPUWrite(0xC001, 0) // IRQ reload request
	m.CPUWrite(0xE001, 0) // IRQ enable

	// First A12 rising edge after reload loads the latch into the counter
	// without asserting (counter starts nonzero); the edge after it
	// reaching zero asserts.
	m.NotifyPPUAddress(0x1000) // rising edge: A12 low->high
	m.NotifyPPUAddress(0x0000)
	m.NotifyPPUAddress(0x1000) // next rising edge decrements counter to 0

	assert.True(t, m.IRQAsserted())
}

func TestTxROMIRQDisableClearsPending(t *testing.T) {
	_, m := mapperROM(4, 8, 4)
	m.CPUWrite(0xC000, 0)
	m.CPUWrite(0xC001, 0)
	m.CPUWrite(0xE001, 0)
	m.NotifyPPUAddress(0x1000)
	m.NotifyPPUAddress(0x0000)
	m.NotifyPPUAddress(0x1000)
	require.True(t, m.IRQAsserted())

	m.CPUWrite(0xE000, 0) // IRQ disable, acks pending

	assert.False(t, m.IRQAsserted())
}

func TestMapperSnapshotRestoreRoundTrip(t *testing.T) {
	_, m := mapperROM(1, 4, 2)
	for i := 0; i < 5; i++ {
		m.CPUWrite(0x8000, uint8((0x0F>>i)&1))
	}
	snap := m.Snapshot()

	m2 := &Mapper{cart: m.cart}
	m2.Restore(snap)

	assert.Equal(t, m.sxControl, m2.sxControl)
	assert.Equal(t, m.mirroring, m2.mirroring)
	assert.Equal(t, m.kind, m2.kind)
}

func TestGxROMSplitsPRGAndCHRBankFromSingleWrite(t *testing.T) {
	data := iNESROM(4, 4, 0x00, 0x00)
	data[6], data[7] = 0x20, 0x40 // mapper 66 (GxROM)
	for b := 0; b < 4; b++ {
		for i := 0; i < 16384; i++ {
			data[headerSize+b*16384+i] = byte(b)
		}
	}
	c, err := Load("gxrom.nes", data)
	require.NoError(t, err)
	m := c.Mapper()

	m.CPUWrite(0x8000, 0x21) // PRG bank 2, CHR bank 1

	assert.Equal(t, uint8(2), m.prgBank)
	assert.Equal(t, uint8(1), m.chrBank)
}

func TestMMC2LatchSwitchesCHRBankOnTileFetch(t *testing.T) {
	data := iNESROM(8, 16, 0x90, 0x00) // mapper 9 (MMC2), 16x 1KiB-stampable CHR banks
	for b := 0; b < 16; b++ {
		for i := 0; i < 1024; i++ {
			data[headerSize+8*16384+b*1024+i] = byte(b)
		}
	}
	c, err := Load("mmc2.nes", data)
	require.NoError(t, err)
	m := c.Mapper()

	m.CPUWrite(0xB000, 0x01) // CHR0/FD bank = 1
	m.CPUWrite(0xC000, 0x02) // CHR0/FE bank = 2

	m.mmc2Latch0 = 0xFE
	feBank := m.PPURead(0x0000)
	m.PPURead(0x0FD8) // fetching tile $FD latches CHR0 to FD
	fdBank := m.PPURead(0x0000)

	assert.NotEqual(t, feBank, fdBank, "the FD/FE latch must select a different CHR bank")
}

func TestExROM8KPRGBankingAndMultiplier(t *testing.T) {
	data := iNESROM(8, 0, 0x50, 0x00) // mapper 5 (ExROM/MMC5), 8x16KiB PRG
	for b := 0; b < 16; b++ {
		for i := 0; i < 8192; i++ {
			data[headerSize+b*8192+i] = byte(b)
		}
	}
	c, err := Load("exrom.nes", data)
	require.NoError(t, err)
	m := c.Mapper()

	m.CPUWrite(0x5100, 3) // PRG mode 3: four independent 8KiB slots
	m.CPUWrite(0x5114, 0x80|5)
	m.CPUWrite(0x5115, 0x80|6)
	m.CPUWrite(0x5116, 0x80|7)
	m.CPUWrite(0x5117, 0x80|8)

	assert.Equal(t, uint8(5), m.CPURead(0x8000))
	assert.Equal(t, uint8(6), m.CPURead(0xA000))
	assert.Equal(t, uint8(7), m.CPURead(0xC000))
	assert.Equal(t, uint8(8), m.CPURead(0xE000))

	m.CPUWrite(0x5205, 6)
	m.CPUWrite(0x5206, 7)
	assert.Equal(t, uint8(42), m.CPURead(0x5205))
	assert.Equal(t, uint8(0), m.CPURead(0x5206))
}

func TestExROMScanlineIRQAssertsOnRepeatedNametableFetch(t *testing.T) {
	_, m := mapperROM(5, 2, 0)
	m.CPUWrite(0x5203, 1) // assert once the counted scanline reaches 1
	m.CPUWrite(0x5204, 0x80) // enable

	// The background pipeline fetches the same $2xxx nametable byte twice
	// in a row once per scanline; three identical NotifyPPUAddress calls
	// drive the 2-match edge detector through exactly one such event.
	tick := func(addr uint16) {
		m.NotifyPPUAddress(addr)
		m.NotifyPPUAddress(addr)
		m.NotifyPPUAddress(addr)
	}

	tick(0x2000) // first event: enters in-frame, counter reset to 0
	assert.False(t, m.IRQAsserted())
	tick(0x2001) // second event: counter increments to the latch value
	assert.True(t, m.IRQAsserted())
}

func TestExROMNametableModeSelectsFillPattern(t *testing.T) {
	_, m := mapperROM(5, 2, 0)
	m.CPUWrite(0x5105, 0xFF) // every quadrant (2 bits each) -> mode 3, fill
	m.CPUWrite(0x5106, 0x42) // fill tile
	m.CPUWrite(0x5107, 0x03) // fill attribute

	v, ok := m.NametableRead(0x23C1)
	require.True(t, ok)
	assert.Equal(t, m.exFillAttr, v)

	v, ok = m.NametableRead(0x2000)
	require.True(t, ok)
	assert.Equal(t, m.exFillTile, v)
}

func TestUnsupportedMapperIDReturnsError(t *testing.T) {
	data := iNESROM(1, 1, 0xF0, 0x00) // mapper 15, unsupported
	_, err := Load("unsupported.nes", data)
	assert.Error(t, err)
}
