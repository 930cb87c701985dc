package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nesdeck/internal/bus"
)

// nromROM builds a minimal NROM image whose reset vector points at an
// infinite JMP loop, enough to exercise power-on/ClockFrame without
// hitting an unimplemented opcode.
func nromROM() []byte {
	header := []byte{'N', 'E', 'S', 0x1A, 2, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	prg := make([]byte, 32768)
	prg[0x7FFC&0x7FFF] = 0x00
	prg[0x7FFD&0x7FFF] = 0x80
	prg[0x0000] = 0x4C // JMP $8000
	prg[0x0001] = 0x00
	prg[0x0002] = 0x80
	chr := make([]byte, 8192)
	return append(append(header, prg...), chr...)
}

func TestStateManagerSaveLoadSlotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sm, err := NewStateManager(dir, 4)
	require.NoError(t, err)

	d := bus.New()
	require.NoError(t, d.LoadROM("game.nes", nromROM()))
	require.NoError(t, d.ClockFrame())

	assert.False(t, sm.HasSlot("game.nes", 0))
	require.NoError(t, sm.Save(d, "game.nes", 0))
	assert.True(t, sm.HasSlot("game.nes", 0))

	d2 := bus.New()
	require.NoError(t, d2.LoadROM("game.nes", nromROM()))
	require.NoError(t, sm.Load(d2, "game.nes", 0))

	assert.Equal(t, d.CPU.PC, d2.CPU.PC)
}

func TestStateManagerRejectsOutOfRangeSlot(t *testing.T) {
	dir := t.TempDir()
	sm, err := NewStateManager(dir, 4)
	require.NoError(t, err)

	d := bus.New()
	require.NoError(t, d.LoadROM("game.nes", nromROM()))

	assert.Error(t, sm.Save(d, "game.nes", 4))
	assert.Error(t, sm.Save(d, "game.nes", -1))
}

func TestNewStateManagerDefaultsSlotCount(t *testing.T) {
	dir := t.TempDir()
	sm, err := NewStateManager(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, sm.maxSlots)
}
