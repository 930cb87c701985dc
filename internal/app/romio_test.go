package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatteryPathDerivesFromROMBasename(t *testing.T) {
	path := batteryPath("/saves", "/roms/SuperMarioBros.nes")
	assert.Equal(t, "/saves/SuperMarioBros.sav", path)
}

func TestWriteThenReadSaveFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	data := []byte{1, 2, 3, 4}

	require.NoError(t, writeSaveFile(dir, "game.nes", data))

	got, err := readSaveFile(dir, "game.nes")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReadSaveFileMissingReturnsError(t *testing.T) {
	dir := t.TempDir()
	_, err := readSaveFile(dir, "missing.nes")
	assert.Error(t, err)
}
