package apu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPU() *APU {
	return New(func(uint16) uint8 { return 0 }, func(int) {})
}

func TestPulseLengthCounterLoadsFromTable(t *testing.T) {
	a := newTestAPU()

	require.NoError(t, a.WriteRegister(0x4015, 0x01)) // enable pulse1
	require.NoError(t, a.WriteRegister(0x4000, 0x00))
	require.NoError(t, a.WriteRegister(0x4003, 0x08)) // length index 1 -> lengthTable[1]

	status := a.ReadStatus()
	assert.NotZero(t, status&0x01, "pulse1 should report a nonzero length counter")
}

func TestDisablingChannelViaStatusClearsLength(t *testing.T) {
	a := newTestAPU()
	require.NoError(t, a.WriteRegister(0x4015, 0x01))
	require.NoError(t, a.WriteRegister(0x4003, 0x08))
	require.NotZero(t, a.ReadStatus()&0x01)

	require.NoError(t, a.WriteRegister(0x4015, 0x00)) // disable pulse1

	assert.Zero(t, a.ReadStatus()&0x01)
}

func TestReadStatusClearsFrameIRQFlag(t *testing.T) {
	a := newTestAPU()
	a.frameIRQFlag = true

	status := a.ReadStatus()

	assert.NotZero(t, status&0x40)
	assert.False(t, a.frameIRQFlag)
	assert.False(t, a.IRQAsserted())
}

func TestFourStepFrameSequencerAssertsIRQAtEndOfSequence(t *testing.T) {
	a := newTestAPU()
	require.NoError(t, a.WriteRegister(0x4017, 0x00)) // 4-step mode, IRQ enabled

	for i := 0; i < 29830; i++ {
		a.Clock()
	}

	assert.True(t, a.IRQAsserted())
}

func TestFrameCounterIRQInhibitBitSuppressesIRQ(t *testing.T) {
	a := newTestAPU()
	require.NoError(t, a.WriteRegister(0x4017, 0x40)) // inhibit IRQ

	for i := 0; i < 29830; i++ {
		a.Clock()
	}

	assert.False(t, a.IRQAsserted())
}

func TestFiveStepModeClocksHalfFrameImmediately(t *testing.T) {
	a := newTestAPU()
	require.NoError(t, a.WriteRegister(0x4015, 0x01))
	require.NoError(t, a.WriteRegister(0x4000, 0x00)) // halt=0, so length can tick down
	require.NoError(t, a.WriteRegister(0x4003, 0x08))
	before := a.pulse1.length

	require.NoError(t, a.WriteRegister(0x4017, 0x80)) // 5-step mode clocks length immediately

	assert.Less(t, a.pulse1.length, before, "writing $4017 with bit 7 set clocks a half frame synchronously")
}

func TestClockAccumulatesFilteredSamples(t *testing.T) {
	a := newTestAPU()
	for i := 0; i < 100; i++ {
		a.Clock()
	}

	samples := a.Samples()
	assert.NotEmpty(t, samples)
	assert.Empty(t, a.Samples(), "Samples() drains the internal buffer")
}

func TestWriteRegisterRejectsUnmappedAddress(t *testing.T) {
	a := newTestAPU()
	err := a.WriteRegister(0x4009, 0x00) // unused APU address
	assert.Error(t, err)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	a := newTestAPU()
	require.NoError(t, a.WriteRegister(0x4015, 0x0F))
	require.NoError(t, a.WriteRegister(0x4003, 0x08))
	require.NoError(t, a.WriteRegister(0x4017, 0x00))
	for i := 0; i < 1000; i++ {
		a.Clock()
	}

	snap := a.Snapshot()

	a.Reset()
	a.Restore(snap)

	assert.Equal(t, snap.Cycle, a.cycle)
	assert.Equal(t, snap.Pulse1.length, a.pulse1.length)
	assert.Equal(t, snap.FrameCounter, a.frameCounter)
}
