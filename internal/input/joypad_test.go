package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoypadShiftOrder(t *testing.T) {
	j := NewJoypad()
	j.SetButton(ButtonA, true)
	j.SetButton(ButtonStart, true)

	j.Write(1) // strobe high: continuously reports A
	assert.Equal(t, uint8(1), j.Read())
	assert.Equal(t, uint8(1), j.Read())

	j.Write(0) // strobe low: latch and shift A,B,Select,Start,...
	bits := make([]uint8, 8)
	for i := range bits {
		bits[i] = j.Read()
	}
	assert.Equal(t, []uint8{1, 0, 0, 1, 0, 0, 0, 0}, bits)

	// past bit 7, always reads 1
	assert.Equal(t, uint8(1), j.Read())
	assert.Equal(t, uint8(1), j.Read())
}

func TestJoypadPeekDoesNotAdvance(t *testing.T) {
	j := NewJoypad()
	j.SetButton(ButtonB, true)
	j.Write(1)
	j.Write(0)

	first := j.Peek()
	second := j.Peek()
	assert.Equal(t, first, second)
	assert.Equal(t, uint8(0), first) // A is bit 0, not set

	// Read should still start from bit 0 after Peek calls.
	assert.Equal(t, uint8(0), j.Read())
	assert.Equal(t, uint8(1), j.Read())
}

func TestJoypadReset(t *testing.T) {
	j := NewJoypad()
	j.SetButtons(0xFF)
	j.Write(0)
	j.Read()

	j.Reset()
	assert.Equal(t, uint8(0), j.buttons)
	assert.Equal(t, 0, j.index)
	assert.False(t, j.strobe)
}
