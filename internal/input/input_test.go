package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInputStandardTwoPlayerReadsOwnJoypadOnly(t *testing.T) {
	in := NewInput()
	in.Joypad(0).SetButton(ButtonA, true)
	in.Joypad(1).SetButton(ButtonA, true)

	in.Write(1)
	in.Write(0)

	assert.Equal(t, uint8(1)|0x40, in.Read(0, nil, 0, 0))
	assert.Equal(t, uint8(1)|0x40, in.Read(1, nil, 0, 0))
}

func TestInputFourscoreShiftsPartnerThenSignature(t *testing.T) {
	in := NewInput()
	in.SetFourscore(true)
	in.Joypad(2).SetButton(ButtonB, true) // port 0's partner joypad

	in.Write(1)
	in.Write(0)

	for i := 0; i < 8; i++ {
		in.Read(0, nil, 0, 0) // drain joypad 0's 8 bits
	}
	// Next 8 reads come from joypad 2 (the partner sharing port 0).
	bits := make([]uint8, 8)
	for i := range bits {
		bits[i] = in.Read(0, nil, 0, 0) &^ 0x40
	}
	assert.Equal(t, []uint8{0, 1, 0, 0, 0, 0, 0, 0}, bits)

	// Then the signature pattern identifying the Four Score.
	sig := make([]uint8, 8)
	for i := range sig {
		sig[i] = in.Read(0, nil, 0, 0) &^ 0x40
	}
	assert.Equal(t, []uint8{0, 0, 0, 1, 0, 0, 0, 0}, sig) // 0x08 = bit 3
}

func TestInputWithoutFourscoreIgnoresPartnerJoypad(t *testing.T) {
	in := NewInput()
	in.Joypad(2).SetButton(ButtonB, true)

	in.Write(1)
	in.Write(0)

	for i := 0; i < 8; i++ {
		in.Read(0, nil, 0, 0)
	}
	// Past bit 7 with no fourscore: always reads open-bus 1.
	assert.Equal(t, uint8(1)|0x40, in.Read(0, nil, 0, 0))
}

func TestInputZapperTakesPriorityOverJoypad(t *testing.T) {
	in := NewInput()
	in.Zapper(0).SetConnected(true)

	v := in.Read(0, nil, 0, 0)
	assert.Equal(t, uint8(0x08)|0x40, v)
}
