package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nesdeck/internal/input"
)

type fakePPU struct {
	lastWriteReg uint16
	lastWriteVal uint8
	readVal      uint8
}

func (p *fakePPU) ReadRegister(reg uint16) uint8 { return p.readVal }
func (p *fakePPU) WriteRegister(reg uint16, val uint8) {
	p.lastWriteReg, p.lastWriteVal = reg, val
}
func (p *fakePPU) Peek(reg uint16) uint8 { return p.readVal }

type fakeAPU struct {
	status     uint8
	lastWrite  uint16
	lastValue  uint8
}

func (a *fakeAPU) WriteRegister(addr uint16, v uint8) error {
	a.lastWrite, a.lastValue = addr, v
	return nil
}
func (a *fakeAPU) ReadStatus() uint8 { return a.status }

type fakeCart struct {
	mem [0x10000]uint8
}

func (c *fakeCart) CPURead(addr uint16) uint8     { return c.mem[addr] }
func (c *fakeCart) CPUWrite(addr uint16, v uint8) { c.mem[addr] = v }

func newTestMemory() (*Memory, *fakePPU, *fakeAPU, *fakeCart) {
	ppu, apu, cart := &fakePPU{}, &fakeAPU{}, &fakeCart{}
	in := input.NewInput()
	return New(ppu, apu, cart, in), ppu, apu, cart
}

func TestRAMMirroring(t *testing.T) {
	m, _, _, _ := newTestMemory()

	m.Write(0x0000, 0x42)
	assert.Equal(t, uint8(0x42), m.Read(0x0800))
	assert.Equal(t, uint8(0x42), m.Read(0x1000))
	assert.Equal(t, uint8(0x42), m.Read(0x1800))
}

func TestPPURegisterWindowMirrorsEvery8Bytes(t *testing.T) {
	m, ppu, _, _ := newTestMemory()

	m.Write(0x2008, 0x11) // mirrors $2000
	assert.Equal(t, uint16(0x2000), ppu.lastWriteReg)
	assert.Equal(t, uint8(0x11), ppu.lastWriteVal)
}

func TestAPUStatusRead(t *testing.T) {
	m, _, apu, _ := newTestMemory()
	apu.status = 0x5A

	assert.Equal(t, uint8(0x5A), m.Read(0x4015))
}

func TestCartridgeWindow(t *testing.T) {
	m, _, _, cart := newTestMemory()

	m.Write(0x8000, 0x99)
	assert.Equal(t, uint8(0x99), cart.mem[0x8000])
	assert.Equal(t, uint8(0x99), m.Read(0x8000))
}

func TestDMACallbackFiresOn4014(t *testing.T) {
	m, _, _, _ := newTestMemory()

	var page uint8
	fired := false
	m.SetDMACallback(func(p uint8) { fired, page = true, p })

	m.Write(0x4014, 0x03)

	assert.True(t, fired)
	assert.Equal(t, uint8(0x03), page)
}

func TestControllerStrobeAndShift(t *testing.T) {
	in := input.NewInput()
	in.Joypad(0).SetButton(input.ButtonA, true)
	m := New(&fakePPU{}, &fakeAPU{}, &fakeCart{}, in)

	m.Write(0x4016, 1)
	m.Write(0x4016, 0)
	v := m.Read(0x4016)
	assert.Equal(t, uint8(1), v&1)
	assert.Equal(t, uint8(0x40), v&0x40) // open-bus bit always set
}

func TestOpenBusLatchOnUnmappedRead(t *testing.T) {
	m, _, _, _ := newTestMemory()

	m.Read(0x0000) // establishes latch at 0 from RAM
	v := m.Read(0x4018)
	assert.Equal(t, uint8(0), v)
}
