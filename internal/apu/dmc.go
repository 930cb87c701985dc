package apu

var dmcRateTableNTSC = [16]uint16{
	428, 380, 340, 320, 286, 254, 226, 214, 190, 160, 142, 128, 106, 84, 72, 54,
}

// dmc reads 1-bit deltas from CPU address space via DMA and decodes them
// into a 7-bit output level (spec.md §4.4).
type dmc struct {
	irqEnable bool
	loop      bool
	rate      uint16
	timer     uint16

	sampleAddr   uint16
	sampleLength uint16
	currentAddr  uint16
	bytesLeft    uint16

	sampleBuffer  uint8
	bufferFull    bool
	shiftReg      uint8
	bitsLeft      uint8
	silence       bool
	output        uint8
	irqFlag       bool

	// readMemory performs the DMA fetch from CPU address space; stall
	// charges the CPU the 1-4 cycle DMA stall spec.md §4.2 describes.
	readMemory func(addr uint16) uint8
	stallCPU   func(cycles int)
}

func (d *dmc) writeControl(v uint8) {
	d.irqEnable = v&0x80 != 0
	d.loop = v&0x40 != 0
	d.rate = dmcRateTableNTSC[v&0x0F]
	if !d.irqEnable {
		d.irqFlag = false
	}
}

func (d *dmc) writeDirectLoad(v uint8) { d.output = v & 0x7F }

func (d *dmc) writeSampleAddr(v uint8) { d.sampleAddr = 0xC000 + uint16(v)*64 }

func (d *dmc) writeSampleLength(v uint8) { d.sampleLength = uint16(v)*16 + 1 }

func (d *dmc) setEnabled(on bool) {
	if !on {
		d.bytesLeft = 0
		return
	}
	if d.bytesLeft == 0 {
		d.currentAddr = d.sampleAddr
		d.bytesLeft = d.sampleLength
	}
}

func (d *dmc) active() bool { return d.bytesLeft > 0 }

func (d *dmc) clockTimer() {
	if d.timer == 0 {
		d.timer = d.rate
		d.clockOutput()
	} else {
		d.timer--
	}
}

func (d *dmc) clockOutput() {
	if !d.bufferFull && d.bytesLeft > 0 {
		d.fetchSample()
	}

	if !d.silence {
		if d.shiftReg&1 != 0 {
			if d.output <= 125 {
				d.output += 2
			}
		} else {
			if d.output >= 2 {
				d.output -= 2
			}
		}
	}
	d.shiftReg >>= 1
	if d.bitsLeft > 0 {
		d.bitsLeft--
	}
	if d.bitsLeft == 0 {
		d.bitsLeft = 8
		if !d.bufferFull {
			d.silence = true
		} else {
			d.silence = false
			d.shiftReg = d.sampleBuffer
			d.bufferFull = false
		}
	}
}

// fetchSample steals 1-4 CPU cycles, per the current CPU-cycle alignment
// (approximated here as a flat 4-cycle stall — the exact 1/2/3/4 split
// depends on which CPU cycle phase the fetch lands on, an edge case
// spec.md §9 leaves as an open question for test-ROM-driven discovery).
func (d *dmc) fetchSample() {
	if d.stallCPU != nil {
		d.stallCPU(4)
	}
	d.sampleBuffer = d.readMemory(d.currentAddr)
	d.bufferFull = true
	d.currentAddr++
	if d.currentAddr == 0 {
		d.currentAddr = 0x8000
	}
	d.bytesLeft--
	if d.bytesLeft == 0 {
		if d.loop {
			d.currentAddr = d.sampleAddr
			d.bytesLeft = d.sampleLength
		} else if d.irqEnable {
			d.irqFlag = true
		}
	}
}
