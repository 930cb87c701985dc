// Package apu implements the Ricoh 2A03 Audio Processing Unit: two pulse
// channels, a triangle channel, a noise channel, a delta-modulation
// channel, the frame sequencer that clocks their envelope/length/sweep
// units, and the nonlinear mixer that combines them into a single sample
// stream (spec.md §4.4).
package apu

import (
	"bytes"
	"encoding/gob"

	"nesdeck/internal/deckerr"
)

const (
	cpuFrequencyNTSC = 1789773.0
	sampleRateTarget = 44100
)

// pulseMixTable[p1+p2] and tndMixTable precompute the nonlinear NES DAC
// curve so mixing is a pair of table lookups instead of per-sample
// floating point division.
var pulseMixTable [31]float32
var tndMixTable [203]float32

func init() {
	for i := range pulseMixTable {
		if i == 0 {
			continue
		}
		pulseMixTable[i] = float32(95.88 / (8128.0/float64(i) + 100.0))
	}
	for i := range tndMixTable {
		if i == 0 {
			continue
		}
		tndMixTable[i] = float32(163.67 / (24329.0/float64(i) + 100.0))
	}
}

// APU is the top-level audio unit. Clock is called once per CPU cycle by
// the bus; APU internally derives the half/quarter-frame schedule and
// channel timer rates from that.
type APU struct {
	pulse1   pulse
	pulse2   pulse
	triangle triangle
	noise    *noise
	dmc      *dmc

	frameMode      bool // false: 4-step, true: 5-step
	frameIRQEnable bool
	frameIRQFlag   bool
	frameCounter   uint32

	cycle            uint64
	cycleAccumulator float64
	samples          []float32
	hp1, hp2, lp     filterStage
}

// filterStage is a single-pole IIR stage used to build the high-pass /
// low-pass chain the real hardware's output network applies.
type filterStage struct {
	alpha    float32
	prevIn   float32
	prevOut  float32
	highPass bool
}

func newFilterStage(cutoffHz, sampleHz float64, highPass bool) filterStage {
	rc := 1.0 / (2 * 3.14159265358979 * cutoffHz)
	dt := 1.0 / sampleHz
	alpha := dt / (rc + dt)
	if highPass {
		alpha = rc / (rc + dt)
	}
	return filterStage{alpha: float32(alpha), highPass: highPass}
}

func (f *filterStage) apply(x float32) float32 {
	var y float32
	if f.highPass {
		y = f.alpha * (f.prevOut + x - f.prevIn)
	} else {
		y = f.prevOut + f.alpha*(x-f.prevOut)
	}
	f.prevIn = x
	f.prevOut = y
	return y
}

// New constructs an APU with its DMC DMA hooks wired to the given bus
// callbacks.
func New(readMemory func(addr uint16) uint8, stallCPU func(cycles int)) *APU {
	a := &APU{
		frameIRQEnable: true,
		noise:          newNoise(),
		dmc:            &dmc{readMemory: readMemory, stallCPU: stallCPU},
	}
	a.pulse2.channelTwo = true
	a.hp1 = newFilterStage(90, sampleRateTarget, true)
	a.hp2 = newFilterStage(440, sampleRateTarget, true)
	a.lp = newFilterStage(14000, sampleRateTarget, false)
	return a
}

func (a *APU) Reset() {
	readMemory, stallCPU := a.dmc.readMemory, a.dmc.stallCPU
	*a = APU{
		frameIRQEnable: true,
		noise:          newNoise(),
		dmc:            &dmc{readMemory: readMemory, stallCPU: stallCPU},
	}
	a.pulse2.channelTwo = true
	a.hp1 = newFilterStage(90, sampleRateTarget, true)
	a.hp2 = newFilterStage(440, sampleRateTarget, true)
	a.lp = newFilterStage(14000, sampleRateTarget, false)
}

// Clock advances the APU by one CPU cycle, per spec.md §4.4's frame
// sequencer schedule (clocked at the CPU rate, driving channel timers at
// half that rate internally where the channel specifies it).
func (a *APU) Clock() {
	a.cycle++

	if a.cycle%2 == 0 {
		a.pulse1.clockTimer()
		a.pulse2.clockTimer()
		a.noise.clockTimer()
		a.dmc.clockTimer()
	}
	a.triangle.clockTimer()

	a.clockFrameSequencer()
	a.sampleIfDue()
}

func (a *APU) clockFrameSequencer() {
	a.frameCounter++
	if a.frameMode {
		switch a.frameCounter {
		case 7457:
			a.clockQuarterFrame()
		case 14913:
			a.clockQuarterFrame()
			a.clockHalfFrame()
		case 22371:
			a.clockQuarterFrame()
		case 37281:
			a.clockQuarterFrame()
			a.clockHalfFrame()
			a.frameCounter = 0
		}
		return
	}
	switch a.frameCounter {
	case 7457:
		a.clockQuarterFrame()
	case 14913:
		a.clockQuarterFrame()
		a.clockHalfFrame()
	case 22371:
		a.clockQuarterFrame()
	case 29829:
		a.clockQuarterFrame()
		a.clockHalfFrame()
	case 29830:
		if a.frameIRQEnable {
			a.frameIRQFlag = true
		}
		a.frameCounter = 0
	}
}

func (a *APU) clockQuarterFrame() {
	a.pulse1.clockEnvelope()
	a.pulse2.clockEnvelope()
	a.noise.clockEnvelope()
	a.triangle.clockLinear()
}

func (a *APU) clockHalfFrame() {
	a.pulse1.clockLength()
	a.pulse1.clockSweep()
	a.pulse2.clockLength()
	a.pulse2.clockSweep()
	a.triangle.clockLength()
	a.noise.clockLength()
}

func (a *APU) sampleIfDue() {
	a.cycleAccumulator += sampleRateTarget / cpuFrequencyNTSC
	if a.cycleAccumulator < 1.0 {
		return
	}
	a.cycleAccumulator -= 1.0

	p1, p2 := a.pulse1.output(), a.pulse2.output()
	t, n, d := a.triangle.output(), a.noise.output(), a.dmc.output

	raw := pulseMixTable[p1+p2] + tndMixTable[3*t+2*n+d]
	filtered := a.lp.apply(a.hp2.apply(a.hp1.apply(raw)))
	a.samples = append(a.samples, filtered*2-1)
}

// Samples returns the accumulated, filtered samples since the last call
// and clears the internal buffer. It is destructive: calling it twice
// without an intervening Clock means the second call sees an empty slice,
// not the first call's samples again.
func (a *APU) Samples() []float32 {
	out := a.samples
	a.samples = nil
	return out
}

// DropSamples discards any buffered samples without returning them.
func (a *APU) DropSamples() { a.samples = nil }

func (a *APU) IRQAsserted() bool {
	return a.frameIRQFlag || a.dmc.irqFlag
}

// ReadStatus implements the $4015 read side effect: clears the frame IRQ
// flag, per spec.md §4.4.
func (a *APU) ReadStatus() uint8 {
	var status uint8
	if a.pulse1.length > 0 {
		status |= 0x01
	}
	if a.pulse2.length > 0 {
		status |= 0x02
	}
	if a.triangle.length > 0 {
		status |= 0x04
	}
	if a.noise.length > 0 {
		status |= 0x08
	}
	if a.dmc.active() {
		status |= 0x10
	}
	if a.frameIRQFlag {
		status |= 0x40
	}
	if a.dmc.irqFlag {
		status |= 0x80
	}
	a.frameIRQFlag = false
	return status
}

// WriteRegister dispatches a CPU write to $4000-$4017 (excluding $4014,
// the OAM DMA trigger handled by the bus directly, and $4016, the
// controller strobe).
func (a *APU) WriteRegister(addr uint16, v uint8) error {
	switch addr {
	case 0x4000:
		a.pulse1.writeControl(v)
	case 0x4001:
		a.pulse1.writeSweep(v)
	case 0x4002:
		a.pulse1.writeTimerLo(v)
	case 0x4003:
		a.pulse1.writeTimerHi(v)
	case 0x4004:
		a.pulse2.writeControl(v)
	case 0x4005:
		a.pulse2.writeSweep(v)
	case 0x4006:
		a.pulse2.writeTimerLo(v)
	case 0x4007:
		a.pulse2.writeTimerHi(v)
	case 0x4008:
		a.triangle.writeControl(v)
	case 0x400A:
		a.triangle.writeTimerLo(v)
	case 0x400B:
		a.triangle.writeTimerHi(v)
	case 0x400C:
		a.noise.writeControl(v)
	case 0x400E:
		a.noise.writePeriod(v)
	case 0x400F:
		a.noise.writeLength(v)
	case 0x4010:
		a.dmc.writeControl(v)
	case 0x4011:
		a.dmc.writeDirectLoad(v)
	case 0x4012:
		a.dmc.writeSampleAddr(v)
	case 0x4013:
		a.dmc.writeSampleLength(v)
	case 0x4015:
		a.writeChannelEnable(v)
	case 0x4017:
		a.writeFrameCounter(v)
	default:
		return deckerr.ErrIOError
	}
	return nil
}

func (a *APU) writeChannelEnable(v uint8) {
	a.pulse1.setEnabled(v&0x01 != 0)
	a.pulse2.setEnabled(v&0x02 != 0)
	a.triangle.setEnabled(v&0x04 != 0)
	a.noise.setEnabled(v&0x08 != 0)
	a.dmc.setEnabled(v&0x10 != 0)
	a.dmc.irqFlag = false
}

func (a *APU) writeFrameCounter(v uint8) {
	a.frameMode = v&0x80 != 0
	a.frameIRQEnable = v&0x40 == 0
	if !a.frameIRQEnable {
		a.frameIRQFlag = false
	}
	a.frameCounter = 0
	if a.frameMode {
		a.clockQuarterFrame()
		a.clockHalfFrame()
	}
}

// Snapshot captures channel/sequencer state for save states.
type Snapshot struct {
	Pulse1, Pulse2         pulse
	Triangle               triangle
	Noise                  noise
	DMC                    dmcSnapshot
	FrameMode, IRQEnable   bool
	IRQFlag                bool
	FrameCounter           uint32
	Cycle                  uint64
}

type dmcSnapshot struct {
	IRQEnable, Loop                    bool
	Rate, Timer                        uint16
	SampleAddr, SampleLength           uint16
	CurrentAddr, BytesLeft             uint16
	SampleBuffer, ShiftReg             uint8
	BufferFull, Silence, IRQFlag       bool
	BitsLeft, Output                   uint8
}

func (a *APU) Snapshot() Snapshot {
	return Snapshot{
		Pulse1: a.pulse1, Pulse2: a.pulse2,
		Triangle: a.triangle, Noise: *a.noise,
		DMC: dmcSnapshot{
			IRQEnable: a.dmc.irqEnable, Loop: a.dmc.loop,
			Rate: a.dmc.rate, Timer: a.dmc.timer,
			SampleAddr: a.dmc.sampleAddr, SampleLength: a.dmc.sampleLength,
			CurrentAddr: a.dmc.currentAddr, BytesLeft: a.dmc.bytesLeft,
			SampleBuffer: a.dmc.sampleBuffer, ShiftReg: a.dmc.shiftReg,
			BufferFull: a.dmc.bufferFull, Silence: a.dmc.silence,
			IRQFlag: a.dmc.irqFlag, BitsLeft: a.dmc.bitsLeft, Output: a.dmc.output,
		},
		FrameMode: a.frameMode, IRQEnable: a.frameIRQEnable,
		IRQFlag: a.frameIRQFlag, FrameCounter: a.frameCounter, Cycle: a.cycle,
	}
}

func (a *APU) Restore(s Snapshot) {
	readMemory, stallCPU := a.dmc.readMemory, a.dmc.stallCPU
	a.pulse1, a.pulse2 = s.Pulse1, s.Pulse2
	a.triangle = s.Triangle
	*a.noise = s.Noise
	a.dmc = &dmc{
		irqEnable: s.DMC.IRQEnable, loop: s.DMC.Loop,
		rate: s.DMC.Rate, timer: s.DMC.Timer,
		sampleAddr: s.DMC.SampleAddr, sampleLength: s.DMC.SampleLength,
		currentAddr: s.DMC.CurrentAddr, bytesLeft: s.DMC.BytesLeft,
		sampleBuffer: s.DMC.SampleBuffer, shiftReg: s.DMC.ShiftReg,
		bufferFull: s.DMC.BufferFull, silence: s.DMC.Silence,
		irqFlag: s.DMC.IRQFlag, bitsLeft: s.DMC.BitsLeft, output: s.DMC.Output,
		readMemory: readMemory, stallCPU: stallCPU,
	}
	a.frameMode, a.frameIRQEnable = s.FrameMode, s.IRQEnable
	a.frameIRQFlag, a.frameCounter, a.cycle = s.IRQFlag, s.FrameCounter, s.Cycle
}

// pulse/triangle/noise keep every field unexported since nothing outside
// the package touches channel internals; GobEncode/GobDecode give them an
// exported-field mirror to round-trip through save states without gob
// silently dropping unexported state.

type pulseGob struct {
	ChannelTwo                                                    bool
	Enabled                                                       bool
	Duty                                                          uint8
	LengthHalt                                                    bool
	Length                                                        uint8
	ConstantVolume                                                bool
	Volume, EnvDivider, EnvDecay                                  uint8
	EnvStart                                                      bool
	SweepEnable, SweepNegate, SweepReload                         bool
	SweepPeriod, SweepShift, SweepDiv                             uint8
	TimerPeriod, Timer                                            uint16
	DutyPos                                                       uint8
}

func (p pulse) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(pulseGob{
		p.channelTwo, p.enabled, p.duty, p.lengthHalt, p.length,
		p.constantVolume, p.volume, p.envDivider, p.envDecay, p.envStart,
		p.sweepEnable, p.sweepNegate, p.sweepReload, p.sweepPeriod, p.sweepShift, p.sweepDiv,
		p.timerPeriod, p.timer, p.dutyPos,
	})
	return buf.Bytes(), err
}

func (p *pulse) GobDecode(data []byte) error {
	var g pulseGob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	p.channelTwo, p.enabled, p.duty, p.lengthHalt, p.length = g.ChannelTwo, g.Enabled, g.Duty, g.LengthHalt, g.Length
	p.constantVolume, p.volume, p.envDivider, p.envDecay, p.envStart = g.ConstantVolume, g.Volume, g.EnvDivider, g.EnvDecay, g.EnvStart
	p.sweepEnable, p.sweepNegate, p.sweepReload = g.SweepEnable, g.SweepNegate, g.SweepReload
	p.sweepPeriod, p.sweepShift, p.sweepDiv = g.SweepPeriod, g.SweepShift, g.SweepDiv
	p.timerPeriod, p.timer, p.dutyPos = g.TimerPeriod, g.Timer, g.DutyPos
	return nil
}

type triangleGob struct {
	Enabled                                  bool
	LengthHalt                               bool
	Length                                    uint8
	LinearReloadValue, LinearCounter          uint8
	LinearReload                             bool
	TimerPeriod, Timer                       uint16
	SeqPos                                   uint8
}

func (t triangle) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(triangleGob{
		t.enabled, t.lengthHalt, t.length,
		t.linearReloadValue, t.linearCounter, t.linearReload,
		t.timerPeriod, t.timer, t.seqPos,
	})
	return buf.Bytes(), err
}

func (t *triangle) GobDecode(data []byte) error {
	var g triangleGob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	t.enabled, t.lengthHalt, t.length = g.Enabled, g.LengthHalt, g.Length
	t.linearReloadValue, t.linearCounter, t.linearReload = g.LinearReloadValue, g.LinearCounter, g.LinearReload
	t.timerPeriod, t.timer, t.seqPos = g.TimerPeriod, g.Timer, g.SeqPos
	return nil
}

type noiseGob struct {
	Enabled                       bool
	LengthHalt                    bool
	Length                        uint8
	ConstantVolume                bool
	Volume, EnvDivider, EnvDecay  uint8
	EnvStart                      bool
	ModeFlag                      bool
	TimerPeriod, Timer, LFSR      uint16
}

func (n noise) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(noiseGob{
		n.enabled, n.lengthHalt, n.length,
		n.constantVolume, n.volume, n.envDivider, n.envDecay, n.envStart,
		n.modeFlag, n.timerPeriod, n.timer, n.lfsr,
	})
	return buf.Bytes(), err
}

func (n *noise) GobDecode(data []byte) error {
	var g noiseGob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&g); err != nil {
		return err
	}
	n.enabled, n.lengthHalt, n.length = g.Enabled, g.LengthHalt, g.Length
	n.constantVolume, n.volume, n.envDivider, n.envDecay, n.envStart = g.ConstantVolume, g.Volume, g.EnvDivider, g.EnvDecay, g.EnvStart
	n.modeFlag, n.timerPeriod, n.timer, n.lfsr = g.ModeFlag, g.TimerPeriod, g.Timer, g.LFSR
	return nil
}
