package input

// Input aggregates the two physical controller ports into up to four
// logical joypads (a Four Score multitap) plus an optional Zapper per
// port, grounded on original_source's input.rs Input/read_slots split:
// each port first checks its Zapper, then shifts out its own joypad,
// then (fourscore only) the second joypad sharing that port, then an
// 8-bit signature identifying the multitap to software that probes for
// one.
type Input struct {
	joypads    [4]*Joypad
	signatures [2]*Joypad
	zappers    [2]*Zapper
	fourscore  bool
}

// NewInput constructs four joypads and two zappers, none connected.
func NewInput() *Input {
	in := &Input{
		joypads: [4]*Joypad{NewJoypad(), NewJoypad(), NewJoypad(), NewJoypad()},
		zappers: [2]*Zapper{NewZapper(), NewZapper()},
	}
	in.signatures[0] = signatureJoypad(0x08)
	in.signatures[1] = signatureJoypad(0x04)
	return in
}

// signatureJoypad returns a Joypad whose shift-out bits never change, used
// to identify a Four Score port to probing software.
func signatureJoypad(bits uint8) *Joypad {
	j := NewJoypad()
	j.buttons = bits
	return j
}

func (in *Input) SetFourscore(enabled bool) { in.fourscore = enabled }
func (in *Input) Fourscore() bool           { return in.fourscore }

// Joypad returns the joypad in logical slot 0-3.
func (in *Input) Joypad(slot int) *Joypad {
	if slot < 0 || slot >= len(in.joypads) {
		return nil
	}
	return in.joypads[slot]
}

// Zapper returns the zapper plugged into physical port 0 or 1.
func (in *Input) Zapper(slot int) *Zapper {
	if slot < 0 || slot >= len(in.zappers) {
		return nil
	}
	return in.zappers[slot]
}

// Write strobes every joypad and signature register (spec.md §4's shared
// $4016 write path: the CPU writes once, every shift register latches).
func (in *Input) Write(v uint8) {
	for _, j := range in.joypads {
		j.Write(v)
	}
	for _, s := range in.signatures {
		s.Write(v)
	}
}

// Read services a CPU read of $4016 (port 0) or $4017 (port 1); open bus
// bit 6 is always set per hardware.
func (in *Input) Read(port int, frame FrameSource, scanline, cycle int) uint8 {
	return in.readSlots(port, frame, scanline, cycle, false) | 0x40
}

// Peek mirrors Read without shifting any register.
func (in *Input) Peek(port int, frame FrameSource, scanline, cycle int) uint8 {
	return in.readSlots(port, frame, scanline, cycle, true) | 0x40
}

func (in *Input) readSlots(port int, frame FrameSource, scanline, cycle int, peek bool) uint8 {
	a, b := port, port+2 // port 0 -> joypads 0,2; port 1 -> joypads 1,3
	if in.zappers[port].Connected() {
		// Zapper.Read has no side effects, so peek and read coincide.
		return in.zappers[port].Read(scanline, cycle, frame)
	}
	read := func(j *Joypad) uint8 {
		if peek {
			return j.Peek()
		}
		return j.Read()
	}
	switch {
	case in.joypads[a].index < 8:
		return read(in.joypads[a])
	case in.fourscore && in.joypads[b].index < 8:
		return read(in.joypads[b])
	case in.fourscore && in.signatures[port].index < 8:
		return read(in.signatures[port])
	default:
		return 0x01
	}
}

func (in *Input) Reset() {
	for _, j := range in.joypads {
		j.Reset()
	}
	for _, s := range in.signatures {
		s.Reset()
	}
	for _, z := range in.zappers {
		z.Reset()
	}
}

// Clock advances every zapper's trigger-decay timer by one CPU cycle.
func (in *Input) Clock() {
	for _, z := range in.zappers {
		z.Clock()
	}
}
