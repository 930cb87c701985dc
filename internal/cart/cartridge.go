// Package cart parses iNES/NES 2.0 ROM images and dispatches cartridge bus
// accesses to the appropriate mapper board (spec.md §3, §4.5).
package cart

import (
	"io"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"nesdeck/internal/deckerr"
)

// Cartridge owns ROM/RAM storage plus the mapper that banks it. It is
// created once by header parse, borrowed by the Mapper for the deck's
// lifetime, and released at deck teardown (spec.md §3).
type Cartridge struct {
	Name string

	PRGROM []uint8
	CHRROM []uint8
	CHRIsRAM bool
	PRGRAM []uint8

	MapperID  uint16
	Submapper uint8
	Mirroring Mirroring
	Battery   bool
	Region    Region

	mapper *Mapper
}

// Load parses an iNES/NES 2.0 image and constructs its mapper. name is
// used only for diagnostics (log lines, save-file naming).
func Load(name string, data []byte) (*Cartridge, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	offset := headerSize
	if h.hasTrainer {
		offset += 512
	}

	if len(data) < offset+h.prgROMSize {
		return nil, errors.Wrap(deckerr.ErrHeaderInvalid, "file truncated before end of PRG-ROM")
	}
	prg := make([]uint8, h.prgROMSize)
	copy(prg, data[offset:offset+h.prgROMSize])
	offset += h.prgROMSize

	var chr []uint8
	chrIsRAM := h.chrROMSize == 0
	if chrIsRAM {
		chr = make([]uint8, 8192)
	} else {
		if len(data) < offset+h.chrROMSize {
			return nil, errors.Wrap(deckerr.ErrHeaderInvalid, "file truncated before end of CHR-ROM")
		}
		chr = make([]uint8, h.chrROMSize)
		copy(chr, data[offset:offset+h.chrROMSize])
	}

	ramSize := h.prgRAMSize
	if ramSize == 0 {
		ramSize = 8192
	}

	c := &Cartridge{
		Name:      name,
		PRGROM:    prg,
		CHRROM:    chr,
		CHRIsRAM:  chrIsRAM,
		PRGRAM:    make([]uint8, ramSize),
		MapperID:  h.mapperID,
		Submapper: h.submapper,
		Mirroring: h.mirroring,
		Battery:   h.battery,
		Region:    h.region,
	}

	m, err := newMapper(c)
	if err != nil {
		return nil, err
	}
	c.mapper = m

	glog.Infof("cart: loaded %q mapper=%d submapper=%d prg=%dKiB chr=%dKiB battery=%v region=%v",
		name, c.MapperID, c.Submapper, len(prg)/1024, len(chr)/1024, c.Battery, c.Region)

	return c, nil
}

// Mapper returns the board that owns this cartridge's bank state.
func (c *Cartridge) Mapper() *Mapper { return c.mapper }

// ReadSRAM/LoadSRAM expose the battery-backed PRG-RAM region so
// the host can persist it across sessions (spec.md §6, battery lifecycle).
func (c *Cartridge) ReadSRAM() []uint8 { return c.PRGRAM }

func (c *Cartridge) LoadSRAM(r io.Reader) error {
	buf := make([]uint8, len(c.PRGRAM))
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return errors.Wrap(deckerr.ErrIOError, err.Error())
	}
	copy(c.PRGRAM, buf[:n])
	return nil
}
