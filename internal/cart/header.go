package cart

import (
	"github.com/pkg/errors"

	"nesdeck/internal/deckerr"
)

// Region is the cartridge's declared TV timing, from the NES 2.0 byte 12
// extension (spec.md §3).
type Region uint8

const (
	RegionNTSC Region = iota
	RegionPAL
	RegionDendy
)

// Mirroring selects how the PPU's four logical nametables map onto the
// console's 2KB of nametable RAM (spec.md §3).
type Mirroring uint8

const (
	MirrorHorizontal Mirroring = iota
	MirrorVertical
	MirrorSingleScreenA
	MirrorSingleScreenB
	MirrorFourScreen
)

type header struct {
	prgROMSize   int
	chrROMSize   int
	mapperID     uint16
	submapper    uint8
	mirroring    Mirroring
	battery      bool
	hasTrainer   bool
	isNES20      bool
	region       Region
	prgRAMSize   int
	prgNVRAMSize int
}

const headerSize = 16

func parseHeader(raw []byte) (header, error) {
	var h header
	if len(raw) < headerSize {
		return h, errors.Wrap(deckerr.ErrHeaderInvalid, "file too short for iNES header")
	}
	if string(raw[0:4]) != "NES\x1a" {
		return h, errors.Wrap(deckerr.ErrHeaderInvalid, "missing NES magic")
	}

	flags6 := raw[6]
	flags7 := raw[7]

	h.isNES20 = flags7&0x0C == 0x08
	h.mapperID = uint16(flags6>>4) | uint16(flags7&0xF0)
	h.battery = flags6&0x02 != 0
	h.hasTrainer = flags6&0x04 != 0

	switch {
	case flags6&0x08 != 0:
		h.mirroring = MirrorFourScreen
	case flags6&0x01 != 0:
		h.mirroring = MirrorVertical
	default:
		h.mirroring = MirrorHorizontal
	}

	if h.isNES20 {
		h.submapper = raw[8] >> 4
		h.mapperID |= uint16(raw[8]&0x0F) << 8
		prgMSB := raw[9] & 0x0F
		chrMSB := raw[9] >> 4
		h.prgROMSize = nes20ROMSize(raw[4], prgMSB) * 16384
		h.chrROMSize = nes20ROMSize(raw[5], chrMSB) * 8192
		h.prgRAMSize = nes20RAMSize(raw[10] & 0x0F)
		h.prgNVRAMSize = nes20RAMSize(raw[10] >> 4)
		switch raw[12] & 0x03 {
		case 0:
			h.region = RegionNTSC
		case 1:
			h.region = RegionPAL
		default:
			h.region = RegionDendy
		}
	} else {
		h.prgROMSize = int(raw[4]) * 16384
		h.chrROMSize = int(raw[5]) * 8192
		h.region = RegionNTSC
	}

	if h.prgROMSize == 0 {
		return h, errors.Wrap(deckerr.ErrHeaderInvalid, "PRG-ROM size is zero")
	}
	return h, nil
}

func nes20ROMSize(lsb, msb uint8) int {
	if msb == 0x0F {
		return 0 // exponent-multiplier form, not needed for the boards supported here
	}
	return int(uint16(msb)<<8 | uint16(lsb))
}

func nes20RAMSize(shift uint8) int {
	if shift == 0 {
		return 0
	}
	return 64 << shift
}
