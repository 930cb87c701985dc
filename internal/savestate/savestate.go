// Package savestate encodes and decodes Control Deck save states: a
// magic-and-version header followed by a gob-encoded, DEFLATE-compressed
// Snapshot (spec.md §6's external save-state format).
package savestate

import (
	"bytes"
	"compress/flate"
	"encoding/gob"
	"io"

	"github.com/pkg/errors"

	"nesdeck/internal/apu"
	"nesdeck/internal/cart"
	"nesdeck/internal/cpu"
	"nesdeck/internal/deckerr"
	"nesdeck/internal/ppu"
)

const (
	magic   = "NESDECK\x1a"
	version = 1
)

// Snapshot is the full serializable machine state for one save slot.
type Snapshot struct {
	CartName      string
	CPU           cpu.Snapshot
	PPU           ppu.Snapshot
	APU           apu.Snapshot
	Mapper        cart.MapperSnapshot
	PRGRAM        []byte
	Region        uint8
	Cycles        uint64
	OAMDMAPending bool
	OAMDMAPage    uint8
}

// Write encodes snap behind the magic/version header, DEFLATE-compressed.
func Write(w io.Writer, snap Snapshot) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return errors.Wrap(deckerr.ErrIOError, err.Error())
	}
	if _, err := w.Write([]byte{version}); err != nil {
		return errors.Wrap(deckerr.ErrIOError, err.Error())
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(snap); err != nil {
		return errors.Wrap(deckerr.ErrSaveFormatInvalid, "encode snapshot: "+err.Error())
	}

	fw, err := flate.NewWriter(w, flate.BestSpeed)
	if err != nil {
		return errors.Wrap(deckerr.ErrIOError, err.Error())
	}
	if _, err := fw.Write(raw.Bytes()); err != nil {
		return errors.Wrap(deckerr.ErrIOError, err.Error())
	}
	if err := fw.Close(); err != nil {
		return errors.Wrap(deckerr.ErrIOError, err.Error())
	}
	return nil
}

// Read validates the header and decodes a Snapshot.
func Read(r io.Reader) (Snapshot, error) {
	var snap Snapshot

	header := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(r, header); err != nil {
		return snap, errors.Wrap(deckerr.ErrSaveFormatInvalid, "truncated header")
	}
	if string(header[:len(magic)]) != magic {
		return snap, errors.Wrap(deckerr.ErrSaveFormatInvalid, "bad magic")
	}
	if header[len(magic)] != version {
		return snap, errors.Wrapf(deckerr.ErrSaveFormatInvalid, "unsupported version %d", header[len(magic)])
	}

	fr := flate.NewReader(r)
	defer fr.Close()
	if err := gob.NewDecoder(fr).Decode(&snap); err != nil {
		return snap, errors.Wrap(deckerr.ErrSaveFormatInvalid, "decode snapshot: "+err.Error())
	}
	return snap, nil
}
