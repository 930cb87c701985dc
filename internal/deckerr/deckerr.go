// Package deckerr defines the error kinds surfaced at the Control Deck's
// load/save boundary. THE CORE never returns an error from its per-cycle
// step loop; anomalies there are simulated as the hardware would behave
// (see internal/cpu's Corrupted flag). These sentinels exist so a host can
// errors.Is/errors.As across the github.com/pkg/errors wrap applied at the
// point of detection.
package deckerr

import "github.com/pkg/errors"

// Sentinel error kinds. Wrap these with errors.Wrap/Wrapf to add context;
// errors.Is still matches through the wrap.
var (
	// ErrHeaderInvalid: bad magic, incoherent sizes, or an unsupported
	// NES 2.0 field in the iNES header.
	ErrHeaderInvalid = errors.New("nesdeck: invalid cartridge header")

	// ErrMapperUnsupported: the header names a mapper id THE CORE does
	// not implement.
	ErrMapperUnsupported = errors.New("nesdeck: unsupported mapper")

	// ErrSaveFormatInvalid: magic mismatch, version mismatch, or a
	// truncated compressed payload in a save-state or SRAM file.
	ErrSaveFormatInvalid = errors.New("nesdeck: invalid save format")

	// ErrIOError: a host I/O failure on a save/load operation.
	ErrIOError = errors.New("nesdeck: i/o error")

	// ErrCPUCorrupted: an unsupported illegal opcode executed. Non-fatal;
	// the host may render this as a message and choose to reset.
	ErrCPUCorrupted = errors.New("nesdeck: cpu executed an unimplemented opcode")
)
