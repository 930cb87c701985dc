// Package app provides save state slot management for the NES emulator.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"nesdeck/internal/bus"
)

// StateManager manages numbered save-state slots on disk, delegating the
// actual encoding to internal/savestate via Deck.SaveState/LoadState.
type StateManager struct {
	saveDirectory string
	maxSlots      int
}

// NewStateManager creates a StateManager rooted at dir, creating it if
// necessary.
func NewStateManager(dir string, maxSlots int) (*StateManager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create save-state directory")
	}
	if maxSlots <= 0 {
		maxSlots = 10
	}
	return &StateManager{saveDirectory: dir, maxSlots: maxSlots}, nil
}

func (sm *StateManager) slotPath(romPath string, slot int) string {
	base := filepath.Base(romPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	return filepath.Join(sm.saveDirectory, fmt.Sprintf("%s.slot%d.ndsave", name, slot))
}

// Save writes the Deck's current state to slot for romPath.
func (sm *StateManager) Save(deck *bus.Deck, romPath string, slot int) error {
	if slot < 0 || slot >= sm.maxSlots {
		return errors.Errorf("save-state slot %d out of range [0,%d)", slot, sm.maxSlots)
	}
	f, err := os.Create(sm.slotPath(romPath, slot))
	if err != nil {
		return errors.Wrap(err, "create save-state file")
	}
	defer f.Close()
	return deck.SaveState(f)
}

// Load restores the Deck's state from slot for romPath.
func (sm *StateManager) Load(deck *bus.Deck, romPath string, slot int) error {
	if slot < 0 || slot >= sm.maxSlots {
		return errors.Errorf("save-state slot %d out of range [0,%d)", slot, sm.maxSlots)
	}
	f, err := os.Open(sm.slotPath(romPath, slot))
	if err != nil {
		return errors.Wrap(err, "open save-state file")
	}
	defer f.Close()
	return deck.LoadState(f)
}

// HasSlot reports whether slot has a save file for romPath.
func (sm *StateManager) HasSlot(romPath string, slot int) bool {
	_, err := os.Stat(sm.slotPath(romPath, slot))
	return err == nil
}
