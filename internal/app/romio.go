package app

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

func batteryPath(saveDir, romPath string) string {
	base := filepath.Base(romPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	return filepath.Join(saveDir, name+".sav")
}

// readSaveFile loads a cartridge's battery-backed RAM image from disk. THE
// CORE never touches the filesystem itself; the host layer owns the
// battery-file lifecycle (spec.md §6).
func readSaveFile(saveDir, romPath string) ([]byte, error) {
	data, err := os.ReadFile(batteryPath(saveDir, romPath))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

func writeSaveFile(saveDir, romPath string, data []byte) error {
	if err := os.MkdirAll(saveDir, 0755); err != nil {
		return errors.Wrap(err, "create save directory")
	}
	if err := os.WriteFile(batteryPath(saveDir, romPath), data, 0644); err != nil {
		return errors.Wrap(err, "write battery file")
	}
	return nil
}
