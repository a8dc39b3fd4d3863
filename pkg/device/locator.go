package device

import (
	"path/filepath"
	"strings"

	"github.com/ohwr/spec-dma/pkg/driver"
)

// Paths are the debugfs files of one SPEC board
type Paths struct {
	ControlRoot string // <debugfs>/0000:<id>
	Board       string // <control-root>/spec-0000:<id>
	Firmware    string // <board>/fpga_firmware
	DMA         string // <board>/dma
	Metadata    string // <board>/fpga_device_metadata
}

// Locator computes board paths below a debugfs mount
type Locator struct {
	DebugfsRoot string
}

// DefaultLocator resolves paths below /sys/kernel/debug
func DefaultLocator() Locator {
	return Locator{DebugfsRoot: driver.DefaultDebugfsRoot}
}

// Locate computes the paths of the board with the given PCI identifier.
// It never touches the filesystem.
func (l Locator) Locate(id string) Paths {
	root := l.DebugfsRoot
	if root == "" {
		root = driver.DefaultDebugfsRoot
	}

	full := driver.PCIDomainPrefix + NormalizeID(id)
	control := filepath.Join(root, full)
	board := filepath.Join(control, driver.BoardDirPrefix+full)

	return Paths{
		ControlRoot: control,
		Board:       board,
		Firmware:    filepath.Join(board, driver.FirmwareFileName),
		DMA:         filepath.Join(board, driver.DMAFileName),
		Metadata:    filepath.Join(board, driver.MetadataFileName),
	}
}

// NormalizeID strips the PCI domain so "0000:06:00.0" and "06:00.0"
// name the same board.
func NormalizeID(id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), driver.PCIDomainPrefix)
}
