package device

import (
	"fmt"
	"os"
)

// Device identifies one SPEC board. It is immutable and holds no OS
// resources; open the DMA channel through the dma package.
type Device struct {
	id    string
	paths Paths
}

// New creates a handle for the board at the given PCI bus address
// (for example "06:00.0") below the default debugfs root
func New(id string) (*Device, error) {
	return NewWithLocator(DefaultLocator(), id)
}

// NewWithLocator creates a handle using a custom locator
func NewWithLocator(loc Locator, id string) (*Device, error) {
	id = NormalizeID(id)
	if id == "" {
		return nil, ErrEmptyID
	}
	return &Device{id: id, paths: loc.Locate(id)}, nil
}

// OpenFirst returns the first board found by the default scanner
func OpenFirst() (*Device, error) {
	devices, err := Scan()
	if err != nil {
		return nil, fmt.Errorf("failed to scan devices: %w", err)
	}

	if len(devices) == 0 {
		return nil, ErrNoDevices
	}

	return New(devices[0].ID)
}

// ID returns the PCI bus address without domain
func (d *Device) ID() string {
	return d.id
}

// Paths returns the board's debugfs paths
func (d *Device) Paths() Paths {
	return d.paths
}

// String implements fmt.Stringer
func (d *Device) String() string {
	return "spec-0000:" + d.id
}

// Present reports whether the driver exports a DMA channel for the board
func (d *Device) Present() bool {
	_, err := os.Stat(d.paths.DMA)
	return err == nil
}
