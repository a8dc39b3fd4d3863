// Package firmware reprograms the FPGA of a SPEC board through the
// driver's firmware-load file.
//
// Loading goes through the kernel firmware loader, which only looks in
// its search directories. Program points the host-wide search path at the
// bitstream's directory for the duration of the load and then restores
// it. Programming and DMA leases on the same board exclude each other.
package firmware

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/ohwr/spec-dma/pkg/device"
	"github.com/ohwr/spec-dma/pkg/dma"
	"github.com/ohwr/spec-dma/pkg/driver"
)

// programMu serialises loads in this process; the search path is global
var programMu sync.Mutex

// Option configures a Loader
type Option func(*Loader)

// WithSearchPath replaces the firmware search path parameter file
func WithSearchPath(path SearchPathFile) Option {
	return func(l *Loader) {
		l.searchPath = path
	}
}

// WithLogger sets the logger for load progress and failures
func WithLogger(logger *log.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loader programs bitstreams into boards
type Loader struct {
	searchPath SearchPathFile
	logger     *log.Logger

	// trigger writes the firmware name into the board's load file
	trigger func(path, name string) error
}

// NewLoader creates a loader using the kernel search path parameter
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		searchPath: DefaultSearchPath(),
		logger:     log.New(io.Discard, "", 0),
		trigger:    writeFirmwareName,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Program loads the bitstream with the default loader
func Program(dev *device.Device, bitstream string) error {
	return NewLoader().Program(dev, bitstream)
}

// Program loads the bitstream file into the board's FPGA. It fails with
// ErrChannelLeased while this process holds a lease on the board, and
// leases cannot be acquired until it returns. The firmware search path is
// restored on every exit path; a failed restore is reported together with
// any load error.
func (l *Loader) Program(dev *device.Device, bitstream string) (err error) {
	path, err := filepath.Abs(bitstream)
	if err != nil {
		return fmt.Errorf("failed to resolve bitstream path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat bitstream: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}
	dir, name := filepath.Split(path)
	dir = filepath.Clean(dir)

	programMu.Lock()
	defer programMu.Unlock()

	release, ok := dma.Reserve(dev.ID())
	if !ok {
		return fmt.Errorf("cannot program %s: %w", dev, ErrChannelLeased)
	}
	defer release()

	prev, err := l.searchPath.Read()
	if err != nil {
		return err
	}
	if err := l.searchPath.Write(dir); err != nil {
		return err
	}
	defer func() {
		if rerr := l.searchPath.Write(prev); rerr != nil {
			l.logger.Printf("[firmware] %s: search path not restored: %v", dev, rerr)
			err = errors.Join(err, fmt.Errorf("failed to restore firmware search path: %w", rerr))
		}
	}()

	l.logger.Printf("[firmware] %s: loading %s", dev, path)
	if err := l.trigger(dev.Paths().Firmware, name); err != nil {
		l.logger.Printf("[firmware] %s: load failed: %v", dev, err)
		return fmt.Errorf("failed to program %s: %w", dev, err)
	}
	l.logger.Printf("[firmware] %s: loaded %s", dev, name)
	return nil
}

// writeFirmwareName asks the driver to load the named firmware. The file
// must already exist; a missing board is unavailable rather than created.
func writeFirmwareName(path, name string) error {
	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return &driver.Error{Kind: driver.KindDeviceUnavailable, Op: driver.OpOpen, Path: path, Cause: err}
	}
	if _, err := file.WriteString(name); err != nil {
		file.Close()
		return &driver.Error{Kind: driver.KindDeviceError, Op: driver.OpWrite, Path: path, Cause: err}
	}
	if err := file.Close(); err != nil {
		return &driver.Error{Kind: driver.KindDeviceError, Op: driver.OpClose, Path: path, Cause: err}
	}
	return nil
}
