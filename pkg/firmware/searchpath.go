package firmware

import (
	"fmt"
	"os"

	"github.com/ohwr/spec-dma/pkg/driver"
)

// SearchPathFile is the firmware_class module parameter holding the extra
// directory the kernel searches for firmware blobs. It is shared by the
// whole host.
type SearchPathFile string

// DefaultSearchPath returns the kernel's firmware search path parameter
func DefaultSearchPath() SearchPathFile {
	return SearchPathFile(driver.FirmwareSearchPath)
}

// Read returns the raw parameter content
func (f SearchPathFile) Read() (string, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return "", fmt.Errorf("failed to read firmware search path: %w", err)
	}
	return string(data), nil
}

// Write replaces the parameter content
func (f SearchPathFile) Write(value string) error {
	// An empty write never reaches the parameter's store handler
	if value == "" {
		value = "\n"
	}
	if len(value) >= driver.MaxFirmwarePathBytes {
		return fmt.Errorf("%w: %d bytes", ErrPathTooLong, len(value))
	}

	file, err := os.OpenFile(string(f), os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("failed to open firmware search path: %w", err)
	}
	if _, err := file.WriteString(value); err != nil {
		file.Close()
		return fmt.Errorf("failed to write firmware search path: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write firmware search path: %w", err)
	}
	return nil
}
