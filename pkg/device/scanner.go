package device

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ohwr/spec-dma/pkg/driver"
)

// DeviceInfo contains discovered board information
type DeviceInfo struct {
	ID    string
	Paths Paths
}

// DeviceScanner scans debugfs for SPEC boards
type DeviceScanner struct {
	debugfsRoot string
}

// NewScanner creates a new device scanner
func NewScanner() *DeviceScanner {
	return &DeviceScanner{
		debugfsRoot: driver.DefaultDebugfsRoot,
	}
}

// NewScannerAt creates a scanner over a custom debugfs root
func NewScannerAt(root string) *DeviceScanner {
	return &DeviceScanner{debugfsRoot: root}
}

// Scan finds all boards whose driver exports a DMA channel
func (s *DeviceScanner) Scan() ([]DeviceInfo, error) {
	if s.debugfsRoot == "" {
		s.debugfsRoot = driver.DefaultDebugfsRoot
	}

	entries, err := os.ReadDir(s.debugfsRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.debugfsRoot, err)
	}

	loc := Locator{DebugfsRoot: s.debugfsRoot}

	var devices []DeviceInfo
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, driver.PCIDomainPrefix) {
			continue
		}

		id := NormalizeID(name)
		if !isValidPCIID(id) {
			continue
		}

		paths := loc.Locate(id)
		if _, err := os.Stat(paths.DMA); err != nil {
			continue
		}

		devices = append(devices, DeviceInfo{ID: id, Paths: paths})
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ID < devices[j].ID
	})

	return devices, nil
}

// Scan uses the default scanner to find all boards
func Scan() ([]DeviceInfo, error) {
	return NewScanner().Scan()
}

// isValidPCIID checks for a "bb:dd.f" bus address
func isValidPCIID(id string) bool {
	if len(id) != 7 || id[2] != ':' || id[5] != '.' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4, 6} {
		if !isHex(id[i]) {
			return false
		}
	}
	return true
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
