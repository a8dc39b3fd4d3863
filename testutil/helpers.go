package testutil

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/ohwr/spec-dma/pkg/driver"
)

// EnvPCIID selects the board used by hardware tests
const EnvPCIID = "SPEC_PCI_ID"

// SkipIfNoBoard skips the test unless SPEC_PCI_ID names a board whose
// driver exports a DMA channel. It returns the PCI identifier.
func SkipIfNoBoard(t testing.TB) string {
	t.Helper()

	id := os.Getenv(EnvPCIID)
	if id == "" {
		t.Skipf("%s not set", EnvPCIID)
	}
	full := driver.PCIDomainPrefix + id
	dma := filepath.Join(driver.DefaultDebugfsRoot, full, driver.BoardDirPrefix+full, driver.DMAFileName)
	if _, err := os.Stat(dma); err != nil {
		t.Skipf("No SPEC DMA channel for %s", id)
	}
	return id
}

// FakeDebugfs builds a debugfs tree with the board directories of the
// given PCI identifiers (each with empty dma and fpga_firmware files) and
// returns its root.
func FakeDebugfs(t *testing.T, ids ...string) string {
	t.Helper()

	root := t.TempDir()
	for _, id := range ids {
		full := driver.PCIDomainPrefix + id
		board := filepath.Join(root, full, driver.BoardDirPrefix+full)
		if err := os.MkdirAll(board, 0755); err != nil {
			t.Fatalf("failed to create mock debugfs: %v", err)
		}
		for _, name := range []string{driver.DMAFileName, driver.FirmwareFileName} {
			if err := os.WriteFile(filepath.Join(board, name), nil, 0600); err != nil {
				t.Fatalf("failed to create %s: %v", name, err)
			}
		}
	}
	return root
}

// FakeSearchPath creates a stand-in for the firmware_class path
// parameter holding content, and returns its path
func FakeSearchPath(t *testing.T, content string) string {
	t.Helper()
	return TempFile(t, "path", []byte(content))
}

// TempFile creates a temporary file with given content
func TempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, content, 0644)
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

// MakePattern creates a buffer whose bytes follow their index
func MakePattern(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

// MakeRandomBytes creates reproducible pseudo-random test data
func MakeRandomBytes(size int, seed int64) []byte {
	data := make([]byte, size)
	rand.New(rand.NewSource(seed)).Read(data)
	return data
}

// AssertBytesEqual compares byte slices
func AssertBytesEqual(t *testing.T, got, want []byte, msg string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s: length mismatch: got %d, want %d", msg, len(got), len(want))
		return
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("%s: mismatch at index %d: got %d, want %d", msg, i, got[i], want[i])
			return
		}
	}
}
