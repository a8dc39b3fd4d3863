package firmware

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohwr/spec-dma/pkg/device"
	"github.com/ohwr/spec-dma/pkg/dma"
	"github.com/ohwr/spec-dma/pkg/driver"
	"github.com/ohwr/spec-dma/testutil"
)

const (
	testID         = "06:00.0"
	testSearchPath = "/opt/firmware\n"
)

type fixture struct {
	dev        *device.Device
	searchPath SearchPathFile
	bitstream  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := testutil.FakeDebugfs(t, testID)
	dev, err := device.NewWithLocator(device.Locator{DebugfsRoot: root}, testID)
	require.NoError(t, err)

	return fixture{
		dev:        dev,
		searchPath: SearchPathFile(testutil.FakeSearchPath(t, testSearchPath)),
		bitstream:  testutil.TempFile(t, "spec_golden.bin", []byte{0xff, 0xff, 0xaa, 0x99}),
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestProgram(t *testing.T) {
	f := newFixture(t)
	loader := NewLoader(WithSearchPath(f.searchPath))

	var duringLoad string
	loader.trigger = func(path, name string) error {
		duringLoad = readFile(t, string(f.searchPath))
		return writeFirmwareName(path, name)
	}

	require.NoError(t, loader.Program(f.dev, f.bitstream))

	assert.Equal(t, filepath.Dir(f.bitstream), duringLoad)
	assert.Equal(t, "spec_golden.bin", readFile(t, f.dev.Paths().Firmware))
	assert.Equal(t, testSearchPath, readFile(t, string(f.searchPath)), "search path restored")
}

func TestProgramRelativePath(t *testing.T) {
	f := newFixture(t)
	loader := NewLoader(WithSearchPath(f.searchPath))

	var dir string
	loader.trigger = func(path, name string) error {
		dir = readFile(t, string(f.searchPath))
		return nil
	}

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(filepath.Dir(f.bitstream)))
	t.Cleanup(func() { os.Chdir(wd) })

	require.NoError(t, loader.Program(f.dev, filepath.Base(f.bitstream)))
	assert.True(t, filepath.IsAbs(dir), "kernel needs an absolute directory, got %q", dir)
}

func TestProgramRestoresEmptySearchPath(t *testing.T) {
	f := newFixture(t)
	f.searchPath = SearchPathFile(testutil.FakeSearchPath(t, "\n"))

	require.NoError(t, NewLoader(WithSearchPath(f.searchPath)).Program(f.dev, f.bitstream))
	assert.Equal(t, "\n", readFile(t, string(f.searchPath)))
}

func TestProgramRefusesLeasedChannel(t *testing.T) {
	f := newFixture(t)
	board := testutil.NewFakeBoard()
	lease, err := dma.Acquire(f.dev, dma.WithOpener(board.Open))
	require.NoError(t, err)
	t.Cleanup(func() { lease.Release() })

	err = NewLoader(WithSearchPath(f.searchPath)).Program(f.dev, f.bitstream)
	assert.ErrorIs(t, err, ErrChannelLeased)
	assert.Equal(t, testSearchPath, readFile(t, string(f.searchPath)))
	assert.Empty(t, readFile(t, f.dev.Paths().Firmware))

	require.NoError(t, lease.Release())
	assert.NoError(t, NewLoader(WithSearchPath(f.searchPath)).Program(f.dev, f.bitstream))
}

func TestProgramBlocksAcquireDuringLoad(t *testing.T) {
	f := newFixture(t)
	board := testutil.NewFakeBoard()
	loader := NewLoader(WithSearchPath(f.searchPath))

	var acquireErr error
	loader.trigger = func(path, name string) error {
		_, acquireErr = dma.Acquire(f.dev, dma.WithOpener(board.Open))
		return nil
	}

	require.NoError(t, loader.Program(f.dev, f.bitstream))
	assert.ErrorIs(t, acquireErr, dma.ErrBoardProgramming)
	assert.Equal(t, 0, board.Stats().Opens)
	assert.False(t, dma.InUse(f.dev.ID()))

	lease, err := dma.Acquire(f.dev, dma.WithOpener(board.Open))
	require.NoError(t, err, "reservation dropped after the load")
	require.NoError(t, lease.Release())
}

func TestProgramBadBitstream(t *testing.T) {
	f := newFixture(t)
	loader := NewLoader(WithSearchPath(f.searchPath))
	loader.trigger = func(path, name string) error {
		t.Error("load triggered for an invalid bitstream")
		return nil
	}

	err := loader.Program(f.dev, filepath.Join(t.TempDir(), "missing.bin"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = loader.Program(f.dev, t.TempDir())
	assert.ErrorIs(t, err, ErrNotRegularFile)

	assert.Equal(t, testSearchPath, readFile(t, string(f.searchPath)))
}

func TestProgramMissingBoard(t *testing.T) {
	f := newFixture(t)
	dev, err := device.NewWithLocator(device.Locator{DebugfsRoot: t.TempDir()}, testID)
	require.NoError(t, err)

	err = NewLoader(WithSearchPath(f.searchPath)).Program(dev, f.bitstream)
	assert.ErrorIs(t, err, driver.ErrDeviceUnavailable)
	assert.Equal(t, testSearchPath, readFile(t, string(f.searchPath)), "search path restored")
}

func TestProgramMissingSearchPath(t *testing.T) {
	f := newFixture(t)
	missing := SearchPathFile(filepath.Join(t.TempDir(), "path"))

	err := NewLoader(WithSearchPath(missing)).Program(f.dev, f.bitstream)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, readFile(t, f.dev.Paths().Firmware), "no load without a search path")
}

func TestProgramRejectsLongDirectory(t *testing.T) {
	f := newFixture(t)
	dir := filepath.Join(t.TempDir(), strings.Repeat("d", 250))
	require.NoError(t, os.Mkdir(dir, 0755))
	bitstream := filepath.Join(dir, "spec.bin")
	require.NoError(t, os.WriteFile(bitstream, []byte{0xff}, 0644))

	err := NewLoader(WithSearchPath(f.searchPath)).Program(f.dev, bitstream)
	assert.ErrorIs(t, err, ErrPathTooLong)
	assert.Equal(t, testSearchPath, readFile(t, string(f.searchPath)))
	assert.Empty(t, readFile(t, f.dev.Paths().Firmware))
}

func TestProgramLoadFailure(t *testing.T) {
	f := newFixture(t)
	var logs bytes.Buffer
	loader := NewLoader(WithSearchPath(f.searchPath), WithLogger(log.New(&logs, "", 0)))

	cause := errors.New("firmware rejected")
	loader.trigger = func(path, name string) error { return cause }

	err := loader.Program(f.dev, f.bitstream)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, testSearchPath, readFile(t, string(f.searchPath)))
	assert.Contains(t, logs.String(), "[firmware] spec-0000:06:00.0: load failed")
}

func TestProgramRestoreFailureIsReported(t *testing.T) {
	f := newFixture(t)
	loader := NewLoader(WithSearchPath(f.searchPath))

	cause := errors.New("firmware rejected")
	loader.trigger = func(path, name string) error {
		require.NoError(t, os.Remove(string(f.searchPath)))
		return cause
	}

	err := loader.Program(f.dev, f.bitstream)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "failed to restore firmware search path")
}

func TestSearchPathFile(t *testing.T) {
	path := SearchPathFile(testutil.FakeSearchPath(t, "/lib/firmware/updates\n"))

	got, err := path.Read()
	require.NoError(t, err)
	assert.Equal(t, "/lib/firmware/updates\n", got)

	require.NoError(t, path.Write("/srv/bitstreams"))
	got, err = path.Read()
	require.NoError(t, err)
	assert.Equal(t, "/srv/bitstreams", got)

	longest := "/" + strings.Repeat("a", driver.MaxFirmwarePathBytes-2)
	require.NoError(t, path.Write(longest))
	assert.ErrorIs(t, path.Write(longest+"a"), ErrPathTooLong)

	assert.Equal(t, SearchPathFile(driver.FirmwareSearchPath), DefaultSearchPath())
}
