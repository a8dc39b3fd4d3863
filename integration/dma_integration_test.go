//go:build integration

package integration

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohwr/spec-dma/pkg/device"
	"github.com/ohwr/spec-dma/pkg/dma"
	"github.com/ohwr/spec-dma/pkg/driver"
	"github.com/ohwr/spec-dma/pkg/firmware"
	"github.com/ohwr/spec-dma/testutil"
)

// EnvBitstream names a bitstream for the firmware test
const EnvBitstream = "SPEC_BITSTREAM"

func openBoard(t *testing.T) *device.Device {
	t.Helper()
	id := testutil.SkipIfNoBoard(t)
	dev, err := device.New(id)
	require.NoError(t, err)
	return dev
}

func acquire(t *testing.T, dev *device.Device) *dma.Lease {
	t.Helper()
	lease, err := dma.Acquire(dev)
	require.NoError(t, err)
	t.Cleanup(func() { lease.Release() })
	return lease
}

func TestChannelExclusivity(t *testing.T) {
	dev := openBoard(t)
	first := acquire(t, dev)

	_, err := dma.Acquire(dev)
	require.ErrorIs(t, err, driver.ErrChannelBusy)

	require.NoError(t, first.Release())
	second, err := dma.Acquire(dev)
	require.NoError(t, err)
	assert.NoError(t, second.Release())
}

func TestRoundTrip(t *testing.T) {
	engine := acquire(t, openBoard(t)).Engine()

	for _, tt := range []struct {
		offset int64
		length int
	}{
		{0, 4},
		{0, 4096},
		{0x1000, 8192},
		{driver.DDRSize - 4096, 4096},
	} {
		t.Run(fmt.Sprintf("%#x+%d", tt.offset, tt.length), func(t *testing.T) {
			data := testutil.MakeRandomBytes(tt.length, tt.offset)
			_, err := engine.Write(tt.offset, data)
			require.NoError(t, err)

			got, err := engine.Read(tt.offset, int64(tt.length))
			require.NoError(t, err)
			testutil.AssertBytesEqual(t, got, data, "round trip")

			again, err := engine.Read(tt.offset, int64(tt.length))
			require.NoError(t, err)
			testutil.AssertBytesEqual(t, again, got, "idempotent read")
		})
	}
}

func TestZeroLength(t *testing.T) {
	engine := acquire(t, openBoard(t)).Engine()

	data, err := engine.Read(0, 0)
	require.NoError(t, err)
	assert.Empty(t, data)

	n, err := engine.Write(0, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAlignmentAndRange(t *testing.T) {
	engine := acquire(t, openBoard(t)).Engine()

	for _, offset := range []int64{1, 2, 3} {
		_, err := engine.Read(offset, 4)
		assert.ErrorIs(t, err, driver.ErrMisaligned)
	}
	_, err := engine.Read(0, 6)
	assert.ErrorIs(t, err, driver.ErrMisaligned)

	_, err = engine.Read(driver.DDRSize, 4)
	assert.ErrorIs(t, err, driver.ErrOutOfRange)
}

func TestSegmentationEquivalence(t *testing.T) {
	engine := acquire(t, openBoard(t)).Engine()

	const size = 16384
	data := testutil.MakeRandomBytes(size, 16384)
	_, err := engine.Write(0, data)
	require.NoError(t, err)

	whole, err := engine.Read(0, size)
	require.NoError(t, err)

	for split := int64(8); split <= 8192; split *= 2 {
		var joined []byte
		for offset := int64(0); offset < size; offset += split {
			part, err := engine.Read(offset, split)
			require.NoError(t, err)
			joined = append(joined, part...)
		}
		testutil.AssertBytesEqual(t, joined, whole, fmt.Sprintf("reads of %d bytes", split))

		segmented, err := engine.Read(0, size, dma.SegmentSize(split))
		require.NoError(t, err)
		testutil.AssertBytesEqual(t, segmented, whole, fmt.Sprintf("segments of %d bytes", split))
	}
}

func TestLargeBuffer(t *testing.T) {
	engine := acquire(t, openBoard(t)).Engine()

	data := testutil.MakeRandomBytes(4<<20, 4)
	_, err := engine.Write(0, data)
	require.NoError(t, err)

	got, err := engine.Read(0, int64(len(data)))
	require.NoError(t, err)
	testutil.AssertBytesEqual(t, got, data, "4 MiB round trip")
}

func TestProgramThenTransfer(t *testing.T) {
	dev := openBoard(t)
	bitstream := os.Getenv(EnvBitstream)
	if bitstream == "" {
		t.Skipf("%s not set", EnvBitstream)
	}

	lease := acquire(t, dev)
	assert.ErrorIs(t, firmware.Program(dev, bitstream), firmware.ErrChannelLeased)
	require.NoError(t, lease.Release())

	require.NoError(t, firmware.Program(dev, bitstream))

	engine := acquire(t, dev).Engine()
	data := testutil.MakePattern(4096)
	_, err := engine.Write(0, data)
	require.NoError(t, err)
	got, err := engine.Read(0, 4096)
	require.NoError(t, err)
	testutil.AssertBytesEqual(t, got, data, "transfer after programming")
}
