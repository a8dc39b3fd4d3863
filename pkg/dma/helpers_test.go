package dma

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ohwr/spec-dma/pkg/device"
	"github.com/ohwr/spec-dma/testutil"
)

func newTestDevice(t *testing.T) *device.Device {
	t.Helper()
	dev, err := device.New("06:00.0")
	require.NoError(t, err)
	return dev
}

// acquireFake returns an acquired lease on a fresh fake board; the lease
// is released when the test ends
func acquireFake(t *testing.T, opts ...Option) (*Lease, *testutil.FakeBoard) {
	t.Helper()
	board := testutil.NewFakeBoard()
	opts = append([]Option{WithOpener(board.Open)}, opts...)

	lease, err := Acquire(newTestDevice(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { lease.Release() })
	return lease, board
}
