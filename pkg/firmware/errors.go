package firmware

import "errors"

var (
	// ErrChannelLeased is returned when this process holds a lease on the
	// board being programmed
	ErrChannelLeased = errors.New("DMA channel is leased")

	// ErrNotRegularFile is returned when the bitstream is not a regular file
	ErrNotRegularFile = errors.New("bitstream is not a regular file")

	// ErrPathTooLong is returned when the bitstream directory does not fit
	// the kernel firmware search path
	ErrPathTooLong = errors.New("bitstream directory exceeds firmware search path limit")
)
