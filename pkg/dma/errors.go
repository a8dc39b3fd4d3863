package dma

import "errors"

// Caller errors: misuse of the lease or engine API rather than a
// failure reported by the device
var (
	ErrAlreadyAcquired    = errors.New("lease already acquired")
	ErrNotAcquired        = errors.New("lease not acquired")
	ErrLeaseReleased      = errors.New("lease released")
	ErrInvalidSegmentSize = errors.New("segment size must be a non-negative multiple of 4")
)

// ErrBoardProgramming is returned by Acquire while this process is
// reprogramming the board's FPGA
var ErrBoardProgramming = errors.New("board is being reprogrammed")
