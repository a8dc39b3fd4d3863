package device

import "errors"

// Errors for device operations
var (
	ErrNoDevices       = errors.New("no SPEC boards found")
	ErrEmptyID         = errors.New("empty board identifier")
	ErrInvalidMetadata = errors.New("invalid FPGA device metadata")
)
