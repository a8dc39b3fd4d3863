package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/ohwr/spec-dma/pkg/config"
	"github.com/ohwr/spec-dma/pkg/device"
	"github.com/ohwr/spec-dma/pkg/dma"
	"github.com/ohwr/spec-dma/pkg/driver"
	"github.com/ohwr/spec-dma/pkg/firmware"
)

// Exit codes
const (
	ExitSuccess     = 0 // Operation completed successfully
	ExitGeneral     = 1 // Unknown/unhandled error
	ExitBusy        = 2 // DMA channel held by another user
	ExitUnavailable = 3 // Board, driver or debugfs missing
	ExitInvalid     = 4 // Misaligned, out of range or bad arguments
	ExitTransfer    = 5 // Transfer failed or data mismatch
)

var (
	errorFmt = color.New(color.FgRed, color.Bold).SprintFunc()
	hintFmt  = color.New(color.FgYellow).SprintFunc()
	okFmt    = color.New(color.FgGreen).SprintFunc()
)

// errMismatch is returned by verify when read-back data differs
var errMismatch = errors.New("read-back data differs from written data")

// errUsage marks bad command-line arguments
var errUsage = errors.New("invalid arguments")

// cliError is an error with the exit code and hint shown to the operator
type cliError struct {
	Message  string
	Hint     string
	ExitCode int
}

func (e *cliError) Error() string {
	return e.Message
}

// classify maps an error to its exit code and hint
func classify(err error) *cliError {
	var cerr *cliError
	if errors.As(err, &cerr) {
		return cerr
	}

	out := &cliError{Message: err.Error(), ExitCode: ExitGeneral}
	if kind, ok := driver.KindOf(err); ok {
		switch kind {
		case driver.KindChannelBusy:
			out.ExitCode = ExitBusy
			out.Hint = "Another process holds the DMA channel; retry when it has finished"
		case driver.KindDeviceUnavailable:
			out.ExitCode = ExitUnavailable
			out.Hint = "Check that the SPEC driver is loaded and debugfs is mounted (usually needs root)"
		case driver.KindMisaligned, driver.KindOutOfRange:
			out.ExitCode = ExitInvalid
			out.Hint = fmt.Sprintf("Offsets and lengths must be multiples of %d within %d bytes of DDR", driver.DDRAlign, driver.DDRSize)
		case driver.KindShortTransfer, driver.KindDeviceError:
			out.ExitCode = ExitTransfer
		}
		return out
	}

	switch {
	case errors.Is(err, device.ErrNoDevices):
		out.ExitCode = ExitUnavailable
		out.Hint = "Run 'specdma scan' to list boards, or pass --pci-id"
	case errors.Is(err, firmware.ErrChannelLeased),
		errors.Is(err, dma.ErrBoardProgramming):
		out.ExitCode = ExitBusy
	case errors.Is(err, errMismatch):
		out.ExitCode = ExitTransfer
	case errors.Is(err, errUsage),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, dma.ErrInvalidSegmentSize),
		errors.Is(err, device.ErrEmptyID):
		out.ExitCode = ExitInvalid
	}
	return out
}

// printError writes the error and its hint
func printError(w io.Writer, err *cliError) {
	fmt.Fprintf(w, "%s %s\n", errorFmt("Error:"), err.Message)
	if err.Hint != "" {
		fmt.Fprintf(w, "%s %s\n", hintFmt("Hint:"), err.Hint)
	}
}
