package driver

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind classifies a channel or transfer failure
type Kind int

// Failure kinds reported by the DMA client
const (
	KindDeviceError Kind = iota
	KindChannelBusy
	KindDeviceUnavailable
	KindMisaligned
	KindOutOfRange
	KindShortTransfer
)

var kindMessages = map[Kind]string{
	KindDeviceError:       "device error",
	KindChannelBusy:       "channel busy",
	KindDeviceUnavailable: "device unavailable",
	KindMisaligned:        "misaligned",
	KindOutOfRange:        "out of range",
	KindShortTransfer:     "short transfer",
}

// String returns the human-readable kind
func (k Kind) String() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return fmt.Sprintf("unknown kind (%d)", int(k))
}

// Operations recorded in Error.Op
const (
	OpOpen  = "open"
	OpClose = "close"
	OpSeek  = "seek"
	OpRead  = "read"
	OpWrite = "write"
)

// Error is a failure of the DMA channel or of a transfer request.
// Offset and Length describe the request (or segment) that failed and
// Done counts the bytes moved before the failure.
type Error struct {
	Kind   Kind
	Op     string
	Path   string
	Offset int64
	Length int64
	Done   int64
	Cause  error
}

// Sentinels for errors.Is; they match any *Error of the same kind
var (
	ErrDeviceError       = &Error{Kind: KindDeviceError}
	ErrChannelBusy       = &Error{Kind: KindChannelBusy}
	ErrDeviceUnavailable = &Error{Kind: KindDeviceUnavailable}
	ErrMisaligned        = &Error{Kind: KindMisaligned}
	ErrOutOfRange        = &Error{Kind: KindOutOfRange}
	ErrShortTransfer     = &Error{Kind: KindShortTransfer}
)

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Kind.String()
	switch {
	case e.Op == "":
	case e.Path != "":
		msg = fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
	default:
		msg = fmt.Sprintf("%s offset=%#x length=%d done=%d: %s", e.Op, e.Offset, e.Length, e.Done, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target kind
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// KindOf returns the kind of err, or false if err carries no *Error
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// OpenErrnoToKind converts an errno returned by open(2) on the DMA file.
// The driver answers EBUSY while another file holds the channel.
func OpenErrnoToKind(errno unix.Errno) Kind {
	switch errno {
	case unix.EBUSY:
		return KindChannelBusy
	default:
		return KindDeviceUnavailable
	}
}

// newOpenError creates the error for a failed open(2)
func newOpenError(path string, err error) *Error {
	kind := KindDeviceUnavailable
	var errno unix.Errno
	if errors.As(err, &errno) {
		kind = OpenErrnoToKind(errno)
	}
	return &Error{Kind: kind, Op: OpOpen, Path: path, Cause: err}
}

// NewTransferError creates an error for a failed seek, read or write
func NewTransferError(kind Kind, op string, offset, length, done int64, cause error) *Error {
	return &Error{
		Kind:   kind,
		Op:     op,
		Offset: offset,
		Length: length,
		Done:   done,
		Cause:  cause,
	}
}
