package dma

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/ohwr/spec-dma/pkg/device"
	"github.com/ohwr/spec-dma/pkg/driver"
)

// State is the lifecycle state of a lease
type State int

// Lease states. Released is terminal.
const (
	StateUnacquired State = iota
	StateAcquired
	StateReleased
)

var stateNames = map[State]string{
	StateUnacquired: "unacquired",
	StateAcquired:   "acquired",
	StateReleased:   "released",
}

// String returns the state name
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown state (%d)", int(s))
}

// Opener opens the channel file at path
type Opener func(path string) (driver.Channel, error)

// OpenChannelFile opens the real debugfs DMA file
func OpenChannelFile(path string) (driver.Channel, error) {
	ch, err := driver.OpenChannel(path)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Option configures a lease
type Option func(*Lease)

// WithOpener replaces the channel opener
func WithOpener(open Opener) Option {
	return func(l *Lease) {
		l.open = open
	}
}

// WithLogger sets the logger for acquisition, release and failures
func WithLogger(logger *log.Logger) Option {
	return func(l *Lease) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithSegmentSize sets the default segment size hint of the lease's
// engine. Zero leaves segmentation to the transport limit.
func WithSegmentSize(n int64) Option {
	return func(l *Lease) {
		l.segmentSize = n
	}
}

// Lease is exclusive ownership of the board's single DMA channel, from
// Acquire to Release.
//
// A lease has one owner. Transfers through its engine are not serialised
// internally; callers sharing a lease between goroutines must do so
// themselves.
type Lease struct {
	dev         *device.Device
	open        Opener
	logger      *log.Logger
	segmentSize int64

	ch     driver.Channel
	state  State
	engine *Engine
}

// NewLease creates an unacquired lease on the board's channel
func NewLease(dev *device.Device, opts ...Option) *Lease {
	l := &Lease{
		dev:    dev,
		open:   OpenChannelFile,
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.engine = &Engine{lease: l}
	return l
}

// Acquire creates a lease and acquires it
func Acquire(dev *device.Device, opts ...Option) (*Lease, error) {
	l := NewLease(dev, opts...)
	if err := l.Acquire(); err != nil {
		return nil, err
	}
	return l, nil
}

// WithLease runs fn with the engine of a freshly acquired lease and
// releases it afterwards, also when fn fails or panics
func WithLease(dev *device.Device, fn func(*Engine) error, opts ...Option) (err error) {
	l, err := Acquire(dev, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := l.Release(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()

	return fn(l.Engine())
}

// Acquire opens the channel. It fails with driver.ErrChannelBusy while
// another file holds the channel and with driver.ErrDeviceUnavailable when
// the channel cannot be opened. It fails with ErrBoardProgramming while
// this process is reprogramming the board; loads started by other
// processes are not visible, and must not overlap a lease. A lease is
// acquired at most once.
func (l *Lease) Acquire() error {
	switch l.state {
	case StateAcquired:
		return ErrAlreadyAcquired
	case StateReleased:
		return ErrLeaseReleased
	}

	id := l.dev.ID()
	if err := markHeld(id); err != nil {
		l.logger.Printf("[dma] %s: acquire failed: %v", l.dev, err)
		return fmt.Errorf("acquiring DMA channel of %s: %w", l.dev, err)
	}

	path := l.dev.Paths().DMA
	ch, err := l.open(path)
	if err != nil {
		markReleased(id)
		l.logger.Printf("[dma] %s: acquire failed: %v", l.dev, err)
		return fmt.Errorf("acquiring DMA channel of %s: %w", l.dev, err)
	}

	l.ch = ch
	l.state = StateAcquired
	l.logger.Printf("[dma] %s: channel acquired", l.dev)
	return nil
}

// Release closes the channel. It is a no-op unless the lease is
// acquired, and the lease is released even if closing fails.
func (l *Lease) Release() error {
	if l.state != StateAcquired {
		return nil
	}

	err := l.ch.Close()
	l.ch = nil
	l.state = StateReleased
	markReleased(l.dev.ID())

	if err != nil {
		l.logger.Printf("[dma] %s: release failed: %v", l.dev, err)
		return fmt.Errorf("releasing DMA channel of %s: %w", l.dev, err)
	}
	l.logger.Printf("[dma] %s: channel released", l.dev)
	return nil
}

// State returns the lease state
func (l *Lease) State() State {
	return l.state
}

// Device returns the board the lease is for
func (l *Lease) Device() *device.Device {
	return l.dev
}

// Engine returns the transfer engine bound to the lease
func (l *Lease) Engine() *Engine {
	return l.engine
}

// channel returns the open channel or the caller error for the state
func (l *Lease) channel() (driver.Channel, error) {
	switch l.state {
	case StateAcquired:
		return l.ch, nil
	case StateReleased:
		return nil, ErrLeaseReleased
	default:
		return nil, ErrNotAcquired
	}
}
