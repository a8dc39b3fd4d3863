package dma

import (
	"errors"
	"io"

	"github.com/ohwr/spec-dma/pkg/driver"
)

// TransferOption configures a single read or write
type TransferOption func(*transferConfig)

type transferConfig struct {
	segmentSize int64
}

// SegmentSize splits the transfer into segments of at most n bytes.
// n must be a multiple of 4; zero means no hint.
func SegmentSize(n int64) TransferOption {
	return func(c *transferConfig) {
		c.segmentSize = n
	}
}

// Engine moves bytes between host memory and board DDR over a lease.
//
// Every request is checked against the DDR geometry before the device is
// touched. Requests either complete in full or fail; failed reads return
// no data.
type Engine struct {
	lease *Lease
}

// Read transfers length bytes of DDR starting at offset
func (e *Engine) Read(offset, length int64, opts ...TransferOption) ([]byte, error) {
	ch, hint, err := e.prepare(driver.OpRead, offset, length, opts)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, length)
	if err := e.transfer(ch, driver.OpRead, offset, buf, hint); err != nil {
		return nil, err
	}
	return buf, nil
}

// Write transfers data into DDR starting at offset and returns len(data)
func (e *Engine) Write(offset int64, data []byte, opts ...TransferOption) (int, error) {
	ch, hint, err := e.prepare(driver.OpWrite, offset, int64(len(data)), opts)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}

	if err := e.transfer(ch, driver.OpWrite, offset, data, hint); err != nil {
		return 0, err
	}
	return len(data), nil
}

// ReadAt implements io.ReaderAt with the Read contract
func (e *Engine) ReadAt(p []byte, off int64) (int, error) {
	ch, hint, err := e.prepare(driver.OpRead, off, int64(len(p)), nil)
	if err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	if err := e.transfer(ch, driver.OpRead, off, p, hint); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteAt implements io.WriterAt with the Write contract
func (e *Engine) WriteAt(p []byte, off int64) (int, error) {
	return e.Write(off, p)
}

// prepare checks lease state, options and the request geometry
func (e *Engine) prepare(op string, offset, length int64, opts []TransferOption) (driver.Channel, int64, error) {
	ch, err := e.lease.channel()
	if err != nil {
		return nil, 0, err
	}

	cfg := transferConfig{segmentSize: e.lease.segmentSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.segmentSize < 0 || !driver.IsAligned(cfg.segmentSize) {
		return nil, 0, ErrInvalidSegmentSize
	}

	if err := Validate(op, offset, length); err != nil {
		return nil, 0, err
	}
	return ch, cfg.segmentSize, nil
}

// transfer runs every segment of the request in ascending order
func (e *Engine) transfer(ch driver.Channel, op string, offset int64, buf []byte, hint int64) error {
	length := int64(len(buf))
	var done int64
	for _, seg := range Plan(offset, length, effectiveSegmentSize(ch, hint)) {
		part := buf[seg.Offset-offset : seg.End()-offset]

		n, failedOp, err := transferSegment(ch, op, seg, part)
		done += n
		if err != nil {
			kind := driver.KindDeviceError
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrNoProgress) {
				kind = driver.KindShortTransfer
			}
			terr := driver.NewTransferError(kind, failedOp, offset, length, done, err)
			e.lease.logger.Printf("[dma] %s: %v", e.lease.dev, terr)
			return terr
		}
	}
	return nil
}

var (
	errBadCount = errors.New("transport reported an impossible byte count")
	errBadSeek  = errors.New("transport moved the cursor to the wrong offset")
)

// transferSegment positions the cursor and loops over partial reads or
// writes until the segment is complete. It returns the bytes moved and
// the operation that failed. A call that completes the segment succeeds
// even if it also reports an error such as io.EOF.
func transferSegment(ch driver.Channel, op string, seg Segment, buf []byte) (int64, string, error) {
	pos, err := ch.Seek(seg.Offset, io.SeekStart)
	if err != nil {
		return 0, driver.OpSeek, err
	}
	if pos != seg.Offset {
		return 0, driver.OpSeek, errBadSeek
	}

	move := ch.Read
	if op == driver.OpWrite {
		move = ch.Write
	}

	var done int
	for done < len(buf) {
		n, err := move(buf[done:])
		if n < 0 || n > len(buf)-done {
			return int64(done), op, errBadCount
		}
		done += n
		if done == len(buf) {
			break
		}
		if err != nil {
			return int64(done), op, err
		}
		if n == 0 {
			return int64(done), op, io.ErrNoProgress
		}
	}
	return int64(done), op, nil
}
