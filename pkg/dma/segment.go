package dma

import (
	"fmt"

	"github.com/ohwr/spec-dma/pkg/driver"
)

// Segment is the part of a transfer serviced by one seek followed by
// one or more reads or writes
type Segment struct {
	Offset int64
	Length int64
}

// End returns the offset just past the segment
func (s Segment) End() int64 {
	return s.Offset + s.Length
}

// String implements fmt.Stringer
func (s Segment) String() string {
	return fmt.Sprintf("[%#x, %#x)", s.Offset, s.End())
}

// Plan splits [offset, offset+length) into contiguous segments of at most
// size bytes in ascending order. A size of zero or more than length yields
// a single segment; a zero length yields none.
func Plan(offset, length, size int64) []Segment {
	if length <= 0 {
		return nil
	}
	if size <= 0 || size >= length {
		return []Segment{{Offset: offset, Length: length}}
	}

	segs := make([]Segment, 0, (length+size-1)/size)
	for done := int64(0); done < length; done += size {
		segs = append(segs, Segment{
			Offset: offset + done,
			Length: min(size, length-done),
		})
	}
	return segs
}

// Validate checks a request against the DDR address space. The engine
// runs it before any device operation; callers may run it before
// preparing a large buffer.
func Validate(op string, offset, length int64) error {
	if !driver.IsAligned(offset) || !driver.IsAligned(length) {
		return driver.NewTransferError(driver.KindMisaligned, op, offset, length, 0, nil)
	}
	if offset < 0 || length < 0 || offset > driver.DDRSize || length > driver.DDRSize-offset {
		return driver.NewTransferError(driver.KindOutOfRange, op, offset, length, 0, nil)
	}
	return nil
}

// effectiveSegmentSize combines the caller's hint with the transport limit
func effectiveSegmentSize(ch driver.Channel, hint int64) int64 {
	size := hint
	if l, ok := ch.(driver.Limiter); ok {
		if limit := int64(l.MaxTransfer()) &^ (driver.DDRAlign - 1); limit > 0 && (size == 0 || limit < size) {
			size = limit
		}
	}
	return size
}
