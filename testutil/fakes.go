package testutil

import (
	"io"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/ohwr/spec-dma/pkg/driver"
)

const fakePageSize = 64 * 1024

// FakeBoard models the SPEC DDR behind the DMA driver. Memory is sparse
// so the full 256 MiB address space costs only what tests touch. Like
// the driver, it allows a single open channel at a time.
type FakeBoard struct {
	mu    sync.Mutex
	size  int64
	pages map[int64][]byte
	open  *FakeChannel

	failOnOpen  error
	chunk       int
	maxTransfer int
	failAfter   int64
	failErr     error
	eofAt       int64
	stallWrites bool
	moved       int64
	stats       FakeStats
}

// FakeStats counts the device operations the board has seen
type FakeStats struct {
	Opens  int
	Seeks  int
	Reads  int
	Writes int
}

// NewFakeBoard creates a board with the SPEC DDR size
func NewFakeBoard() *FakeBoard {
	return NewFakeBoardSize(driver.DDRSize)
}

// NewFakeBoardSize creates a board with a custom DDR size
func NewFakeBoardSize(size int64) *FakeBoard {
	return &FakeBoard{
		size:      size,
		pages:     make(map[int64][]byte),
		failAfter: -1,
		eofAt:     -1,
	}
}

// Open opens the channel; it has the signature of a dma opener
func (b *FakeBoard) Open(path string) (driver.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Opens++
	if b.failOnOpen != nil {
		return nil, &driver.Error{
			Kind:  driver.OpenErrnoToKind(toErrno(b.failOnOpen)),
			Op:    driver.OpOpen,
			Path:  path,
			Cause: b.failOnOpen,
		}
	}
	if b.open != nil {
		return nil, &driver.Error{
			Kind:  driver.KindChannelBusy,
			Op:    driver.OpOpen,
			Path:  path,
			Cause: unix.EBUSY,
		}
	}

	ch := &FakeChannel{board: b}
	b.open = ch
	return ch, nil
}

// IsOpen reports whether a channel is currently open
func (b *FakeBoard) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open != nil
}

// Stats returns the operation counters
func (b *FakeBoard) Stats() FakeStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// SetFailOnOpen makes Open fail with the given errno (nil to clear)
func (b *FakeBoard) SetFailOnOpen(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failOnOpen = err
}

// SetChunk limits every Read and Write to at most n bytes, producing
// short transfers. n must be a multiple of 4; 0 disables the limit.
func (b *FakeBoard) SetChunk(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunk = n
}

// SetMaxTransfer sets the limit advertised through driver.Limiter and
// rejects larger single requests with EINVAL.
func (b *FakeBoard) SetMaxTransfer(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxTransfer = n
}

// SetFailAfter makes transfers fail with err once n more bytes have moved
func (b *FakeBoard) SetFailAfter(n int64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAfter = b.moved + n
	b.failErr = err
}

// SetEOFAt makes reads at or beyond offset return end-of-file
func (b *FakeBoard) SetEOFAt(offset int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eofAt = offset
}

// SetStallWrites makes writes accept zero bytes without error
func (b *FakeBoard) SetStallWrites(stall bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stallWrites = stall
}

// Peek returns a copy of DDR content, bypassing the channel
func (b *FakeBoard) Peek(offset int64, length int) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, length)
	b.copyOut(offset, out)
	return out
}

// Poke stores data in DDR, bypassing the channel
func (b *FakeBoard) Poke(offset int64, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.copyIn(offset, data)
}

func (b *FakeBoard) copyOut(offset int64, dst []byte) {
	for done := 0; done < len(dst); {
		pos := offset + int64(done)
		page, in := pos/fakePageSize, pos%fakePageSize
		n := min(len(dst)-done, int(fakePageSize-in))
		if p, ok := b.pages[page]; ok {
			copy(dst[done:done+n], p[in:])
		} else {
			clear(dst[done : done+n])
		}
		done += n
	}
}

func (b *FakeBoard) copyIn(offset int64, src []byte) {
	for done := 0; done < len(src); {
		pos := offset + int64(done)
		page, in := pos/fakePageSize, pos%fakePageSize
		p, ok := b.pages[page]
		if !ok {
			p = make([]byte, fakePageSize)
			b.pages[page] = p
		}
		done += copy(p[in:], src[done:])
	}
}

// FakeChannel is an open DMA file on a FakeBoard. It enforces the
// driver's contract: 4-byte aligned offsets and sizes inside DDR.
type FakeChannel struct {
	board  *FakeBoard
	cursor int64
	closed bool
}

// Seek moves the cursor like lseek(2). The resulting offset must be
// aligned and inside DDR.
func (c *FakeChannel) Seek(offset int64, whence int) (int64, error) {
	b := c.board
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Seeks++
	if c.closed {
		return 0, unix.EBADF
	}
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += c.cursor
	case io.SeekEnd:
		offset += b.size
	default:
		return 0, unix.EINVAL
	}
	if offset < 0 || offset > b.size || !driver.IsAligned(offset) {
		return 0, unix.EINVAL
	}
	c.cursor = offset
	return offset, nil
}

// Read transfers DDR content at the cursor
func (c *FakeChannel) Read(p []byte) (int, error) {
	b := c.board
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Reads++
	n, err := c.admit(len(p))
	if err != nil {
		return 0, err
	}
	if b.eofAt >= 0 && c.cursor >= b.eofAt {
		return 0, io.EOF
	}
	if b.eofAt >= 0 && c.cursor+int64(n) > b.eofAt {
		n = int(b.eofAt - c.cursor)
	}

	b.copyOut(c.cursor, p[:n])
	c.advance(n)
	return n, nil
}

// Write transfers p into DDR at the cursor
func (c *FakeChannel) Write(p []byte) (int, error) {
	b := c.board
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Writes++
	n, err := c.admit(len(p))
	if err != nil {
		return 0, err
	}
	if b.stallWrites {
		return 0, nil
	}

	b.copyIn(c.cursor, p[:n])
	c.advance(n)
	return n, nil
}

// Close releases the channel for other openers
func (c *FakeChannel) Close() error {
	b := c.board
	b.mu.Lock()
	defer b.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if b.open == c {
		b.open = nil
	}
	return nil
}

// MaxTransfer implements driver.Limiter
func (c *FakeChannel) MaxTransfer() int {
	b := c.board
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxTransfer
}

// admit validates a transfer of size bytes at the cursor and returns how
// many bytes this call moves. Called with the board lock held.
func (c *FakeChannel) admit(size int) (int, error) {
	b := c.board
	if c.closed {
		return 0, unix.EBADF
	}
	if !driver.IsAligned(int64(size)) || c.cursor+int64(size) > b.size {
		return 0, unix.EINVAL
	}
	if b.maxTransfer > 0 && size > b.maxTransfer {
		return 0, unix.EINVAL
	}
	if b.failAfter >= 0 && b.moved >= b.failAfter {
		return 0, b.failErr
	}

	n := size
	if b.chunk > 0 && n > b.chunk {
		n = b.chunk
	}
	if b.failAfter >= 0 && b.moved+int64(n) > b.failAfter {
		n = int(b.failAfter - b.moved)
	}
	return n, nil
}

func (c *FakeChannel) advance(n int) {
	c.cursor += int64(n)
	c.board.moved += int64(n)
}

func toErrno(err error) unix.Errno {
	if errno, ok := err.(unix.Errno); ok {
		return errno
	}
	return unix.EIO
}
