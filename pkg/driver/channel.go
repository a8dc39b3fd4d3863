package driver

import (
	"io"

	"golang.org/x/sys/unix"
)

// Channel is a seekable byte channel onto the board DDR. Read and Write
// may move fewer bytes than asked; callers loop until satisfied.
type Channel interface {
	io.ReadWriteSeeker
	io.Closer
}

// Limiter is implemented by channels that cap the size of a single
// read or write.
type Limiter interface {
	MaxTransfer() int
}

// ChannelFile is the DMA debugfs file opened on a raw file descriptor.
// Nothing is buffered in user space: every Read and Write is one
// read(2)/write(2), which the driver turns into one DMA transfer.
type ChannelFile struct {
	fd   int
	path string
}

// OpenChannel opens the DMA file read-write. The driver allows a single
// open file per channel and reports EBUSY to the others.
func OpenChannel(path string) (*ChannelFile, error) {
	var fd int
	err := ignoringEINTR(func() (err error) {
		fd, err = unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
		return err
	})
	if err != nil {
		return nil, newOpenError(path, err)
	}
	return &ChannelFile{fd: fd, path: path}, nil
}

// Close closes the channel file
func (c *ChannelFile) Close() error {
	if c.fd >= 0 {
		err := unix.Close(c.fd)
		c.fd = -1
		if err != nil {
			return &Error{Kind: KindDeviceError, Op: OpClose, Path: c.path, Cause: err}
		}
	}
	return nil
}

// Fd returns the file descriptor
func (c *ChannelFile) Fd() int {
	return c.fd
}

// Path returns the channel path
func (c *ChannelFile) Path() string {
	return c.path
}

// MaxTransfer returns the kernel cap on a single read or write
func (c *ChannelFile) MaxTransfer() int {
	return MaxRWCount
}

// Seek moves the DDR cursor and returns its new absolute offset
func (c *ChannelFile) Seek(offset int64, whence int) (int64, error) {
	if c.fd < 0 {
		return 0, unix.EBADF
	}
	var pos int64
	err := ignoringEINTR(func() (err error) {
		pos, err = unix.Seek(c.fd, offset, whence)
		return err
	})
	if err != nil {
		return 0, err
	}
	return pos, nil
}

// Read transfers DDR content at the cursor into p
func (c *ChannelFile) Read(p []byte) (int, error) {
	if c.fd < 0 {
		return 0, unix.EBADF
	}
	var n int
	err := ignoringEINTR(func() (err error) {
		n, err = unix.Read(c.fd, p)
		return err
	})
	if err != nil {
		return 0, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write transfers p into DDR at the cursor
func (c *ChannelFile) Write(p []byte) (int, error) {
	if c.fd < 0 {
		return 0, unix.EBADF
	}
	var n int
	err := ignoringEINTR(func() (err error) {
		n, err = unix.Write(c.fd, p)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ignoringEINTR restarts fn while it is interrupted by a signal
func ignoringEINTR(fn func() error) error {
	for {
		err := fn()
		if err != unix.EINTR {
			return err
		}
	}
}
