package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// handshakePoll is how often a bounded open retries while waiting for the
// peer to open its end.
const handshakePoll = 10 * time.Millisecond

// makeFIFO replaces whatever is at path with a fresh named pipe.
func makeFIFO(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale %s: %w", path, err)
	}
	if err := unix.Mkfifo(path, 0o600); err != nil {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}

// removeIfExists deletes path, ignoring a missing file.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// openReader opens path for non-blocking reads. The raw descriptor is kept
// away from the runtime poller so a read with no data returns at once.
func openReader(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("open %s for reading: %w", path, err)
	}
	return fd, nil
}

// openWriter opens path for blocking writes. Opening a pipe for writing
// waits until a reader has it open. With timeout zero that wait is
// unbounded; otherwise it fails with context.DeadlineExceeded after timeout.
func openWriter(path string, timeout time.Duration) (*os.File, error) {
	if timeout <= 0 {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("open %s for writing: %w", path, err)
		}
		return f, nil
	}

	deadline := time.Now().Add(timeout)
	for {
		fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err == nil {
			if err := unix.SetNonblock(fd, false); err != nil {
				unix.Close(fd)
				return nil, fmt.Errorf("set %s blocking: %w", path, err)
			}
			return os.NewFile(uintptr(fd), path), nil
		}
		if !errors.Is(err, unix.ENXIO) {
			return nil, fmt.Errorf("open %s for writing: %w", path, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("open %s for writing: no reader after %v: %w", path, timeout, context.DeadlineExceeded)
		}
		time.Sleep(handshakePoll)
	}
}

// readResult classifies a single non-blocking read.
type readResult int

const (
	readByte readResult = iota
	readEmpty           // no data right now
	readEOF             // no writer attached
)

// readOne reads at most one byte from a non-blocking descriptor.
func readOne(fd int, buf []byte) (readResult, error) {
	for {
		n, err := unix.Read(fd, buf[:1])
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return readEmpty, nil
		case err != nil:
			return readEmpty, err
		case n == 0:
			return readEOF, nil
		default:
			return readByte, nil
		}
	}
}
