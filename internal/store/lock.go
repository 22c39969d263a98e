package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// ErrLockTimeout is returned when the writer lock is not acquired in time.
var ErrLockTimeout = errors.New("writer lock timed out")

// errInodeMismatch signals the lock file was replaced between open and flock.
var errInodeMismatch = errors.New("inode mismatch")

// locker takes exclusive flock(2) locks on a dedicated lock file. flock is
// advisory and per inode, so every writer must go through the same path and
// the lock file must never be replaced while held.
type locker struct {
	flock func(fd int, how int) error
}

func newLocker() *locker {
	return &locker{flock: unix.Flock}
}

// fileLock is a held lock. Close releases it; Close is idempotent.
type fileLock struct {
	mu    sync.Mutex
	file  *os.File
	flock func(fd int, how int) error
}

func (lk *fileLock) Close() error {
	lk.mu.Lock()
	defer lk.mu.Unlock()

	if lk.file == nil {
		return nil
	}

	fd := int(lk.file.Fd())

	unlockErr := flockRetryEINTR(lk.flock, fd, unix.LOCK_UN)
	closeErr := lk.file.Close()
	lk.file = nil

	if unlockErr != nil {
		unlockErr = fmt.Errorf("unlocking lock: %w", unlockErr)
	}

	if closeErr != nil {
		closeErr = fmt.Errorf("closing lock fd: %w", closeErr)
	}

	return errors.Join(unlockErr, closeErr)
}

// lock polls a non-blocking exclusive flock with exponential backoff
// (1ms to 25ms) until it succeeds, timeout elapses or ctx is done.
func (l *locker) lock(ctx context.Context, path string, timeout time.Duration) (*fileLock, error) {
	deadline := time.Now().Add(timeout)
	backoff := time.Millisecond

	for {
		file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening lockfile: %w", err)
		}

		err = l.acquire(file, path)
		if err == nil {
			return &fileLock{file: file, flock: l.flock}, nil
		}

		_ = file.Close()

		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, errInodeMismatch) {
			return nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w after %s", ErrLockTimeout, timeout)
		}

		timer := time.NewTimer(min(backoff, remaining))

		select {
		case <-ctx.Done():
			timer.Stop()

			return nil, fmt.Errorf("waiting for writer lock: %w", ctx.Err())
		case <-timer.C:
		}

		backoff = min(backoff*2, 25*time.Millisecond)
	}
}

// acquire flocks file and verifies it is still the file at path. On failure
// the file is unlocked but not closed.
func (l *locker) acquire(file *os.File, path string) error {
	fd := int(file.Fd())

	err := flockRetryEINTR(l.flock, fd, unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return unix.EWOULDBLOCK
		}

		return fmt.Errorf("flock: %w", err)
	}

	var open, current unix.Stat_t

	err = unix.Fstat(fd, &open)
	if err == nil {
		err = unix.Stat(path, &current)
	}

	if err != nil {
		_ = flockRetryEINTR(l.flock, fd, unix.LOCK_UN)

		if errors.Is(err, unix.ENOENT) {
			return errInodeMismatch
		}

		return fmt.Errorf("verifying inode match: %w", err)
	}

	if open.Dev != current.Dev || open.Ino != current.Ino {
		_ = flockRetryEINTR(l.flock, fd, unix.LOCK_UN)

		return errInodeMismatch
	}

	return nil
}

// flockRetryEINTR wraps flock, retrying when a signal interrupts the call.
func flockRetryEINTR(flock func(fd int, how int) error, fd int, how int) error {
	const maxEINTRRetries = 10000

	var err error
	for range maxEINTRRetries {
		err = flock(fd, how)
		if err == nil || !errors.Is(err, unix.EINTR) {
			return err
		}
	}

	return err
}
