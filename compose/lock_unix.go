//go:build unix

package compose

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/sweproj/onerom/errors"
)

// lockExclusive takes a non-blocking advisory lock on f, failing at once if
// another process already holds one. WriteFile locks its own freshly
// created temp file, so two invocations writing the same destination lock
// different files and do not exclude each other; each writes its own temp
// file, and the final rename keeps the destination whole.
func lockExclusive(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return errors.Wrap(errors.SourceError, err, "locking %s", f.Name())
	}
	return nil
}

func unlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
