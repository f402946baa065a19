//go:build !unix

package compose

import "os"

// lockExclusive is a no-op on platforms without flock; the atomic
// temp-file-then-rename write is still race-free for the final result.
func lockExclusive(f *os.File) error { return nil }

func unlock(f *os.File) {}
