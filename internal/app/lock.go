package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// AcquireLock creates the lock file at path holding the current pid. It
// reports held=true without error when the file already exists, meaning
// another instance is running. An empty path disables locking.
func AcquireLock(path string) (release func(), held bool, err error) {
	noop := func() {}
	if path == "" {
		return noop, false, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return noop, true, nil
		}
		return noop, false, fmt.Errorf("create lock file: %w", err)
	}

	_, writeErr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	closeErr := f.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		os.Remove(path)
		return noop, false, fmt.Errorf("write lock file: %w", err)
	}

	return func() { os.Remove(path) }, false, nil
}
