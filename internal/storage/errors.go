package storage

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error reports a failed write to one persisted artifact. It is recoverable:
// callers log it and carry on sampling.
type Error struct {
	Op   string // "append" or "live"
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether any error in err's chain is a storage Error
func IsStorageError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}
