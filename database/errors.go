package database

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidRecord is returned by Insert when the record breaks the rating or
// review-text preconditions. Nothing is written.
var ErrInvalidRecord = errors.New("invalid feedback record")

// StorageError reports a failed read or write against the durable store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err (or anything it wraps) is a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
