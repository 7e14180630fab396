package service

import "errors"

var ErrEmptyCart = errors.New("empty cart")

// StorageError wraps a failed write or header read. Its message is the
// underlying error's message.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
