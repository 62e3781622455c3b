// Package store holds the storage-layer error taxonomy shared by the
// persistence backends.
package store

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage wraps any failure reported by the storage layer.
	ErrStorage = errors.New("storage error")
	// ErrInvalidData is returned when the storage layer rejects a value
	// (wrong numeric or date shape, value out of range).
	ErrInvalidData = errors.New("storage rejected value")
)

// Wrap marks err as a storage failure. Nil stays nil; errors already carrying
// a domain sentinel should not be passed here.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) || errors.Is(err, ErrInvalidData) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
