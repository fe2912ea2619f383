package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrAuth           = errors.New("authentication failed")
	ErrInvalidInput   = errors.New("invalid input")
	ErrRemote         = errors.New("remote file store error")
	ErrTimeout        = errors.New("remote file store timeout")
	ErrDataCorruption = errors.New("data corruption")
)

// CorruptSnapshotError reports a snapshot whose payload cannot be decoded.
// It matches ErrDataCorruption with errors.Is.
type CorruptSnapshotError struct {
	SnapshotID int64
	Err        error
}

func (e *CorruptSnapshotError) Error() string {
	return fmt.Sprintf("snapshot %d is unreadable: %v", e.SnapshotID, e.Err)
}

func (e *CorruptSnapshotError) Unwrap() []error {
	return []error{ErrDataCorruption, e.Err}
}
