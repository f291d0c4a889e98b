package storage

import (
	"errors"
	"strconv"
)

// ErrCascadeUnsupported is returned by DeleteStatement when the engine cannot
// guarantee that chunks are deleted atomically with their statement.
var ErrCascadeUnsupported = errors.New("cascade delete not enforced by storage engine")

// NotFoundError is returned when a statement doesn't exist in the store.
type NotFoundError struct {
	ID int64
}

func (e NotFoundError) Error() string {
	if e.ID == 0 {
		return "statement not found"
	}
	return "statement not found: " + strconv.FormatInt(e.ID, 10)
}

// ReferentialError is returned when a chunk references a statement that does
// not exist.
type ReferentialError struct {
	StatementID int64
}

func (e ReferentialError) Error() string {
	return "chunk references nonexistent statement " + strconv.FormatInt(e.StatementID, 10)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// IsReferential reports whether err is or wraps a ReferentialError.
func IsReferential(err error) bool {
	var re ReferentialError
	return errors.As(err, &re)
}
