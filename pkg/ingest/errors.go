package ingest

import "errors"

var (
	// ErrStoreRequired is returned by New without a storage driver.
	ErrStoreRequired = errors.New("storage driver required")

	// ErrAlreadyChunked is returned by InsertChunksForStatement when the
	// statement has chunks. Use Rechunk to replace them.
	ErrAlreadyChunked = errors.New("statement already has chunks")
)
