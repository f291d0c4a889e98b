package vector

import "errors"

var (
	// ErrConnection is returned when the vector store cannot be reached.
	ErrConnection = errors.New("vector store connection error")

	// ErrCollection is returned when the collection cannot be prepared.
	ErrCollection = errors.New("vector store collection error")
)
