package eventstream

import "errors"

var (
	// ErrNilStatementEvent indicates a nil statement event payload was provided to a publisher.
	ErrNilStatementEvent = errors.New("nil statement event")

	// ErrUnknownEventType is returned for an event type this schema version does not define.
	ErrUnknownEventType = errors.New("unknown statement event type")
)
