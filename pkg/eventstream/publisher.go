package eventstream

import "context"

// Publisher publishes statement events to an event stream backend.
type Publisher interface {
	PublishStatement(ctx context.Context, event *StatementEvent) error
	Close() error
}
