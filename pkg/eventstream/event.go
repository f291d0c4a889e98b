package eventstream

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/kb/pkg/statement"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeStatementIngested is emitted after a statement and its chunks commit.
	EventTypeStatementIngested = "kb.statement.ingested"

	// EventTypeStatementDeleted is emitted after a statement and its chunks are deleted.
	EventTypeStatementDeleted = "kb.statement.deleted"
)

// StatementEvent is a transport-neutral event payload for a statement
// lifecycle change.
type StatementEvent struct {
	SchemaVersion int                 `json:"schema_version"`
	EventType     string              `json:"event_type"`
	EventID       string              `json:"event_id"`
	EmittedAt     time.Time           `json:"emitted_at"`
	Statement     statement.Statement `json:"statement"`
	Ingest        *IngestMeta         `json:"ingest,omitempty"`
}

// IngestMeta describes what an ingestion wrote.
type IngestMeta struct {
	IsNew          bool    `json:"is_new"`
	ChunkIDs       []int64 `json:"chunk_ids"`
	EmbeddedChunks int     `json:"embedded_chunks"`
}

// NewStatementEvent stamps a new event of the given type for s.
func NewStatementEvent(eventType string, s statement.Statement) *StatementEvent {
	return &StatementEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Statement:     s,
	}
}

// Validate checks that e can be published.
func (e *StatementEvent) Validate() error {
	if e == nil {
		return ErrNilStatementEvent
	}
	switch e.EventType {
	case EventTypeStatementIngested, EventTypeStatementDeleted:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.EventType)
	}
}
