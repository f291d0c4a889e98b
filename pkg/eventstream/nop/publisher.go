// Package nop provides the publisher used when statement events are
// disabled.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/kb/pkg/eventstream"
)

// Publisher validates and counts events without sending them anywhere.
type Publisher struct {
	dropped atomic.Int64
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishStatement rejects invalid events and discards valid ones.
func (p *Publisher) PublishStatement(_ context.Context, event *eventstream.StatementEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	p.dropped.Add(1)
	return nil
}

// Discarded returns the number of valid events discarded so far.
func (p *Publisher) Discarded() int64 {
	return p.dropped.Load()
}

func (p *Publisher) Close() error {
	return nil
}
