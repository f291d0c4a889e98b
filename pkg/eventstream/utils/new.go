// Package eventstreamutils builds the configured statement event publisher.
package eventstreamutils

import (
	"fmt"

	"github.com/papercomputeco/kb/pkg/eventstream"
	"github.com/papercomputeco/kb/pkg/eventstream/kafka"
	"github.com/papercomputeco/kb/pkg/eventstream/nop"
)

const (
	ProviderNop   = "nop"
	ProviderKafka = "kafka"
)

type NewPublisherOpts struct {
	ProviderType string
	Brokers      []string
	Topic        string
}

// NewPublisher returns the publisher for o.ProviderType. An empty provider
// selects the no-op publisher.
func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", ProviderNop:
		return nop.NewPublisher(), nil
	case ProviderKafka:
		p, err := kafka.NewPublisher(kafka.Config{Brokers: o.Brokers, Topic: o.Topic})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", o.ProviderType)
	}
}
