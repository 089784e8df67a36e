// Package processor filters and shapes change records and hands them to
// outbound sinks.
package processor

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"tabletrace/internal/models"
)

// Sink delivers encoded payloads.
type Sink interface {
	Send(data []byte) error
}

// Encoder turns a change record into an outbound payload.
type Encoder interface {
	Encode(record *models.ChangeRecord) ([]byte, error)
}

// Processor encodes each change record and sends it to a sink. It is
// registered with the watcher as a publisher.
type Processor struct {
	encoder Encoder
	sink    Sink
	logger  *logrus.Logger
}

func NewProcessor(encoder Encoder, sink Sink, logger *logrus.Logger) *Processor {
	return &Processor{
		encoder: encoder,
		sink:    sink,
		logger:  logger,
	}
}

// Publish encodes and sends record. A record rejected by the transformer is
// skipped without error.
func (p *Processor) Publish(record *models.ChangeRecord) error {
	data, err := p.encoder.Encode(record)
	if err != nil {
		if errors.Is(err, ErrEventRejected) {
			p.logger.Debugf("Change #%d rejected by transformer", record.Event.ID)
			return nil
		}
		return fmt.Errorf("failed to encode change #%d: %w", record.Event.ID, err)
	}

	if err := p.sink.Send(data); err != nil {
		return fmt.Errorf("failed to send change #%d: %w", record.Event.ID, err)
	}
	p.logger.Infof("Published change #%d for %s (%d row diffs)",
		record.Event.ID, record.Event.Table, len(record.Diffs))
	return nil
}
