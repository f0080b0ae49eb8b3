package events

import (
	"context"
	"encoding/json"
	"fmt"

	"roombooking/pkg/kafka"
	"roombooking/pkg/middleware"
	"roombooking/pkg/model"
)

const SchemaVersion = "1"

// Publisher hands lifecycle events to downstream consumers. It is called
// after the write commits, so a failure never affects booking state.
type Publisher interface {
	Publish(ctx context.Context, event model.BookingEvent) error
}

// MessageWriter is the part of kafka.Producer the publisher needs.
type MessageWriter interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type KafkaPublisher struct {
	writer MessageWriter
	source string
}

func NewKafkaPublisher(writer MessageWriter, source string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, source: source}
}

// Publish keys messages by resource so one room's events stay ordered
// within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event model.BookingEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode booking event: %w", err)
	}

	builder := kafka.NewMessage().
		WithKey(event.ResourceID).
		WithRawValue(value).
		WithEventID(event.EventID).
		WithEventType(string(event.Type)).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source)
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		builder = builder.WithCorrelationID(requestID)
	}

	return p.writer.Publish(ctx, builder.Build())
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, model.BookingEvent) error {
	return nil
}

// Recorder keeps published events in memory for tests.
type Recorder struct {
	events chan model.BookingEvent
}

func NewRecorder(size int) *Recorder {
	return &Recorder{events: make(chan model.BookingEvent, size)}
}

func (r *Recorder) Publish(_ context.Context, event model.BookingEvent) error {
	select {
	case r.events <- event:
		return nil
	default:
		return fmt.Errorf("event recorder full")
	}
}

// Drain returns every event recorded so far.
func (r *Recorder) Drain() []model.BookingEvent {
	var out []model.BookingEvent
	for {
		select {
		case e := <-r.events:
			out = append(out, e)
		default:
			return out
		}
	}
}
