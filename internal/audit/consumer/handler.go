package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"roombooking/internal/audit/repository"
	"roombooking/internal/bookings/events"
	"roombooking/pkg/kafka"
	"roombooking/pkg/logger"
	"roombooking/pkg/model"
)

// NewEventHandler stores lifecycle events in the audit trail. Malformed or
// foreign-schema messages are permanent failures and go straight to the DLQ;
// storage failures are transient and retried by the consumer.
func NewEventHandler(repo repository.EventRepository, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		if version := msg.GetSchemaVersion(); version != "" && version != events.SchemaVersion {
			return kafka.NewPermanentError(fmt.Sprintf("unsupported schema version %q", version), kafka.ErrInvalidMessage)
		}

		var event model.BookingEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return kafka.NewPermanentError("failed to decode booking event", err)
		}
		if event.EventID == "" || event.BookingID == "" {
			return kafka.NewPermanentError("booking event is missing identifiers", kafka.ErrInvalidMessage)
		}
		if headerID := msg.GetEventID(); headerID != "" && headerID != event.EventID {
			return kafka.NewPermanentError("event id header does not match payload", kafka.ErrInvalidMessage)
		}

		if err := repo.Save(ctx, &event); err != nil {
			return kafka.NewTransientError("failed to store booking event", err)
		}

		log.Debug("Booking event recorded",
			"event_id", event.EventID,
			"type", event.Type,
			"booking_id", event.BookingID,
		)
		return nil
	}
}
