package kafka

import (
	"testing"
	"time"
)

func TestMessageBuilder(t *testing.T) {
	msg := NewMessage().
		WithKey("r-1").
		WithValue(map[string]string{"a": "b"}).
		WithEventType("booking.created").
		WithSchemaVersion("1").
		WithSource("bookings").
		WithCorrelationID("req-1").
		Build()

	if msg.Key != "r-1" {
		t.Errorf("Key = %q", msg.Key)
	}
	if string(msg.Value) != `{"a":"b"}` {
		t.Errorf("Value = %s", msg.Value)
	}
	if msg.GetEventID() == "" {
		t.Error("Build should assign an event id")
	}
	if msg.GetEventType() != "booking.created" || msg.GetSchemaVersion() != "1" || msg.GetCorrelationID() != "req-1" {
		t.Errorf("unexpected headers: %v", msg.Headers)
	}
	if _, err := time.Parse(time.RFC3339Nano, msg.Headers[HeaderTimestamp]); err != nil {
		t.Errorf("timestamp header: %v", err)
	}
}

func TestMessageBuilder_UnencodableValueIsEmpty(t *testing.T) {
	msg := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	if msg.Value != nil {
		t.Errorf("Value = %v, want nil", msg.Value)
	}
}

func TestRetryCount(t *testing.T) {
	var msg Message
	if msg.GetRetryCount() != 0 {
		t.Fatal("zero message should report no retries")
	}
	msg.IncrementRetryCount()
	msg.IncrementRetryCount()
	if got := msg.GetRetryCount(); got != 2 {
		t.Errorf("GetRetryCount() = %d, want 2", got)
	}

	msg.Headers[HeaderRetryCount] = "garbage"
	if msg.GetRetryCount() != 0 {
		t.Error("unparsable count should read as zero")
	}
}

func TestDecodeValue(t *testing.T) {
	msg := NewMessage().WithKey("k").WithRawValue([]byte(`{"booking_id":"b-1"}`)).Build()
	var out struct {
		BookingID string `json:"booking_id"`
	}
	if err := msg.DecodeValue(&out); err != nil || out.BookingID != "b-1" {
		t.Errorf("DecodeValue() = %v, %+v", err, out)
	}
}
