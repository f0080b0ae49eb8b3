package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "roombooking/pkg/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantStatus    int
		wantCode      string
		wantRetryable bool
	}{
		{
			name:       "slot conflict",
			err:        apperrors.SlotConflict("overlaps approved booking"),
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.CodeSlotConflict,
		},
		{
			name:          "storage error is retryable",
			err:           apperrors.Storage("write failed", errors.New("io")),
			wantStatus:    http.StatusServiceUnavailable,
			wantCode:      apperrors.CodeStorage,
			wantRetryable: true,
		},
		{
			name:       "plain error hides cause",
			err:        errors.New("mongo: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   apperrors.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if err := WriteError(rec, tt.err); err != nil {
				t.Fatalf("WriteError: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, body.Code)
			}
			if body.Retryable != tt.wantRetryable {
				t.Errorf("expected retryable %v, got %v", tt.wantRetryable, body.Retryable)
			}
			if body.Error == "mongo: connection refused" {
				t.Errorf("internal cause leaked to client")
			}
		})
	}
}

func TestExtractLimitOffset(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings?limit=5000&offset=-3", nil)
	limit, offset, err := ExtractLimitOffset(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limit != 100 {
		t.Errorf("expected limit clamped to 100, got %d", limit)
	}
	if offset != 0 {
		t.Errorf("expected offset clamped to 0, got %d", offset)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/bookings?limit=abc", nil)
	if _, _, err := ExtractLimitOffset(req); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestParseTimeParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?from=2025-03-10T09:00:00Z&bad=yesterday", nil)

	from, err := ParseTimeParam(req, "from")
	if err != nil || from == nil || from.Hour() != 9 {
		t.Fatalf("expected 09:00, got %v (%v)", from, err)
	}
	if missing, err := ParseTimeParam(req, "to"); missing != nil || err != nil {
		t.Errorf("missing parameter should be nil, nil")
	}
	if _, err := ParseTimeParam(req, "bad"); err == nil {
		t.Errorf("expected parse error")
	}
}
