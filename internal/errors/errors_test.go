package errors

import (
	"fmt"
	"testing"
)

func TestSkyError_Error(t *testing.T) {
	err := &SkyError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "not found: did:plc:abc",
	}

	expected := "NOT_FOUND: not found: did:plc:abc"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("actor is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "actor is required" {
		t.Errorf("Message = %q, want %q", err.Message, "actor is required")
	}
}

func TestNewUnauthorized(t *testing.T) {
	err := NewUnauthorized(403)

	if err.Code != ErrUnauthorized {
		t.Errorf("Code = %q, want %q", err.Code, ErrUnauthorized)
	}
	if err.Status != 401 {
		t.Errorf("Status = %d, want 401", err.Status)
	}
	if err.Details["upstream_status"] != 403 {
		t.Errorf("Details[upstream_status] = %v, want 403", err.Details["upstream_status"])
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("did:plc:ghost")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["identifier"] != "did:plc:ghost" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "did:plc:ghost")
	}
}

func TestNewTransport(t *testing.T) {
	err := NewTransport(fmt.Errorf("connection refused"))

	if err.Code != ErrTransport {
		t.Errorf("Code = %q, want %q", err.Code, ErrTransport)
	}
	if err.Status != 502 {
		t.Errorf("Status = %d, want 502", err.Status)
	}
	// Message stays generic; the cause lives in Details for logging.
	if err.Message != "upstream request failed" {
		t.Errorf("Message = %q, want %q", err.Message, "upstream request failed")
	}
	if err.Details["cause"] != "connection refused" {
		t.Errorf("Details[cause] = %v, want %q", err.Details["cause"], "connection refused")
	}
}

func TestNewStore(t *testing.T) {
	err := NewStore(fmt.Errorf("database is locked"))

	if err.Code != ErrStore {
		t.Errorf("Code = %q, want %q", err.Code, ErrStore)
	}
	if err.Status != 500 {
		t.Errorf("Status = %d, want 500", err.Status)
	}
	if err.Details["cause"] != "database is locked" {
		t.Errorf("Details[cause] = %v, want %q", err.Details["cause"], "database is locked")
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		originalErr := fmt.Errorf("database connection failed")
		err := NewInternal(originalErr)

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Status != 500 {
			t.Errorf("Status = %d, want 500", err.Status)
		}
		// Client-facing message stays generic
		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		// The wrapped error lands in Details for server-side logging
		if err.Details["internal_error"] != "database connection failed" {
			t.Errorf("Details[internal_error] = %q, want %q", err.Details["internal_error"], "database connection failed")
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)

		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		// Details comes back empty, never nil
		if err.Details == nil {
			t.Error("Details should not be nil")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		err := NewNotFound("test")
		if !Is(err, ErrNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		err := NewNotFound("test")
		if Is(err, ErrUnauthorized) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("non-SkyError", func(t *testing.T) {
		err := fmt.Errorf("plain error")
		if Is(err, ErrNotFound) {
			t.Error("Is() = true, want false for non-SkyError")
		}
	})

	t.Run("wrapped SkyError", func(t *testing.T) {
		inner := NewTransport(fmt.Errorf("dial tcp: timeout"))
		wrapped := fmt.Errorf("fetch profile: %w", inner)
		if !Is(wrapped, ErrTransport) {
			t.Error("Is() = false, want true for wrapped SkyError")
		}
		if Is(wrapped, ErrNotFound) {
			t.Error("Is() = true, want false for wrong code on wrapped SkyError")
		}
	})
}
