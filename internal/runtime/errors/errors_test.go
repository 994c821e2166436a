package errors

import (
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrServiceRequired", ErrServiceRequired, "pubsubflow: service is required"},
		{"ErrHandlerRequired", ErrHandlerRequired, "pubsubflow: handler function is required"},
		{"ErrHandlerNameRequired", ErrHandlerNameRequired, "pubsubflow: handler name is required"},
		{"ErrHandlerExists", ErrHandlerExists, "pubsubflow: handler name already registered"},
		{"ErrSubscriptionURIRequired", ErrSubscriptionURIRequired, "pubsubflow: subscription uri is required"},
		{"ErrTopicURIRequired", ErrTopicURIRequired, "pubsubflow: topic uri is required"},
		{"ErrConfigRequired", ErrConfigRequired, "pubsubflow: configuration is required"},
		{"ErrLoggerRequired", ErrLoggerRequired, "pubsubflow: logger is required"},
		{"ErrServiceStarted", ErrServiceStarted, "pubsubflow: service already started"},
		{"ErrConsumeMessageTypeRequired", ErrConsumeMessageTypeRequired, "pubsubflow: consume message type is required"},
		{"ErrConsumeMessagePointerNeeded", ErrConsumeMessagePointerNeeded, "pubsubflow: consume message type must be a pointer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfigValidationError(t *testing.T) {
	inner := errors.New("invalid port")
	err := ConfigValidationError{Err: inner}

	want := "pubsubflow: invalid configuration: invalid port"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if unwrapped := err.Unwrap(); unwrapped != inner {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, inner)
	}
}

func TestNewConfigValidationError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		err := NewConfigValidationError(nil)
		if err != nil {
			t.Errorf("NewConfigValidationError(nil) = %v, want nil", err)
		}
	})

	t.Run("wraps error correctly", func(t *testing.T) {
		inner := errors.New("bad config")
		err := NewConfigValidationError(inner)

		var cfgErr ConfigValidationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigValidationError, got %T", err)
		}
		if cfgErr.Err != inner {
			t.Errorf("wrapped error = %v, want %v", cfgErr.Err, inner)
		}
	})

	t.Run("errors.Is works with wrapped error", func(t *testing.T) {
		inner := errors.New("specific error")
		err := NewConfigValidationError(inner)

		if !errors.Is(err, inner) {
			t.Error("errors.Is should match wrapped error")
		}
	})
}
