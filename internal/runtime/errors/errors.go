package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrServiceRequired         = sterrors.New("pubsubflow: service is required")
	ErrHandlerRequired         = sterrors.New("pubsubflow: handler function is required")
	ErrHandlerNameRequired     = sterrors.New("pubsubflow: handler name is required")
	ErrHandlerExists           = sterrors.New("pubsubflow: handler name already registered")
	ErrSubscriptionURIRequired = sterrors.New("pubsubflow: subscription uri is required")
	ErrTopicURIRequired        = sterrors.New("pubsubflow: topic uri is required")
	ErrConfigRequired          = sterrors.New("pubsubflow: configuration is required")
	ErrLoggerRequired          = sterrors.New("pubsubflow: logger is required")
	ErrServiceStarted          = sterrors.New("pubsubflow: service already started")

	ErrConsumeMessageTypeRequired  = sterrors.New("pubsubflow: consume message type is required")
	ErrConsumeMessagePointerNeeded = sterrors.New("pubsubflow: consume message type must be a pointer")
)

// ConfigValidationError reports an invalid Config.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("pubsubflow: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
