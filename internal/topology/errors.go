package topology

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched (errors.Is) by every error caused by invalid
// names, URIs or settings. Such errors are raised before any broker call.
var ErrConfiguration = errors.New("pubsub: configuration error")

var (
	ErrInvalidName       = errors.New("invalid resource name")
	ErrSchemeMismatch    = errors.New("uri scheme does not match transport")
	ErrMalformedURI      = errors.New("malformed endpoint uri")
	ErrProjectIDRequired = errors.New("project id must be set before connecting")
	ErrFactoryRequired   = errors.New("client factory is required")
	ErrNotATopic         = errors.New("endpoint is not a topic")
	ErrNotASubscription  = errors.New("endpoint is not a subscription")
	ErrSubscriptionTopic = errors.New("subscription name already bound to another topic")

	ErrNotConnected        = errors.New("pubsub: transport is not connected")
	ErrConnectInProgress   = errors.New("pubsub: connect already in progress")
	ErrConnectFailed       = errors.New("pubsub: transport failed to connect")
	ErrProvisionerRequired = errors.New("pubsub: provisioner is required")
)

func configError(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrConfiguration, kind, fmt.Sprintf(format, args...))
}
