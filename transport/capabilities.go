package transport

// Capabilities describes the features supported by a transport backend.
// Use this to introspect what operations are available at runtime.
type Capabilities struct {
	// SupportsNativeDLQ indicates the broker routes undeliverable messages to a
	// dead-letter topic on its own once a policy is attached to a subscription.
	SupportsNativeDLQ bool

	// SupportsOrdering indicates the transport can guarantee ordering per key.
	SupportsOrdering bool

	// SupportsProvisioning indicates the factory implements ProvisionerFactory.
	SupportsProvisioning bool

	// SupportsEmulator indicates the client honours EmulatorDetection.
	SupportsEmulator bool

	// SupportsAck indicates the transport supports explicit message acknowledgment.
	SupportsAck bool

	// SupportsNack indicates the transport supports negative acknowledgment (redelivery).
	SupportsNack bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64

	// Name is the human-readable name of the transport.
	Name string
}

// RequiresDLQEmulation returns true if the transport needs application-level
// DLQ routing because it doesn't support native dead letter queues.
func (c Capabilities) RequiresDLQEmulation() bool {
	return !c.SupportsNativeDLQ
}

// SupportsReliableDelivery returns true if the transport supports at-least-once
// delivery semantics (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// Predefined capability sets.
var (
	// ChannelCapabilities for the in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:                 "channel",
		SupportsNativeDLQ:    false,
		SupportsOrdering:     true,
		SupportsProvisioning: true,
		SupportsAck:          true,
		SupportsNack:         true,
	}

	// PubSubCapabilities for Google Cloud Pub/Sub.
	PubSubCapabilities = Capabilities{
		Name:                 "pubsub",
		SupportsNativeDLQ:    true,
		SupportsOrdering:     true,
		SupportsProvisioning: true,
		SupportsEmulator:     true,
		SupportsAck:          true,
		SupportsNack:         true,
		MaxMessageSize:       10485760, // 10MB
	}
)
