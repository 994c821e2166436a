// Package transport defines the client contracts shared by the topology layer and
// the broker-specific client packages. Each client package (gcp, channel) lives in
// its own sub-package and registers its ClientFactory with the transport registry.
package transport

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// ClientOptions carries the settings every client construction needs.
type ClientOptions struct {
	ProjectID         string
	EmulatorDetection EmulatorDetection

	// CredentialsFile optionally points to a service account key. Empty uses
	// application default credentials.
	CredentialsFile string

	Logger watermill.LoggerAdapter
}

// ClientFactory builds broker client handles. The two operations are
// independent and may be invoked concurrently.
type ClientFactory interface {
	NewPublisher(ctx context.Context, opts ClientOptions) (message.Publisher, error)
	NewSubscriber(ctx context.Context, opts ClientOptions) (message.Subscriber, error)
}

// SubscribeKey is the key a subscriber client expects for a named subscription.
// Subscribers map it back onto the topic and the broker subscription.
func SubscribeKey(topic, subscription string) string {
	return topic + "/" + subscription
}

// TopicSpec describes a topic that should exist on the broker.
type TopicSpec struct {
	Name string
}

// SubscriptionSpec describes a subscription that should exist on the broker.
type SubscriptionSpec struct {
	Name  string
	Topic string

	// DeadLetterTopic is empty when the subscription is not dead-lettered.
	DeadLetterTopic     string
	MaxDeliveryAttempts int

	AckDeadline time.Duration
}

// Provisioner creates broker resources. Both operations must be idempotent:
// an already existing resource is not an error.
type Provisioner interface {
	EnsureTopic(ctx context.Context, spec TopicSpec) error
	EnsureSubscription(ctx context.Context, spec SubscriptionSpec) error
	Close() error
}

// ProvisionerFactory is implemented by client factories that can manage broker
// resources in addition to publishing and subscribing.
type ProvisionerFactory interface {
	NewProvisioner(ctx context.Context, opts ClientOptions) (Provisioner, error)
}

// CapabilitiesProvider is implemented by factories that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
