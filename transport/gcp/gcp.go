// Package gcp provides the Google Cloud Pub/Sub client factory.
//
// Publishing and subscribing go through watermill-googlecloud. Resource
// management (topics, subscriptions, dead-letter policies) goes through the
// Pub/Sub admin API so subscriptions can be created with their dead-letter
// policy before any consumer attaches.
package gcp

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-googlecloud/pkg/googlecloud"
	"github.com/ThreeDotsLabs/watermill/message"
	"google.golang.org/api/option"

	"github.com/drblury/pubsubflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "pubsub"

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultInitializeTimeout = 10 * time.Second
)

// Getenv allows overriding environment lookups for testing.
var Getenv = os.Getenv

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg googlecloud.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return googlecloud.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the per-subscription subscriber creation for testing.
var SubscriberFactory = func(cfg googlecloud.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return googlecloud.NewSubscriber(cfg, logger)
}

// AdminClientFactory allows overriding the admin client creation for testing.
var AdminClientFactory = func(ctx context.Context, projectID string, opts ...option.ClientOption) (AdminClient, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, err
	}
	return &pubsubAdminClient{client: client}, nil
}

func init() {
	transport.RegisterWithCapabilities(TransportName, NewFactory(), transport.PubSubCapabilities)
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.PubSubCapabilities
}

// Factory builds Pub/Sub publisher, subscriber and provisioner clients.
type Factory struct {
	// DoNotCreateMissing disables the client-side auto creation of topics and
	// subscriptions. Leave it false unless resources are managed elsewhere.
	DoNotCreateMissing bool

	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// NewFactory returns a factory with default timeouts.
func NewFactory() *Factory {
	return &Factory{
		ConnectTimeout: defaultConnectTimeout,
		PublishTimeout: defaultPublishTimeout,
	}
}

// Capabilities returns the capabilities of this transport.
func (f *Factory) Capabilities() transport.Capabilities {
	return transport.PubSubCapabilities
}

// NewPublisher builds a watermill-googlecloud publisher for opts.ProjectID.
func (f *Factory) NewPublisher(ctx context.Context, opts transport.ClientOptions) (message.Publisher, error) {
	logger := loggerOrNop(opts.Logger)

	clientOpts, err := clientOptions(opts, logger)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Info("Create Pub/Sub publisher", watermill.LogFields{
		"project_id":         opts.ProjectID,
		"emulator_detection": opts.EmulatorDetection.String(),
	})

	pub, err := PublisherFactory(googlecloud.PublisherConfig{
		ProjectID:                 opts.ProjectID,
		DoNotCreateTopicIfMissing: f.DoNotCreateMissing,
		ConnectTimeout:            f.ConnectTimeout,
		PublishTimeout:            f.PublishTimeout,
		ClientOptions:             clientOpts,
		Marshaler:                 googlecloud.DefaultMarshalerUnmarshaler{},
	}, logger)
	if err != nil {
		logger.Error("Failed to create Pub/Sub publisher", err, watermill.LogFields{"project_id": opts.ProjectID})
		return nil, err
	}
	return pub, nil
}

// NewSubscriber returns a subscriber that routes topic/subscription keys to
// dedicated watermill-googlecloud subscribers.
func (f *Factory) NewSubscriber(ctx context.Context, opts transport.ClientOptions) (message.Subscriber, error) {
	logger := loggerOrNop(opts.Logger)

	clientOpts, err := clientOptions(opts, logger)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Info("Create Pub/Sub subscriber", watermill.LogFields{
		"project_id":         opts.ProjectID,
		"emulator_detection": opts.EmulatorDetection.String(),
	})

	return newRoutingSubscriber(opts.ProjectID, clientOpts, f.DoNotCreateMissing, logger), nil
}

// NewProvisioner connects an admin client used to create topics and subscriptions.
func (f *Factory) NewProvisioner(ctx context.Context, opts transport.ClientOptions) (transport.Provisioner, error) {
	logger := loggerOrNop(opts.Logger)

	clientOpts, err := clientOptions(opts, logger)
	if err != nil {
		return nil, err
	}

	client, err := AdminClientFactory(ctx, opts.ProjectID, clientOpts...)
	if err != nil {
		logger.Error("Failed to create Pub/Sub admin client", err, watermill.LogFields{"project_id": opts.ProjectID})
		return nil, err
	}
	return &provisioner{projectID: opts.ProjectID, client: client, logger: logger}, nil
}

// clientOptions applies emulator detection and credentials to the client options.
// The Pub/Sub client reads the emulator host from the environment itself, so the
// options only need to reject combinations the detection mode forbids.
func clientOptions(opts transport.ClientOptions, logger watermill.LoggerAdapter) ([]option.ClientOption, error) {
	if strings.TrimSpace(opts.ProjectID) == "" {
		return nil, fmt.Errorf("pubsub: project id is required")
	}

	host, useEmulator, err := transport.ResolveEmulator(opts.EmulatorDetection, Getenv)
	if err != nil {
		return nil, fmt.Errorf("pubsub: %w", err)
	}

	var clientOpts []option.ClientOption
	if useEmulator {
		logger.Info("Using Pub/Sub emulator", watermill.LogFields{"emulator_host": host})
		return clientOpts, nil
	}
	if ignored := strings.TrimSpace(Getenv(transport.EmulatorHostEnv)); ignored != "" {
		logger.Info("Ignoring Pub/Sub emulator host", watermill.LogFields{
			"emulator_host":      ignored,
			"emulator_detection": opts.EmulatorDetection.String(),
		})
	}

	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	return clientOpts, nil
}

// TopicPath renders the fully qualified topic name used in dead-letter policies.
func TopicPath(projectID, topic string) string {
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topic)
}

func loggerOrNop(logger watermill.LoggerAdapter) watermill.LoggerAdapter {
	if logger == nil {
		return watermill.NopLogger{}
	}
	return logger
}
