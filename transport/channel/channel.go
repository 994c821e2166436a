// Package channel provides an in-memory Go channel client factory.
// It is useful for testing and local development: every project id gets its own
// in-process broker and each subscription receives its own copy of a topic's messages.
package channel

import (
	"context"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/pubsubflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// PubSubFactory allows overriding the channel creation for testing.
var PubSubFactory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(cfg, logger)
}

func init() {
	Register()
}

// Register adds the channel factory to the default transport registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, NewFactory(gochannel.Config{}), transport.ChannelCapabilities)
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}

// Factory hands out publisher and subscriber handles backed by one shared
// GoChannel per project id.
type Factory struct {
	config gochannel.Config

	mu       sync.Mutex
	channels map[string]*gochannel.GoChannel
}

// NewFactory creates a channel factory using cfg for every GoChannel it creates.
func NewFactory(cfg gochannel.Config) *Factory {
	return &Factory{
		config:   cfg,
		channels: make(map[string]*gochannel.GoChannel),
	}
}

// NewPublisher returns the publisher side of the project's in-memory broker.
func (f *Factory) NewPublisher(ctx context.Context, opts transport.ClientOptions) (message.Publisher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &publisher{factory: f, project: opts.ProjectID, pubSub: f.pubSub(opts)}, nil
}

// NewSubscriber returns the subscriber side of the project's in-memory broker.
func (f *Factory) NewSubscriber(ctx context.Context, opts transport.ClientOptions) (message.Subscriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &subscriber{pubSub: f.pubSub(opts)}, nil
}

// NewProvisioner returns a provisioner that accepts every resource. GoChannel
// creates topics on first use.
func (f *Factory) NewProvisioner(ctx context.Context, opts transport.ClientOptions) (transport.Provisioner, error) {
	return noopProvisioner{}, nil
}

// Capabilities returns the capabilities of this transport.
func (f *Factory) Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}

func (f *Factory) pubSub(opts transport.ClientOptions) *gochannel.GoChannel {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ch, ok := f.channels[opts.ProjectID]; ok {
		return ch
	}

	logger := opts.Logger
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	ch := PubSubFactory(f.config, logger)
	f.channels[opts.ProjectID] = ch
	return ch
}

func (f *Factory) release(project string, ch *gochannel.GoChannel) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if current, ok := f.channels[project]; ok && current == ch {
		delete(f.channels, project)
	}
}

type publisher struct {
	factory *Factory
	project string
	pubSub  *gochannel.GoChannel
}

func (p *publisher) Publish(topic string, messages ...*message.Message) error {
	return p.pubSub.Publish(topic, messages...)
}

func (p *publisher) Close() error {
	p.factory.release(p.project, p.pubSub)
	return p.pubSub.Close()
}

// subscriber accepts either a topic or a topic/subscription key and subscribes
// to the topic, giving every subscription its own fan-out copy.
type subscriber struct {
	pubSub *gochannel.GoChannel
}

func (s *subscriber) Subscribe(ctx context.Context, key string) (<-chan *message.Message, error) {
	return s.pubSub.Subscribe(ctx, topicFromKey(key))
}

func (s *subscriber) Close() error {
	return s.pubSub.Close()
}

func topicFromKey(key string) string {
	topic, _, _ := strings.Cut(key, "/")
	return topic
}

type noopProvisioner struct{}

func (noopProvisioner) EnsureTopic(context.Context, transport.TopicSpec) error { return nil }

func (noopProvisioner) EnsureSubscription(context.Context, transport.SubscriptionSpec) error {
	return nil
}

func (noopProvisioner) Close() error { return nil }
