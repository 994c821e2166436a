package topology

import (
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/pubsubflow/transport"
)

const (
	// ResponsePrefix names the per-node reply topic: <ResponsePrefix>.<node>.
	ResponsePrefix = "pubsubflow.responses"
	// DeadLetterPrefix names the default dead-letter topic of a subscription:
	// <DeadLetterPrefix>.<subscription>.
	DeadLetterPrefix = "pubsubflow.dead-letter"
	// CompanionPrefix is prepended to a topic name to name the subscription
	// the transport creates for its own topics.
	CompanionPrefix = "sub."

	// DefaultMaxDeliveryAttempts is used when Settings leaves it at zero.
	DefaultMaxDeliveryAttempts = 5

	tracerName = "github.com/drblury/pubsubflow/internal/topology"
)

// Settings is the process-wide state of one transport instance.
type Settings struct {
	// ProjectID must be non-empty before Connect.
	ProjectID         string
	EmulatorDetection transport.EmulatorDetection
	CredentialsFile   string

	EnableDeadLettering           bool
	DeadLetterMaxDeliveryAttempts int

	// SystemEndpointsEnabled allows BuildSystemEndpoints to create the node's
	// reply topic and subscription.
	SystemEndpointsEnabled bool

	// DefaultAckDeadline applies to subscriptions without their own deadline.
	DefaultAckDeadline time.Duration
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger watermill.LoggerAdapter) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithMetrics records resolution and connection events on m.
func WithMetrics(m *Metrics) Option {
	return func(t *Transport) {
		t.metrics = m
	}
}

// WithTracerProvider replaces the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *Transport) {
		if tp != nil {
			t.tracer = tp.Tracer(tracerName)
		}
	}
}

// Transport owns the topic cache, the subscription list and the broker client
// handles of one Pub/Sub project.
type Transport struct {
	settings Settings
	logger   watermill.LoggerAdapter
	metrics  *Metrics
	tracer   trace.Tracer

	// mu guards topics, subscriptions and every mutable entity field.
	mu                  sync.Mutex
	topics              *Cache[*Topic]
	subscriptions       []*Subscription
	subscriptionsByURI  map[string]*Subscription
	subscriptionsByName map[string]*Subscription

	stateMu    sync.Mutex
	state      State
	connectErr error
	publisher  message.Publisher
	subscriber message.Subscriber
}

// NewTransport creates an unconnected transport.
func NewTransport(settings Settings, opts ...Option) *Transport {
	t := &Transport{
		settings:            settings,
		logger:              watermill.NopLogger{},
		tracer:              otel.Tracer(tracerName),
		subscriptionsByURI:  make(map[string]*Subscription),
		subscriptionsByName: make(map[string]*Subscription),
	}
	t.topics = NewCache(func(name string) *Topic {
		return newTopic(name, t, RoleApplication)
	})
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Protocol returns the URI scheme handled by the transport.
func (t *Transport) Protocol() string { return Scheme }

// Settings returns a copy of the transport settings.
func (t *Transport) Settings() Settings { return t.settings }

// Resolve maps uri onto a *Topic or *Subscription, creating missing entities.
// Resolving the same URI again returns the same entity.
func (t *Transport) Resolve(uri string) (Endpoint, error) {
	addr, err := parseURI(uri)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if addr.isSubscription() {
		// Look up by URI before touching the topic cache.
		if existing, ok := t.subscriptionsByURI[addr.uri]; ok {
			return existing, nil
		}
		if err := ValidateName(addr.subscription); err != nil {
			return nil, err
		}
		// Subscription names are project-wide, so refuse before creating the topic.
		if err := t.checkSubscriptionNameLocked(addr.subscription, addr.topic); err != nil {
			return nil, err
		}
		topic, err := t.topicLocked(addr.topic)
		if err != nil {
			return nil, err
		}
		sub, _, err := t.findOrCreateSubscriptionLocked(topic, addr.subscription, RoleApplication)
		if err != nil {
			return nil, err
		}
		return sub, nil
	}

	topic, err := t.topicLocked(addr.topic)
	if err != nil {
		return nil, err
	}
	return topic, nil
}

// ResolveTopic resolves uri and requires it to name a topic.
func (t *Transport) ResolveTopic(uri string) (*Topic, error) {
	endpoint, err := t.Resolve(uri)
	if err != nil {
		return nil, err
	}
	topic, ok := endpoint.(*Topic)
	if !ok {
		return nil, configError(ErrNotATopic, "%q", uri)
	}
	return topic, nil
}

// ResolveSubscription resolves uri and requires it to name a subscription.
func (t *Transport) ResolveSubscription(uri string) (*Subscription, error) {
	endpoint, err := t.Resolve(uri)
	if err != nil {
		return nil, err
	}
	sub, ok := endpoint.(*Subscription)
	if !ok {
		return nil, configError(ErrNotASubscription, "%q", uri)
	}
	return sub, nil
}

// Topic returns the topic called name, creating it when missing.
func (t *Transport) Topic(name string) (*Topic, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.topicLocked(name)
}

// Topics returns every registered topic in registration order.
func (t *Transport) Topics() []*Topic {
	return t.topics.All()
}

// Subscriptions returns every registered subscription in registration order.
func (t *Transport) Subscriptions() []*Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Subscription, len(t.subscriptions))
	copy(out, t.subscriptions)
	return out
}

func (t *Transport) topicLocked(name string) (*Topic, error) {
	if topic, ok := t.topics.Lookup(name); ok {
		return topic, nil
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	topic := t.topics.Get(name)
	t.metrics.topicRegistered(topic.role)
	t.logger.Debug("Registered topic", watermill.LogFields{"topic": name})
	return topic, nil
}

// findOrCreateSubscriptionLocked returns the subscription called name under
// topic and whether it was created by this call.
func (t *Transport) findOrCreateSubscriptionLocked(topic *Topic, name string, role Role) (*Subscription, bool, error) {
	uri := SubscriptionURI(topic.name, name)
	if existing, ok := t.subscriptionsByURI[uri]; ok {
		return existing, false, nil
	}
	if err := ValidateName(name); err != nil {
		return nil, false, err
	}
	if err := t.checkSubscriptionNameLocked(name, topic.name); err != nil {
		return nil, false, err
	}

	sub := newSubscription(name, topic, t, role)
	// A topic's own companion is a sink and never gets a dead-letter topic.
	if role == RoleApplication && t.settings.EnableDeadLettering && name != CompanionName(topic.name) {
		t.applyDefaultDeadLetterLocked(sub)
	}
	t.appendSubscriptionLocked(sub)

	t.logger.Debug("Registered subscription", watermill.LogFields{
		"topic":        topic.name,
		"subscription": name,
	})
	return sub, true, nil
}

// checkSubscriptionNameLocked fails when name is already registered under a
// topic other than topic.
func (t *Transport) checkSubscriptionNameLocked(name, topic string) error {
	existing, ok := t.subscriptionsByName[name]
	if !ok || existing.topic.name == topic {
		return nil
	}
	return configError(ErrSubscriptionTopic, "%q is attached to %q, cannot attach to %q", name, existing.topic.name, topic)
}

func (t *Transport) appendSubscriptionLocked(sub *Subscription) {
	t.subscriptions = append(t.subscriptions, sub)
	t.subscriptionsByURI[sub.uri] = sub
	t.subscriptionsByName[sub.name] = sub
	t.metrics.subscriptionRegistered(sub.role)
}

// replaceSubscriptionLocked swaps an existing subscription with the same URI
// for sub, keeping its position, or appends sub.
func (t *Transport) replaceSubscriptionLocked(sub *Subscription) {
	if _, ok := t.subscriptionsByURI[sub.uri]; !ok {
		t.appendSubscriptionLocked(sub)
		return
	}
	for i, existing := range t.subscriptions {
		if existing.uri == sub.uri {
			t.subscriptions[i] = sub
			break
		}
	}
	t.subscriptionsByURI[sub.uri] = sub
	t.subscriptionsByName[sub.name] = sub
}

// explicitEndpointsLocked returns all topics followed by all subscriptions.
func (t *Transport) explicitEndpointsLocked() []Endpoint {
	topics := t.topics.All()
	out := make([]Endpoint, 0, len(topics)+len(t.subscriptions))
	for _, topic := range topics {
		out = append(out, topic)
	}
	for _, sub := range t.subscriptions {
		out = append(out, sub)
	}
	return out
}

func (t *Transport) maxDeliveryAttempts() int {
	if t.settings.DeadLetterMaxDeliveryAttempts <= 0 {
		return DefaultMaxDeliveryAttempts
	}
	return t.settings.DeadLetterMaxDeliveryAttempts
}

func (t *Transport) ackDeadlineFor(sub *Subscription) time.Duration {
	if sub.ackDeadline > 0 {
		return sub.ackDeadline
	}
	return t.settings.DefaultAckDeadline
}
