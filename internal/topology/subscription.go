package topology

import (
	"time"

	"github.com/drblury/pubsubflow/transport"
)

// DeadLetterPolicy routes messages that exhausted their delivery attempts to Topic.
type DeadLetterPolicy struct {
	Topic               string
	MaxDeliveryAttempts int
}

// Subscription is a named consume target bound to exactly one topic.
type Subscription struct {
	name      string
	uri       string
	role      Role
	topic     *Topic
	transport *Transport

	usedForReplies   bool
	deadLetterName   string
	deadLetterPolicy *DeadLetterPolicy
	ackDeadline      time.Duration
}

func newSubscription(name string, topic *Topic, t *Transport, role Role) *Subscription {
	return &Subscription{
		name:      name,
		uri:       SubscriptionURI(topic.name, name),
		role:      role,
		topic:     topic,
		transport: t,
	}
}

func (s *Subscription) Name() string  { return s.name }
func (s *Subscription) URI() string   { return s.uri }
func (s *Subscription) Role() Role    { return s.role }
func (s *Subscription) Topic() *Topic { return s.topic }

// SubscribeKey is the key handed to the subscriber client.
func (s *Subscription) SubscribeKey() string {
	return transport.SubscribeKey(s.topic.name, s.name)
}

func (s *Subscription) IsUsedForReplies() bool {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()
	return s.usedForReplies
}

// MarkUsedForReplies flags the subscription as the node's reply listener.
func (s *Subscription) MarkUsedForReplies() {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()
	s.usedForReplies = true
}

// DeadLetterName returns the dead-letter topic name, empty when none is set.
func (s *Subscription) DeadLetterName() string {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()
	return s.deadLetterName
}

// DeadLetterPolicy returns a copy of the dead-letter policy, nil when none is set.
func (s *Subscription) DeadLetterPolicy() *DeadLetterPolicy {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()

	if s.deadLetterPolicy == nil {
		return nil
	}
	policy := *s.deadLetterPolicy
	return &policy
}

// SetDeadLetter routes undeliverable messages to the topic called name. The
// name and the companion subscription name derived from it are validated here
// so provisioning cannot fail later.
func (s *Subscription) SetDeadLetter(name string) error {
	if err := validateDeadLetterName(name); err != nil {
		return err
	}

	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()
	s.setDeadLetterLocked(name)
	return nil
}

// ClearDeadLetter removes the dead-letter name and policy.
func (s *Subscription) ClearDeadLetter() {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()
	s.clearDeadLetterLocked()
}

// AckDeadline returns the ack deadline used when the subscription is created.
// Zero means the transport default.
func (s *Subscription) AckDeadline() time.Duration {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()
	return s.ackDeadline
}

// SetAckDeadline overrides the ack deadline used when the subscription is created.
func (s *Subscription) SetAckDeadline(d time.Duration) {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()
	s.ackDeadline = d
}

// isCompanion reports whether s is the sub.<topic> subscription of its topic.
func (s *Subscription) isCompanion() bool {
	return s.name == CompanionName(s.topic.name)
}

func (s *Subscription) setDeadLetterLocked(name string) {
	s.deadLetterName = name
	s.deadLetterPolicy = &DeadLetterPolicy{
		Topic:               name,
		MaxDeliveryAttempts: s.transport.maxDeliveryAttempts(),
	}
}

func (s *Subscription) clearDeadLetterLocked() {
	s.deadLetterName = ""
	s.deadLetterPolicy = nil
}

func (s *Subscription) Describe() EndpointDescription {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()
	return s.describeLocked()
}

func (s *Subscription) describeLocked() EndpointDescription {
	desc := EndpointDescription{
		Kind:           kindSubscription,
		Name:           s.name,
		URI:            s.uri,
		Topic:          s.topic.name,
		Role:           s.role.String(),
		UsedForReplies: s.usedForReplies,
		DeadLetterName: s.deadLetterName,
	}
	if s.deadLetterPolicy != nil {
		desc.MaxDeliveryAttempts = s.deadLetterPolicy.MaxDeliveryAttempts
	}
	if s.ackDeadline > 0 {
		desc.AckDeadline = s.ackDeadline.String()
	}
	return desc
}
