package topology

// Topic is a named publish target. Its subscriptions are tracked by the
// owning Transport, not by the topic itself.
type Topic struct {
	name      string
	uri       string
	role      Role
	transport *Transport

	usedForReplies bool
}

func newTopic(name string, t *Transport, role Role) *Topic {
	return &Topic{
		name:      name,
		uri:       TopicURI(name),
		role:      role,
		transport: t,
	}
}

func (t *Topic) Name() string { return t.name }
func (t *Topic) URI() string  { return t.uri }
func (t *Topic) Role() Role   { return t.role }

// Transport returns the transport that owns the topic.
func (t *Topic) Transport() *Transport { return t.transport }

func (t *Topic) IsUsedForReplies() bool {
	t.transport.mu.Lock()
	defer t.transport.mu.Unlock()
	return t.usedForReplies
}

// MarkUsedForReplies flags the topic as the reply endpoint candidate.
func (t *Topic) MarkUsedForReplies() {
	t.transport.mu.Lock()
	defer t.transport.mu.Unlock()
	t.usedForReplies = true
}

// FindOrCreateSubscription returns the subscription called name under this
// topic, creating it when missing.
func (t *Topic) FindOrCreateSubscription(name string) (*Subscription, error) {
	t.transport.mu.Lock()
	defer t.transport.mu.Unlock()

	sub, _, err := t.transport.findOrCreateSubscriptionLocked(t, name, t.role)
	return sub, err
}

// Subscriptions returns the subscriptions currently bound to this topic.
func (t *Topic) Subscriptions() []*Subscription {
	t.transport.mu.Lock()
	defer t.transport.mu.Unlock()

	var out []*Subscription
	for _, sub := range t.transport.subscriptions {
		if sub.topic == t {
			out = append(out, sub)
		}
	}
	return out
}

func (t *Topic) Describe() EndpointDescription {
	t.transport.mu.Lock()
	defer t.transport.mu.Unlock()
	return t.describeLocked()
}

func (t *Topic) describeLocked() EndpointDescription {
	return EndpointDescription{
		Kind:           kindTopic,
		Name:           t.name,
		URI:            t.uri,
		Role:           t.role.String(),
		UsedForReplies: t.usedForReplies,
	}
}
