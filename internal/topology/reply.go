package topology

// ReplyEndpoint returns the topic replies should be addressed to. Among the
// registered endpoints flagged as used for replies it prefers the first one
// with the application role, falling back to the first flagged endpoint. When
// the chosen endpoint is a subscription its topic is returned. The boolean is
// false when nothing is flagged or the choice is a topic.
func (t *Transport) ReplyEndpoint() (*Topic, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var chosen Endpoint
	for _, endpoint := range t.explicitEndpointsLocked() {
		if !usedForRepliesLocked(endpoint) {
			continue
		}
		if chosen == nil {
			chosen = endpoint
		}
		if endpoint.Role() == RoleApplication {
			chosen = endpoint
			break
		}
	}

	if sub, ok := chosen.(*Subscription); ok {
		return sub.topic, true
	}
	return nil, false
}

func usedForRepliesLocked(endpoint Endpoint) bool {
	switch e := endpoint.(type) {
	case *Topic:
		return e.usedForReplies
	case *Subscription:
		return e.usedForReplies
	}
	return false
}
