package topology

import (
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
)

// ResponseTopicName returns the reply topic name of a node. The sign of node is
// ignored so negative node numbers still produce valid names.
func ResponseTopicName(node int) string {
	n := uint64(node)
	if node < 0 {
		n = -n
	}
	return ResponsePrefix + "." + strconv.FormatUint(n, 10)
}

// BuildSystemEndpoints registers the node's reply topic and its companion
// subscription, flagged as used for replies. It does nothing and returns nil
// unless system endpoints are enabled. Calling it again replaces the previous
// pair instead of adding a second one.
func (t *Transport) BuildSystemEndpoints(node int) *Subscription {
	if !t.settings.SystemEndpointsEnabled {
		return nil
	}

	name := ResponseTopicName(node)

	t.mu.Lock()
	defer t.mu.Unlock()

	topic := newTopic(name, t, RoleSystem)
	sub := newSubscription(CompanionName(name), topic, t, RoleSystem)
	sub.usedForReplies = true

	if _, ok := t.topics.Lookup(name); !ok {
		t.metrics.topicRegistered(RoleSystem)
	}
	t.topics.Set(name, topic)
	for _, existing := range t.subscriptions {
		if existing.topic.name == name {
			existing.topic = topic
		}
	}
	t.replaceSubscriptionLocked(sub)

	t.logger.Info("Built system endpoints", watermill.LogFields{
		"node":         node,
		"topic":        name,
		"subscription": sub.name,
	})
	return sub
}
