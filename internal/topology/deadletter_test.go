package topology

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscriptionNamed(t *testing.T, tr *Transport, name string) *Subscription {
	t.Helper()
	var found *Subscription
	for _, sub := range tr.Subscriptions() {
		if sub.Name() == name {
			require.Nil(t, found, "duplicate subscription %s", name)
			found = sub
		}
	}
	require.NotNil(t, found, "subscription %s not found", name)
	return found
}

func countTopics(tr *Transport, name string) int {
	n := 0
	for _, topic := range tr.Topics() {
		if topic.Name() == name {
			n++
		}
	}
	return n
}

func TestEndpointsSharedDeadLetterProvisionedOnce(t *testing.T) {
	tr := newTestTransport(Settings{EnableDeadLettering: true})

	s1, err := tr.ResolveSubscription("pubsub://orders/s1")
	require.NoError(t, err)
	s2, err := tr.ResolveSubscription("pubsub://invoices/s2")
	require.NoError(t, err)
	require.NoError(t, s1.SetDeadLetter("DLQ"))
	require.NoError(t, s2.SetDeadLetter("DLQ"))

	tr.Endpoints()

	assert.Equal(t, 1, countTopics(tr, "DLQ"))
	companion := subscriptionNamed(t, tr, "sub.DLQ")
	assert.Equal(t, "DLQ", companion.Topic().Name())
}

func TestEndpointsCompanionDeadLetterCleared(t *testing.T) {
	tr := newTestTransport(Settings{EnableDeadLettering: true})

	s1, err := tr.ResolveSubscription("pubsub://orders/s1")
	require.NoError(t, err)
	require.NoError(t, s1.SetDeadLetter("DLQ"))

	// The companion already exists and carries its own dead-letter settings.
	companion, err := tr.ResolveSubscription("pubsub://DLQ/sub.DLQ")
	require.NoError(t, err)
	require.NoError(t, companion.SetDeadLetter("other-dlq"))

	tr.Endpoints()

	assert.Empty(t, companion.DeadLetterName())
	assert.Nil(t, companion.DeadLetterPolicy())
	assert.Same(t, companion, subscriptionNamed(t, tr, "sub.DLQ"))
}

func TestEndpointsIsIdempotent(t *testing.T) {
	tr := newTestTransport(Settings{EnableDeadLettering: true})

	_, err := tr.ResolveSubscription("pubsub://orders/s1")
	require.NoError(t, err)

	first := tr.Endpoints()
	second := tr.Endpoints()
	assert.Equal(t, first, second)

	// orders, the default dead-letter topic, s1 and its companion.
	assert.Len(t, first, 4)
	companion := subscriptionNamed(t, tr, "sub.pubsubflow.dead-letter.s1")
	assert.Empty(t, companion.DeadLetterName())
	assert.Nil(t, companion.DeadLetterPolicy())
}

func TestEndpointsOrderTopicsThenSubscriptions(t *testing.T) {
	tr := newTestTransport(Settings{EnableDeadLettering: true})

	s1, err := tr.ResolveSubscription("pubsub://orders/s1")
	require.NoError(t, err)
	require.NoError(t, s1.SetDeadLetter("DLQ"))

	endpoints := tr.Endpoints()
	require.Len(t, endpoints, 4)
	assert.IsType(t, &Topic{}, endpoints[0])
	assert.IsType(t, &Topic{}, endpoints[1])
	assert.IsType(t, &Subscription{}, endpoints[2])
	assert.IsType(t, &Subscription{}, endpoints[3])
	assert.Equal(t, "orders", endpoints[0].Name())
	assert.Equal(t, "DLQ", endpoints[1].Name())
}

func TestEndpointsWithoutDeadLettering(t *testing.T) {
	tr := newTestTransport(Settings{})

	s1, err := tr.ResolveSubscription("pubsub://orders/s1")
	require.NoError(t, err)
	require.NoError(t, s1.SetDeadLetter("DLQ"))

	endpoints := tr.Endpoints()
	assert.Len(t, endpoints, 2)
	assert.Equal(t, 0, countTopics(tr, "DLQ"))
	assert.Equal(t, endpoints, tr.ExplicitEndpoints())
}

func TestDefaultDeadLetterSkippedWhenNameTooLong(t *testing.T) {
	tr := newTestTransport(Settings{EnableDeadLettering: true})

	// The dead-letter name fits, its companion does not.
	name := "s" + strings.Repeat("x", 230)
	require.True(t, IsValidName(DeadLetterName(name)))
	sub, err := tr.ResolveSubscription(SubscriptionURI("orders", name))
	require.NoError(t, err)
	assert.Empty(t, sub.DeadLetterName())
}

func TestNameHelpers(t *testing.T) {
	assert.Equal(t, "pubsubflow.dead-letter.sub-a", DeadLetterName("sub-a"))
	assert.Equal(t, "sub.DLQ", CompanionName("DLQ"))
}

func TestEndpointsDoNotDeadLetterAnExplicitSink(t *testing.T) {
	tr := newTestTransport(Settings{EnableDeadLettering: true})

	_, err := tr.ResolveSubscription("pubsub://orders/worker")
	require.NoError(t, err)
	sink := DeadLetterName("worker")
	companion, err := tr.ResolveSubscription(SubscriptionURI(sink, CompanionName(sink)))
	require.NoError(t, err)
	assert.Empty(t, companion.DeadLetterName())

	tr.Endpoints()
	tr.Endpoints()

	assert.Equal(t, 0, countTopics(tr, DeadLetterName(CompanionName(sink))))
	assert.Empty(t, companion.DeadLetterName())
	assert.Same(t, companion, subscriptionNamed(t, tr, CompanionName(sink)))
	// orders and the sink, worker and the sink's companion.
	assert.Len(t, tr.Topics(), 2)
	assert.Len(t, tr.Subscriptions(), 2)
}

func TestEndpointsIgnoreDeadLetterDeclaredBySinkCompanion(t *testing.T) {
	tr := newTestTransport(Settings{EnableDeadLettering: true})

	s1, err := tr.ResolveSubscription("pubsub://orders/s1")
	require.NoError(t, err)
	require.NoError(t, s1.SetDeadLetter("DLQ"))
	companion, err := tr.ResolveSubscription("pubsub://DLQ/sub.DLQ")
	require.NoError(t, err)
	require.NoError(t, companion.SetDeadLetter("never-created"))

	tr.Endpoints()

	assert.Equal(t, 0, countTopics(tr, "never-created"))
	assert.Equal(t, 0, countTopics(tr, DeadLetterName("sub.DLQ")))
	assert.Empty(t, companion.DeadLetterName())
}
