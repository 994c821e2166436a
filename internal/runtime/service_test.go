package runtime

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/pubsubflow/internal/runtime/config"
	errspkg "github.com/drblury/pubsubflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/pubsubflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/pubsubflow/internal/runtime/metadata"
	"github.com/drblury/pubsubflow/internal/topology"
	"github.com/drblury/pubsubflow/transport"
	"github.com/drblury/pubsubflow/transport/channel"
)

func TestNewServiceValidation(t *testing.T) {
	log := loggingpkg.NopServiceLogger()

	_, err := NewService(nil, log, ServiceDependencies{})
	assert.ErrorIs(t, err, errspkg.ErrConfigRequired)

	_, err = NewService(testConfig(), nil, ServiceDependencies{})
	assert.ErrorIs(t, err, errspkg.ErrLoggerRequired)

	_, err = NewService(&configpkg.Config{PubSubSystem: "pubsub"}, log, ServiceDependencies{})
	var cfgErr errspkg.ConfigValidationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "project id is required")
}

func TestNewServiceResolvesFactoryFromRegistry(t *testing.T) {
	registry := transport.NewRegistry()
	registry.Register(channel.TransportName, channel.NewFactory(gochannel.Config{}))

	svc, err := NewService(testConfig(), loggingpkg.NopServiceLogger(), ServiceDependencies{Registry: registry})
	require.NoError(t, err)
	assert.IsType(t, &channel.Factory{}, svc.factory)

	_, err = NewService(&configpkg.Config{PubSubSystem: "carrier-pigeon"}, loggingpkg.NopServiceLogger(), ServiceDependencies{Registry: registry})
	assert.Error(t, err)
}

func TestNewServiceAppliesTopologySettings(t *testing.T) {
	conf := testConfig()
	conf.EnableDeadLettering = true
	conf.DeadLetterMaxDeliveryAttempts = 7
	conf.SystemEndpointsEnabled = true
	conf.AckDeadline = 30 * time.Second

	svc := newTestService(t, conf, ServiceDependencies{})
	settings := svc.Topology().Settings()

	assert.Equal(t, "test-project", settings.ProjectID)
	assert.True(t, settings.EnableDeadLettering)
	assert.Equal(t, 7, settings.DeadLetterMaxDeliveryAttempts)
	assert.True(t, settings.SystemEndpointsEnabled)
	assert.Equal(t, 30*time.Second, settings.DefaultAckDeadline)
}

func TestServiceResolve(t *testing.T) {
	svc := newTestService(t, nil, ServiceDependencies{})

	endpoint, err := svc.Resolve("pubsub://orders/audit")
	require.NoError(t, err)
	sub, ok := endpoint.(*topology.Subscription)
	require.True(t, ok)
	assert.Equal(t, "orders", sub.Topic().Name())

	_, err = svc.Resolve("pubsub://orders/audit/extra")
	assert.ErrorIs(t, err, topology.ErrMalformedURI)
}

func TestServiceStartRoutesMessages(t *testing.T) {
	svc := newTestService(t, nil, ServiceDependencies{})

	received := make(chan *message.Message, 1)
	require.NoError(t, svc.RegisterHandler(MessageHandlerRegistration{
		Name:            "audit",
		SubscriptionURI: "pubsub://orders/audit",
		Handler: func(msg *message.Message) ([]*message.Message, error) {
			received <- msg
			return nil, nil
		},
	}))

	stop := startService(t, svc)
	assert.Equal(t, topology.StateConnected, svc.Topology().State())

	require.NoError(t, svc.Publish(context.Background(), "pubsub://orders", []byte(`{"id":1}`),
		metadatapkg.New("tenant", "acme")))

	select {
	case msg := <-received:
		assert.Equal(t, `{"id":1}`, string(msg.Payload))
		assert.Equal(t, "acme", msg.Metadata.Get("tenant"))
		assert.NotEmpty(t, msg.Metadata.Get(metadatapkg.KeyCorrelationID))
		assert.Equal(t, "pubsub://orders", msg.Metadata.Get(metadatapkg.KeySourceTopic))
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not receive the message")
	}

	require.NoError(t, stop())

	handlers := svc.Handlers()
	require.Len(t, handlers, 1)
	assert.Equal(t, uint64(1), handlers[0].Stats.MessagesProcessed)
}

func TestServiceHandlerPublishesToTopic(t *testing.T) {
	svc := newTestService(t, nil, ServiceDependencies{})

	require.NoError(t, svc.RegisterHandler(MessageHandlerRegistration{
		Name:            "enrich",
		SubscriptionURI: "pubsub://orders/enrich",
		PublishURI:      "pubsub://orders.enriched",
		Handler: func(msg *message.Message) ([]*message.Message, error) {
			return []*message.Message{NewMessage(append(msg.Payload, '!'), nil)}, nil
		},
	}))

	stop := startService(t, svc)
	defer func() { _ = stop() }()

	out, err := svc.Topology().Subscribe(context.Background(), "pubsub://orders.enriched/check")
	require.NoError(t, err)

	require.NoError(t, svc.Publish(context.Background(), "pubsub://orders", []byte("order"), nil))

	select {
	case msg := <-out:
		msg.Ack()
		assert.Equal(t, "order!", string(msg.Payload))
		assert.NotEmpty(t, msg.Metadata.Get(metadatapkg.KeyCorrelationID))
	case <-time.After(5 * time.Second):
		t.Fatal("produced message was not published")
	}
}

func TestServiceRequestReply(t *testing.T) {
	conf := testConfig()
	conf.SystemEndpointsEnabled = true
	conf.NodeNumber = -3
	svc := newTestService(t, conf, ServiceDependencies{})

	require.NoError(t, svc.RegisterHandler(MessageHandlerRegistration{
		Name:            "responder",
		SubscriptionURI: "pubsub://questions/responder",
		Handler: func(msg *message.Message) ([]*message.Message, error) {
			return nil, svc.Reply(msg.Context(), msg, []byte("42"), nil)
		},
	}))

	stop := startService(t, svc)
	defer func() { _ = stop() }()

	replyURI := "pubsub://" + topology.ResponseTopicName(3)
	replies, err := svc.Topology().Subscribe(context.Background(), replyURI+"/"+topology.CompanionName(topology.ResponseTopicName(3)))
	require.NoError(t, err)

	md := metadatapkg.New(metadatapkg.KeyCorrelationID, "corr-1")
	require.NoError(t, svc.Publish(context.Background(), "pubsub://questions", []byte("?"), md))

	select {
	case msg := <-replies:
		msg.Ack()
		assert.Equal(t, "42", string(msg.Payload))
		assert.Equal(t, "corr-1", msg.Metadata.Get(metadatapkg.KeyCorrelationID))
		assert.Empty(t, msg.Metadata.Get(metadatapkg.KeyReplyURI))
	case <-time.After(5 * time.Second):
		t.Fatal("reply was not delivered")
	}
}

func TestServiceStartTwice(t *testing.T) {
	svc := newTestService(t, nil, ServiceDependencies{})
	stop := startService(t, svc)
	defer func() { _ = stop() }()

	assert.ErrorIs(t, svc.Start(context.Background()), errspkg.ErrServiceStarted)
	assert.ErrorIs(t, svc.RegisterHandler(MessageHandlerRegistration{
		Name:            "late",
		SubscriptionURI: "pubsub://orders/late",
		Handler:         func(*message.Message) ([]*message.Message, error) { return nil, nil },
	}), errspkg.ErrServiceStarted)
}

func TestServiceStartFailsWithoutProjectID(t *testing.T) {
	svc := newTestService(t, &configpkg.Config{PubSubSystem: channel.TransportName}, ServiceDependencies{})

	err := svc.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, topology.ErrProjectIDRequired)
	assert.Equal(t, topology.StateConnectFailed, svc.Topology().State())
}

func TestServiceAutoProvision(t *testing.T) {
	conf := testConfig()
	conf.AutoProvision = true
	conf.EnableDeadLettering = true
	factory := &provisioningFactory{Factory: channel.NewFactory(gochannel.Config{})}

	svc := newTestService(t, conf, ServiceDependencies{ClientFactory: factory})
	require.NoError(t, svc.RegisterHandler(MessageHandlerRegistration{
		Name:            "audit",
		SubscriptionURI: "pubsub://orders/audit",
		Handler:         func(*message.Message) ([]*message.Message, error) { return nil, nil },
	}))

	stop := startService(t, svc)
	require.NoError(t, stop())

	factory.mu.Lock()
	defer factory.mu.Unlock()
	deadLetter := topology.DeadLetterName("audit")
	assert.Equal(t, []string{"orders", deadLetter}, factory.topics)
	require.Len(t, factory.subscriptions, 2)
	assert.Equal(t, "audit", factory.subscriptions[0].Name)
	assert.Equal(t, deadLetter, factory.subscriptions[0].DeadLetterTopic)
	assert.Equal(t, topology.CompanionName(deadLetter), factory.subscriptions[1].Name)
}

func TestServiceAutoProvisionError(t *testing.T) {
	conf := testConfig()
	conf.AutoProvision = true
	factory := &provisioningFactory{
		Factory: channel.NewFactory(gochannel.Config{}),
		provErr: errors.New("no admin access"),
	}

	svc := newTestService(t, conf, ServiceDependencies{ClientFactory: factory})
	err := svc.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no admin access")
}

func TestServiceStartRetriesAfterProvisionError(t *testing.T) {
	conf := testConfig()
	conf.AutoProvision = true
	factory := &provisioningFactory{
		Factory: channel.NewFactory(gochannel.Config{}),
		provErr: errors.New("no admin access"),
	}
	svc := newTestService(t, conf, ServiceDependencies{ClientFactory: factory})

	received := make(chan *message.Message, 1)
	require.NoError(t, svc.RegisterHandler(MessageHandlerRegistration{
		Name:            "audit",
		SubscriptionURI: "pubsub://orders/audit",
		Handler: func(msg *message.Message) ([]*message.Message, error) {
			received <- msg
			return nil, nil
		},
	}))

	err := svc.Start(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, errspkg.ErrServiceStarted)

	factory.provErr = nil
	stop := startService(t, svc)
	defer func() { _ = stop() }()

	require.NoError(t, svc.Publish(context.Background(), "pubsub://orders", []byte(`{"id":2}`), nil))
	select {
	case msg := <-received:
		assert.Equal(t, `{"id":2}`, string(msg.Payload))
	case <-time.After(5 * time.Second):
		t.Fatal("handler queued before the failed start did not receive the message")
	}
}

func TestServiceStartRetriesAfterCancelledConnect(t *testing.T) {
	svc := newTestService(t, nil, ServiceDependencies{})
	require.NoError(t, svc.RegisterHandler(MessageHandlerRegistration{
		Name:            "audit",
		SubscriptionURI: "pubsub://orders/audit",
		Handler:         func(*message.Message) ([]*message.Message, error) { return nil, nil },
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, svc.Start(ctx))
	assert.Equal(t, topology.StateUnconnected, svc.Topology().State())

	stop := startService(t, svc)
	assert.Equal(t, topology.StateConnected, svc.Topology().State())
	require.NoError(t, stop())
}

func TestServiceCloseWithoutStart(t *testing.T) {
	svc := newTestService(t, nil, ServiceDependencies{})
	assert.NoError(t, svc.Close())
	assert.Equal(t, topology.StateUnconnected, svc.Topology().State())
}

func TestRegisterHTTPHandlerSharesMux(t *testing.T) {
	svc := newTestService(t, nil, ServiceDependencies{})
	svc.RegisterHTTPHandler(":0", "/a", http.NotFoundHandler())
	svc.RegisterHTTPHandler(":0", "/b", http.NotFoundHandler())
	svc.RegisterHTTPHandler(":1", "/c", http.NotFoundHandler())

	assert.Len(t, svc.httpServers, 2)
}
