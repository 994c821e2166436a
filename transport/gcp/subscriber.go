package gcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-googlecloud/pkg/googlecloud"
	"github.com/ThreeDotsLabs/watermill/message"
	"google.golang.org/api/option"
)

var errSubscriberClosed = errors.New("pubsub: subscriber is closed")

// routingSubscriber maps topic/subscription keys onto one watermill-googlecloud
// subscriber per broker subscription. watermill-googlecloud derives the
// subscription name from the topic, so each named subscription needs its own
// instance.
type routingSubscriber struct {
	projectID          string
	clientOpts         []option.ClientOption
	doNotCreateMissing bool
	logger             watermill.LoggerAdapter

	mu          sync.Mutex
	closed      bool
	subscribers map[string]message.Subscriber
}

func newRoutingSubscriber(projectID string, clientOpts []option.ClientOption, doNotCreateMissing bool, logger watermill.LoggerAdapter) *routingSubscriber {
	return &routingSubscriber{
		projectID:          projectID,
		clientOpts:         clientOpts,
		doNotCreateMissing: doNotCreateMissing,
		logger:             logger,
		subscribers:        make(map[string]message.Subscriber),
	}
}

// Subscribe accepts "topic/subscription". A bare topic subscribes through a
// subscription named after the topic, which is watermill-googlecloud's default.
func (r *routingSubscriber) Subscribe(ctx context.Context, key string) (<-chan *message.Message, error) {
	topic, subscription, err := splitKey(key)
	if err != nil {
		return nil, err
	}

	sub, err := r.subscriberFor(topic, subscription)
	if err != nil {
		return nil, err
	}
	return sub.Subscribe(ctx, topic)
}

func (r *routingSubscriber) subscriberFor(topic, subscription string) (message.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errSubscriberClosed
	}

	key := topic + "/" + subscription
	if sub, ok := r.subscribers[key]; ok {
		return sub, nil
	}

	r.logger.Debug("Create Pub/Sub subscription client", watermill.LogFields{
		"topic":        topic,
		"subscription": subscription,
	})

	sub, err := SubscriberFactory(googlecloud.SubscriberConfig{
		GenerateSubscriptionName: func(string) string {
			return subscription
		},
		ProjectID:                        r.projectID,
		DoNotCreateSubscriptionIfMissing: r.doNotCreateMissing,
		DoNotCreateTopicIfMissing:        r.doNotCreateMissing,
		InitializeTimeout:                defaultInitializeTimeout,
		ClientOptions:                    r.clientOpts,
		Unmarshaler:                      googlecloud.DefaultMarshalerUnmarshaler{},
	}, r.logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: create subscriber for %s/%s: %w", topic, subscription, err)
	}

	r.subscribers[key] = sub
	return sub, nil
}

func (r *routingSubscriber) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for key, sub := range r.subscribers {
		if err := sub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", key, err))
		}
	}
	r.subscribers = nil
	return errors.Join(errs...)
}

func splitKey(key string) (string, string, error) {
	topic, subscription, found := strings.Cut(key, "/")
	if topic == "" {
		return "", "", fmt.Errorf("pubsub: invalid subscribe key %q", key)
	}
	if !found {
		return topic, topic, nil
	}
	if subscription == "" || strings.Contains(subscription, "/") {
		return "", "", fmt.Errorf("pubsub: invalid subscribe key %q", key)
	}
	return topic, subscription, nil
}
