package gcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/ThreeDotsLabs/watermill"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/drblury/pubsubflow/transport"
)

// ErrSubscriptionTopicMismatch is returned when a subscription id already
// exists on the broker but is attached to another topic. Subscription ids are
// unique per project.
var ErrSubscriptionTopicMismatch = errors.New("pubsub: subscription is attached to a different topic")

// AdminClient is the subset of the Pub/Sub admin API the provisioner needs.
type AdminClient interface {
	TopicExists(ctx context.Context, id string) (bool, error)
	CreateTopic(ctx context.Context, id string) error
	// SubscriptionTopic returns the topic id the subscription is attached to.
	// The boolean is false when the subscription does not exist.
	SubscriptionTopic(ctx context.Context, id string) (string, bool, error)
	CreateSubscription(ctx context.Context, id string, cfg SubscriptionConfig) error
	Close() error
}

// SubscriptionConfig holds the settings applied when a subscription is created.
type SubscriptionConfig struct {
	Topic       string
	AckDeadline time.Duration

	// DeadLetterTopic is the fully qualified topic path, empty for none.
	DeadLetterTopic     string
	MaxDeliveryAttempts int
}

type provisioner struct {
	projectID string
	client    AdminClient
	logger    watermill.LoggerAdapter
}

func (p *provisioner) EnsureTopic(ctx context.Context, spec transport.TopicSpec) error {
	exists, err := p.client.TopicExists(ctx, spec.Name)
	if err != nil {
		return fmt.Errorf("pubsub: check topic %s: %w", spec.Name, err)
	}
	if exists {
		return nil
	}

	p.logger.Info("Creating Pub/Sub topic", watermill.LogFields{"topic": spec.Name})
	if err := p.client.CreateTopic(ctx, spec.Name); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("pubsub: create topic %s: %w", spec.Name, err)
	}
	return nil
}

// EnsureSubscription creates the subscription when missing. Existing
// subscriptions are left untouched, including their dead-letter policy, but
// must be attached to spec.Topic.
func (p *provisioner) EnsureSubscription(ctx context.Context, spec transport.SubscriptionSpec) error {
	exists, err := p.checkSubscription(ctx, spec)
	if err != nil || exists {
		return err
	}

	cfg := SubscriptionConfig{
		Topic:       spec.Topic,
		AckDeadline: spec.AckDeadline,
	}
	if spec.DeadLetterTopic != "" {
		cfg.DeadLetterTopic = TopicPath(p.projectID, spec.DeadLetterTopic)
		cfg.MaxDeliveryAttempts = spec.MaxDeliveryAttempts
	}

	p.logger.Info("Creating Pub/Sub subscription", watermill.LogFields{
		"subscription":      spec.Name,
		"topic":             spec.Topic,
		"dead_letter_topic": cfg.DeadLetterTopic,
	})
	if err := p.client.CreateSubscription(ctx, spec.Name, cfg); err != nil {
		if !isAlreadyExists(err) {
			return fmt.Errorf("pubsub: create subscription %s: %w", spec.Name, err)
		}
		// Created concurrently; it still has to be on our topic.
		_, err = p.checkSubscription(ctx, spec)
		return err
	}
	return nil
}

func (p *provisioner) checkSubscription(ctx context.Context, spec transport.SubscriptionSpec) (bool, error) {
	topic, exists, err := p.client.SubscriptionTopic(ctx, spec.Name)
	if err != nil {
		return false, fmt.Errorf("pubsub: check subscription %s: %w", spec.Name, err)
	}
	if exists && topic != spec.Topic {
		return true, fmt.Errorf("%w: %s is attached to %s, want %s", ErrSubscriptionTopicMismatch, spec.Name, topic, spec.Topic)
	}
	return exists, nil
}

func (p *provisioner) Close() error {
	return p.client.Close()
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

type pubsubAdminClient struct {
	client *pubsub.Client
}

func (c *pubsubAdminClient) TopicExists(ctx context.Context, id string) (bool, error) {
	return c.client.Topic(id).Exists(ctx)
}

func (c *pubsubAdminClient) CreateTopic(ctx context.Context, id string) error {
	_, err := c.client.CreateTopic(ctx, id)
	return err
}

func (c *pubsubAdminClient) SubscriptionTopic(ctx context.Context, id string) (string, bool, error) {
	cfg, err := c.client.Subscription(id).Config(ctx)
	if status.Code(err) == codes.NotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if cfg.Topic == nil {
		return "", true, nil
	}
	return cfg.Topic.ID(), true, nil
}

func (c *pubsubAdminClient) CreateSubscription(ctx context.Context, id string, cfg SubscriptionConfig) error {
	subCfg := pubsub.SubscriptionConfig{
		Topic:       c.client.Topic(cfg.Topic),
		AckDeadline: cfg.AckDeadline,
	}
	if cfg.DeadLetterTopic != "" {
		subCfg.DeadLetterPolicy = &pubsub.DeadLetterPolicy{
			DeadLetterTopic:     cfg.DeadLetterTopic,
			MaxDeliveryAttempts: cfg.MaxDeliveryAttempts,
		}
	}
	_, err := c.client.CreateSubscription(ctx, id, subCfg)
	return err
}

func (c *pubsubAdminClient) Close() error {
	return c.client.Close()
}
