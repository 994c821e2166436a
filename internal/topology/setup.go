package topology

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/drblury/pubsubflow/transport"
)

// Setup creates every registered topic and then every registered subscription
// on the broker through prov. Dead-letter policies are attached only when
// dead lettering is enabled.
func (t *Transport) Setup(ctx context.Context, prov transport.Provisioner) (err error) {
	if prov == nil {
		return ErrProvisionerRequired
	}

	ctx, span := t.tracer.Start(ctx, "pubsub.setup")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	topics, subs := t.setupSpecs()
	span.SetAttributes(
		attribute.Int("pubsub.topics", len(topics)),
		attribute.Int("pubsub.subscriptions", len(subs)),
	)

	for _, spec := range topics {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := prov.EnsureTopic(ctx, spec); err != nil {
			return fmt.Errorf("setup topic %s: %w", spec.Name, err)
		}
	}
	for _, spec := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := prov.EnsureSubscription(ctx, spec); err != nil {
			return fmt.Errorf("setup subscription %s: %w", spec.Name, err)
		}
	}
	return nil
}

func (t *Transport) setupSpecs() ([]transport.TopicSpec, []transport.SubscriptionSpec) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.settings.EnableDeadLettering {
		t.provisionDeadLettersLocked()
	}

	all := t.topics.All()
	topics := make([]transport.TopicSpec, 0, len(all))
	for _, topic := range all {
		topics = append(topics, transport.TopicSpec{Name: topic.name})
	}

	subs := make([]transport.SubscriptionSpec, 0, len(t.subscriptions))
	for _, sub := range t.subscriptions {
		spec := transport.SubscriptionSpec{
			Name:        sub.name,
			Topic:       sub.topic.name,
			AckDeadline: t.ackDeadlineFor(sub),
		}
		if t.settings.EnableDeadLettering && sub.deadLetterPolicy != nil {
			spec.DeadLetterTopic = sub.deadLetterPolicy.Topic
			spec.MaxDeliveryAttempts = sub.deadLetterPolicy.MaxDeliveryAttempts
		}
		subs = append(subs, spec)
	}
	return topics, subs
}
