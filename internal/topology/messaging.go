package topology

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Publish sends msgs to the topic addressed by uri. uri must resolve to a topic.
func (t *Transport) Publish(ctx context.Context, uri string, msgs ...*message.Message) error {
	topic, err := t.ResolveTopic(uri)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	publisher, err := t.Publisher()
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		msg.SetContext(ctx)
	}
	return publisher.Publish(topic.name, msgs...)
}

// Subscribe starts consuming the subscription addressed by uri.
func (t *Transport) Subscribe(ctx context.Context, uri string) (<-chan *message.Message, error) {
	sub, err := t.ResolveSubscription(uri)
	if err != nil {
		return nil, err
	}
	subscriber, err := t.Subscriber()
	if err != nil {
		return nil, err
	}
	return subscriber.Subscribe(ctx, sub.SubscribeKey())
}
