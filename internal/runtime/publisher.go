package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/pubsubflow/internal/runtime/errors"
	idspkg "github.com/drblury/pubsubflow/internal/runtime/ids"
	"github.com/drblury/pubsubflow/internal/runtime/jsoncodec"
	metadatapkg "github.com/drblury/pubsubflow/internal/runtime/metadata"
)

var errMissingReplyURI = errors.New("pubsubflow: message carries no reply_uri")

// NewMessage builds a Watermill message with a ULID id and a copy of md.
func NewMessage(payload []byte, md metadatapkg.Metadata) *message.Message {
	msg := message.NewMessage(idspkg.New(), payload)
	msg.Metadata = metadatapkg.ToWatermill(md)
	return msg
}

// Publish sends payload to the topic addressed by topicURI. A correlation id
// is generated when md has none, and the node's reply topic is attached as
// reply_uri when system endpoints are enabled.
func (s *Service) Publish(ctx context.Context, topicURI string, payload []byte, md metadatapkg.Metadata) error {
	if s == nil {
		return errspkg.ErrServiceRequired
	}
	if topicURI == "" {
		return errspkg.ErrTopicURIRequired
	}

	msg := NewMessage(payload, md)
	s.decorate(msg, topicURI)
	return s.topology.Publish(ctx, topicURI, msg)
}

// PublishJSON encodes v as JSON and publishes it like Publish.
func (s *Service) PublishJSON(ctx context.Context, topicURI string, v any, md metadatapkg.Metadata) error {
	payload, err := jsoncodec.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return s.Publish(ctx, topicURI, payload, md)
}

func (s *Service) decorate(msg *message.Message, topicURI string) {
	md := metadatapkg.Metadata(msg.Metadata)
	md.SetDefault(metadatapkg.KeyCorrelationID, idspkg.New())
	md.SetDefault(metadatapkg.KeySourceTopic, topicURI)
	md.SetDefault(metadatapkg.KeyPublishedAt, time.Now().UTC().Format(time.RFC3339Nano))
	if reply, ok := s.topology.ReplyEndpoint(); ok {
		md.SetDefault(metadatapkg.KeyReplyURI, reply.URI())
	}
}

// Reply publishes payload to the reply_uri carried by request, keeping its
// correlation id.
func (s *Service) Reply(ctx context.Context, request *message.Message, payload []byte, md metadatapkg.Metadata) error {
	if request == nil {
		return errMissingReplyURI
	}
	replyURI := request.Metadata.Get(metadatapkg.KeyReplyURI)
	if replyURI == "" {
		return errMissingReplyURI
	}

	reply := md.Clone()
	// A reply never asks for a reply of its own.
	delete(reply, metadatapkg.KeyReplyURI)
	reply.SetDefault(metadatapkg.KeyCorrelationID, request.Metadata.Get(metadatapkg.KeyCorrelationID))
	reply.SetDefault(metadatapkg.KeySourceTopic, replyURI)
	reply.SetDefault(metadatapkg.KeyPublishedAt, time.Now().UTC().Format(time.RFC3339Nano))

	return s.topology.Publish(ctx, replyURI, NewMessage(payload, reply))
}
