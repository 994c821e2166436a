// Package handlers adapts typed handler functions to Watermill handlers.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/pubsubflow/internal/runtime/errors"
	idspkg "github.com/drblury/pubsubflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/pubsubflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/pubsubflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/pubsubflow/internal/runtime/metadata"
)

// ErrZeroValueOutput is returned when a handler emits a nil or zero message.
var ErrZeroValueOutput = errors.New("pubsubflow: json handler emitted zero-value message")

// JSONHandlerRegistration binds a typed JSON handler to a subscription.
// Emitted messages go to PublishURI, which must name a topic when set.
type JSONHandlerRegistration[T any, O any] struct {
	Name            string
	SubscriptionURI string
	PublishURI      string
	Handler         JSONMessageHandler[T, O]
}

// JSONMessageContext exposes the decoded payload and metadata of a message.
type JSONMessageContext[T any] struct {
	Payload  T
	Metadata metadatapkg.Metadata
	Logger   loggingpkg.ServiceLogger
}

// CloneMetadata copies the metadata so handlers can change headers safely.
func (c JSONMessageContext[T]) CloneMetadata() metadatapkg.Metadata {
	return c.Metadata.Clone()
}

// JSONMessageOutput is one message emitted by a JSON handler. Nil Metadata
// inherits the incoming message's metadata.
type JSONMessageOutput[T any] struct {
	Message  T
	Metadata metadatapkg.Metadata
}

// JSONMessageHandler processes a decoded payload and returns the messages to publish.
type JSONMessageHandler[T any, O any] func(ctx context.Context, event JSONMessageContext[T]) ([]JSONMessageOutput[O], error)

// BuildJSONHandler converts a typed JSON handler into a Watermill handler.
// T must be a pointer type so each message decodes into a fresh value.
func BuildJSONHandler[T any, O any](handler JSONMessageHandler[T, O], logger loggingpkg.ServiceLogger) (message.HandlerFunc, error) {
	if handler == nil {
		return nil, errspkg.ErrHandlerRequired
	}

	newPayload, err := jsonPrototypeFactory[T]()
	if err != nil {
		return nil, err
	}

	return func(msg *message.Message) ([]*message.Message, error) {
		payload := newPayload()
		if err := jsoncodec.Unmarshal(msg.Payload, payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON payload: %w", err)
		}

		event := JSONMessageContext[T]{
			Payload:  payload,
			Metadata: metadatapkg.FromWatermill(msg.Metadata),
			Logger:   logger,
		}

		outgoing, err := handler(msg.Context(), event)
		if err != nil {
			return nil, err
		}
		return convertJSONOutputs(outgoing, event.Metadata)
	}, nil
}

func jsonPrototypeFactory[T any]() (func() T, error) {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil {
		return nil, errspkg.ErrConsumeMessageTypeRequired
	}
	if typ.Kind() != reflect.Ptr {
		return nil, errspkg.ErrConsumeMessagePointerNeeded
	}
	elem := typ.Elem()
	return func() T {
		return reflect.New(elem).Interface().(T)
	}, nil
}

func convertJSONOutputs[T any](outputs []JSONMessageOutput[T], fallback metadatapkg.Metadata) ([]*message.Message, error) {
	if len(outputs) == 0 {
		return nil, nil
	}

	result := make([]*message.Message, len(outputs))
	for i, out := range outputs {
		value := reflect.ValueOf(out.Message)
		if !value.IsValid() || value.IsZero() {
			return nil, ErrZeroValueOutput
		}

		payload, err := jsoncodec.Marshal(out.Message)
		if err != nil {
			return nil, err
		}

		metadata := out.Metadata
		if metadata == nil {
			metadata = fallback
		}
		metadata = metadata.Clone()
		metadata[metadatapkg.KeyMessageSchema] = fmt.Sprintf("%T", out.Message)

		msg := message.NewMessage(idspkg.New(), payload)
		msg.Metadata = metadatapkg.ToWatermill(metadata)
		result[i] = msg
	}
	return result, nil
}
