package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/pubsubflow/internal/runtime/errors"
	idspkg "github.com/drblury/pubsubflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/pubsubflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/pubsubflow/internal/runtime/metadata"
)

type orderPlaced struct {
	ID int `json:"id"`
}

type orderAccepted struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
}

func TestBuildJSONHandlerProcessesPayload(t *testing.T) {
	handler, err := BuildJSONHandler(func(ctx context.Context, evt JSONMessageContext[*orderPlaced]) ([]JSONMessageOutput[*orderAccepted], error) {
		require.NotNil(t, ctx)
		require.NotNil(t, evt.Payload)
		assert.Equal(t, 42, evt.Payload.ID)
		assert.NotNil(t, evt.Logger)

		md := evt.CloneMetadata()
		md["processed"] = "true"
		return []JSONMessageOutput[*orderAccepted]{
			{Message: &orderAccepted{ID: evt.Payload.ID, Status: "accepted"}, Metadata: md},
		}, nil
	}, loggingpkg.NopServiceLogger())
	require.NoError(t, err)

	msg := message.NewMessage(idspkg.New(), []byte(`{"id":42}`))
	msg.Metadata = message.Metadata{"origin": "test"}

	produced, err := handler(msg)
	require.NoError(t, err)
	require.Len(t, produced, 1)
	assert.JSONEq(t, `{"id":42,"status":"accepted"}`, string(produced[0].Payload))
	assert.Equal(t, "true", produced[0].Metadata.Get("processed"))
	assert.Equal(t, "test", produced[0].Metadata.Get("origin"))
	assert.Equal(t, "*handlers.orderAccepted", produced[0].Metadata.Get(metadatapkg.KeyMessageSchema))
	assert.NotEmpty(t, produced[0].UUID)
	// The incoming message keeps its own headers.
	assert.Empty(t, msg.Metadata.Get("processed"))
}

func TestBuildJSONHandlerInheritsIncomingMetadata(t *testing.T) {
	handler, err := BuildJSONHandler(func(_ context.Context, evt JSONMessageContext[*orderPlaced]) ([]JSONMessageOutput[*orderAccepted], error) {
		return []JSONMessageOutput[*orderAccepted]{{Message: &orderAccepted{ID: evt.Payload.ID}}}, nil
	}, loggingpkg.NopServiceLogger())
	require.NoError(t, err)

	msg := message.NewMessage(idspkg.New(), []byte(`{"id":7}`))
	msg.Metadata.Set(metadatapkg.KeyCorrelationID, "corr-1")

	produced, err := handler(msg)
	require.NoError(t, err)
	require.Len(t, produced, 1)
	assert.Equal(t, "corr-1", produced[0].Metadata.Get(metadatapkg.KeyCorrelationID))
}

func TestBuildJSONHandlerErrors(t *testing.T) {
	t.Run("nil handler", func(t *testing.T) {
		_, err := BuildJSONHandler[*orderPlaced, *orderAccepted](nil, loggingpkg.NopServiceLogger())
		assert.ErrorIs(t, err, errspkg.ErrHandlerRequired)
	})

	t.Run("non pointer payload", func(t *testing.T) {
		_, err := BuildJSONHandler(func(context.Context, JSONMessageContext[orderPlaced]) ([]JSONMessageOutput[*orderAccepted], error) {
			return nil, nil
		}, loggingpkg.NopServiceLogger())
		assert.ErrorIs(t, err, errspkg.ErrConsumeMessagePointerNeeded)
	})

	t.Run("interface payload", func(t *testing.T) {
		_, err := BuildJSONHandler(func(context.Context, JSONMessageContext[any]) ([]JSONMessageOutput[*orderAccepted], error) {
			return nil, nil
		}, loggingpkg.NopServiceLogger())
		assert.ErrorIs(t, err, errspkg.ErrConsumeMessageTypeRequired)
	})

	t.Run("invalid json", func(t *testing.T) {
		handler, err := BuildJSONHandler(func(context.Context, JSONMessageContext[*orderPlaced]) ([]JSONMessageOutput[*orderAccepted], error) {
			t.Fatal("handler must not run")
			return nil, nil
		}, loggingpkg.NopServiceLogger())
		require.NoError(t, err)

		_, err = handler(message.NewMessage(idspkg.New(), []byte("{")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal JSON payload")
	})

	t.Run("handler error", func(t *testing.T) {
		boom := errors.New("rejected")
		handler, err := BuildJSONHandler(func(context.Context, JSONMessageContext[*orderPlaced]) ([]JSONMessageOutput[*orderAccepted], error) {
			return nil, boom
		}, loggingpkg.NopServiceLogger())
		require.NoError(t, err)

		_, err = handler(message.NewMessage(idspkg.New(), []byte(`{"id":1}`)))
		assert.Same(t, boom, err)
	})

	t.Run("nil output", func(t *testing.T) {
		handler, err := BuildJSONHandler(func(context.Context, JSONMessageContext[*orderPlaced]) ([]JSONMessageOutput[*orderAccepted], error) {
			return []JSONMessageOutput[*orderAccepted]{{}}, nil
		}, loggingpkg.NopServiceLogger())
		require.NoError(t, err)

		_, err = handler(message.NewMessage(idspkg.New(), []byte(`{"id":1}`)))
		assert.ErrorIs(t, err, ErrZeroValueOutput)
	})
}

func TestBuildJSONHandlerNoOutputs(t *testing.T) {
	handler, err := BuildJSONHandler(func(context.Context, JSONMessageContext[*orderPlaced]) ([]JSONMessageOutput[*orderAccepted], error) {
		return nil, nil
	}, loggingpkg.NopServiceLogger())
	require.NoError(t, err)

	produced, err := handler(message.NewMessage(idspkg.New(), []byte(`{"id":1}`)))
	require.NoError(t, err)
	assert.Nil(t, produced)
}
