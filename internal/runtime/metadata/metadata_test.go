package metadata

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	md := New(KeyCorrelationID, "c-1", KeyReplyURI, "pubsub://replies", "dangling")
	assert.Equal(t, Metadata{KeyCorrelationID: "c-1", KeyReplyURI: "pubsub://replies"}, md)
	assert.Equal(t, "c-1", md.CorrelationID())
	assert.Equal(t, "pubsub://replies", md.ReplyURI())
}

func TestCloneAndWith(t *testing.T) {
	var empty Metadata
	assert.NotNil(t, empty.Clone())

	base := Metadata{"a": "1"}
	next := base.With("b", "2")
	assert.Equal(t, Metadata{"a": "1"}, base)
	assert.Equal(t, Metadata{"a": "1", "b": "2"}, next)
}

func TestSetDefault(t *testing.T) {
	md := Metadata{KeyCorrelationID: "keep", KeyReplyURI: ""}
	md.SetDefault(KeyCorrelationID, "other")
	md.SetDefault(KeyReplyURI, "pubsub://replies")
	assert.Equal(t, "keep", md.CorrelationID())
	assert.Equal(t, "pubsub://replies", md.ReplyURI())
}

func TestWatermillConversionCopies(t *testing.T) {
	md := Metadata{"source": "api"}
	wm := ToWatermill(md)
	wm["source"] = "mutated"
	assert.Equal(t, "api", md["source"])

	assert.NotNil(t, ToWatermill(nil))
	assert.Empty(t, FromWatermill(nil))

	back := FromWatermill(message.Metadata{"event": "order"})
	assert.Equal(t, Metadata{"event": "order"}, back)
}
