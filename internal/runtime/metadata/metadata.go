// Package metadata holds the header keys pubsubflow reads and writes on
// messages and a map type for passing them around.
package metadata

const (
	// KeyCorrelationID links every message of one conversation.
	KeyCorrelationID = "correlation_id"
	// KeyReplyURI is the topic URI replies to a message should be published to.
	KeyReplyURI = "reply_uri"
	// KeySourceTopic is the topic URI a message was published to.
	KeySourceTopic = "source_topic"
	// KeyPublishedAt is the RFC 3339 publish time set by the service.
	KeyPublishedAt = "published_at"
	// KeyMessageSchema is the Go type of a payload emitted by a typed handler.
	KeyMessageSchema = "message_schema"
)

// Metadata represents the headers carried alongside a message.
type Metadata map[string]string

// New builds Metadata from alternating key/value pairs. A trailing key
// without a value is ignored.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// Clone returns a shallow copy. The result is never nil.
func (m Metadata) Clone() Metadata {
	cloned := make(Metadata, len(m))
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// With returns a copy of m with key set to value.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.Clone()
	cloned[key] = value
	return cloned
}

// SetDefault sets key only when it is missing or empty.
func (m Metadata) SetDefault(key, value string) {
	if m[key] == "" {
		m[key] = value
	}
}

// CorrelationID returns the correlation id, empty when missing.
func (m Metadata) CorrelationID() string { return m[KeyCorrelationID] }

// ReplyURI returns the reply topic URI, empty when missing.
func (m Metadata) ReplyURI() string { return m[KeyReplyURI] }
