package topology

import (
	"strings"
)

// Scheme is the protocol token of every endpoint URI handled by the transport.
const Scheme = "pubsub"

// TopicURI returns the canonical URI of a topic.
func TopicURI(topic string) string {
	return Scheme + "://" + topic
}

// SubscriptionURI returns the canonical URI of a subscription.
func SubscriptionURI(topic, subscription string) string {
	return Scheme + "://" + topic + "/" + subscription
}

// address is a parsed endpoint URI. subscription is empty for topics.
type address struct {
	uri          string
	topic        string
	subscription string
}

func (a address) isSubscription() bool {
	return a.subscription != ""
}

// parseURI splits raw into its segments and returns the canonical form: the
// scheme is lower-cased and trailing slashes are dropped. Names keep their case.
func parseURI(raw string) (address, error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(raw), "://")
	if !ok {
		return address{}, configError(ErrMalformedURI, "%q has no scheme", raw)
	}
	if !strings.EqualFold(scheme, Scheme) {
		return address{}, configError(ErrSchemeMismatch, "%q does not use the %s scheme", raw, Scheme)
	}
	if strings.ContainsAny(rest, "?#") {
		return address{}, configError(ErrMalformedURI, "%q must not carry a query or fragment", raw)
	}

	rest = strings.TrimRight(rest, "/")
	if rest == "" {
		return address{}, configError(ErrMalformedURI, "%q has no topic segment", raw)
	}

	segments := strings.Split(rest, "/")
	for _, segment := range segments {
		if segment == "" {
			return address{}, configError(ErrMalformedURI, "%q contains an empty segment", raw)
		}
	}

	switch len(segments) {
	case 1:
		return address{uri: TopicURI(segments[0]), topic: segments[0]}, nil
	case 2:
		return address{
			uri:          SubscriptionURI(segments[0], segments[1]),
			topic:        segments[0],
			subscription: segments[1],
		}, nil
	default:
		return address{}, configError(ErrMalformedURI, "%q has %d segments, want topic or topic/subscription", raw, len(segments))
	}
}
