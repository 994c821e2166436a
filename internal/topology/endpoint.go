package topology

// Role separates endpoints declared by the application from the ones the
// transport builds for itself.
type Role int

const (
	RoleApplication Role = iota
	RoleSystem
)

func (r Role) String() string {
	switch r {
	case RoleApplication:
		return "application"
	case RoleSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Endpoint is implemented by *Topic and *Subscription.
type Endpoint interface {
	Name() string
	URI() string
	Role() Role
	IsUsedForReplies() bool
	Describe() EndpointDescription
}

// EndpointDescription is the diagnostic view of an endpoint.
type EndpointDescription struct {
	Kind                string `json:"kind"`
	Name                string `json:"name"`
	URI                 string `json:"uri"`
	Topic               string `json:"topic,omitempty"`
	Role                string `json:"role"`
	UsedForReplies      bool   `json:"used_for_replies,omitempty"`
	DeadLetterName      string `json:"dead_letter_name,omitempty"`
	MaxDeliveryAttempts int    `json:"max_delivery_attempts,omitempty"`
	AckDeadline         string `json:"ack_deadline,omitempty"`
}

const (
	kindTopic        = "topic"
	kindSubscription = "subscription"
)
