package topology

import "github.com/drblury/pubsubflow/internal/runtime/jsoncodec"

// Snapshot is a point-in-time view of the registered topology.
type Snapshot struct {
	Protocol        string                `json:"protocol"`
	ProjectID       string                `json:"project_id"`
	State           string                `json:"state"`
	DeadLettering   bool                  `json:"dead_lettering"`
	SystemEndpoints bool                  `json:"system_endpoints"`
	ReplyTopic      string                `json:"reply_topic,omitempty"`
	Topics          []EndpointDescription `json:"topics"`
	Subscriptions   []EndpointDescription `json:"subscriptions"`
}

// Snapshot describes every registered endpoint without provisioning anything.
func (t *Transport) Snapshot() Snapshot {
	snap := Snapshot{
		Protocol:        Scheme,
		ProjectID:       t.settings.ProjectID,
		State:           t.State().String(),
		DeadLettering:   t.settings.EnableDeadLettering,
		SystemEndpoints: t.settings.SystemEndpointsEnabled,
	}
	if reply, ok := t.ReplyEndpoint(); ok {
		snap.ReplyTopic = reply.name
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	topics := t.topics.All()
	snap.Topics = make([]EndpointDescription, 0, len(topics))
	for _, topic := range topics {
		snap.Topics = append(snap.Topics, topic.describeLocked())
	}
	snap.Subscriptions = make([]EndpointDescription, 0, len(t.subscriptions))
	for _, sub := range t.subscriptions {
		snap.Subscriptions = append(snap.Subscriptions, sub.describeLocked())
	}
	return snap
}

// SnapshotJSON returns the indented JSON encoding of Snapshot.
func (t *Transport) SnapshotJSON() ([]byte, error) {
	return jsoncodec.MarshalIndent(t.Snapshot(), "", "  ")
}
