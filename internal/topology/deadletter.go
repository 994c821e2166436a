package topology

import "github.com/ThreeDotsLabs/watermill"

// DeadLetterName returns the default dead-letter topic name for a subscription.
func DeadLetterName(subscription string) string {
	return DeadLetterPrefix + "." + subscription
}

// CompanionName returns the name of the subscription attached to a topic the
// transport creates for itself.
func CompanionName(topic string) string {
	return CompanionPrefix + topic
}

// validateDeadLetterName checks both the dead-letter topic name and the
// companion subscription name provisioning will derive from it.
func validateDeadLetterName(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return ValidateName(CompanionName(name))
}

// applyDefaultDeadLetterLocked attaches <DeadLetterPrefix>.<name> to sub when
// that name and its companion are valid broker names.
func (t *Transport) applyDefaultDeadLetterLocked(sub *Subscription) {
	name := DeadLetterName(sub.name)
	if err := validateDeadLetterName(name); err != nil {
		t.logger.Info("Skipping default dead-letter topic", watermill.LogFields{
			"subscription": sub.name,
			"reason":       err.Error(),
		})
		return
	}
	sub.setDeadLetterLocked(name)
}

// Endpoints returns every topic followed by every subscription. When dead
// lettering is enabled it first makes sure each dead-letter name declared on a
// subscription exists as a topic with a companion subscription, and clears the
// dead-letter settings of those companions. Repeated calls are idempotent.
func (t *Transport) Endpoints() []Endpoint {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.settings.EnableDeadLettering {
		t.provisionDeadLettersLocked()
	}
	return t.explicitEndpointsLocked()
}

// ExplicitEndpoints returns every registered endpoint without provisioning
// dead-letter sinks.
func (t *Transport) ExplicitEndpoints() []Endpoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.explicitEndpointsLocked()
}

func (t *Transport) provisionDeadLettersLocked() {
	seen := make(map[string]struct{})
	var names []string
	collect := func(sub *Subscription) {
		if sub.deadLetterName == "" {
			return
		}
		if _, ok := seen[sub.deadLetterName]; ok {
			return
		}
		seen[sub.deadLetterName] = struct{}{}
		names = append(names, sub.deadLetterName)
	}

	// Companions of dead-letter topics are cleared below, so whatever they
	// declare must not be provisioned.
	for _, sub := range t.subscriptions {
		if !sub.isCompanion() {
			collect(sub)
		}
	}
	for _, sub := range t.subscriptions {
		if sub.isCompanion() {
			if _, sink := seen[sub.topic.name]; !sink {
				collect(sub)
			}
		}
	}

	for _, name := range names {
		topic, err := t.topicLocked(name)
		if err != nil {
			// Names are validated when set, so this only fires on a broken invariant.
			t.logger.Error("Invalid dead-letter topic", err, watermill.LogFields{"dead_letter_topic": name})
			continue
		}
		companion, created, err := t.findOrCreateSubscriptionLocked(topic, CompanionName(name), topic.role)
		if err != nil {
			t.logger.Error("Invalid dead-letter subscription", err, watermill.LogFields{"dead_letter_topic": name})
			continue
		}
		companion.clearDeadLetterLocked()
		if created {
			t.metrics.deadLetterProvisioned()
			t.logger.Debug("Provisioned dead-letter sink", watermill.LogFields{
				"dead_letter_topic": name,
				"subscription":      companion.name,
			})
		}
	}
}
