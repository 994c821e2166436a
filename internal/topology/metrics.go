package topology

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts topology events. A nil *Metrics records nothing.
type Metrics struct {
	mu sync.Mutex

	topicsTotal          *prometheus.CounterVec
	subscriptionsTotal   *prometheus.CounterVec
	deadLetterSinksTotal prometheus.Counter
	connectAttemptsTotal *prometheus.CounterVec

	registerer prometheus.Registerer
	registered bool
}

func newTopologyCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pubsubflow",
			Subsystem: "topology",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewMetrics creates the collectors. They are registered on registerer
// (prometheus.DefaultRegisterer when nil) by Register.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		registerer:         registerer,
		topicsTotal:        newTopologyCounterVec("topics_total", "Number of topics registered by the transport", []string{"role"}),
		subscriptionsTotal: newTopologyCounterVec("subscriptions_total", "Number of subscriptions registered by the transport", []string{"role"}),
		deadLetterSinksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pubsubflow",
			Subsystem: "topology",
			Name:      "dead_letter_sinks_total",
			Help:      "Number of dead-letter companion subscriptions provisioned",
		}),
		connectAttemptsTotal: newTopologyCounterVec("connect_attempts_total", "Number of transport connect attempts by result", []string{"result"}),
	}
}

// Register registers the collectors. Safe to call multiple times. When another
// Metrics already registered the same collectors on the registerer, this one
// records into those instead.
func (m *Metrics) Register() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	vecs := []**prometheus.CounterVec{&m.topicsTotal, &m.subscriptionsTotal, &m.connectAttemptsTotal}
	for _, vec := range vecs {
		existing, err := m.register(*vec)
		if err != nil {
			return err
		}
		if adopted, ok := existing.(*prometheus.CounterVec); ok {
			*vec = adopted
		}
	}

	existing, err := m.register(m.deadLetterSinksTotal)
	if err != nil {
		return err
	}
	if adopted, ok := existing.(prometheus.Counter); ok {
		m.deadLetterSinksTotal = adopted
	}

	m.registered = true
	return nil
}

// register returns the collector already registered under c's descriptor, or
// nil when c itself was registered.
func (m *Metrics) register(c prometheus.Collector) (prometheus.Collector, error) {
	err := m.registerer.Register(c)
	if err == nil {
		return nil, nil
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return already.ExistingCollector, nil
	}
	return nil, err
}

func (m *Metrics) topicRegistered(role Role) {
	if m == nil {
		return
	}
	m.topicsTotal.WithLabelValues(role.String()).Inc()
}

func (m *Metrics) subscriptionRegistered(role Role) {
	if m == nil {
		return
	}
	m.subscriptionsTotal.WithLabelValues(role.String()).Inc()
}

func (m *Metrics) deadLetterProvisioned() {
	if m == nil {
		return
	}
	m.deadLetterSinksTotal.Inc()
}

func (m *Metrics) connectAttempt(result string) {
	if m == nil {
		return
	}
	m.connectAttemptsTotal.WithLabelValues(result).Inc()
}
