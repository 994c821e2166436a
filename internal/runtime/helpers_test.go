package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/pubsubflow/internal/runtime/config"
	loggingpkg "github.com/drblury/pubsubflow/internal/runtime/logging"
	"github.com/drblury/pubsubflow/transport"
	"github.com/drblury/pubsubflow/transport/channel"
)

type recordedLog struct {
	level  string
	msg    string
	err    error
	fields loggingpkg.LogFields
}

type recordingLogger struct {
	mu     *sync.Mutex
	logs   *[]recordedLog
	fields loggingpkg.LogFields
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, logs: &[]recordedLog{}}
}

func (l *recordingLogger) record(level, msg string, err error, fields loggingpkg.LogFields) {
	merged := loggingpkg.LogFields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.logs = append(*l.logs, recordedLog{level: level, msg: msg, err: err, fields: merged})
}

func (l *recordingLogger) With(fields loggingpkg.LogFields) loggingpkg.ServiceLogger {
	return &recordingLogger{mu: l.mu, logs: l.logs, fields: fields}
}
func (l *recordingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	l.record("debug", msg, nil, fields)
}
func (l *recordingLogger) Info(msg string, fields loggingpkg.LogFields) {
	l.record("info", msg, nil, fields)
}
func (l *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	l.record("error", msg, err, fields)
}
func (l *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	l.record("trace", msg, nil, fields)
}

func (l *recordingLogger) Messages(level string) []recordedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []recordedLog
	for _, entry := range *l.logs {
		if entry.level == level {
			out = append(out, entry)
		}
	}
	return out
}

func testConfig() *configpkg.Config {
	return &configpkg.Config{
		PubSubSystem: channel.TransportName,
		ProjectID:    "test-project",
	}
}

func newTestService(t *testing.T, conf *configpkg.Config, deps ServiceDependencies) *Service {
	t.Helper()
	if conf == nil {
		conf = testConfig()
	}
	if deps.ClientFactory == nil {
		deps.ClientFactory = channel.NewFactory(gochannel.Config{})
	}
	if deps.MetricsRegisterer == nil {
		deps.MetricsRegisterer = prometheus.NewRegistry()
	}
	svc, err := NewService(conf, loggingpkg.NopServiceLogger(), deps)
	require.NoError(t, err)
	return svc
}

// startService runs svc in the background and waits until the router runs.
// The returned function stops it and reports Start's error.
func startService(t *testing.T, svc *Service) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	select {
	case <-svc.Running():
	case err := <-done:
		cancel()
		t.Fatalf("service stopped before running: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("service did not start")
	}

	return func() error {
		cancel()
		select {
		case err := <-done:
			_ = svc.Close()
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("service did not stop")
			return nil
		}
	}
}

type provisioningFactory struct {
	*channel.Factory

	mu            sync.Mutex
	topics        []string
	subscriptions []transport.SubscriptionSpec
	provErr       error
}

func (f *provisioningFactory) NewProvisioner(ctx context.Context, opts transport.ClientOptions) (transport.Provisioner, error) {
	if f.provErr != nil {
		return nil, f.provErr
	}
	return f, nil
}

func (f *provisioningFactory) EnsureTopic(_ context.Context, spec transport.TopicSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, spec.Name)
	return nil
}

func (f *provisioningFactory) EnsureSubscription(_ context.Context, spec transport.SubscriptionSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions = append(f.subscriptions, spec)
	return nil
}

func (f *provisioningFactory) Close() error { return nil }
