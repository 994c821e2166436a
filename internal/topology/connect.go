package topology

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/drblury/pubsubflow/transport"
)

// State is the connection state of a Transport.
type State int

const (
	StateUnconnected State = iota
	StateConnecting
	StateConnected
	// StateConnectFailed is terminal: later Connect calls return ErrConnectFailed
	// wrapping the recorded error.
	StateConnectFailed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateConnectFailed:
		return "connect-failed"
	default:
		return "unknown"
	}
}

const (
	connectResultSuccess  = "success"
	connectResultFailure  = "failure"
	connectResultCanceled = "canceled"
)

// State returns the current connection state.
func (t *Transport) State() State {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.state
}

// ClientOptions returns the options handed to client factories.
func (t *Transport) ClientOptions() transport.ClientOptions {
	return transport.ClientOptions{
		ProjectID:         t.settings.ProjectID,
		EmulatorDetection: t.settings.EmulatorDetection,
		CredentialsFile:   t.settings.CredentialsFile,
		Logger:            t.logger,
	}
}

// Initialize runs the connect-time sequence: system endpoints for node, then
// dead-letter provisioning, then Connect.
func (t *Transport) Initialize(ctx context.Context, factory transport.ClientFactory, node int) error {
	t.BuildSystemEndpoints(node)
	t.Endpoints()
	return t.Connect(ctx, factory)
}

// Connect builds the publisher and subscriber clients concurrently and stores
// them. A missing project id fails before the factory is called. Factory
// errors are returned unchanged and leave the transport in StateConnectFailed,
// after which Connect returns ErrConnectFailed wrapping the recorded error;
// a cancelled ctx returns it to StateUnconnected so Connect can be retried.
func (t *Transport) Connect(ctx context.Context, factory transport.ClientFactory) error {
	if factory == nil {
		return configError(ErrFactoryRequired, "connect")
	}

	t.stateMu.Lock()
	switch t.state {
	case StateConnected:
		t.stateMu.Unlock()
		return nil
	case StateConnectFailed:
		err := t.connectErr
		t.stateMu.Unlock()
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	case StateConnecting:
		t.stateMu.Unlock()
		return ErrConnectInProgress
	}

	if strings.TrimSpace(t.settings.ProjectID) == "" {
		err := configError(ErrProjectIDRequired, "connect")
		t.state = StateConnectFailed
		t.connectErr = err
		t.stateMu.Unlock()
		t.metrics.connectAttempt(connectResultFailure)
		return err
	}
	t.state = StateConnecting
	t.stateMu.Unlock()

	ctx, span := t.tracer.Start(ctx, "pubsub.connect")
	defer span.End()
	span.SetAttributes(
		attribute.String("pubsub.project_id", t.settings.ProjectID),
		attribute.String("pubsub.emulator_detection", t.settings.EmulatorDetection.String()),
	)

	opts := t.ClientOptions()
	var (
		publisher  message.Publisher
		subscriber message.Subscriber
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := factory.NewPublisher(gctx, opts)
		publisher = p
		return err
	})
	g.Go(func() error {
		s, err := factory.NewSubscriber(gctx, opts)
		subscriber = s
		return err
	})
	err := g.Wait()

	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	if err != nil {
		t.closeClients(publisher, subscriber)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		if ctx.Err() != nil {
			t.state = StateUnconnected
			t.metrics.connectAttempt(connectResultCanceled)
			t.logger.Info("Pub/Sub connect cancelled", watermill.LogFields{"error": err.Error()})
			return err
		}
		t.state = StateConnectFailed
		t.connectErr = err
		t.metrics.connectAttempt(connectResultFailure)
		t.logger.Error("Pub/Sub connect failed", err, watermill.LogFields{"project_id": t.settings.ProjectID})
		return err
	}

	t.publisher = publisher
	t.subscriber = subscriber
	t.state = StateConnected
	t.metrics.connectAttempt(connectResultSuccess)
	span.SetStatus(codes.Ok, "")
	t.logger.Info("Pub/Sub transport connected", watermill.LogFields{"project_id": t.settings.ProjectID})
	return nil
}

// Publisher returns the connected publisher client.
func (t *Transport) Publisher() (message.Publisher, error) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	if t.state != StateConnected {
		return nil, ErrNotConnected
	}
	return t.publisher, nil
}

// Subscriber returns the connected subscriber client.
func (t *Transport) Subscriber() (message.Subscriber, error) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	if t.state != StateConnected {
		return nil, ErrNotConnected
	}
	return t.subscriber, nil
}

// Close releases the client handles. Errors are logged, never returned.
// Registered endpoints stay valid.
func (t *Transport) Close() error {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	t.closeClients(t.publisher, t.subscriber)
	t.publisher = nil
	t.subscriber = nil
	if t.state == StateConnected {
		t.state = StateUnconnected
	}
	return nil
}

func (t *Transport) closeClients(publisher message.Publisher, subscriber message.Subscriber) {
	var errs []error
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if subscriber != nil {
		if err := subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		t.logger.Error("Failed to close Pub/Sub clients", err, nil)
	}
}
