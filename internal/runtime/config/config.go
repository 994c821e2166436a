package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/drblury/pubsubflow/transport"
)

const (
	// DefaultPubSubSystem is used when PubSubSystem is empty.
	DefaultPubSubSystem = "pubsub"

	// DefaultDeadLetterMaxDeliveryAttempts matches the broker default.
	DefaultDeadLetterMaxDeliveryAttempts = 5

	// DefaultDiagnosticsPort is used when DiagnosticsPort is zero.
	DefaultDiagnosticsPort = 8081
)

// Config groups the settings required to initialise the Service.
type Config struct {
	// PubSubSystem selects the registered client factory: "pubsub" (Google Cloud
	// Pub/Sub) or "channel" (in-memory). Custom factories may register other names.
	PubSubSystem string

	// ProjectID is the Google Cloud project that owns every topic and subscription.
	// It must be set before the transport connects.
	ProjectID string

	// EmulatorDetection is one of "none", "production-only", "emulator-only" or
	// "emulator-or-production". Empty means "none".
	EmulatorDetection string `validate:"omitempty,oneof=none production-only emulator-only emulator-or-production"`

	// CredentialsFile optionally points to a service account key file.
	CredentialsFile string

	// EnableDeadLettering provisions a dead-letter topic and companion
	// subscription for every dead-letter name declared on a subscription.
	EnableDeadLettering bool
	// DeadLetterMaxDeliveryAttempts is attached to dead-letter policies.
	// Zero falls back to DefaultDeadLetterMaxDeliveryAttempts.
	DeadLetterMaxDeliveryAttempts int `validate:"omitempty,min=5,max=100"`

	// SystemEndpointsEnabled allows this node to build its own reply topic and subscription.
	SystemEndpointsEnabled bool
	// NodeNumber is assigned by the host and used to name the reply endpoints.
	NodeNumber int

	// AutoProvision creates missing topics and subscriptions when the service starts.
	AutoProvision bool
	// AckDeadline applied to subscriptions created by this service. Zero keeps the
	// broker default.
	AckDeadline time.Duration `validate:"omitempty,min=10s,max=600s"`

	// Metrics configuration.
	MetricsEnabled bool
	// MetricsPort is the port where Prometheus metrics will be exposed.
	MetricsPort int `validate:"gte=0,lte=65535"`

	// DiagnosticsEnabled serves the topology snapshot and handler stats as JSON.
	DiagnosticsEnabled bool
	// DiagnosticsPort defaults to DefaultDiagnosticsPort.
	DiagnosticsPort int `validate:"gte=0,lte=65535"`
	// DiagnosticsCORSAllowedOrigins lists origins allowed to read the
	// diagnostics endpoints from a browser. "*" allows any origin.
	DiagnosticsCORSAllowedOrigins []string
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// System returns the configured PubSubSystem or the default.
func (c *Config) System() string {
	if strings.TrimSpace(c.PubSubSystem) == "" {
		return DefaultPubSubSystem
	}
	return strings.ToLower(strings.TrimSpace(c.PubSubSystem))
}

// Detection returns the parsed emulator detection mode, falling back to none
// for unknown values (Validate reports those).
func (c *Config) Detection() transport.EmulatorDetection {
	mode, err := transport.ParseEmulatorDetection(c.EmulatorDetection)
	if err != nil {
		return transport.EmulatorNone
	}
	return mode
}

// MaxDeliveryAttempts returns the dead-letter delivery attempts with the default applied.
func (c *Config) MaxDeliveryAttempts() int {
	if c.DeadLetterMaxDeliveryAttempts <= 0 {
		return DefaultDeadLetterMaxDeliveryAttempts
	}
	return c.DeadLetterMaxDeliveryAttempts
}

// DiagnosticsAddr returns the listen address of the diagnostics server.
func (c *Config) DiagnosticsAddr() string {
	port := c.DiagnosticsPort
	if port == 0 {
		port = DefaultDiagnosticsPort
	}
	return fmt.Sprintf(":%d", port)
}

func (c Config) String() string {
	copy := c
	if copy.CredentialsFile != "" {
		copy.CredentialsFile = "***REDACTED***"
	}
	// Use a type alias to avoid infinite recursion when printing
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(copy))
}

// Validate checks field ranges and the settings the selected transport needs.
// The project id is checked again when the transport connects.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.validateFields()...)
	errs = append(errs, c.validateTransport()...)

	return errors.Join(errs...)
}

func (c *Config) validateFields() []error {
	err := structValidator().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []error{err}
	}

	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, fieldError(fe))
	}
	return errs
}

func fieldError(fe validator.FieldError) error {
	switch fe.Field() {
	case "EmulatorDetection":
		return fmt.Errorf("pubsub: unknown emulator detection %q", fe.Value())
	case "DeadLetterMaxDeliveryAttempts":
		return fmt.Errorf("dead-letter: max delivery attempts must be between 5 and 100, got %v", fe.Value())
	case "AckDeadline":
		return fmt.Errorf("subscription: ack deadline must be between 10s and 600s, got %v", fe.Value())
	case "MetricsPort":
		return fmt.Errorf("metrics: invalid port %v", fe.Value())
	case "DiagnosticsPort":
		return fmt.Errorf("diagnostics: invalid port %v", fe.Value())
	default:
		return fmt.Errorf("%s: failed %s validation", fe.Namespace(), fe.Tag())
	}
}

func (c *Config) validateTransport() []error {
	switch c.System() {
	case DefaultPubSubSystem:
		if strings.TrimSpace(c.ProjectID) == "" {
			return []error{errors.New("pubsub: project id is required")}
		}
	}
	// channel and custom transports have no required config
	return nil
}

// ValidateConfig is a convenience function to validate a config pointer.
// Returns nil if the config is valid.
func ValidateConfig(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}
