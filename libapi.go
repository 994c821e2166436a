package pubsubflow

import (
	runtimepkg "github.com/drblury/pubsubflow/internal/runtime"
	configpkg "github.com/drblury/pubsubflow/internal/runtime/config"
	errspkg "github.com/drblury/pubsubflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/pubsubflow/internal/runtime/handlers"
	idspkg "github.com/drblury/pubsubflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/pubsubflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/pubsubflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/pubsubflow/internal/runtime/metadata"
	"github.com/drblury/pubsubflow/internal/topology"
	transportpkg "github.com/drblury/pubsubflow/transport"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies

	MessageHandlerRegistration = runtimepkg.MessageHandlerRegistration

	JSONHandlerRegistration[T any, O any] = handlerpkg.JSONHandlerRegistration[T, O]
	JSONMessageContext[T any]             = handlerpkg.JSONMessageContext[T]
	JSONMessageOutput[T any]              = handlerpkg.JSONMessageOutput[T]
	JSONMessageHandler[T any, O any]      = handlerpkg.JSONMessageHandler[T, O]

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration
	RetryMiddlewareConfig  = runtimepkg.RetryMiddlewareConfig

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	HandlerInfo           = runtimepkg.HandlerInfo
	HandlerStats          = runtimepkg.HandlerStats
	HandlerInfoSnapshot   = runtimepkg.HandlerInfoSnapshot
	ConfigValidationError = errspkg.ConfigValidationError

	// Handler lifecycle hooks
	HandlerContext = runtimepkg.HandlerContext
	HandlerHooks   = runtimepkg.HandlerHooks

	// Topology
	Transport           = topology.Transport
	TransportSettings   = topology.Settings
	TransportState      = topology.State
	Topic               = topology.Topic
	Subscription        = topology.Subscription
	Endpoint            = topology.Endpoint
	EndpointDescription = topology.EndpointDescription
	DeadLetterPolicy    = topology.DeadLetterPolicy
	TopologySnapshot    = topology.Snapshot
	TopologyMetrics     = topology.Metrics

	// Broker clients
	ClientFactory      = transportpkg.ClientFactory
	ClientOptions      = transportpkg.ClientOptions
	Provisioner        = transportpkg.Provisioner
	ProvisionerFactory = transportpkg.ProvisionerFactory
	TopicSpec          = transportpkg.TopicSpec
	SubscriptionSpec   = transportpkg.SubscriptionSpec
	EmulatorDetection  = transportpkg.EmulatorDetection
	TransportRegistry  = transportpkg.Registry
	Capabilities       = transportpkg.Capabilities
)

var (
	NewService     = runtimepkg.NewService
	ValidateConfig = configpkg.ValidateConfig

	RegisterMessageHandler = runtimepkg.RegisterMessageHandler
	NewMessage             = runtimepkg.NewMessage

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RetryMiddleware         = runtimepkg.RetryMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	LoggingHooks = runtimepkg.LoggingHooks

	// Topology helpers
	NewTransport       = topology.NewTransport
	NewTopologyMetrics = topology.NewMetrics
	TopicURI           = topology.TopicURI
	SubscriptionURI    = topology.SubscriptionURI
	ValidateName       = topology.ValidateName
	IsValidName        = topology.IsValidName
	DeadLetterName     = topology.DeadLetterName
	CompanionName      = topology.CompanionName
	ResponseTopicName  = topology.ResponseTopicName

	// Transport registry. Import _ "github.com/drblury/pubsubflow/transport/transports"
	// to register the built-in client factories.
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	LookupTransport          = transportpkg.Lookup
	GetCapabilities          = transportpkg.GetCapabilities
	ParseEmulatorDetection   = transportpkg.ParseEmulatorDetection

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode

	ErrServiceRequired         = errspkg.ErrServiceRequired
	ErrHandlerRequired         = errspkg.ErrHandlerRequired
	ErrHandlerNameRequired     = errspkg.ErrHandlerNameRequired
	ErrHandlerExists           = errspkg.ErrHandlerExists
	ErrSubscriptionURIRequired = errspkg.ErrSubscriptionURIRequired
	ErrTopicURIRequired        = errspkg.ErrTopicURIRequired
	ErrConfigRequired          = errspkg.ErrConfigRequired
	ErrLoggerRequired          = errspkg.ErrLoggerRequired
	ErrServiceStarted          = errspkg.ErrServiceStarted

	ErrConsumeMessageTypeRequired  = errspkg.ErrConsumeMessageTypeRequired
	ErrConsumeMessagePointerNeeded = errspkg.ErrConsumeMessagePointerNeeded

	ErrConfiguration     = topology.ErrConfiguration
	ErrInvalidName       = topology.ErrInvalidName
	ErrMalformedURI      = topology.ErrMalformedURI
	ErrSchemeMismatch    = topology.ErrSchemeMismatch
	ErrProjectIDRequired = topology.ErrProjectIDRequired
	ErrNotConnected      = topology.ErrNotConnected
	ErrConnectFailed     = topology.ErrConnectFailed
	ErrSubscriptionTopic = topology.ErrSubscriptionTopic

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewTextServiceLogger      = loggingpkg.NewTextServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NopServiceLogger          = loggingpkg.NopServiceLogger

	NewMetadata = metadatapkg.New

	CreateULID = idspkg.New
)

// Metadata keys set by Service.Publish and Service.Reply.
const (
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyReplyURI      = metadatapkg.KeyReplyURI
	MetadataKeySourceTopic   = metadatapkg.KeySourceTopic
	MetadataKeyPublishedAt   = metadatapkg.KeyPublishedAt
	MetadataKeyMessageSchema = metadatapkg.KeyMessageSchema
)

// Reserved names and URI scheme.
const (
	Scheme           = topology.Scheme
	ResponsePrefix   = topology.ResponsePrefix
	DeadLetterPrefix = topology.DeadLetterPrefix
	CompanionPrefix  = topology.CompanionPrefix
)

// Emulator detection modes.
const (
	EmulatorNone           = transportpkg.EmulatorNone
	EmulatorProductionOnly = transportpkg.EmulatorProductionOnly
	EmulatorOnly           = transportpkg.EmulatorOnly
	EmulatorOrProduction   = transportpkg.EmulatorOrProduction
)

// Transport connection states.
const (
	StateUnconnected   = topology.StateUnconnected
	StateConnecting    = topology.StateConnecting
	StateConnected     = topology.StateConnected
	StateConnectFailed = topology.StateConnectFailed
)

// RegisterJSONHandler registers a handler that decodes JSON payloads into T
// and publishes the O values it returns as JSON.
func RegisterJSONHandler[T any, O any](svc *Service, cfg JSONHandlerRegistration[T, O]) error {
	return runtimepkg.RegisterJSONHandler(svc, cfg)
}
