package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	configpkg "github.com/drblury/pubsubflow/internal/runtime/config"
	errspkg "github.com/drblury/pubsubflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/pubsubflow/internal/runtime/logging"
	"github.com/drblury/pubsubflow/internal/topology"
	"github.com/drblury/pubsubflow/transport"
)

const tracerName = "github.com/drblury/pubsubflow/internal/runtime"

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to get the defaults.
type ServiceDependencies struct {
	// ClientFactory overrides the factory looked up by Config.PubSubSystem.
	ClientFactory transport.ClientFactory
	// Registry is searched for Config.PubSubSystem. Defaults to transport.DefaultRegistry.
	Registry *transport.Registry

	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
	Hooks                     HandlerHooks

	// MetricsRegisterer receives topology and router metrics when metrics are
	// enabled. Defaults to prometheus.DefaultRegisterer.
	MetricsRegisterer prometheus.Registerer
	TracerProvider    trace.TracerProvider
}

// Service owns the Pub/Sub topology, the Watermill router that consumes its
// subscriptions and the optional metrics and diagnostics HTTP servers.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	wmLogger   watermill.LoggerAdapter
	factory    transport.ClientFactory
	topology   *topology.Transport
	router     *message.Router
	tracer     trace.Tracer
	registerer prometheus.Registerer
	hooks      HandlerHooks

	mu       sync.Mutex
	started  bool
	pending  []handlerRegistration
	handlers []*HandlerInfo

	httpServersMu sync.Mutex
	httpServers   map[string]*http.ServeMux
	running       []*http.Server
}

// NewService validates conf and constructs a Service. Register handlers on the
// returned Service before calling Start.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	factory, err := resolveFactory(conf, deps)
	if err != nil {
		return nil, err
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating pubsubflow service", loggingpkg.LogFields{
		"pubsub_system": conf.System(),
		"config":        conf.String(),
	})

	s := &Service{
		Conf:       conf,
		Logger:     log,
		wmLogger:   wmLogger,
		factory:    factory,
		registerer: deps.MetricsRegisterer,
		hooks:      deps.Hooks,
		tracer:     otel.Tracer(tracerName),
	}
	if s.registerer == nil {
		s.registerer = prometheus.DefaultRegisterer
	}
	if deps.TracerProvider != nil {
		s.tracer = deps.TracerProvider.Tracer(tracerName)
	}

	topologyOpts := []topology.Option{
		topology.WithLogger(wmLogger),
		topology.WithTracerProvider(deps.TracerProvider),
	}
	if conf.MetricsEnabled {
		metrics := topology.NewMetrics(s.registerer)
		if err := metrics.Register(); err != nil {
			return nil, fmt.Errorf("register topology metrics: %w", err)
		}
		topologyOpts = append(topologyOpts, topology.WithMetrics(metrics))
	}
	s.topology = topology.NewTransport(topologySettings(conf), topologyOpts...)

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}
	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		return nil, err
	}
	if conf.DiagnosticsEnabled {
		s.registerDiagnostics()
	}
	return s, nil
}

func resolveFactory(conf *configpkg.Config, deps ServiceDependencies) (transport.ClientFactory, error) {
	if deps.ClientFactory != nil {
		return deps.ClientFactory, nil
	}
	registry := deps.Registry
	if registry == nil {
		registry = transport.DefaultRegistry
	}
	return registry.Factory(conf.System())
}

func topologySettings(conf *configpkg.Config) topology.Settings {
	return topology.Settings{
		ProjectID:                     conf.ProjectID,
		EmulatorDetection:             conf.Detection(),
		CredentialsFile:               conf.CredentialsFile,
		EnableDeadLettering:           conf.EnableDeadLettering,
		DeadLetterMaxDeliveryAttempts: conf.MaxDeliveryAttempts(),
		SystemEndpointsEnabled:        conf.SystemEndpointsEnabled,
		DefaultAckDeadline:            conf.AckDeadline,
	}
}

// Topology returns the transport that owns every topic and subscription.
func (s *Service) Topology() *topology.Transport {
	return s.topology
}

// Resolve maps an endpoint URI onto its topic or subscription, declaring it
// when it does not exist yet.
func (s *Service) Resolve(uri string) (topology.Endpoint, error) {
	return s.topology.Resolve(uri)
}

// Start connects the transport, provisions broker resources when
// Config.AutoProvision is set and runs the router until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errspkg.ErrServiceStarted
	}
	s.started = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if err := s.topology.Initialize(ctx, s.factory, s.Conf.NodeNumber); err != nil {
		s.abortStart(pending)
		return fmt.Errorf("initialize transport: %w", err)
	}
	if s.Conf.AutoProvision {
		if err := s.provision(ctx); err != nil {
			s.abortStart(pending)
			return err
		}
	}

	for i, reg := range pending {
		if err := s.addRouterHandler(reg); err != nil {
			// Handlers before i are already on the router.
			s.abortStart(pending[i:])
			return err
		}
	}

	s.startHTTPServers()
	return routerRun(s.router, ctx)
}

// abortStart lets Start run again after a failure before the router ran,
// keeping the handlers not yet added to the router queued.
func (s *Service) abortStart(remaining []handlerRegistration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.pending = append(remaining, s.pending...)
}

func (s *Service) provision(ctx context.Context) error {
	pf, ok := s.factory.(transport.ProvisionerFactory)
	if !ok {
		s.Logger.Info("Client factory cannot provision resources, skipping setup", loggingpkg.LogFields{
			"pubsub_system": s.Conf.System(),
		})
		return nil
	}

	prov, err := pf.NewProvisioner(ctx, s.topology.ClientOptions())
	if err != nil {
		return fmt.Errorf("create provisioner: %w", err)
	}
	defer func() {
		if err := prov.Close(); err != nil {
			s.Logger.Error("Failed to close provisioner", err, nil)
		}
	}()

	if err := s.topology.Setup(ctx, prov); err != nil {
		return fmt.Errorf("provision resources: %w", err)
	}
	return nil
}

// Running is closed once the router has started consuming.
func (s *Service) Running() chan struct{} {
	return s.router.Running()
}

// Close stops the router, the HTTP servers and the transport clients.
func (s *Service) Close() error {
	var errs []error
	if err := s.router.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close router: %w", err))
	}

	s.httpServersMu.Lock()
	servers := s.running
	s.running = nil
	s.httpServersMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http server %s: %w", srv.Addr, err))
		}
	}

	// Transport.Close never fails; it logs instead.
	_ = s.topology.Close()
	return errors.Join(errs...)
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("register middleware %s: %w", name, err)
		}
	}
	return nil
}

// RegisterHTTPHandler mounts handler on the HTTP server listening on addr.
// Servers start with the Service.
func (s *Service) RegisterHTTPHandler(addr, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[string]*http.ServeMux)
	}

	mux, ok := s.httpServers[addr]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[addr] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for addr, mux := range s.httpServers {
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		s.running = append(s.running, srv)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("HTTP server failed", err, loggingpkg.LogFields{"address": srv.Addr})
			}
		}()
	}
}
