/*
Package runtime hosts message handlers on top of the Pub/Sub topology.

# Service

Service ties together:
  - the topology transport (internal/topology) that resolves endpoint URIs,
    provisions dead-letter sinks and system reply endpoints and holds the
    broker clients
  - a Watermill router that consumes subscriptions
  - the middleware chain
  - optional HTTP servers for Prometheus metrics and JSON diagnostics

Handlers are registered against subscription URIs before Start. Registration
declares the subscription immediately, so it is part of the endpoint set when
Start runs the connect sequence:

	system endpoints -> dead-letter provisioning -> connect -> setup -> router

# Middleware (middleware.go)

The default chain, in order:
  - CorrelationID: copies or creates the correlation_id header
  - LogMessages: debug logging of payloads
  - Tracer: OpenTelemetry consumer span per message
  - Metrics: Watermill Prometheus router metrics (Config.MetricsEnabled)
  - Retry: in-process exponential backoff before the message is nacked
  - Recoverer: converts panics into errors

Custom middleware is appended through ServiceDependencies.Middlewares.

# Publishing (publisher.go)

Publish and PublishJSON address topics by URI. Every message gets a ULID id,
a correlation id and, when system endpoints are enabled, the node's reply
topic in reply_uri. Reply answers a request on that topic.

# Diagnostics (diagnostics.go)

When Config.DiagnosticsEnabled is set, /api/topology serves the topology
snapshot and /api/handlers the handler counters.
*/
package runtime
