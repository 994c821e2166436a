// Package pubsubflow is a small layer on top of Watermill for services that
// talk to Google Cloud Pub/Sub. Endpoints are addressed by URI:
// pubsub://<topic> names a topic and pubsub://<topic>/<subscription> names a
// subscription on it. The transport keeps a registry of every topic and
// subscription the process touches, so the same URI always resolves to the
// same entity.
//
// Service hosts the Watermill router, connects the transport and consumes the
// subscriptions registered through RegisterHandler. Before connecting it
// builds the node's reply endpoints (when Config.SystemEndpointsEnabled is
// set) and the dead-letter topics of every subscription (when
// Config.EnableDeadLettering is set). With Config.AutoProvision the missing
// topics and subscriptions are created on the broker before the router starts.
//
// # Transports
//
// Two client factories ship with the module:
//   - pubsub: Google Cloud Pub/Sub, including emulator detection through
//     PUBSUB_EMULATOR_HOST
//   - channel: in-memory Go channels for tests and local development
//
// Import _ "github.com/drblury/pubsubflow/transport/transports" to register
// both, or pass ServiceDependencies.ClientFactory directly.
//
// # Middleware
//
// The default middleware chain adds correlation ids, debug logging of
// payloads, OpenTelemetry tracing, Prometheus metrics, retries with
// exponential backoff and panic recovery. Once the retries are spent the
// message is nacked and the broker's dead-letter policy takes over.
//
// # Request and reply
//
// Service.Publish stamps the node's reply topic on outgoing messages as
// reply_uri. Handlers answer with Service.Reply, which keeps the request's
// correlation id.
package pubsubflow
