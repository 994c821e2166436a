// Package topology maps pubsub:// endpoint URIs onto Google Cloud Pub/Sub topics
// and subscriptions.
//
// A Transport owns every Topic and Subscription it has resolved. Entities are
// created lazily on first resolution and never duplicated: resolving the same
// URI twice returns the same pointer. At connect time the transport builds the
// node's reply endpoints, provisions a dead-letter topic and companion
// subscription for every dead-letter name in use, and only then opens the
// publisher and subscriber clients.
//
// Addresses:
//
//	pubsub://<topic>
//	pubsub://<topic>/<subscription>
//
// Resolution, caching and provisioning are synchronous and safe for concurrent
// use. Only Connect and Setup perform I/O.
package topology
