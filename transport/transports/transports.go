// Package transports imports the built-in client factories for registration.
// Import it to have them registered with the default registry.
package transports

import (
	_ "github.com/drblury/pubsubflow/transport/channel"
	_ "github.com/drblury/pubsubflow/transport/gcp"
)
