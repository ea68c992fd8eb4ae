package directory

import "context"

// Resolver converts a relay's textual address into a 32-bit IPv4 address in
// host byte order. It is the directory subsystem's sole dependency on a
// name-resolution capability; circuit construction and connection
// establishment live outside this package.
type Resolver interface {
	ResolveHost(ctx context.Context, name string) (uint32, error)
}

// Connector is the directory registry's collaborator for RetryConnections:
// it reports whether a connection to a relay already exists, and requests
// one be opened when it doesn't.
type Connector interface {
	ConnectionExists(addr uint32, port uint16) bool
	Connect(ctx context.Context, d *RelayDescriptor) error
}
