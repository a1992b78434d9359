// Package registry provides optional server-address advertisement for
// mailmux servers. It sits outside the message-queue data path entirely: a
// server that never registers itself, or a client that never discovers one,
// is unaffected. It exists for deployments where clients need to find a
// live server address rather than being configured with one directly.
package registry

import "context"

// Endpoint describes one advertised mailmux server.
type Endpoint struct {
	Addr    string
	Weight  int
	Version string
}

// A Registry advertises and discovers mailmux server endpoints under a
// service name.
type Registry interface {
	// Register advertises instance under serviceName for ttl. Implementations
	// are expected to keep the registration alive in the background until
	// ctx ends or Deregister is called.
	Register(ctx context.Context, serviceName string, instance Endpoint, ttl int64) error

	// Deregister removes addr's advertisement under serviceName.
	Deregister(ctx context.Context, serviceName, addr string) error

	// Discover returns the endpoints currently advertised under
	// serviceName.
	Discover(ctx context.Context, serviceName string) ([]Endpoint, error)

	// Watch emits an updated endpoint list under serviceName whenever the
	// set changes. The returned channel closes when ctx ends.
	Watch(ctx context.Context, serviceName string) <-chan []Endpoint
}
