package mailmux

import "time"

// Config carries the tunable options for a Postmaster and the sessions it
// manages. The zero Config is not valid; use [DefaultConfig] and override
// individual fields.
type Config struct {
	// IP and Port are the bind (server) or connect (client) address. Either
	// may be left empty by callers that pass an address directly to Dial or
	// Listen instead.
	IP   string
	Port int

	// MaxConnections sets the capacity of the Postmaster's read and write
	// ready queues. Listener.Accept does not count live sessions and does
	// not refuse connections beyond this number.
	MaxConnections int

	// ListenerBacklog records the intended accept backlog. Listen does not
	// apply it; the host's socket configuration governs the backlog.
	ListenerBacklog int

	// SendAndReceiveBufferSize is the per-socket OS buffer size, and also
	// determines MaxFrameData (SendAndReceiveBufferSize - 3).
	SendAndReceiveBufferSize int

	// SendTimeout bounds a single flush to the socket.
	SendTimeout time.Duration

	// ConnectionTimeout bounds the RPC handshake: rpc.Peer applies it as the
	// deadline for AwaitServerInfo and Authenticate whenever the caller's
	// context carries no deadline of its own, and as the server-side grace
	// period for a client to authenticate, counted from SendServerInfo on a
	// Peer with RequireAuthentication set. Zero disables the deadline.
	ConnectionTimeout time.Duration

	// PingFrequency is the Ping cadence of every session, client or server,
	// built with this Config; zero disables pinging.
	PingFrequency time.Duration

	// PingTimeout is the idle-disconnect threshold of every session, client
	// or server, built with this Config; zero disables it.
	PingTimeout time.Duration

	// MaxReadWriteWorkers bounds the reader pool and, independently, the
	// writer pool (so the total worker count is at most 2*MaxReadWriteWorkers).
	MaxReadWriteWorkers int

	// SupervisorEnabled turns on the optional worker-pool supervisor that
	// grows the reader and writer pools under load. A fixed pool of
	// MaxReadWriteWorkers is a valid deployment with this set to false.
	SupervisorEnabled bool

	// SupervisorIdleThreshold is the average per-worker idle duration below
	// which the supervisor grows a pool.
	SupervisorIdleThreshold time.Duration

	// SupervisorSampleInterval is how often the supervisor re-evaluates pool
	// idle ratios.
	SupervisorSampleInterval time.Duration
}

// MaxFrameData reports the maximum payload length permitted in a single
// data-bearing frame under this configuration.
func (c Config) MaxFrameData() int {
	return c.SendAndReceiveBufferSize - 3
}

// DefaultConfig returns a Config populated with production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConnections:           1000,
		ListenerBacklog:          100,
		SendAndReceiveBufferSize: 16 * 1024,
		SendTimeout:              5000 * time.Millisecond,
		ConnectionTimeout:        60000 * time.Millisecond,
		PingFrequency:            0,
		PingTimeout:              0,
		MaxReadWriteWorkers:      20,
		SupervisorEnabled:        true,
		SupervisorIdleThreshold:  50 * time.Millisecond,
		SupervisorSampleInterval: 250 * time.Millisecond,
	}
}
