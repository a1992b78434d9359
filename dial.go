package mailmux

import (
	"context"
	"net"
)

// Dial connects to addr over network (as accepted by [net.Dial]) and
// returns a Session scheduled by pm. TCP connections have Nagle's algorithm
// disabled and linger disabled, matching how mailmux expects small control
// frames to be flushed promptly rather than coalesced by the kernel.
func Dial(ctx context.Context, pm *Postmaster, network, addr string) (*Session, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	tuneConn(conn, pm.cfg)
	return newSession(pm.cfg, conn, pm, false).start(), nil
}

// A Listener accepts incoming connections and wraps each as a Session
// scheduled by the same Postmaster.
type Listener struct {
	ln net.Listener
	pm *Postmaster
}

// Listen starts listening on addr and returns a Listener whose Accept
// method produces ready-to-use Sessions. The accept backlog is governed by
// the host's socket configuration; pm.cfg.ListenerBacklog documents the
// deployment's intended value but Go's net package exposes no portable way
// to set it per-listener.
func Listen(pm *Postmaster, network, addr string) (*Listener, error) {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, pm: pm}, nil
}

// Accept blocks until a new connection arrives, ctx ends, or the listener
// closes.
func (l *Listener) Accept(ctx context.Context) (*Session, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.ln.Accept()
		ch <- result{conn, err}
	}()
	select {
	case <-ctx.Done():
		l.ln.Close()
		<-ch
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		tuneConn(r.conn, l.pm.cfg)
		return newSession(l.pm.cfg, r.conn, l.pm, true).start(), nil
	}
}

// Addr reports the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

func tuneConn(conn net.Conn, cfg Config) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	tc.SetNoDelay(true)
	tc.SetLinger(0)
	if cfg.SendAndReceiveBufferSize > 0 {
		tc.SetReadBuffer(cfg.SendAndReceiveBufferSize)
		tc.SetWriteBuffer(cfg.SendAndReceiveBufferSize)
	}
}
