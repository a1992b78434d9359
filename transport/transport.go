// Package transport provides support code for connecting mailmux sessions,
// pairing in-memory sessions for tests and driving an accept loop for
// servers.
package transport

import (
	"context"
	"net"

	"github.com/creachadair/taskgroup"

	"github.com/ashgrove-labs/mailmux"
)

// Local is a pair of in-memory connected sessions, suitable for testing.
type Local struct {
	A, B *mailmux.Session
}

// Stop closes both sessions and blocks until both have finished shutting
// down.
func (p *Local) Stop() {
	p.A.Close()
	p.B.Close()
	<-p.A.Done()
	<-p.B.Done()
}

// NewLocal creates a pair of sessions connected by an in-memory pipe rather
// than a real socket, both scheduled by pm.
func NewLocal(pm *mailmux.Postmaster, cfg mailmux.Config) *Local {
	ca, cb := net.Pipe()
	return &Local{
		A: mailmux.NewSession(cfg, ca, pm),
		B: mailmux.NewSession(cfg, cb, pm),
	}
}

// Loop accepts connections from lst and invokes onAccept for each resulting
// session in its own goroutine. Loop runs until lst closes or ctx ends, at
// which point it waits for onAccept calls in flight to return.
func Loop(ctx context.Context, lst *mailmux.Listener, onAccept func(*mailmux.Session)) error {
	g := taskgroup.New(nil)
	for {
		sess, err := lst.Accept(ctx)
		if err != nil {
			g.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		g.Go(func() error {
			onAccept(sess)
			return nil
		})
	}
}
