package mailmux

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// SessionState is the lifecycle state of a Session.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateConnected
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IncomingMessageFunc receives the messages completed by one reader pass.
type IncomingMessageFunc func(*Session, []Message)

var nextSessionID atomic.Uint64

// A Session wraps one socket connection: its Mailbox, the Postmaster that
// schedules reads and writes for it, and the bookkeeping for pings, close
// reasons, and the caller's incoming-message callback.
type Session struct {
	id         uint64
	cfg        Config
	conn       net.Conn
	postmaster *Postmaster
	mailbox    *Mailbox
	isServer   bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	state        atomic.Int32
	lastReceived atomic.Int64 // UnixNano

	listenerMu sync.Mutex
	listener   IncomingMessageFunc

	closeOnce   sync.Once
	closeReason CloseReason
	closeErr    error
}

// newSession constructs a Session bound to conn and scheduled by pm. isServer
// records which side of the connection this Session represents, so a
// voluntary Close reports the correct CloseReason. It does not start any
// goroutines; call start to begin reading and, if configured, pinging.
func newSession(cfg Config, conn net.Conn, pm *Postmaster, isServer bool) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         nextSessionID.Add(1),
		cfg:        cfg,
		conn:       conn,
		postmaster: pm,
		isServer:   isServer,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.mailbox = NewMailbox(s, cfg.MaxFrameData())
	s.lastReceived.Store(time.Now().UnixNano())
	s.state.Store(int32(StateConnecting))
	return s
}

// NewSession wraps an already-established connection as a Session scheduled
// by pm and starts its read loop. Dial and Listener.Accept build their
// Sessions the same way for real sockets; callers wiring up their own net.Conn (an
// in-memory pipe for tests, for instance) can call it directly. Such
// sessions are treated as client-side for the purpose of Close's reported
// CloseReason.
func NewSession(cfg Config, conn net.Conn, pm *Postmaster) *Session {
	return newSession(cfg, conn, pm, false).start()
}

// ID reports the session's process-local, monotonically assigned identifier.
func (s *Session) ID() uint64 { return s.id }

// State reports the session's current lifecycle state.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Mailbox returns the session's mailbox.
func (s *Session) Mailbox() *Mailbox { return s.mailbox }

// MaxFrameData reports the maximum frame payload this session's connection
// was configured with, for callers building Messages to send.
func (s *Session) MaxFrameData() int { return s.cfg.MaxFrameData() }

// ConnectionTimeout reports the handshake deadline this session was
// configured with; zero means no deadline is enforced. It is read by the
// rpc package to bound AwaitServerInfo/Authenticate and the server-side
// wait for a client's Authenticate.
func (s *Session) ConnectionTimeout() time.Duration { return s.cfg.ConnectionTimeout }

// Done returns a channel closed once the session has fully closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// CloseReason reports why the session closed, or CloseUnspecified if it is
// still open.
func (s *Session) CloseReason() CloseReason { return s.closeReason }

// Err reports the error that caused the session to close, if any.
func (s *Session) Err() error { return s.closeErr }

// OnIncomingMessage registers fn to be called, from a postmaster reader
// goroutine, whenever one or more messages complete on this session. Only
// one listener may be registered; a later call replaces the earlier one.
func (s *Session) OnIncomingMessage(fn IncomingMessageFunc) {
	s.listenerMu.Lock()
	s.listener = fn
	s.listenerMu.Unlock()
}

// EnqueueOutgoing queues msg for delivery. It does not change the session's
// state; start marks the session Connected.
func (s *Session) EnqueueOutgoing(msg Message) {
	s.mailbox.EnqueueOutgoing(msg)
	rootMetrics.messagesOut.Add(1)
}

// LastReceived reports the time of the most recent byte received on this
// session, including Ping frames.
func (s *Session) LastReceived() time.Time {
	return time.Unix(0, s.lastReceived.Load())
}

func (s *Session) touchLastReceived() {
	s.lastReceived.Store(time.Now().UnixNano())
}

func (s *Session) fireIncomingMessage() {
	msgs := s.mailbox.Inbox()
	if len(msgs) == 0 {
		return
	}
	rootMetrics.messagesIn.Add(int64(len(msgs)))
	s.listenerMu.Lock()
	fn := s.listener
	s.listenerMu.Unlock()
	if fn != nil {
		fn(s, msgs)
	}
}

// transmit writes an already gather-batched chunk to the socket. It is
// called only by the postmaster writer holding single-flight on s.mailbox.
func (s *Session) transmit(data []byte) error {
	if s.cfg.SendTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.cfg.SendTimeout))
	}
	_, err := s.conn.Write(data)
	return err
}

// start begins the session's read loop and, if configured, its ping and
// idle-timeout monitors. It marks the session Connected.
func (s *Session) start() *Session {
	s.state.Store(int32(StateConnected))
	rootMetrics.sessionsActive.Add(1)
	go s.readLoop()
	if s.cfg.PingFrequency > 0 {
		go s.pingLoop()
	}
	if s.cfg.PingTimeout > 0 {
		go s.idleMonitorLoop()
	}
	return s
}

func (s *Session) readLoop() {
	buf := make([]byte, s.cfg.SendAndReceiveBufferSize)
	// Every write on the wire is a gather packet [0x00, len_lo, len_hi] +
	// frames; strip the headers so only frame bytes reach the mailbox.
	hdr, remaining := make([]byte, 0, 3), 0
	for {
		n, err := s.conn.Read(buf)
		var chunk []byte
		for data := buf[:n]; len(data) > 0; {
			k := min(3-len(hdr), len(data))
			if remaining > 0 {
				k = min(remaining, len(data))
				chunk, remaining = append(chunk, data[:k]...), remaining-k
			} else if hdr = append(hdr, data[:k]...); len(hdr) == 3 {
				remaining, hdr = int(hdr[1])|int(hdr[2])<<8, hdr[:0]
			}
			data = data[k:]
		}
		if len(chunk) > 0 {
			s.mailbox.EnqueueIncomingBuffer(chunk)
		}
		if err != nil {
			reason := CloseSocketError
			if isExpectedCloseError(err) {
				reason = CloseClientClosing
			}
			s.closeWithReason(reason, err)
			return
		}
	}
}

func (s *Session) pingLoop() {
	ticker := time.NewTicker(s.cfg.PingFrequency)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mailbox.RequestPing()
		}
	}
}

func (s *Session) idleMonitorLoop() {
	interval := s.cfg.PingTimeout / 4
	if interval <= 0 {
		interval = s.cfg.PingTimeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if time.Since(s.LastReceived()) > s.cfg.PingTimeout {
				s.closeWithReason(CloseTimeOut, nil)
				return
			}
		}
	}
}

// Close closes the session voluntarily, reporting CloseServerClosing for a
// session created by Listener.Accept and CloseClientClosing otherwise.
func (s *Session) Close() error {
	reason := CloseClientClosing
	if s.isServer {
		reason = CloseServerClosing
	}
	s.closeWithReason(reason, nil)
	return nil
}

// CloseWithReason closes the session for an application-supplied reason and
// error. It exists for layers above mailmux, such as the rpc package's
// handshake, that need to report a close reason more specific than
// ClientClosing or ServerClosing.
func (s *Session) CloseWithReason(reason CloseReason, err error) error {
	s.closeWithReason(reason, err)
	return nil
}

func (s *Session) closeWithReason(reason CloseReason, err error) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		s.closeReason = reason
		s.closeErr = err
		s.cancel()
		s.conn.Close()
		s.state.Store(int32(StateClosed))
		rootMetrics.sessionsActive.Add(-1)
		close(s.done)
	})
}

func isExpectedCloseError(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
