package rpc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ashgrove-labs/mailmux"
	"github.com/ashgrove-labs/mailmux/codec"
)

// ProtocolVersion is advertised in ServerInfo and is not currently checked
// by clients; it exists so a future incompatible wire change has somewhere
// to be announced.
const ProtocolVersion = 1

type pendingCall struct {
	result chan callResult
}

type callResult struct {
	data []byte
	err  error
}

// A Peer layers method calls onto a mailmux.Session. Both ends of a
// connection use the same type: a Peer can serve inbound calls, originate
// outbound calls, or both at once. Inbound calls dispatch by (service,
// method) rather than by a flat method name, so unrelated handler sets can
// share one Peer without colliding.
type Peer struct {
	sess  *mailmux.Session
	codec codec.Codec

	connTimeout time.Duration

	mu       sync.Mutex
	nextID   uint16
	handlers map[string]map[string]Handler
	ocall    map[uint16]pendingCall
	icancel  map[uint16]context.CancelFunc

	limiter *rate.Limiter

	requireAuth   bool
	authenticated atomic.Bool
	checkToken    func(token string) bool
	authDeadline  *time.Timer

	serverInfo chan serverInfoMsg
	authResult chan callResult
}

type serverInfoMsg struct {
	version     uint32
	requireAuth bool
}

// NewPeer wraps sess with an RPC dispatcher that encodes call arguments and
// results with c. The handshake's connection deadline (see
// Config.ConnectionTimeout) is read from sess and applied as a fallback
// whenever AwaitServerInfo or Authenticate is called with a context that
// carries no deadline of its own.
func NewPeer(sess *mailmux.Session, c codec.Codec) *Peer {
	p := &Peer{
		sess:        sess,
		codec:       c,
		connTimeout: sess.ConnectionTimeout(),
		handlers:    make(map[string]map[string]Handler),
		ocall:       make(map[uint16]pendingCall),
		icancel:     make(map[uint16]context.CancelFunc),
		serverInfo:  make(chan serverInfoMsg, 1),
		authResult:  make(chan callResult, 1),
	}
	sess.OnIncomingMessage(p.onIncomingMessage)
	return p
}

// Handle registers h to serve calls to method within service. Passing a
// nil Handler removes any handler for that (service, method) pair. Handle
// returns p to permit chaining.
func (p *Peer) Handle(service, method string, h Handler) *Peer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h == nil {
		if methods, ok := p.handlers[service]; ok {
			delete(methods, method)
			if len(methods) == 0 {
				delete(p.handlers, service)
			}
		}
		return p
	}
	methods, ok := p.handlers[service]
	if !ok {
		methods = make(map[string]Handler)
		p.handlers[service] = methods
	}
	methods[method] = h
	return p
}

// SetRateLimiter installs a token-bucket limiter that gates inbound calls.
// A call rejected by the limiter is reported to the caller as
// ErrRateLimited and never reaches a Handler.
func (p *Peer) SetRateLimiter(ratePerSec float64, burst int) *Peer {
	p.limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	return p
}

// RequireAuthentication marks this Peer's server side as requiring a
// successful Authenticate exchange, verified by check, before serving any
// other call. If the session carries a nonzero ConnectionTimeout, a client
// that has not authenticated by the time it elapses, counted from
// SendServerInfo, is disconnected with CloseAuthenticationFailure.
func (p *Peer) RequireAuthentication(check func(token string) bool) *Peer {
	p.requireAuth = true
	p.checkToken = check
	return p
}

// SendServerInfo sends the initial handshake greeting. Servers call this
// once per accepted session, before the client is expected to send calls.
func (p *Peer) SendServerInfo() error {
	if err := p.send(encodeServerInfo(ProtocolVersion, p.requireAuth)); err != nil {
		return err
	}
	if p.requireAuth {
		p.startAuthDeadline()
	}
	return nil
}

// AwaitServerInfo blocks until the server's greeting arrives or ctx ends.
// Clients call this once after Dial. If ctx carries no deadline, the
// session's ConnectionTimeout is applied as a fallback.
func (p *Peer) AwaitServerInfo(ctx context.Context) error {
	ctx, cancel := p.withConnectionTimeout(ctx)
	defer cancel()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case info := <-p.serverInfo:
		p.requireAuth = info.requireAuth
		return nil
	}
}

// Authenticate sends token to the server and blocks for its verdict. If
// ctx carries no deadline, the session's ConnectionTimeout is applied as a
// fallback.
func (p *Peer) Authenticate(ctx context.Context, token string) error {
	if err := p.send(encodeAuthenticate(token)); err != nil {
		return err
	}
	ctx, cancel := p.withConnectionTimeout(ctx)
	defer cancel()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-p.authResult:
		if res.err != nil {
			return res.err
		}
		p.authenticated.Store(true)
		return nil
	}
}

func (p *Peer) withConnectionTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || p.connTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.connTimeout)
}

func (p *Peer) startAuthDeadline() {
	if p.connTimeout <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authDeadline = time.AfterFunc(p.connTimeout, func() {
		if !p.authenticated.Load() {
			p.sess.CloseWithReason(mailmux.CloseAuthenticationFailure, ErrNotAuthenticated)
		}
	})
}

func (p *Peer) stopAuthDeadline() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.authDeadline != nil {
		p.authDeadline.Stop()
		p.authDeadline = nil
	}
}

// Call invokes method on service, addressing the remote peer with
// positional arguments args (each encoded independently, at its own
// positional field index), and blocks until ctx ends or a response
// arrives. The result is decoded into result (which must be a pointer, per
// codec.Codec's Decode contract). A remote-raised exception is reported as
// a *RemoteError.
//
// If ctx ends before the remote responds, Call sends a MethodCancel frame
// carrying id and returns ErrCanceled immediately; any response that
// arrives afterward is discarded.
//
// If this Peer has learned from ServerInfo that the remote requires
// authentication and Authenticate has not yet succeeded, Call fails fast
// with ErrNotAuthenticated instead of sending anything.
func (p *Peer) Call(ctx context.Context, service, method string, args []any, result any) error {
	if p.requireAuth && !p.authenticated.Load() {
		return ErrNotAuthenticated
	}

	argData, err := p.encodeArgs(args)
	if err != nil {
		return err
	}

	id, ch := p.registerCall()
	if err := p.send(encodeMethodCall(id, service, method, argData)); err != nil {
		p.releaseCall(id)
		return err
	}

	select {
	case <-ctx.Done():
		p.send(encodeMethodCancel(id))
		p.releaseCall(id)
		return ErrCanceled
	case res := <-ch:
		return finishCall(res, result, p.codec)
	}
}

func (p *Peer) encodeArgs(args []any) ([][]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([][]byte, len(args))
	for i, a := range args {
		data, err := p.codec.Encode(a, i)
		if err != nil {
			return nil, fmt.Errorf("rpc: encode arg %d: %w", i, err)
		}
		out[i] = data
	}
	return out, nil
}

func finishCall(res callResult, result any, c codec.Codec) error {
	if res.err != nil {
		return res.err
	}
	if result == nil || len(res.data) == 0 {
		return nil
	}
	return c.Decode(res.data, result, 0)
}

// CallNoReturn sends a fire-and-forget call: it returns once the message is
// queued for delivery, without waiting for the remote peer to act on it.
// As with Call, it fails fast with ErrNotAuthenticated if authentication is
// known to be required and has not completed.
func (p *Peer) CallNoReturn(service, method string, args []any) error {
	if p.requireAuth && !p.authenticated.Load() {
		return ErrNotAuthenticated
	}
	argData, err := p.encodeArgs(args)
	if err != nil {
		return err
	}
	return p.send(encodeMethodCallNoReturn(service, method, argData))
}

func (p *Peer) registerCall() (uint16, chan callResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan callResult, 1)
	for {
		p.nextID++
		if p.nextID == 0 {
			p.nextID = 1
		}
		if _, busy := p.ocall[p.nextID]; !busy {
			p.ocall[p.nextID] = pendingCall{result: ch}
			return p.nextID, ch
		}
	}
}

func (p *Peer) releaseCall(id uint16) {
	p.mu.Lock()
	delete(p.ocall, id)
	p.mu.Unlock()
}

func (p *Peer) send(payload []byte) error {
	p.sess.EnqueueOutgoing(mailmux.NewMessage(payload, p.sess.MaxFrameData()))
	return nil
}

func (p *Peer) onIncomingMessage(sess *mailmux.Session, msgs []mailmux.Message) {
	for _, m := range msgs {
		p.dispatch(m.Payload())
	}
}

func (p *Peer) dispatch(payload []byte) {
	if len(payload) < 2 {
		return
	}
	if payload[0] != handlerID {
		p.sess.CloseWithReason(mailmux.CloseProtocolError, fmt.Errorf("rpc: unrecognized handler id %d", payload[0]))
		return
	}
	typ := RpcCallMessageType(payload[1])
	body := payload[2:]

	switch typ {
	case MethodCall:
		id, service, method, args, err := decodeMethodCall(body)
		if err == nil {
			go p.serveCall(id, service, method, args, true)
		}
	case MethodCallNoReturn:
		service, method, args, err := decodeMethodCallNoReturn(body)
		if err == nil {
			go p.serveCall(0, service, method, args, false)
		}
	case MethodReturn:
		id, data, err := decodeMethodReturn(body)
		if err == nil {
			p.deliver(id, callResult{data: data})
		}
	case MethodException:
		id, code, msg, err := decodeMethodException(body)
		if err == nil {
			p.deliver(id, callResult{err: &RemoteError{Code: code, Message: msg}})
		}
	case MethodCancel:
		id, err := decodeMethodCancel(body)
		if err == nil {
			p.cancelInbound(id)
		}
	case ServerInfo:
		version, requireAuth, err := decodeServerInfo(body)
		if err == nil {
			select {
			case p.serverInfo <- serverInfoMsg{version: version, requireAuth: requireAuth}:
			default:
			}
		}
	case Authenticate:
		token, err := decodeAuthenticate(body)
		if err == nil {
			p.serveAuthenticate(token)
		}
	case AuthenticationResult:
		ok, msg, err := decodeAuthenticationResult(body)
		if err == nil {
			res := callResult{}
			if !ok {
				res.err = ErrNotAuthenticated
				if msg != "" {
					res.err = &RemoteError{Code: resultCode(ErrNotAuthenticated), Message: msg}
				}
				p.sess.CloseWithReason(mailmux.CloseAuthenticationFailure, res.err)
			}
			select {
			case p.authResult <- res:
			default:
			}
		}
	default:
		p.sess.CloseWithReason(mailmux.CloseProtocolError, fmt.Errorf("rpc: unrecognized message type %d", typ))
	}
}

func (p *Peer) serveAuthenticate(token string) {
	ok := p.checkToken != nil && p.checkToken(token)
	p.authenticated.Store(ok)
	p.stopAuthDeadline()
	msg := ""
	if !ok {
		msg = "authentication failed"
	}
	p.send(encodeAuthenticationResult(ok, msg))
	if !ok {
		// Deferred so the queued AuthenticationResult has a chance to reach
		// the writer pool and flush before the socket goes away.
		time.AfterFunc(20*time.Millisecond, func() {
			p.sess.CloseWithReason(mailmux.CloseAuthenticationFailure, ErrNotAuthenticated)
		})
	}
}

func (p *Peer) deliver(id uint16, res callResult) {
	p.mu.Lock()
	pc, ok := p.ocall[id]
	delete(p.ocall, id)
	p.mu.Unlock()
	if ok {
		pc.result <- res
	}
}

func (p *Peer) cancelInbound(id uint16) {
	p.mu.Lock()
	cancel, ok := p.icancel[id]
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

func (p *Peer) lookupHandler(service, method string) (Handler, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	methods, ok := p.handlers[service]
	if !ok {
		return nil, ErrUnknownService
	}
	h, ok := methods[method]
	if !ok {
		return nil, ErrUnknownMethod
	}
	return h, nil
}

func (p *Peer) serveCall(id uint16, service, method string, args [][]byte, wantReturn bool) {
	if p.requireAuth && !p.authenticated.Load() {
		if wantReturn {
			p.send(encodeMethodException(id, resultCode(ErrNotAuthenticated), ErrNotAuthenticated.Error()))
		}
		return
	}
	if p.limiter != nil && !p.limiter.Allow() {
		if wantReturn {
			p.send(encodeMethodException(id, resultCode(ErrRateLimited), ErrRateLimited.Error()))
		}
		return
	}

	h, err := p.lookupHandler(service, method)
	if err != nil {
		if wantReturn {
			p.send(encodeMethodException(id, resultCode(err), err.Error()))
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	if wantReturn {
		p.mu.Lock()
		p.icancel[id] = cancel
		p.mu.Unlock()
		defer func() {
			p.mu.Lock()
			delete(p.icancel, id)
			p.mu.Unlock()
			cancel()
		}()
	} else {
		defer cancel()
	}

	results, err := h(ctx, args)
	if !wantReturn {
		return
	}
	if err != nil {
		p.send(encodeMethodException(id, resultCode(err), err.Error()))
		return
	}
	var out []byte
	if len(results) > 0 {
		out = results[0]
	}
	p.send(encodeMethodReturn(id, out))
}
