package mailmux

import (
	"net"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
)

func TestPostmasterConcurrentSessions(t *testing.T) {
	defer leaktest.Check(t)()

	cfg := testConfig()
	pm := NewPostmaster(cfg)
	defer pm.Stop()

	const n = 8
	type pair struct{ a, b *Session }
	pairs := make([]pair, n)
	for i := range pairs {
		connA, connB := net.Pipe()
		pairs[i] = pair{NewSession(cfg, connA, pm), NewSession(cfg, connB, pm)}
	}
	defer func() {
		for _, p := range pairs {
			p.a.Close()
			p.b.Close()
		}
	}()

	done := make(chan int, n)
	for i, p := range pairs {
		i, p := i, p
		p.b.OnIncomingMessage(func(_ *Session, msgs []Message) {
			if len(msgs) == 1 {
				done <- i
			}
		})
	}
	for _, p := range pairs {
		p.a.EnqueueOutgoing(NewMessage([]byte("hi"), p.a.MaxFrameData()))
	}

	seen := make(map[int]bool)
	timeout := time.After(3 * time.Second)
	for len(seen) < n {
		select {
		case i := <-done:
			seen[i] = true
		case <-timeout:
			t.Fatalf("only %d/%d sessions delivered a message", len(seen), n)
		}
	}
}

// newIdlePostmaster returns a Postmaster whose worker pool has already been
// stopped, so its signalWrite/releaseWrite/channel state can be exercised
// directly without racing a live reader/writer goroutine for the same
// channel receive.
func newIdlePostmaster(cfg Config) *Postmaster {
	pm := NewPostmaster(cfg)
	pm.Stop()
	return pm
}

func TestPostmasterSignalCoalesces(t *testing.T) {
	defer leaktest.Check(t)()

	pm := newIdlePostmaster(testConfig())
	mb := NewMailbox(nil, pm.cfg.MaxFrameData())
	pm.signalWrite(mb)
	pm.signalWrite(mb) // must coalesce, not block or double-enqueue

	pm.ongoingMu.Lock()
	_, busy := pm.ongoingWrite[mb]
	pm.ongoingMu.Unlock()
	if !busy {
		t.Error("mailbox not marked ongoing after signalWrite")
	}
	if len(pm.writeReady) != 1 {
		t.Errorf("writeReady channel depth = %d, want 1 (second signal should coalesce)", len(pm.writeReady))
	}
}

func TestPostmasterReleaseResignalsOnPendingWork(t *testing.T) {
	defer leaktest.Check(t)()

	pm := newIdlePostmaster(testConfig())
	mb := NewMailbox(nil, pm.cfg.MaxFrameData())
	mb.EnqueueOutgoing(NewMessage([]byte("late"), pm.cfg.MaxFrameData()))

	pm.ongoingMu.Lock()
	pm.ongoingWrite[mb] = struct{}{} // simulate a write pass already in flight
	pm.ongoingMu.Unlock()

	pm.releaseWrite(mb)

	select {
	case got := <-pm.writeReady:
		if got != mb {
			t.Errorf("resignal delivered wrong mailbox")
		}
	default:
		t.Fatal("releaseWrite did not resignal a mailbox with pending outbox work")
	}
}

func TestUnderIdleBudget(t *testing.T) {
	tests := []struct {
		name           string
		idle, busy, th time.Duration
		want           bool
	}{
		{"no busy time", 0, 0, 10 * time.Millisecond, false},
		{"under threshold", 5 * time.Millisecond, time.Second, 10 * time.Millisecond, true},
		{"over threshold", 50 * time.Millisecond, time.Second, 10 * time.Millisecond, false},
	}
	for _, test := range tests {
		if got := underIdleBudget(test.idle, test.busy, test.th); got != test.want {
			t.Errorf("%s: underIdleBudget(%v, %v, %v) = %v, want %v", test.name, test.idle, test.busy, test.th, got, test.want)
		}
	}
}
