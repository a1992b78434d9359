package mailmux

import (
	"context"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
)

func TestDialListenRoundTrip(t *testing.T) {
	defer leaktest.Check(t)()

	cfg := testConfig()
	pm := NewPostmaster(cfg)
	defer pm.Stop()

	lst, err := Listen(pm, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer lst.Close()

	accepted := make(chan *Session, 1)
	go func() {
		sess, err := lst.Accept(context.Background())
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		accepted <- sess
	}()

	client, err := Dial(context.Background(), pm, "tcp", lst.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var server *Session
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("Accept never returned a session")
	}
	defer server.Close()

	got := make(chan []Message, 1)
	server.OnIncomingMessage(func(_ *Session, msgs []Message) { got <- msgs })
	client.EnqueueOutgoing(NewMessage([]byte("dialed"), client.MaxFrameData()))

	select {
	case msgs := <-got:
		if len(msgs) != 1 || string(msgs[0].Payload()) != "dialed" {
			t.Errorf("received %+v, want one message with payload %q", msgs, "dialed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the dialed message")
	}
}

func TestAcceptRespectsContext(t *testing.T) {
	defer leaktest.Check(t)()

	cfg := testConfig()
	pm := NewPostmaster(cfg)
	defer pm.Stop()

	lst, err := Listen(pm, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer lst.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := lst.Accept(ctx); err == nil {
		t.Error("Accept with a canceled context: got nil error")
	}
}
