package registry

import (
	"context"
	"testing"
	"time"
)

func dialEtcd(t *testing.T) *EtcdRegistry {
	t.Helper()
	reg, err := NewEtcdRegistry([]string{"localhost:2379"})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if _, err := reg.client.Status(ctx, "localhost:2379"); err != nil {
		t.Skipf("no etcd reachable at localhost:2379: %v", err)
	}
	return reg
}

func TestRegisterAndDiscover(t *testing.T) {
	reg := dialEtcd(t)
	ctx := context.Background()

	inst1 := Endpoint{Addr: "127.0.0.1:8001", Weight: 10, Version: "1.0"}
	inst2 := Endpoint{Addr: "127.0.0.1:8002", Weight: 5, Version: "1.0"}

	if err := reg.Register(ctx, "mailmuxtest", inst1, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(ctx, "mailmuxtest", inst2, 10); err != nil {
		t.Fatal(err)
	}
	defer reg.Deregister(ctx, "mailmuxtest", inst1.Addr)
	defer reg.Deregister(ctx, "mailmuxtest", inst2.Addr)

	endpoints, err := reg.Discover(ctx, "mailmuxtest")
	if err != nil {
		t.Fatal(err)
	}
	if len(endpoints) != 2 {
		t.Fatalf("expect 2 endpoints, got %d", len(endpoints))
	}

	if err := reg.Deregister(ctx, "mailmuxtest", inst1.Addr); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	endpoints, err = reg.Discover(ctx, "mailmuxtest")
	if err != nil {
		t.Fatal(err)
	}
	if len(endpoints) != 1 || endpoints[0].Addr != inst2.Addr {
		t.Fatalf("expect only %s after deregister, got %+v", inst2.Addr, endpoints)
	}
}
