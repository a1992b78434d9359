// Package registry's etcd backend uses etcd as a distributed phonebook:
//
//	Key:   /mailmux/{ServiceName}/{Addr}
//	Value: JSON-encoded Endpoint
//
// Registration uses a TTL lease kept alive in the background; if the server
// process dies, the lease expires and the entry disappears without any
// explicit deregistration.
package registry

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/mailmux/"

// EtcdRegistry implements Registry on top of an etcd v3 client.
type EtcdRegistry struct {
	client *clientv3.Client
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c}, nil
}

// Close releases the underlying etcd client connection.
func (r *EtcdRegistry) Close() error { return r.client.Close() }

func serviceKey(serviceName, addr string) string {
	return keyPrefix + serviceName + "/" + addr
}

func servicePrefix(serviceName string) string {
	return keyPrefix + serviceName + "/"
}

// Register implements Registry. The lease is kept alive by a background
// goroutine that exits when ctx ends.
func (r *EtcdRegistry) Register(ctx context.Context, serviceName string, instance Endpoint, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	if _, err := r.client.Put(ctx, serviceKey(serviceName, instance.Addr), string(val), clientv3.WithLease(lease.ID)); err != nil {
		return err
	}

	keepAlive, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}
	go func() {
		for range keepAlive {
			// drain keepalive responses so the channel does not fill up
		}
	}()
	return nil
}

// Deregister implements Registry.
func (r *EtcdRegistry) Deregister(ctx context.Context, serviceName, addr string) error {
	_, err := r.client.Delete(ctx, serviceKey(serviceName, addr))
	return err
}

// Discover implements Registry.
func (r *EtcdRegistry) Discover(ctx context.Context, serviceName string) ([]Endpoint, error) {
	resp, err := r.client.Get(ctx, servicePrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	endpoints := make([]Endpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var ep Endpoint
		if err := json.Unmarshal(kv.Value, &ep); err != nil {
			continue
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

// Watch implements Registry using etcd's server-push watch API. On any
// change under the service prefix it re-runs Discover rather than trying to
// apply the individual watch event, trading a little extra round-trip cost
// for simpler, always-consistent output.
func (r *EtcdRegistry) Watch(ctx context.Context, serviceName string) <-chan []Endpoint {
	out := make(chan []Endpoint, 1)
	go func() {
		defer close(out)
		watchChan := r.client.Watch(ctx, servicePrefix(serviceName), clientv3.WithPrefix())
		for range watchChan {
			endpoints, err := r.Discover(ctx, serviceName)
			if err != nil {
				continue
			}
			select {
			case out <- endpoints:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
