package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	consul "github.com/hashicorp/consul/api"
)

// Backend is one session server behind the balancer.
type Backend struct {
	URL   *url.URL
	proxy *httputil.ReverseProxy

	// waiting is the queue length last reported by the backend.
	waiting atomic.Int64
}

// NewBackend builds a backend for base, e.g. http://10.0.0.3:8080.
func NewBackend(base *url.URL) *Backend {
	return &Backend{URL: base, proxy: httputil.NewSingleHostReverseProxy(base)}
}

// Waiting returns the last polled queue length.
func (b *Backend) Waiting() int64 { return b.waiting.Load() }

// Balancer spreads WebSocket connections over session servers. A backend
// with a player waiting gets the next connection so that the two are paired
// on the same server; otherwise backends are used in turn.
type Balancer struct {
	mu       sync.RWMutex
	backends []*Backend
	next     atomic.Uint64
	logger   *slog.Logger
}

func NewBalancer(logger *slog.Logger) *Balancer {
	return &Balancer{logger: logger.With("component", "balancer")}
}

// Set replaces the backend list, keeping the counters of known backends.
func (b *Balancer) Set(backends []*Backend) {
	b.mu.Lock()
	defer b.mu.Unlock()
	known := make(map[string]*Backend, len(b.backends))
	for _, be := range b.backends {
		known[be.URL.String()] = be
	}
	for i, be := range backends {
		if old, ok := known[be.URL.String()]; ok {
			backends[i] = old
		}
	}
	b.backends = backends
}

// Backends returns a copy of the current list.
func (b *Balancer) Backends() []*Backend {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*Backend(nil), b.backends...)
}

// Pick chooses the backend for a new connection, or nil when there is none.
func (b *Balancer) Pick() *Backend {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.backends) == 0 {
		return nil
	}
	for _, be := range b.backends {
		// Claim the waiting player so that a burst of connections is not all
		// sent to the same backend before the next poll.
		if w := be.waiting.Load(); w > 0 && be.waiting.CompareAndSwap(w, w-1) {
			return be
		}
	}
	n := b.next.Add(1)
	return b.backends[n%uint64(len(b.backends))]
}

// ServeHTTP proxies the request to the picked backend.
func (b *Balancer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	be := b.Pick()
	if be == nil {
		b.logger.Warn("no backend available", "remote", r.RemoteAddr)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	b.logger.Debug("proxying", "remote", r.RemoteAddr, "backend", be.URL.String())
	be.proxy.ServeHTTP(w, r)
}

// Poll refreshes every backend's waiting count from GET /api/matches.
func (b *Balancer) Poll(ctx context.Context, client *http.Client) {
	for _, be := range b.Backends() {
		waiting, err := fetchWaiting(ctx, client, be.URL)
		if err != nil {
			b.logger.Debug("poll failed", "backend", be.URL.String(), "error", err)
			continue
		}
		be.waiting.Store(waiting)
	}
}

// RunPoller calls Poll every interval until ctx is done.
func (b *Balancer) RunPoller(ctx context.Context, client *http.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Poll(ctx, client)
		}
	}
}

func fetchWaiting(ctx context.Context, client *http.Client, base *url.URL) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.JoinPath("/api/matches").String(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status %d", resp.StatusCode)
	}
	var body struct {
		Waiting int64 `json:"waiting"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.Waiting, nil
}

// Watch keeps the backend list in sync with the passing instances of service
// using Consul blocking queries. It returns when ctx is done.
func (b *Balancer) Watch(ctx context.Context, client *consul.Client, service string) {
	var waitIndex uint64
	for ctx.Err() == nil {
		opts := (&consul.QueryOptions{WaitIndex: waitIndex, WaitTime: 2 * time.Minute}).WithContext(ctx)
		entries, meta, err := client.Health().Service(service, "", true, opts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn("consul watch failed", "service", service, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}
		waitIndex = meta.LastIndex
		b.Set(backendsFrom(entries))
		b.logger.Info("backends updated", "service", service, "healthy", len(entries))
	}
}

func backendsFrom(entries []*consul.ServiceEntry) []*Backend {
	backends := make([]*Backend, 0, len(entries))
	for _, e := range entries {
		addr := e.Service.Address
		if addr == "" && e.Node != nil {
			addr = e.Node.Address
		}
		backends = append(backends, NewBackend(&url.URL{
			Scheme: "http",
			Host:   fmt.Sprintf("%s:%d", addr, e.Service.Port),
		}))
	}
	return backends
}
