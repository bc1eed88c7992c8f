// Package exchange hosts exchange capability implementations. Real venue
// adapters own their wire protocols and request signing elsewhere; the
// engine only depends on the capability interface and its categorized
// error taxonomy.
package exchange

import (
	"strings"
	"sync"

	drepo "SigCast/internal/domain/repository"
)

// Registry maps venue names to clients. Registration happens at startup;
// lookups are concurrent.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]drepo.ExchangeClient
}

func NewRegistry(clients ...drepo.ExchangeClient) *Registry {
	r := &Registry{clients: make(map[string]drepo.ExchangeClient)}
	for _, c := range clients {
		r.Register(c)
	}
	return r
}

func (r *Registry) Register(client drepo.ExchangeClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[strings.ToLower(client.Name())] = client
}

func (r *Registry) ClientFor(exchange string) (drepo.ExchangeClient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[strings.ToLower(exchange)]
	return c, ok
}

var _ drepo.ExchangeRegistry = (*Registry)(nil)
