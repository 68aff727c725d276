// Package bus routes serialized messages between the three isolated
// execution contexts (panel, coordinator, page scanner). Payloads cross the
// bus as bytes only, so no context can smuggle shared memory to another.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Well-known endpoints. Scanner endpoints are derived per tab.
const (
	EndpointCoordinator = "coordinator"
)

var ErrNoListener = errors.New("no listener registered on endpoint")

// Handler processes one encoded message and returns an encoded reply.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Router delivers request/reply messages between named endpoints.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register installs the handler for an endpoint, atomically replacing any
// previous one. Replacement is what keeps a re-injected scanner from
// handling the same message twice.
func (r *Router) Register(endpoint string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[endpoint] = h
}

// Unregister removes the endpoint's handler, if any.
func (r *Router) Unregister(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, endpoint)
}

// Send delivers the payload to the endpoint's current handler and returns
// its reply. Delivery to an endpoint with no handler fails with
// ErrNoListener; immediately after script injection this is an expected,
// retryable condition.
func (r *Router) Send(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	h, ok := r.handlers[endpoint]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoListener, endpoint)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return h(ctx, payload)
}

// TabEndpoint names the scanner endpoint of one tab.
func TabEndpoint(tabID int) string {
	return fmt.Sprintf("tab:%d", tabID)
}
