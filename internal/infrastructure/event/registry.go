package event

import (
	"slices"
	"sync"

	"github.com/orgextract/backend/internal/domain/shared"
)

// HandlerRegistry manages message handler subscriptions
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string][]shared.MessageHandler // kind -> handlers
	wildcard []shared.MessageHandler            // handlers for all kinds
}

// NewHandlerRegistry creates a new handler registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string][]shared.MessageHandler),
	}
}

// Register adds a handler for specific kinds.
// If no kinds are provided, the handler receives every message.
func (r *HandlerRegistry) Register(handler shared.MessageHandler, kinds ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(kinds) == 0 {
		r.wildcard = append(r.wildcard, handler)
		return
	}

	for _, kind := range kinds {
		r.handlers[kind] = append(r.handlers[kind], handler)
	}
}

// Unregister removes a handler from every kind
func (r *HandlerRegistry) Unregister(handler shared.MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wildcard = removeHandler(r.wildcard, handler)
	for kind, handlers := range r.handlers {
		r.handlers[kind] = removeHandler(handlers, handler)
		if len(r.handlers[kind]) == 0 {
			delete(r.handlers, kind)
		}
	}
}

// GetHandlers returns the kind-specific handlers followed by the wildcard handlers
func (r *HandlerRegistry) GetHandlers(kind string) []shared.MessageHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specific := r.handlers[kind]
	result := make([]shared.MessageHandler, 0, len(specific)+len(r.wildcard))
	result = append(result, specific...)
	return append(result, r.wildcard...)
}

// Kinds returns the kinds with at least one specific handler
func (r *HandlerRegistry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

func removeHandler(handlers []shared.MessageHandler, target shared.MessageHandler) []shared.MessageHandler {
	return slices.DeleteFunc(slices.Clone(handlers), func(h shared.MessageHandler) bool {
		return h == target
	})
}
