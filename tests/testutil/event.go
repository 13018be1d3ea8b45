package testutil

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/orgextract/backend/internal/domain/shared"
)

// MockMessageHandler records every integration message it receives.
type MockMessageHandler struct {
	mu      sync.Mutex
	kinds   []string
	handled []shared.Message
	err     error
}

// NewMockMessageHandler creates a handler for kinds; no kinds means every message.
func NewMockMessageHandler(kinds ...string) *MockMessageHandler {
	return &MockMessageHandler{kinds: kinds}
}

// MessageKinds returns the kinds this handler subscribes to.
func (h *MockMessageHandler) MessageKinds() []string {
	return h.kinds
}

// Handle records msg and returns the configured error.
func (h *MockMessageHandler) Handle(ctx context.Context, msg shared.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, msg)
	return h.err
}

// Handled returns a copy of the received messages in delivery order.
func (h *MockMessageHandler) Handled() []shared.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.handled)
}

// HandledKinds returns the kinds of the received messages in delivery order.
func (h *MockMessageHandler) HandledKinds() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	kinds := make([]string, len(h.handled))
	for i, msg := range h.handled {
		kinds[i] = msg.Meta().Kind
	}
	return kinds
}

// HandledCount returns the number of received messages.
func (h *MockMessageHandler) HandledCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

// SetError sets the error to return from Handle.
func (h *MockMessageHandler) SetError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// Reset clears the received messages and the configured error.
func (h *MockMessageHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = nil
	h.err = nil
}

// WaitForMessageCount waits until the handler has received at least count messages.
func WaitForMessageCount(t *testing.T, handler *MockMessageHandler, count int, timeout time.Duration) bool {
	t.Helper()

	return WaitForCondition(t, func() bool {
		return handler.HandledCount() >= count
	}, timeout, 10*time.Millisecond)
}

// WaitForCondition waits for a condition to become true.
// Returns true if the condition was met, false if timeout occurred.
func WaitForCondition(t *testing.T, condition func() bool, timeout, interval time.Duration) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}
	return false
}
