package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	specific := newRecordingHandler()
	other := newRecordingHandler()
	wildcard := newRecordingHandler()

	r.Register(specific, "a", "b")
	r.Register(other, "b")
	r.Register(wildcard)

	assert.Len(t, r.GetHandlers("a"), 2)
	assert.Len(t, r.GetHandlers("b"), 3)
	assert.Len(t, r.GetHandlers("c"), 1)
	assert.Equal(t, []string{"a", "b"}, r.Kinds())

	r.Unregister(specific)
	assert.Len(t, r.GetHandlers("a"), 1)
	assert.Equal(t, []string{"b"}, r.Kinds())

	r.Unregister(wildcard)
	assert.Empty(t, r.GetHandlers("a"))
}
