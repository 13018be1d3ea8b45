package event

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/orgextract/backend/internal/domain/organisation"
	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/stretchr/testify/require"
)

// recordingHandler records every message it receives
type recordingHandler struct {
	kinds []string
	mu    sync.Mutex
	got   []shared.Message
	err   error
}

func newRecordingHandler(kinds ...string) *recordingHandler {
	return &recordingHandler{kinds: kinds}
}

func (h *recordingHandler) Handle(ctx context.Context, msg shared.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, msg)
	return h.err
}

func (h *recordingHandler) MessageKinds() []string {
	return h.kinds
}

func (h *recordingHandler) setError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

func (h *recordingHandler) received() []shared.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.Message(nil), h.got...)
}

func sequences(msgs []shared.Message) []int64 {
	seqs := make([]int64, len(msgs))
	for i, m := range msgs {
		seqs[i] = m.Meta().Sequence
	}
	return seqs
}

func testRegistry(t *testing.T) *MessageRegistry {
	t.Helper()
	r, err := NewOrganisationMessageRegistry()
	require.NoError(t, err)
	return r
}

func pendingOf(t *testing.T, evts ...organisation.Event) []shared.PendingEvent {
	t.Helper()
	out := make([]shared.PendingEvent, len(evts))
	for i, evt := range evts {
		data, err := organisation.EncodeEvent(evt)
		require.NoError(t, err)
		out[i] = shared.PendingEvent{ID: uuid.New(), Kind: string(evt.Kind()), Data: data}
	}
	return out
}

func createdMessage(t *testing.T, r *MessageRegistry, seq int64) shared.Message {
	t.Helper()
	id := uuid.New()
	data, err := organisation.EncodeEvent(organisation.EntityCreated{EntityID: id})
	require.NoError(t, err)
	msg, err := r.FromCommitted(shared.CommittedEvent{
		ID:       uuid.New(),
		StreamID: id,
		Version:  1,
		Sequence: seq,
		Kind:     string(organisation.KindEntityCreated),
		Data:     data,
	})
	require.NoError(t, err)
	return msg
}
