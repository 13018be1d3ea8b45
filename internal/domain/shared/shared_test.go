package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := NewDomainError(CodeInvalidTransition, "risk extract is still Initiated")
	wrapped := fmt.Errorf("initiate risk extract: %w", err)

	assert.ErrorIs(t, wrapped, ErrInvalidTransition)
	assert.NotErrorIs(t, wrapped, ErrConcurrencyConflict)
	assert.Equal(t, "risk extract is still Initiated", err.Error())

	var de *DomainError
	require.True(t, errors.As(wrapped, &de))
	assert.Equal(t, CodeInvalidTransition, de.Code)
}

func TestEventMetadata_Context(t *testing.T) {
	t.Run("missing metadata is the zero value", func(t *testing.T) {
		assert.Equal(t, EventMetadata{}, EventMetadataFromContext(context.Background()))
	})

	t.Run("headers are copied in and out", func(t *testing.T) {
		headers := map[string]any{"source": "api"}
		ctx := WithEventMetadata(context.Background(), EventMetadata{
			TenantID:      "t1",
			CorrelationID: "c1",
			Headers:       headers,
		})
		headers["source"] = "mutated"

		md := EventMetadataFromContext(ctx)
		assert.Equal(t, "t1", md.TenantID)
		assert.Equal(t, "c1", md.CorrelationID)
		assert.Equal(t, "api", md.Headers["source"])

		md.Headers["source"] = "again"
		assert.Equal(t, "api", EventMetadataFromContext(ctx).Headers["source"])
	})

	t.Run("WithHeader does not touch the receiver", func(t *testing.T) {
		base := EventMetadata{TenantID: "t1"}
		next := base.WithHeader("attempt", "2")

		assert.Nil(t, base.Headers)
		assert.Equal(t, "2", next.Headers["attempt"])
		assert.Equal(t, "t1", next.TenantID)
	})
}

type riskPayload struct {
	ExtractID uuid.UUID
}

func TestIntegrationMessage(t *testing.T) {
	id := uuid.New()
	msg := &IntegrationMessage[riskPayload]{
		Envelope: Envelope{ID: uuid.New(), Kind: "risk", Sequence: 7},
		Data:     riskPayload{ExtractID: id},
	}

	var m Message = msg
	assert.Equal(t, int64(7), m.Meta().Sequence)

	data, ok := MessageData[riskPayload](m)
	require.True(t, ok)
	assert.Equal(t, id, data.ExtractID)

	_, ok = MessageData[string](m)
	assert.False(t, ok)
}

func TestDefaultIdempotencyConfig(t *testing.T) {
	cfg := DefaultIdempotencyConfig()
	assert.True(t, cfg.Enabled)
	assert.Positive(t, cfg.TTL)
}
