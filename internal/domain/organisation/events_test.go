package organisation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEvent(t *testing.T) {
	evt := AsicExtractOrderCreated{EntityID: uuid.New(), ExtractID: uuid.New(), OrderID: 77}

	data, err := EncodeEvent(evt)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"entity_id":"`+evt.EntityID.String()+`","extract_id":"`+evt.ExtractID.String()+`","order_id":77}`,
		string(data))

	decoded, err := DecodeEvent(string(KindAsicExtractOrderCreated), data)
	require.NoError(t, err)
	assert.Equal(t, evt, decoded)
}

func TestDecodeEvent_UnknownKind(t *testing.T) {
	_, err := DecodeEvent("organisation.nope", []byte(`{}`))
	assert.Error(t, err)
}

func TestDecodeEvent_BadPayload(t *testing.T) {
	_, err := DecodeEvent(string(KindEntityCreated), []byte(`{"entity_id":7}`))
	assert.Error(t, err)
}

func TestKinds_AllDecodableAndDescribed(t *testing.T) {
	for _, kind := range Kinds() {
		_, ok := eventDecoders[kind]
		assert.True(t, ok, kind)
		assert.NotEqual(t, string(kind), Describe(kind))
	}
	assert.Len(t, eventDecoders, len(Kinds()))
}

func TestNewHistoryEntry(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	entityID, extractID, eventID := uuid.New(), uuid.New(), uuid.New()

	entry := NewHistoryEntry(eventID, 12, at, AsicExtractInitiated{EntityID: entityID, ExtractID: extractID, ACN: "123"})

	assert.Equal(t, eventID, entry.EventID)
	assert.Equal(t, entityID, entry.EntityID)
	assert.Equal(t, int64(12), entry.Sequence)
	assert.Equal(t, KindAsicExtractInitiated, entry.Kind)
	assert.Equal(t, "ASIC extract initiated with ID "+extractID.String()+" at 2024-03-01T10:30:00Z", entry.Description)

	created := NewHistoryEntry(eventID, 1, at, EntityCreated{EntityID: entityID})
	assert.Equal(t, "Entity created with ID "+entityID.String()+" at 2024-03-01T10:30:00Z", created.Description)
}
