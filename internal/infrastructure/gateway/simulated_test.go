package gateway

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/orgextract/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSimulatedRiskGateway_Fetch(t *testing.T) {
	g := NewSimulatedRiskGateway(config.GatewayConfig{RiskLatency: 5 * time.Millisecond}, zap.NewNop())

	start := time.Now()
	require.NoError(t, g.FetchRiskReport(context.Background(), uuid.New(), uuid.New()))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestSimulatedRiskGateway_Cancelled(t *testing.T) {
	g := NewSimulatedRiskGateway(config.GatewayConfig{RiskLatency: time.Hour}, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := g.FetchRiskReport(ctx, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSimulatedRiskGateway_Timeout(t *testing.T) {
	g := NewSimulatedRiskGateway(config.GatewayConfig{RiskLatency: time.Hour, Timeout: 10 * time.Millisecond}, zap.NewNop())

	err := g.FetchRiskReport(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSimulatedAsicGateway_CreateOrder(t *testing.T) {
	g := newSimulatedAsicGateway(config.GatewayConfig{}, zap.NewNop(), rand.New(rand.NewPCG(1, 2)))
	ctx := context.Background()

	for range 100 {
		orderID, err := g.CreateOrder(ctx, uuid.New(), "004085616")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, orderID, int64(0))
		assert.Less(t, orderID, int64(maxOrderID))
	}
}

func TestSimulatedAsicGateway_RequiresACN(t *testing.T) {
	g := NewSimulatedAsicGateway(config.GatewayConfig{}, zap.NewNop())

	_, err := g.CreateOrder(context.Background(), uuid.New(), "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestSimulatedAsicGateway_FetchOrderCancelled(t *testing.T) {
	g := NewSimulatedAsicGateway(config.GatewayConfig{AsicLatency: time.Hour}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, g.FetchOrder(ctx, 7), context.Canceled)
}
