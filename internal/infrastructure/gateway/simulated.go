// Package gateway holds adapters for the external data services an
// organisation's extracts are retrieved from. The adapters here simulate the
// services with a fixed latency so the workflow runs end to end without them.
package gateway

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orgextract/backend/internal/domain/organisation"
	"github.com/orgextract/backend/internal/domain/shared"
	"github.com/orgextract/backend/internal/infrastructure/config"
	"github.com/orgextract/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// maxOrderID bounds the order numbers handed out by the simulated ASIC service
const maxOrderID = 1000

// SimulatedRiskGateway answers risk report requests after a fixed delay
type SimulatedRiskGateway struct {
	latency time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// NewSimulatedRiskGateway creates the simulated risk data service
func NewSimulatedRiskGateway(cfg config.GatewayConfig, logger *zap.Logger) *SimulatedRiskGateway {
	return &SimulatedRiskGateway{latency: cfg.RiskLatency, timeout: cfg.Timeout, logger: logger.Named("risk-gateway")}
}

// FetchRiskReport waits out the simulated latency
func (g *SimulatedRiskGateway) FetchRiskReport(ctx context.Context, entityID, extractID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "risk-gateway", "fetch_report",
		telemetry.WithAttribute(telemetry.SpanAttrExtractID, extractID.String()),
	)
	defer span.End()

	if err := wait(ctx, g.latency, g.timeout); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	g.logger.Debug("risk report fetched",
		zap.String("entity_id", entityID.String()),
		zap.String("extract_id", extractID.String()),
	)
	return nil
}

// SimulatedAsicGateway places and fetches ASIC orders after a fixed delay.
// Order numbers are random in [0, 1000).
type SimulatedAsicGateway struct {
	latency time.Duration
	timeout time.Duration
	logger  *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedAsicGateway creates the simulated ASIC data service
func NewSimulatedAsicGateway(cfg config.GatewayConfig, logger *zap.Logger) *SimulatedAsicGateway {
	return newSimulatedAsicGateway(cfg, logger, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

func newSimulatedAsicGateway(cfg config.GatewayConfig, logger *zap.Logger, rng *rand.Rand) *SimulatedAsicGateway {
	return &SimulatedAsicGateway{
		latency: cfg.AsicLatency,
		timeout: cfg.Timeout,
		logger:  logger.Named("asic-gateway"),
		rng:     rng,
	}
}

// CreateOrder places an order for acn and returns its number
func (g *SimulatedAsicGateway) CreateOrder(ctx context.Context, extractID uuid.UUID, acn string) (int64, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "asic-gateway", "create_order",
		telemetry.WithAttribute(telemetry.SpanAttrExtractID, extractID.String()),
	)
	defer span.End()

	if acn == "" {
		return 0, shared.NewDomainError(shared.CodeInvalidInput, "ACN is required to place an ASIC order")
	}
	if err := wait(ctx, g.latency, g.timeout); err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	g.mu.Lock()
	orderID := g.rng.Int64N(maxOrderID)
	g.mu.Unlock()

	g.logger.Debug("asic order created",
		zap.String("extract_id", extractID.String()),
		zap.String("acn", acn),
		zap.Int64("order_id", orderID),
	)
	return orderID, nil
}

// FetchOrder waits out the simulated latency
func (g *SimulatedAsicGateway) FetchOrder(ctx context.Context, orderID int64) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "asic-gateway", "fetch_order")
	defer span.End()

	if err := wait(ctx, g.latency, g.timeout); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	g.logger.Debug("asic order fetched", zap.Int64("order_id", orderID))
	return nil
}

// wait sleeps for d, giving up after timeout when one is set
func wait(ctx context.Context, d, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var (
	_ organisation.RiskDataService = (*SimulatedRiskGateway)(nil)
	_ organisation.AsicDataService = (*SimulatedAsicGateway)(nil)
)
