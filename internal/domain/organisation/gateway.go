package organisation

import (
	"context"

	"github.com/google/uuid"
)

// RiskDataService is the port to the external risk data service. Concrete
// adapters live in the infrastructure layer.
type RiskDataService interface {
	// FetchRiskReport retrieves the risk report for an entity's extract
	FetchRiskReport(ctx context.Context, entityID, extractID uuid.UUID) error
}

// AsicDataService is the port to the external ASIC data service
type AsicDataService interface {
	// CreateOrder places an extract order for acn and returns its order number
	CreateOrder(ctx context.Context, extractID uuid.UUID, acn string) (int64, error)

	// FetchOrder retrieves the extract document of a placed order
	FetchOrder(ctx context.Context, orderID int64) error
}
