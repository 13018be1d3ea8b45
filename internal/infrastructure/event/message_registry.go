package event

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/orgextract/backend/internal/domain/organisation"
	"github.com/orgextract/backend/internal/domain/shared"
)

// Route binds a message kind to the payload type carried by its envelope
type Route struct {
	kind          string
	fromCommitted func(evt shared.CommittedEvent) (shared.Message, error)
	decode        func(data []byte) (shared.Message, error)
}

// RouteOf builds the route for kind whose payload decodes into T
func RouteOf[T any](kind string) Route {
	return Route{
		kind: kind,
		fromCommitted: func(evt shared.CommittedEvent) (shared.Message, error) {
			msg := &shared.IntegrationMessage[T]{Envelope: envelopeOf(evt)}
			if err := json.Unmarshal(evt.Data, &msg.Data); err != nil {
				return nil, fmt.Errorf("decode %s payload: %w", kind, err)
			}
			return msg, nil
		},
		decode: func(data []byte) (shared.Message, error) {
			msg := &shared.IntegrationMessage[T]{}
			if err := json.Unmarshal(data, msg); err != nil {
				return nil, fmt.Errorf("decode %s message: %w", kind, err)
			}
			return msg, nil
		},
	}
}

// envelopeOf copies the committed event's provenance verbatim
func envelopeOf(evt shared.CommittedEvent) shared.Envelope {
	return shared.Envelope{
		ID:            evt.ID,
		Kind:          evt.Kind,
		StreamID:      evt.StreamID,
		Version:       evt.Version,
		Sequence:      evt.Sequence,
		Timestamp:     evt.Timestamp,
		TenantID:      evt.TenantID,
		CausationID:   evt.CausationID,
		CorrelationID: evt.CorrelationID,
		Headers:       evt.Headers,
	}
}

// MessageRegistry maps message kinds to envelope constructors. It is built
// once and only read afterwards, so it is safe for concurrent use.
type MessageRegistry struct {
	routes map[string]Route
}

// NewMessageRegistry builds a registry from routes. Duplicate kinds are rejected.
func NewMessageRegistry(routes ...Route) (*MessageRegistry, error) {
	r := &MessageRegistry{routes: make(map[string]Route, len(routes))}
	for _, route := range routes {
		if route.kind == "" {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "message route has no kind")
		}
		if _, exists := r.routes[route.kind]; exists {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("duplicate message route %q", route.kind))
		}
		r.routes[route.kind] = route
	}
	return r, nil
}

// OrganisationMessageRoutes returns a route for every organisation event kind
func OrganisationMessageRoutes() []Route {
	return []Route{
		RouteOf[organisation.EntityCreated](string(organisation.KindEntityCreated)),
		RouteOf[organisation.RiskExtractInitiated](string(organisation.KindRiskExtractInitiated)),
		RouteOf[organisation.RiskExtractReceived](string(organisation.KindRiskExtractReceived)),
		RouteOf[organisation.RiskExtractCompleted](string(organisation.KindRiskExtractCompleted)),
		RouteOf[organisation.AsicExtractInitiated](string(organisation.KindAsicExtractInitiated)),
		RouteOf[organisation.AsicExtractOrderCreated](string(organisation.KindAsicExtractOrderCreated)),
		RouteOf[organisation.AsicExtractReceived](string(organisation.KindAsicExtractReceived)),
		RouteOf[organisation.AsicExtractOrderCompleted](string(organisation.KindAsicExtractOrderCompleted)),
	}
}

// NewOrganisationMessageRegistry builds the registry used by the projector
// and the transports
func NewOrganisationMessageRegistry() (*MessageRegistry, error) {
	return NewMessageRegistry(OrganisationMessageRoutes()...)
}

// FromCommitted builds the integration message for a committed event
func (r *MessageRegistry) FromCommitted(evt shared.CommittedEvent) (shared.Message, error) {
	route, ok := r.routes[evt.Kind]
	if !ok {
		return nil, unknownKind(evt.Kind)
	}
	return route.fromCommitted(evt)
}

// Decode rebuilds a typed message from its wire form
func (r *MessageRegistry) Decode(data []byte) (shared.Message, error) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode message kind: %w", err)
	}
	route, ok := r.routes[head.Kind]
	if !ok {
		return nil, unknownKind(head.Kind)
	}
	return route.decode(data)
}

// Kinds returns the registered kinds in sorted order
func (r *MessageRegistry) Kinds() []string {
	kinds := make([]string, 0, len(r.routes))
	for kind := range r.routes {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

func unknownKind(kind string) error {
	return shared.NewDomainError(shared.CodeUnknownMessageKind, fmt.Sprintf("no message route for kind %q", kind))
}
