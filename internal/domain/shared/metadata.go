package shared

import (
	"context"
	"maps"
)

// MaxCorrelationIDLength bounds causation and correlation ids stored with events
const MaxCorrelationIDLength = 128

// EventMetadata is the provenance attached to every event appended to the log.
// It travels on the context of the call that produces the events.
type EventMetadata struct {
	TenantID      string
	CausationID   string
	CorrelationID string
	Headers       map[string]any
}

type metadataKey struct{}

// WithEventMetadata attaches metadata to ctx, replacing any already present
func WithEventMetadata(ctx context.Context, md EventMetadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, md.clone())
}

// EventMetadataFromContext returns the metadata attached to ctx, or the zero value
func EventMetadataFromContext(ctx context.Context) EventMetadata {
	if md, ok := ctx.Value(metadataKey{}).(EventMetadata); ok {
		return md.clone()
	}
	return EventMetadata{}
}

// WithHeader returns a copy of md with the header set
func (md EventMetadata) WithHeader(key string, value any) EventMetadata {
	out := md.clone()
	if out.Headers == nil {
		out.Headers = make(map[string]any, 1)
	}
	out.Headers[key] = value
	return out
}

func (md EventMetadata) clone() EventMetadata {
	if md.Headers != nil {
		md.Headers = maps.Clone(md.Headers)
	}
	return md
}
