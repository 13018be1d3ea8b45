package shared

import "context"

// MessageHandler consumes integration messages
type MessageHandler interface {
	// Handle processes a message
	Handle(ctx context.Context, msg Message) error
	// MessageKinds returns the kinds this handler is interested in.
	// An empty slice means the handler receives all messages.
	MessageKinds() []string
}

// MessagePublisher delivers integration messages to interested consumers
type MessagePublisher interface {
	// Publish sends messages in order. An error means delivery was not
	// accepted and the caller should retry.
	Publish(ctx context.Context, msgs ...Message) error
}

// MessageSubscriber registers consumers
type MessageSubscriber interface {
	// Subscribe registers a handler for specific kinds.
	// If no kinds are provided, the handler's own MessageKinds are used.
	Subscribe(handler MessageHandler, kinds ...string)
	// Unsubscribe removes a handler from every subscription
	Unsubscribe(handler MessageHandler)
}

// MessageTransport combines publisher and subscriber capabilities
type MessageTransport interface {
	MessagePublisher
	MessageSubscriber
	// Start starts background delivery, if any
	Start(ctx context.Context) error
	// Stop gracefully stops delivery
	Stop(ctx context.Context) error
}
