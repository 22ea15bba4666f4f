package mqtt

import (
	"context"
)

// MessageHandler receives one PUBLISH. The client calls it on the connection's
// reader in delivery order; a handler must return in bounded time since the
// next message waits for it.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Client is the MQTT v5 connection cartwin ingests from and the simulator
// publishes with.
type Client interface {
	// Start begins connecting in the background and returns at once.
	Start(ctx context.Context) error

	// Disconnect sends DISCONNECT and stops reconnecting.
	Disconnect(ctx context.Context)

	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe registers handler for filter. Subscriptions are replayed
	// after every reconnect.
	Subscribe(ctx context.Context, filter string, qos int, handler MessageHandler) error

	// AwaitConnection blocks until the first connection is up or ctx ends.
	AwaitConnection(ctx context.Context) error

	IsConnected() bool
}
