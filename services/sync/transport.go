package syncsvc

import "context"

type (
	// MessageHandler receives the raw body of every message published on a
	// subscribed topic.
	MessageHandler func(body []byte)

	Subscription interface {
		Topic() string
		Unsubscribe() error
	}

	// Transport is the minimal push-channel contract the sync channel needs;
	// the wire protocol (websocket, long-polling, ...) is swappable behind it.
	// Reconnection and backoff are owned entirely by the implementation.
	Transport interface {
		// Connect dials the channel and blocks until the transport is
		// connected or ctx is done.
		Connect(ctx context.Context) error

		// OnConnect registers fn to run after every successful (re)connect.
		OnConnect(fn func())

		Subscribe(topic string, handler MessageHandler) (Subscription, error)
		Connected() bool

		// Disconnect tears the transport down; callable from any state.
		Disconnect() error
	}
)
