package syncsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

const (
	baseReconnectDelay = 2 * time.Second
	maxReconnectDelay  = 2 * time.Minute
	reconnectJitter    = 0.1

	wsPingInterval  = 25 * time.Second
	wsPongWait      = 70 * time.Second
	wsWriteWait     = 10 * time.Second
	wsHandshakeWait = 15 * time.Second
)

var errDisconnected = errors.New("sync transport disconnected")

// wsFrame is the control/message envelope exchanged with the push server.
type wsFrame struct {
	Action string          `json:"action,omitempty"` // subscribe | unsubscribe
	Topic  string          `json:"topic,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// WebsocketTransport maintains a persistent websocket connection to the push
// server, redials with jittered backoff on failure and replays active
// subscriptions after every reconnect.
type WebsocketTransport struct {
	url    string
	logger core.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	subs      map[string]*wsSubscription
	onConnect []func()
	cancel    context.CancelFunc
}

var _ Transport = (*WebsocketTransport)(nil)

type wsSubscription struct {
	topic     string
	handler   MessageHandler
	transport *WebsocketTransport
}

func (s *wsSubscription) Topic() string { return s.topic }

func (s *wsSubscription) Unsubscribe() error {
	return s.transport.unsubscribe(s.topic)
}

func NewWebsocketTransport(conf *core.Config, logger core.Logger) *WebsocketTransport {
	return &WebsocketTransport{
		url:    conf.Sync.URL,
		logger: logger,
		subs:   make(map[string]*wsSubscription),
	}
}

// Connect dials the push server and starts the run loop. It blocks until the
// first dial succeeds or ctx is done; later disconnects are retried in the
// background with backoff.
func (t *WebsocketTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return nil // already connected or connecting
	}
	runCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.mu.Unlock()

	if err := t.dial(ctx); err != nil {
		t.mu.Lock()
		t.cancel = nil
		t.mu.Unlock()
		cancel()
		return err
	}

	go t.run(runCtx)
	return nil
}

func (t *WebsocketTransport) OnConnect(fn func()) {
	t.mu.Lock()
	t.onConnect = append(t.onConnect, fn)
	t.mu.Unlock()
}

func (t *WebsocketTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *WebsocketTransport) Subscribe(topic string, handler MessageHandler) (Subscription, error) {
	t.mu.Lock()
	conn, connected := t.conn, t.connected
	t.mu.Unlock()

	if !connected {
		return nil, errDisconnected
	}
	if err := t.writeFrame(conn, wsFrame{Action: "subscribe", Topic: topic}); err != nil {
		return nil, errors.Wrap(err, "subscribing to topic")
	}

	// register only once the write went through so a failed subscribe is
	// never replayed on reconnect
	sub := &wsSubscription{topic: topic, handler: handler, transport: t}
	t.mu.Lock()
	t.subs[topic] = sub
	t.mu.Unlock()
	return sub, nil
}

func (t *WebsocketTransport) unsubscribe(topic string) error {
	t.mu.Lock()
	delete(t.subs, topic)
	conn, connected := t.conn, t.connected
	t.mu.Unlock()

	if !connected {
		return nil
	}
	return t.writeFrame(conn, wsFrame{Action: "unsubscribe", Topic: topic})
}

// Disconnect is idempotent and callable from any state.
func (t *WebsocketTransport) Disconnect() error {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.teardown()
	return nil
}

func (t *WebsocketTransport) teardown() {
	t.mu.Lock()
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	t.connected = false
	t.mu.Unlock()
}

func (t *WebsocketTransport) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeWait}
	conn, _, err := dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return errors.Wrap(err, "dialing push server")
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	subs := make([]*wsSubscription, 0, len(t.subs))
	for _, sub := range t.subs {
		subs = append(subs, sub)
	}
	callbacks := append([]func(){}, t.onConnect...)
	t.mu.Unlock()

	// replay active subscriptions
	for _, sub := range subs {
		if err := t.writeFrame(conn, wsFrame{Action: "subscribe", Topic: sub.topic}); err != nil {
			t.logger.Warn(fmt.Sprintf("sync: resubscribing %s: %v", sub.topic, err), err)
		}
	}
	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// run reads messages until ctx is done, redialing on failure.
func (t *WebsocketTransport) run(ctx context.Context) {
	consecutiveFailures := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := t.readLoop(ctx)
		t.teardown()
		if ctx.Err() != nil {
			return
		}

		consecutiveFailures++
		delay := backoffDelay(consecutiveFailures)
		t.logger.Warn(fmt.Sprintf("sync: connection lost, redialing in %s: %v", delay, err), err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if err = t.dial(ctx); err != nil {
			t.logger.Warn(fmt.Sprintf("sync: redial failed: %v", err), err)
			continue
		}
		consecutiveFailures = 0
	}
}

func (t *WebsocketTransport) readLoop(ctx context.Context) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return errDisconnected
	}

	pingDone := make(chan struct{})
	defer close(pingDone)
	go t.pingLoop(ctx, conn, pingDone)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame wsFrame
		if err = json.Unmarshal(data, &frame); err != nil {
			// not an envelope we understand; drop it
			continue
		}

		t.mu.Lock()
		sub := t.subs[frame.Topic]
		t.mu.Unlock()
		if sub != nil {
			sub.handler(frame.Body)
		}
	}
}

func (t *WebsocketTransport) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (t *WebsocketTransport) writeFrame(conn *websocket.Conn, frame wsFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(frame)
}

func backoffDelay(failures int) time.Duration {
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(failures-1))
	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}
	jitter := delay * reconnectJitter * (2*rand.Float64() - 1)
	return time.Duration(delay + jitter)
}
