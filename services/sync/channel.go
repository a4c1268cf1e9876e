package syncsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/feature"
)

const refreshTimeout = 15 * time.Second

// TopicFor returns the per-tenant broadcast topic carrying invalidation events.
func TopicFor(tenant string) string {
	return "/topic/features/" + strings.ToLower(tenant)
}

type (
	// Refresher triggers a snapshot refresh for a principal context.
	// *feature.Registry satisfies it.
	Refresher interface {
		Refresh(ctx context.Context, fctx feature.Context) error
	}

	// ContextResolver resolves the principal context to refresh with when an
	// invalidation arrives. It is called at message-handling time so the role
	// is read fresh from session state, never captured at subscribe time.
	ContextResolver func(tenant string) feature.Context

	// Channel maintains a live subscription to a per-tenant invalidation
	// topic and triggers a snapshot refresh whenever the currently-bound
	// tenant's features change.
	Channel struct {
		transport Transport
		refresher Refresher
		resolve   ContextResolver
		logger    core.Logger

		mu                 sync.Mutex
		sub                Subscription
		subscriptionTenant string // tenant the channel is subscribed to
		targetTenant       string // tenant the channel should be subscribed to
	}
)

func NewChannel(transport Transport, refresher Refresher, resolve ContextResolver, logger core.Logger) *Channel {
	ch := &Channel{
		transport: transport,
		refresher: refresher,
		resolve:   resolve,
		logger:    logger,
	}
	transport.OnConnect(ch.ensureSubscribed)
	return ch
}

// Connect opens the underlying transport; any pending target tenant is
// subscribed once the transport reports connected.
func (ch *Channel) Connect(ctx context.Context) error {
	return ch.transport.Connect(ctx)
}

// Subscribe binds the channel to tenant, replacing any prior subscription.
// If the transport is down the target is recorded and applied on reconnect.
func (ch *Channel) Subscribe(tenant string) {
	ch.mu.Lock()
	ch.targetTenant = core.CleanString(tenant, true /* lower */)
	ch.mu.Unlock()
	ch.ensureSubscribed()
}

// ensureSubscribed reconciles subscriptionTenant with targetTenant while the
// transport is connected.
func (ch *Channel) ensureSubscribed() {
	if !ch.transport.Connected() {
		return
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.subscriptionTenant == ch.targetTenant && ch.sub != nil {
		return
	}
	if ch.sub != nil {
		if err := ch.sub.Unsubscribe(); err != nil {
			ch.logger.Warn(fmt.Sprintf("sync: unsubscribing %s: %v", ch.sub.Topic(), err), err)
		}
		ch.sub = nil
		ch.subscriptionTenant = ""
	}
	if ch.targetTenant == "" {
		return
	}

	sub, err := ch.transport.Subscribe(TopicFor(ch.targetTenant), ch.handleMessage)
	if err != nil {
		ch.logger.Warn(fmt.Sprintf("sync: subscribing tenant %q: %v", ch.targetTenant, err), err)
		return
	}
	ch.sub = sub
	ch.subscriptionTenant = ch.targetTenant
}

// Disconnect tears down subscription and transport; callable from any state.
func (ch *Channel) Disconnect() error {
	ch.mu.Lock()
	ch.sub = nil
	ch.subscriptionTenant = ""
	ch.mu.Unlock()
	return ch.transport.Disconnect()
}

// handleMessage processes one inbound push message. Parse failures, empty
// bodies and unrecognized events are dropped silently; an invalidation for
// another tenant is a no-op. A matching invalidation triggers exactly one
// refresh and never a navigation.
func (ch *Channel) handleMessage(body []byte) {
	var evt feature.InvalidationEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return
	}
	if evt.Event != feature.EventFeaturesInvalidated {
		return
	}

	ch.mu.Lock()
	tenant := ch.subscriptionTenant
	ch.mu.Unlock()
	if tenant == "" || !strings.EqualFold(evt.Tenant, tenant) {
		return
	}

	fctx := ch.resolve(tenant)
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := ch.refresher.Refresh(ctx, fctx); err != nil {
		ch.logger.Warn(fmt.Sprintf("sync: refreshing features (tenant=%s): %v", tenant, err), err)
	}
}
