package feature

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// Error states surfaced to callers after a failed refresh.
const (
	ErrStateUnauthorized = "features.errors.unauthorized"
	ErrStateLoadFailed   = "features.errors.loadFailed"
)

// Store is the single source of truth for "is feature X enabled" and "what is
// entitlement Y" for one principal context. The snapshot is replaced
// atomically on every successful refresh; flag resolution failures degrade to
// deny-by-default rather than erroring.
type Store struct {
	client Client
	logger core.Logger

	mu       sync.RWMutex
	snap     Snapshot
	loaded   bool // a successful refresh has completed
	errState string
}

func NewStore(client Client, logger core.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// Refresh fetches a fresh snapshot for fctx and replaces the current one
// wholesale. On failure an existing snapshot from a prior successful load is
// kept as-is; without one, an all-disabled fallback snapshot is installed and
// the error propagates so the caller can react to the cold-start failure.
// Overlapping calls are not de-duplicated: the last response to resolve wins.
func (s *Store) Refresh(ctx context.Context, fctx Context) error {
	snap, err := s.client.FetchResolved(ctx, fctx)
	if err != nil {
		return s.refreshFailed(fctx, err)
	}
	if snap.Features == nil {
		snap.Features = make(map[string]bool)
	}
	if snap.Entitlements == nil {
		snap.Entitlements = make(map[string]interface{})
	}
	snap.Fallback = false

	s.mu.Lock()
	if s.loaded && snap.Version < s.snap.Version {
		s.logger.Debug(fmt.Sprintf("features: version went back from %d to %d (tenant=%s)", s.snap.Version, snap.Version, fctx.Tenant))
	}
	s.snap = snap
	s.loaded = true
	s.errState = ""
	s.mu.Unlock()
	return nil
}

func (s *Store) refreshFailed(fctx Context, err error) error {
	state := ErrStateLoadFailed
	if errors.Cause(err) == ErrUnauthorized {
		state = ErrStateUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.errState = state
	if s.loaded {
		// stale snapshot is good enough until the next successful refresh
		s.logger.Warn(fmt.Sprintf("features: refresh failed, keeping stale snapshot (tenant=%s): %v", fctx.Tenant, err), err)
		return nil
	}

	s.snap = Snapshot{
		Features:     make(map[string]bool),
		Entitlements: make(map[string]interface{}),
		Fallback:     true,
	}
	s.logger.Error(fmt.Sprintf("features: cold-start refresh failed, features disabled (tenant=%s): %v", fctx.Tenant, err), err)
	return errors.Wrap(err, "refreshing features")
}

// Has reports whether the given feature code is enabled. Codes absent from
// the current snapshot are disabled, including on the empty initial snapshot.
func (s *Store) Has(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Features[code]
}

// Entitlement returns the raw entitlement value for key; callers supply their
// own default when absent.
func (s *Store) Entitlement(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.snap.Entitlements[key]
	return val, ok
}

// Current returns a copy of the current snapshot.
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snap
	snap.Features = make(map[string]bool, len(s.snap.Features))
	for k, v := range s.snap.Features {
		snap.Features[k] = v
	}
	snap.Entitlements = make(map[string]interface{}, len(s.snap.Entitlements))
	for k, v := range s.snap.Entitlements {
		snap.Entitlements[k] = v
	}
	return snap
}

// ErrState returns the error state string set by the last failed refresh;
// empty after a successful refresh.
func (s *Store) ErrState() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errState
}

// Loaded reports whether a successful refresh has completed.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Reset clears the snapshot back to the empty initial state. Used on logout
// and tenant switch, before a fresh Refresh.
func (s *Store) Reset() {
	s.mu.Lock()
	s.snap = Snapshot{}
	s.loaded = false
	s.errState = ""
	s.mu.Unlock()
}
