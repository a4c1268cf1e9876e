package feature

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/tests"
)

type fakeClient struct {
	mu    sync.Mutex
	snap  Snapshot
	err   error
	calls []Context
}

func (c *fakeClient) FetchResolved(_ context.Context, fctx Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fctx)
	return c.snap, c.err
}

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

var testCtx = Context{Tenant: "alpha", Role: "student:", Audience: AudienceSecure}

func TestStore_Has_absentMeansDisabled(t *testing.T) {
	client := &fakeClient{snap: Snapshot{Features: map[string]bool{"groups": true}}}
	store := NewStore(client, testutil.NewLogger())

	// before any refresh the snapshot is empty
	if store.Has("groups") {
		t.Errorf("Has() = true on empty snapshot, want false")
	}

	if err := store.Refresh(context.Background(), testCtx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	tests := []struct {
		name string
		code string
		want bool
	}{
		{name: "enabled code", code: "groups", want: true},
		{name: "absent code", code: "certificates", want: false},
		{name: "empty code", code: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.Has(tt.code); got != tt.want {
				t.Errorf("Has(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestStore_Refresh_replacesSnapshotWholesale(t *testing.T) {
	client := &fakeClient{snap: Snapshot{Features: map[string]bool{"groups": true}, Version: 1}}
	store := NewStore(client, testutil.NewLogger())

	if err := store.Refresh(context.Background(), testCtx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !store.Has("groups") {
		t.Fatalf("Has(groups) = false after refresh, want true")
	}

	// the new snapshot does not mention "groups" at all: no merging
	client.snap = Snapshot{Features: map[string]bool{"reports": false}, Version: 2}
	if err := store.Refresh(context.Background(), testCtx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if store.Has("groups") {
		t.Errorf("Has(groups) = true after replacing snapshot, want false")
	}
	if store.Has("reports") {
		t.Errorf("Has(reports) = true, want false")
	}
}

func TestStore_Refresh_coldStartFailure(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantErrState string
	}{
		{name: "unauthorized", err: ErrUnauthorized, wantErrState: ErrStateUnauthorized},
		{name: "wrapped unauthorized", err: errors.Wrap(ErrUnauthorized, "HTTP 403"), wantErrState: ErrStateUnauthorized},
		{name: "network failure", err: errors.New("connection refused"), wantErrState: ErrStateLoadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{err: tt.err}
			store := NewStore(client, testutil.NewLogger())

			err := store.Refresh(context.Background(), testCtx)
			if err == nil {
				t.Fatalf("Refresh() error = nil, want error on cold start")
			}
			if got := store.ErrState(); got != tt.wantErrState {
				t.Errorf("ErrState() = %q, want %q", got, tt.wantErrState)
			}
			if store.Loaded() {
				t.Errorf("Loaded() = true after failed cold start, want false")
			}

			snap := store.Current()
			if !snap.Fallback {
				t.Errorf("Current().Fallback = false, want true")
			}
			if len(snap.Features) != 0 {
				t.Errorf("Current().Features = %v, want empty", snap.Features)
			}
			if store.Has("groups") {
				t.Errorf("Has() = true on fallback snapshot, want false")
			}
		})
	}
}

func TestStore_Refresh_keepsStaleSnapshotOnFailure(t *testing.T) {
	client := &fakeClient{snap: Snapshot{Features: map[string]bool{"groups": true}, Version: 3}}
	store := NewStore(client, testutil.NewLogger())

	if err := store.Refresh(context.Background(), testCtx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	client.err = errors.New("boom")
	if err := store.Refresh(context.Background(), testCtx); err != nil {
		t.Errorf("Refresh() error = %v after prior successful load, want nil", err)
	}
	if !store.Has("groups") {
		t.Errorf("Has(groups) = false, want stale snapshot kept")
	}
	if got := store.ErrState(); got != ErrStateLoadFailed {
		t.Errorf("ErrState() = %q, want %q", got, ErrStateLoadFailed)
	}
	if snap := store.Current(); snap.Fallback {
		t.Errorf("Current().Fallback = true, want false for a stale real snapshot")
	}

	// a successful refresh clears the error state
	client.err = nil
	if err := store.Refresh(context.Background(), testCtx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := store.ErrState(); got != "" {
		t.Errorf("ErrState() = %q after successful refresh, want empty", got)
	}
}

func TestStore_Entitlement(t *testing.T) {
	client := &fakeClient{snap: Snapshot{
		Entitlements: map[string]interface{}{EntStudentLimit: float64(50)},
	}}
	store := NewStore(client, testutil.NewLogger())
	if err := store.Refresh(context.Background(), testCtx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if val, ok := store.Entitlement(EntStudentLimit); !ok || val != float64(50) {
		t.Errorf("Entitlement(%q) = (%v, %v), want (50, true)", EntStudentLimit, val, ok)
	}
	if _, ok := store.Entitlement(EntStorageQuotaMB); ok {
		t.Errorf("Entitlement(%q) ok = true, want false", EntStorageQuotaMB)
	}
}

func TestStore_Reset(t *testing.T) {
	client := &fakeClient{snap: Snapshot{Features: map[string]bool{"groups": true}}}
	store := NewStore(client, testutil.NewLogger())
	if err := store.Refresh(context.Background(), testCtx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	store.Reset()

	if store.Loaded() {
		t.Errorf("Loaded() = true after Reset, want false")
	}
	if store.Has("groups") {
		t.Errorf("Has(groups) = true after Reset, want false")
	}
}

func TestRegistry_Invalidate(t *testing.T) {
	client := &fakeClient{snap: Snapshot{Features: map[string]bool{"groups": true}}}
	reg := NewRegistry(client, testutil.NewLogger())

	alphaStudent := Context{Tenant: "alpha", Role: "student:", Audience: AudienceSecure}
	alphaTeacher := Context{Tenant: "Alpha", Role: "teacher:", Audience: AudienceSecure}
	beta := Context{Tenant: "beta", Role: "student:", Audience: AudienceSecure}

	for _, fctx := range []Context{alphaStudent, alphaTeacher, beta} {
		if err := reg.Refresh(context.Background(), fctx); err != nil {
			t.Fatalf("Refresh(%v) error = %v", fctx, err)
		}
	}
	before := client.callCount()

	reg.Invalidate(context.Background(), "ALPHA")

	// both alpha contexts refreshed, beta untouched
	if got := client.callCount() - before; got != 2 {
		t.Errorf("Invalidate() triggered %d fetches, want 2", got)
	}
	for _, fctx := range client.calls[before:] {
		if fctx.Tenant == "beta" {
			t.Errorf("Invalidate(ALPHA) refreshed tenant beta")
		}
	}
}

func TestRegistry_Store_sharedAcrossCase(t *testing.T) {
	client := &fakeClient{}
	reg := NewRegistry(client, testutil.NewLogger())

	a := reg.Store(Context{Tenant: "Alpha", Role: "student:", Audience: AudienceSecure})
	b := reg.Store(Context{Tenant: "alpha", Role: "student:", Audience: AudienceSecure})
	if a != b {
		t.Errorf("Store() returned distinct stores for same context differing in tenant case")
	}

	c := reg.Store(Context{Tenant: "alpha", Role: "teacher:", Audience: AudienceSecure})
	if a == c {
		t.Errorf("Store() returned same store for different roles")
	}
}
