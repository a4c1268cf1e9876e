package feature

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrUnauthorized is returned by a Client when the backend rejects the
	// fetch with 401/403; the guard reacts to it differently than to a
	// generic load failure.
	ErrUnauthorized = errors.New("features fetch unauthorized")
)

// Client fetches the resolved feature snapshot for a principal context from
// the backend.
type Client interface {
	FetchResolved(ctx context.Context, fctx Context) (Snapshot, error)
}
