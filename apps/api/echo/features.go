package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/feature"
)

type featureApi struct {
	deps ServerDeps
}

func registerFeatureAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := featureApi{deps: deps}

	fg := g.Group("/features", jwt)
	fg.GET("", api.snapshot)
	fg.POST("/refresh", api.refresh)
}

type FeaturesResponse struct {
	feature.Snapshot
	Error string `json:"error,omitempty"`
}

// snapshot serves the resolved feature snapshot for the session's tenant,
// role and audience. The first request for a given context loads lazily; a
// failed cold start surfaces the failure instead of a silent all-disabled
// snapshot.
func (api *featureApi) snapshot(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	fctx := claims.FeatureContext()

	// keep the push channel pointed at the tenant being served
	if api.deps.Sync != nil {
		api.deps.Sync.Subscribe(fctx.Tenant)
	}

	store := api.deps.Features.Store(fctx)
	if !store.Loaded() {
		if err := store.Refresh(ctx.Request().Context(), fctx); err != nil {
			if store.ErrState() == feature.ErrStateUnauthorized {
				return echo.NewHTTPError(http.StatusUnauthorized, feature.ErrStateUnauthorized)
			}
			return errors.Wrap(err, "loading feature snapshot")
		}
	}

	return ctx.JSON(http.StatusOK, FeaturesResponse{
		Snapshot: store.Current(),
		Error:    store.ErrState(),
	})
}

// refresh forces a re-fetch for the session's context. Refreshes are not
// de-duplicated; concurrent calls each hit the resolver and the last
// completed response wins.
func (api *featureApi) refresh(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	fctx := claims.FeatureContext()

	store := api.deps.Features.Store(fctx)
	if err := store.Refresh(ctx.Request().Context(), fctx); err != nil {
		if store.ErrState() == feature.ErrStateUnauthorized {
			return echo.NewHTTPError(http.StatusUnauthorized, feature.ErrStateUnauthorized)
		}
		return errors.Wrap(err, "refreshing feature snapshot")
	}

	return ctx.JSON(http.StatusOK, FeaturesResponse{
		Snapshot: store.Current(),
		Error:    store.ErrState(),
	})
}
