package echoapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
)

// Portal routes.
const (
	StudentHomePath   = "/student/home"
	TeacherHomePath   = "/teacher/home"
	AssistantHomePath = "/assistant/dashboard"
	StudentLoginPath  = "/student/login"
	TeacherLoginPath  = "/teacher/login"

	studentPathPrefix = "/student"
	teacherPathPrefix = "/teacher"
)

type GuardAction int

const (
	ActionAllow GuardAction = iota
	ActionCancel
	ActionRedirect
	ActionExternalRedirect // full page load on another host, not a client-side route change
)

// Decision is the guard's verdict on one navigation attempt. Cancel carries
// the session-expiry redirect location; Redirect/ExternalRedirect carry the
// replacement target.
type Decision struct {
	Action    GuardAction
	Location  string
	ClearAuth bool
}

var allow = Decision{Action: ActionAllow}

// Target describes the navigation being attempted.
type Target struct {
	Host         string
	Path         string
	Query        url.Values
	RequiresAuth bool
}

// Guard gates every portal navigation against authentication and
// role/tenant-host placement rules.
type Guard struct {
	hosts  tenant.Hosts
	usrSvc *user.Service
	logger core.Logger
}

func NewGuard(hosts tenant.Hosts, usrSvc *user.Service, logger core.Logger) *Guard {
	return &Guard{hosts: hosts, usrSvc: usrSvc, logger: logger}
}

// Hydrate refreshes the claims against the user store. Failures are logged,
// not fatal: navigation proceeds with whatever auth state is available. A
// deactivated or deleted account hydrates to unauthenticated.
func (g *Guard) Hydrate(claims *Claims) *Claims {
	if claims == nil {
		return nil
	}
	usr, err := g.usrSvc.GetByID(claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil
		}
		g.logger.Warn(fmt.Sprintf("guard: hydrating session for %q: %v", claims.Username, err), err)
		return claims
	}
	if !usr.IsActive {
		return nil
	}
	return claims
}

// Decide applies the per-navigation algorithm: authentication first, then
// role/host placement rules in order, first match wins.
func (g *Guard) Decide(target Target, claims *Claims) Decision {
	// authentication
	if target.RequiresAuth && claims == nil {
		return Decision{
			Action:    ActionCancel,
			Location:  g.sessionExpiryURL(target),
			ClearAuth: true,
		}
	}
	if claims == nil {
		return allow
	}

	// role/host placement rules; first match wins
	switch {
	case claims.IsTeacherFamily() && !g.hosts.IsAppHost(target.Host):
		return Decision{Action: ActionExternalRedirect, Location: g.hosts.AppURL(target.Path, target.Query.Encode())}

	case claims.IsAssistant && pathHasPrefix(target.Path, teacherPathPrefix):
		return Decision{Action: ActionRedirect, Location: AssistantHomePath}

	case claims.IsStudent && pathHasPrefix(target.Path, teacherPathPrefix):
		return Decision{Action: ActionRedirect, Location: StudentHomePath}

	case claims.IsTeacherFamily() && pathHasPrefix(target.Path, studentPathPrefix):
		return Decision{Action: ActionRedirect, Location: TeacherHomePath}

	case claims.IsStudent && target.Path == StudentLoginPath:
		return Decision{Action: ActionRedirect, Location: SafeRedirect(nextParam(target.Query), StudentHomePath)}

	case claims.IsTeacherFamily() && target.Path == TeacherLoginPath:
		return Decision{Action: ActionRedirect, Location: SafeRedirect(nextParam(target.Query), TeacherHomePath)}
	}

	return allow
}

// sessionExpiryURL builds the login redirect carrying a role hint (derived
// from the targeted portal) and the originally requested URL.
func (g *Guard) sessionExpiryURL(target Target) string {
	login := StudentLoginPath
	if pathHasPrefix(target.Path, teacherPathPrefix) || pathHasPrefix(target.Path, "/assistant") {
		login = TeacherLoginPath
	}

	requested := target.Path
	if enc := target.Query.Encode(); enc != "" {
		requested += "?" + enc
	}
	q := make(url.Values)
	q.Set("next", requested)
	return login + "?" + q.Encode()
}

func pathHasPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func nextParam(query url.Values) string {
	if next := query.Get("next"); next != "" {
		return next
	}
	return query.Get("redirect")
}

// SafeRedirect validates a next/redirect query value before use: absolute
// URLs, protocol-relative URLs and login paths fall back; a missing leading
// slash is prefixed.
func SafeRedirect(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if strings.Contains(value, "://") || strings.HasPrefix(value, "//") {
		return fallback
	}
	if !strings.HasPrefix(value, "/") {
		value = "/" + value
	}

	pathOnly := value
	if i := strings.IndexAny(value, "?#"); i >= 0 {
		pathOnly = value[:i]
	}
	if pathHasPrefix(pathOnly, StudentLoginPath) || pathHasPrefix(pathOnly, TeacherLoginPath) {
		return fallback
	}
	return value
}

// guardMiddleware runs the Guard on every portal navigation. The decision is
// translated to router terms: allow passes through, cancel clears the auth
// cookie and redirects to the login page, redirects 302.
func (s *Server) guardMiddleware(requiresAuth bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims := s.optionalClaims(ctx)
			claims = s.guard.Hydrate(claims)

			target := Target{
				Host:         ctx.Request().Host,
				Path:         ctx.Request().URL.Path,
				Query:        ctx.QueryParams(),
				RequiresAuth: requiresAuth,
			}

			decision := s.guard.Decide(target, claims)
			switch decision.Action {
			case ActionCancel:
				if decision.ClearAuth {
					clearAuthCookie(ctx)
				}
				return ctx.Redirect(http.StatusSeeOther, decision.Location)
			case ActionRedirect, ActionExternalRedirect:
				return ctx.Redirect(http.StatusFound, decision.Location)
			}
			return next(ctx)
		}
	}
}

// optionalClaims extracts session claims from the auth cookie or the
// Authorization header without failing the request; anonymous navigations
// yield nil.
func (s *Server) optionalClaims(ctx echo.Context) *Claims {
	raw := ""
	if cookie, err := ctx.Cookie(authCookieName); err == nil {
		raw = cookie.Value
	} else if auth := ctx.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		raw = strings.TrimPrefix(auth, "Bearer ")
	}
	if raw == "" {
		return nil
	}

	claims, err := parseToken(raw, s.deps.Conf)
	if err != nil {
		return nil
	}
	return claims
}

func clearAuthCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
