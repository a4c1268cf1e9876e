package tenant

import (
	"net"
	"net/url"
	"strings"

	"github.com/trezcool/darasa/core"
)

// Hosts resolves tenant identity from request hosts and builds cross-host
// redirect URLs. Tenant portals live on "{slug}.{BaseDomain}"; teacher-family
// sessions are pinned to the canonical AppHost.
type Hosts struct {
	AppHost    string
	BaseDomain string
}

func NewHosts(conf *core.Config) Hosts {
	return Hosts{
		AppHost:    strings.ToLower(conf.Server.AppHost),
		BaseDomain: strings.ToLower(conf.Server.BaseDomain),
	}
}

// reserved subdomains that never identify a tenant
var reservedSubdomains = map[string]bool{
	"app": true,
	"www": true,
	"api": true,
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// ResolveSlug extracts the tenant slug from a request host. Hosts outside the
// base domain, the base domain itself and reserved subdomains resolve empty.
func (h Hosts) ResolveSlug(host string) string {
	hostname := strings.ToLower(stripPort(host))
	if hostname == h.BaseDomain {
		return ""
	}
	if !strings.HasSuffix(hostname, "."+h.BaseDomain) {
		return ""
	}
	sub := strings.TrimSuffix(hostname, "."+h.BaseDomain)
	if strings.Contains(sub, ".") || reservedSubdomains[sub] {
		return ""
	}
	return sub
}

// IsAppHost reports whether host is the canonical app host.
func (h Hosts) IsAppHost(host string) bool {
	return strings.ToLower(stripPort(host)) == stripPort(h.AppHost)
}

// AppURL builds an absolute URL for the equivalent path on the canonical app
// host, preserving the query string. Used for full page load redirects, not
// client-side route changes.
func (h Hosts) AppURL(path, rawQuery string) string {
	u := url.URL{
		Scheme:   "https",
		Host:     h.AppHost,
		Path:     path,
		RawQuery: rawQuery,
	}
	return u.String()
}
