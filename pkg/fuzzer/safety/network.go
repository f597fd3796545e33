package safety

import (
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
)

// NetworkPolicy holds local_hosts, outbound allow/deny lists, and a
// no_network flag (spec.md §4.7). Hosts are normalized via lower-casing
// and IDN ToASCII before comparison.
type NetworkPolicy struct {
	LocalHosts    []string
	Allow         []string
	Deny          []string
	NoNetwork     bool
	AllowRedirect bool
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	if ascii, err := idna.ToASCII(host); err == nil {
		host = ascii
	}
	return host
}

func matchesAny(host string, patterns []string) bool {
	for _, p := range patterns {
		p = normalizeHost(p)
		if host == p || strings.HasSuffix(host, "."+p) {
			return true
		}
	}
	return false
}

// Allowed reports whether host may be contacted under this policy.
func (p *NetworkPolicy) Allowed(host string) bool {
	host = normalizeHost(host)
	if p.NoNetwork && !matchesAny(host, p.LocalHosts) {
		return false
	}
	if matchesAny(host, p.Deny) {
		return false
	}
	if len(p.Allow) > 0 {
		return matchesAny(host, p.Allow) || matchesAny(host, p.LocalHosts)
	}
	return true
}

// CheckRedirect implements the http.Client.CheckRedirect hook: redirects
// are re-evaluated against the policy, surfacing a denied host as
// TransportError(PolicyViolation) instead of silently following it
// (spec.md §4.7).
func (p *NetworkPolicy) CheckRedirect(req *http.Request, via []*http.Request) error {
	if !p.AllowRedirect {
		return http.ErrUseLastResponse
	}
	host := hostOf(req.URL)
	if !p.Allowed(host) {
		return model.NewTransportError(model.TransportPolicyViolation, "redirect to denied host: "+host, nil)
	}
	if len(via) >= 10 {
		return model.NewTransportError(model.TransportPolicyViolation, "too many redirects", nil)
	}
	return nil
}

func hostOf(u *url.URL) string {
	return u.Hostname()
}
