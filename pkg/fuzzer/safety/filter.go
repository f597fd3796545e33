package safety

import (
	"strings"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/jsonvalue"
)

// DecisionKind is the closed outcome set of the Safety Filter (spec.md
// §4.6: "Decision is one of Allow(args), Sanitize(args'), or Block(reason)").
type DecisionKind int

const (
	Allow DecisionKind = iota
	Sanitized
	Blocked
)

// Decision is the result of one SafetyFilter.Check call.
type Decision struct {
	Kind   DecisionKind
	Args   jsonvalue.Value // original args for Allow, rewritten args for Sanitized
	Reason string          // set for Blocked
}

// Filter holds everything a Check needs: the sandbox/network collaborators
// and whether sanitize-in-place is preferred over an outright block.
type Filter struct {
	Sandbox       *Sandbox // nil disables path containment checks
	Network       *NetworkPolicy
	PreferSanitize bool
	MethodDenyList map[string]bool
}

func NewFilter(sandbox *Sandbox, network *NetworkPolicy) *Filter {
	return &Filter{Sandbox: sandbox, Network: network, MethodDenyList: map[string]bool{}}
}

// Check is the pure function of spec.md §4.6: "SafetyFilter.check(args) is
// pure: identical inputs -> identical decisions." method is the JSON-RPC
// method the args would be sent under; args is the params value.
func (f *Filter) Check(method string, args jsonvalue.Value) Decision {
	if f.MethodDenyList[method] {
		return Decision{Kind: Blocked, Reason: "method denied: " + method}
	}

	if reason, hit := f.scanLeaves(args); hit {
		if f.PreferSanitize {
			return Decision{Kind: Sanitized, Args: f.sanitizeLeaves(args)}
		}
		return Decision{Kind: Blocked, Reason: reason}
	}

	if f.Sandbox != nil && f.Sandbox.Enabled {
		if reason, hit := f.scanPaths(args); hit {
			return Decision{Kind: Blocked, Reason: reason}
		}
	}

	if f.Network != nil {
		if reason, hit := f.scanHosts(args); hit {
			return Decision{Kind: Blocked, Reason: reason}
		}
	}

	return Decision{Kind: Allow, Args: args}
}

func (f *Filter) scanLeaves(v jsonvalue.Value) (string, bool) {
	var reason string
	var hit bool
	walkStringLeaves(v, func(s string) {
		if hit {
			return
		}
		if r, ok := MatchDangerPattern(s); ok {
			reason, hit = r, true
		}
	})
	return reason, hit
}

func (f *Filter) sanitizeLeaves(v jsonvalue.Value) jsonvalue.Value {
	return mapStringLeaves(v, Sanitize)
}

func (f *Filter) scanPaths(v jsonvalue.Value) (string, bool) {
	var reason string
	var hit bool
	walkStringLeaves(v, func(s string) {
		if hit || !looksLikePath(s) {
			return
		}
		if _, err := f.Sandbox.Canonicalize(s); err != nil {
			reason, hit = "path escapes sandbox: "+s, true
		}
	})
	return reason, hit
}

func (f *Filter) scanHosts(v jsonvalue.Value) (string, bool) {
	var reason string
	var hit bool
	walkStringLeaves(v, func(s string) {
		if hit {
			return
		}
		host, ok := hostFromURLLike(s)
		if !ok {
			return
		}
		if !f.Network.Allowed(host) {
			reason, hit = "network destination denied: "+host, true
		}
	})
	return reason, hit
}

func hostFromURLLike(s string) (string, bool) {
	scheme, ok := urlScheme(strings.ToLower(s))
	if !ok || !schemeAllowed(scheme) {
		return "", false
	}
	rest := s[len(scheme)+3:]
	end := strings.IndexAny(rest, "/?#")
	if end >= 0 {
		rest = rest[:end]
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = rest[at+1:]
	}
	if colon := strings.LastIndex(rest, ":"); colon >= 0 && !strings.Contains(rest[colon:], "]") {
		rest = rest[:colon]
	}
	return rest, rest != ""
}

func looksLikePath(s string) bool {
	return len(s) > 0 && (s[0] == '/' || s[0] == '.' || (len(s) > 1 && s[1] == ':'))
}

func walkStringLeaves(v jsonvalue.Value, fn func(string)) {
	switch v.Kind() {
	case jsonvalue.KindString:
		fn(v.String())
	case jsonvalue.KindArray:
		for _, item := range v.Elements() {
			walkStringLeaves(item, fn)
		}
	case jsonvalue.KindObject:
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			walkStringLeaves(val, fn)
		}
	}
}

func mapStringLeaves(v jsonvalue.Value, fn func(string) string) jsonvalue.Value {
	switch v.Kind() {
	case jsonvalue.KindString:
		return jsonvalue.String(fn(v.String()))
	case jsonvalue.KindArray:
		items := v.Elements()
		out := make([]jsonvalue.Value, len(items))
		for i, item := range items {
			out[i] = mapStringLeaves(item, fn)
		}
		return jsonvalue.Array(out...)
	case jsonvalue.KindObject:
		out := map[string]jsonvalue.Value{}
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			out[k] = mapStringLeaves(val, fn)
		}
		return jsonvalue.Object(out)
	default:
		return v
	}
}
