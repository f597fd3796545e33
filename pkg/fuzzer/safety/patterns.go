// Package safety implements the Safety System of spec.md §4.6/§4.7: a pure
// danger-pattern filter over outgoing request arguments, a filesystem
// sandbox that confines path-shaped values to a configured root, a network
// policy for HTTP-family transports, and a PATH-shim command blocker for
// spawned child processes. Grounded on the teacher's EnableLogging-gated
// diagnostics idiom and on the redteam-style policy/audit tests retrieved
// alongside this spec.
package safety

import "strings"

// dangerSubstrings are obvious command patterns that should never reach a
// live transport (spec.md §4.6).
var dangerSubstrings = []string{
	"rm -rf /",
	"rm -rf ~",
	"mkfs",
	"dd if=/dev/zero",
	":(){ :|:& };:",
	"curl | sh",
	"curl|sh",
	"wget | sh",
	"wget|sh",
	"| sh",
	"| bash",
	"> /dev/sda",
	"chmod -R 777 /",
}

// launcherBinaries are programs that would open an external window or
// client if actually invoked (spec.md §4.6).
var launcherBinaries = []string{
	"xdg-open", "open", "start",
	"firefox", "chrome", "chromium", "safari", "msedge",
	"mail", "thunderbird", "outlook",
}

// allowedURLSchemes is the allow list; anything else trips the filter
// (spec.md §4.6 "URL schemes outside the allow list").
var allowedURLSchemes = []string{"http", "https", "ws", "wss"}

var deniedURLPrefixes = []string{"javascript:", "data:"}

// MatchDangerPattern reports the first matched danger pattern in s, or
// ("", false) if none match.
func MatchDangerPattern(s string) (string, bool) {
	lower := strings.ToLower(s)

	for _, p := range dangerSubstrings {
		if strings.Contains(lower, p) {
			return "command pattern: " + p, true
		}
	}
	for _, bin := range launcherBinaries {
		if containsWord(lower, bin) {
			return "launcher binary: " + bin, true
		}
	}
	for _, prefix := range deniedURLPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return "denied URI scheme: " + prefix, true
		}
	}
	if scheme, ok := urlScheme(lower); ok && !schemeAllowed(scheme) {
		return "URL scheme outside allow list: " + scheme, true
	}
	return "", false
}

func containsWord(haystack, word string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(haystack[start-1])
		afterOK := end == len(haystack) || !isWordChar(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b == '_' || b == '-' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func urlScheme(s string) (string, bool) {
	i := strings.Index(s, "://")
	if i <= 0 {
		return "", false
	}
	return s[:i], true
}

func schemeAllowed(scheme string) bool {
	for _, s := range allowedURLSchemes {
		if scheme == s {
			return true
		}
	}
	return false
}

// Sanitize strips every matched danger substring from s, for the
// Sanitize(args') decision (spec.md §4.6).
func Sanitize(s string) string {
	out := s
	for _, p := range dangerSubstrings {
		out = replaceFold(out, p, "")
	}
	return out
}

func replaceFold(s, old, new string) string {
	if old == "" {
		return s
	}
	lower := strings.ToLower(s)
	oldLower := strings.ToLower(old)
	var b strings.Builder
	i := 0
	for {
		idx := strings.Index(lower[i:], oldLower)
		if idx < 0 {
			b.WriteString(s[i:])
			break
		}
		b.WriteString(s[i : i+idx])
		b.WriteString(new)
		i += idx + len(old)
	}
	return b.String()
}
