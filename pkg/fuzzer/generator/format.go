package generator

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const hexDigits = "0123456789abcdef"

func (w *Walker) randomHex(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(hexDigits[w.intn(16)])
	}
	return b.String()
}

// formatValue produces a plausible instance for a known JSON-Schema
// "format" value. Unknown formats fall back to the plain string generator
// (spec.md §4.1: "Known format values produce plausible instances").
func (w *Walker) formatValue(format string) (string, bool) {
	switch format {
	case "uuid":
		return fmt.Sprintf("%s-%s-4%s-%s%s-%s",
			w.randomHex(8), w.randomHex(4), w.randomHex(3),
			string(hexDigits[8+w.intn(4)]), w.randomHex(3), w.randomHex(12)), true
	case "email":
		return w.randomWord(5) + "@" + w.randomWord(6) + ".example", true
	case "uri":
		return "https://" + w.randomWord(6) + ".example/" + w.randomWord(4), true
	case "date-time":
		y := 2000 + w.intn(40)
		mo := 1 + w.intn(12)
		d := 1 + w.intn(28)
		h := w.intn(24)
		mi := w.intn(60)
		s := w.intn(60)
		return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02dZ", y, mo, d, h, mi, s), true
	case "ipv4":
		return fmt.Sprintf("%d.%d.%d.%d", w.intn(256), w.intn(256), w.intn(256), w.intn(256)), true
	case "ipv6":
		parts := make([]string, 8)
		for i := range parts {
			parts[i] = w.randomHex(4)
		}
		return strings.Join(parts, ":"), true
	case "hostname":
		return w.randomWord(4) + "." + w.randomWord(3) + ".example", true
	case "base64":
		buf := make([]byte, 4+w.intn(12))
		for i := range buf {
			buf[i] = byte(w.intn(256))
		}
		return base64.StdEncoding.EncodeToString(buf), true
	case "semver":
		return fmt.Sprintf("%d.%d.%d", w.intn(5), w.intn(10), w.intn(20)), true
	default:
		return "", false
	}
}

const wordAlphabet = "abcdefghijklmnopqrstuvwxyz"

func (w *Walker) randomWord(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(wordAlphabet[w.intn(len(wordAlphabet))])
	}
	return b.String()
}
