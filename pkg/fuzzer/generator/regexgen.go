package generator

import (
	"regexp/syntax"
	"strings"
)

// maxRegexSteps bounds the backtracking generator's work before it gives up
// and the caller falls back to length-bounds-only concatenation (spec.md
// §4.1: "fall back to concatenation satisfying the length bounds when a
// pattern cannot be inverted in ≤N steps").
const maxRegexSteps = 512

// fromPattern attempts to produce a string matching pattern, bounded by
// maxRegexSteps AST node visits. It parses with the standard library's
// regexp/syntax (no third-party regex-reverse library appears anywhere in
// the retrieved pack) and walks the resulting tree, picking a single
// satisfying branch at each alternation/repetition.
func (w *Walker) fromPattern(pattern string) (string, bool) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return "", false
	}
	re = re.Simplify()
	var b strings.Builder
	steps := 0
	if !w.walkRegex(re, &b, &steps) {
		return "", false
	}
	return b.String(), true
}

func (w *Walker) walkRegex(re *syntax.Regexp, b *strings.Builder, steps *int) bool {
	*steps++
	if *steps > maxRegexSteps {
		return false
	}
	switch re.Op {
	case syntax.OpNoMatch:
		return false
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine, syntax.OpBeginText, syntax.OpEndText,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return true
	case syntax.OpLiteral:
		for _, r := range re.Rune {
			b.WriteRune(r)
		}
		return true
	case syntax.OpCharClass:
		r := w.pickFromClass(re.Rune)
		b.WriteRune(r)
		return true
	case syntax.OpAnyCharNotNL, syntax.OpAnyChar:
		b.WriteRune(rune('a' + w.intn(26)))
		return true
	case syntax.OpCapture:
		if len(re.Sub) == 0 {
			return true
		}
		return w.walkRegex(re.Sub[0], b, steps)
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if !w.walkRegex(sub, b, steps) {
				return false
			}
		}
		return true
	case syntax.OpAlternate:
		if len(re.Sub) == 0 {
			return true
		}
		return w.walkRegex(re.Sub[w.intn(len(re.Sub))], b, steps)
	case syntax.OpStar:
		return w.walkRepeat(re.Sub[0], 0, 3, b, steps)
	case syntax.OpPlus:
		return w.walkRepeat(re.Sub[0], 1, 3, b, steps)
	case syntax.OpQuest:
		return w.walkRepeat(re.Sub[0], 0, 1, b, steps)
	case syntax.OpRepeat:
		max := re.Max
		if max < 0 || max > re.Min+3 {
			max = re.Min + 3
		}
		return w.walkRepeat(re.Sub[0], re.Min, max, b, steps)
	default:
		return false
	}
}

func (w *Walker) walkRepeat(sub *syntax.Regexp, min, max int, b *strings.Builder, steps *int) bool {
	n := min
	if max > min {
		n = min + w.intn(max-min+1)
	}
	for i := 0; i < n; i++ {
		if !w.walkRegex(sub, b, steps) {
			return false
		}
	}
	return true
}

func (w *Walker) pickFromClass(ranges []rune) rune {
	if len(ranges) == 0 {
		return 'a'
	}
	pairCount := len(ranges) / 2
	pick := w.intn(pairCount)
	lo, hi := ranges[pick*2], ranges[pick*2+1]
	span := int(hi - lo + 1)
	if span <= 0 {
		return lo
	}
	return lo + rune(w.intn(span))
}
