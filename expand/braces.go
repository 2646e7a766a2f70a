package expand

import (
	"strconv"
	"strings"

	"cjsh.dev/cjsh/syntax"
)

// maxBraceExpansions is the element-count ceiling from spec §4.D.1: past
// this, a brace expansion aborts and the word is left unchanged.
const maxBraceExpansions = 10_000_000

// Braces performs step 1 of the expansion pipeline (spec §4.D.1) on one
// word, returning the list of words it expands to (a single-element slice
// containing w itself if no brace expansion applies).
//
// Only words made entirely of unquoted literal text are considered: mixing
// brace syntax with expansions or quoting inside the same braces is
// intentionally out of scope (see DESIGN.md), matching the teacher's own
// pattern of keeping brace expansion a pre-expansion, syntax-level
// rewrite rather than something interleaved with parameter/command
// substitution.
func Braces(w *syntax.Word) []*syntax.Word {
	text, ok := plainLiteral(w)
	if !ok {
		return []*syntax.Word{w}
	}
	results, ok := expandBraceText(text)
	if !ok || len(results) <= 1 {
		return []*syntax.Word{w}
	}
	out := make([]*syntax.Word, len(results))
	for i, s := range results {
		out[i] = &syntax.Word{Parts: []syntax.WordPart{&syntax.Lit{Value: s}}, Line: w.Line}
	}
	return out
}

// plainLiteral returns the concatenated text of w if every part is an
// unquoted literal (no quoting, no expansions).
func plainLiteral(w *syntax.Word) (string, bool) {
	var b strings.Builder
	for _, p := range w.Parts {
		lit, ok := p.(*syntax.Lit)
		if !ok || lit.Quote != syntax.QUnquoted {
			return "", false
		}
		b.WriteString(lit.Value)
	}
	return b.String(), true
}

// expandBraceText expands every unescaped {a,b,c} / {x..y} / {x..y..step}
// group in s, left to right, returning the full cartesian-product list. ok
// is false if expansion would exceed maxBraceExpansions, in which case the
// caller must leave the original word untouched.
func expandBraceText(s string) ([]string, bool) {
	open := findUnescaped(s, '{')
	if open < 0 {
		return []string{unescapeBraces(s)}, true
	}
	close := matchBrace(s, open)
	if close < 0 {
		return []string{unescapeBraces(s)}, true
	}
	prefix, body, suffix := s[:open], s[open+1:close], s[close+1:]

	items, isRange := rangeItems(body)
	if !isRange {
		items = splitTopComma(body)
		if len(items) < 2 {
			// not a real brace group (e.g. literal "{foo}"); treat the
			// brace chars as literal and continue scanning after it.
			rest, ok := expandBraceText(suffix)
			if !ok {
				return nil, false
			}
			out := make([]string, 0, len(rest))
			for _, r := range rest {
				out = append(out, prefix+"{"+body+"}"+r)
			}
			return out, true
		}
	}

	sufExpanded, ok := expandBraceText(suffix)
	if !ok {
		return nil, false
	}
	var out []string
	for _, item := range items {
		heads, ok := expandBraceText(item)
		if !ok {
			return nil, false
		}
		for _, h := range heads {
			for _, t := range sufExpanded {
				if len(out) >= maxBraceExpansions {
					return nil, false
				}
				out = append(out, prefix+h+t)
			}
		}
	}
	return out, true
}

func findUnescaped(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == b {
			return i
		}
	}
	return -1
}

func matchBrace(s string, open int) int {
	depth := 1
	for i := open + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitTopComma(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func unescapeBraces(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '{' || s[i+1] == '}') {
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// rangeItems recognizes "x..y" or "x..y..step" bodies (numeric or
// single-letter alpha) and returns the fully materialized sequence.
func rangeItems(body string) ([]string, bool) {
	parts := strings.Split(body, "..")
	if len(parts) != 2 && len(parts) != 3 {
		return nil, false
	}
	step := 1
	if len(parts) == 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil || n == 0 {
			return nil, false
		}
		step = n
	}
	if n1, err1 := strconv.Atoi(parts[0]); err1 == nil {
		n2, err2 := strconv.Atoi(parts[1])
		if err2 != nil {
			return nil, false
		}
		width := 0
		if len(parts[0]) > 0 && (parts[0][0] == '0' || (len(parts[0]) > 1 && parts[0][0] == '-' && parts[0][1] == '0')) {
			width = max(len(strings.TrimPrefix(parts[0], "-")), len(strings.TrimPrefix(parts[1], "-")))
		}
		return numericRange(n1, n2, step, width), true
	}
	if len(parts[0]) == 1 && len(parts[1]) == 1 && isAlpha(parts[0][0]) && isAlpha(parts[1][0]) {
		return alphaRange(parts[0][0], parts[1][0], step), true
	}
	return nil, false
}

func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }

func numericRange(a, b, step, width int) []string {
	if step < 0 {
		step = -step
	}
	var out []string
	if a <= b {
		for v := a; v <= b; v += step {
			out = append(out, padInt(v, width))
		}
	} else {
		for v := a; v >= b; v -= step {
			out = append(out, padInt(v, width))
		}
	}
	return out
}

func padInt(v, width int) string {
	s := strconv.Itoa(v)
	neg := strings.HasPrefix(s, "-")
	digits := s
	if neg {
		digits = s[1:]
	}
	for len(digits) < width {
		digits = "0" + digits
	}
	if neg {
		return "-" + digits
	}
	return digits
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func alphaRange(a, b byte, step int) []string {
	if step < 0 {
		step = -step
	}
	var out []string
	if a <= b {
		for v := int(a); v <= int(b); v += step {
			out = append(out, string(rune(v)))
		}
	} else {
		for v := int(a); v >= int(b); v -= step {
			out = append(out, string(rune(v)))
		}
	}
	return out
}
