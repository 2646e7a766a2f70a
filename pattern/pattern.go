// Package pattern implements the cjsh glob/case pattern matcher (spec
// §4.G): *, ?, [...] character classes, and | alternation inside a single
// case pattern. It compiles patterns to Go regular expressions rather than
// hand-rolling a matcher, the same strategy mvdan.cc/sh/v3's pattern
// package uses.
package pattern

import (
	"regexp"
	"strings"
)

// Mode tunes Regexp's translation.
type Mode uint

const (
	EntireString Mode = 1 << iota // anchor with ^...$, for whole-string matches like case/[[
)

// Regexp translates a single shell glob/case pattern into the equivalent Go
// regular expression source.
func Regexp(pat string, mode Mode) string {
	var b strings.Builder
	if mode&EntireString != 0 {
		b.WriteByte('^')
	}
	runes := []rune(pat)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		case '\\':
			if i+1 < len(runes) {
				i++
				b.WriteString(regexp.QuoteMeta(string(runes[i])))
			}
		case '[':
			j := i + 1
			neg := false
			if j < len(runes) && (runes[j] == '!' || runes[j] == '^') {
				neg = true
				j++
			}
			start := j
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j >= len(runes) {
				b.WriteString(regexp.QuoteMeta("["))
				continue
			}
			cls := string(runes[start:j])
			b.WriteByte('[')
			if neg {
				b.WriteByte('^')
			}
			b.WriteString(escapeClass(cls))
			b.WriteByte(']')
			i = j
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if mode&EntireString != 0 {
		b.WriteByte('$')
	}
	return b.String()
}

func escapeClass(s string) string {
	return strings.NewReplacer(`\`, `\\`, `^`, `\^`).Replace(s)
}

// Compile compiles pat translated under mode. Match calls it with
// EntireString for case arms, [[ = ]] pattern tests, and glob-style
// parameter prefix/suffix strips.
func Compile(pat string, mode Mode) (*regexp.Regexp, error) {
	return regexp.Compile(Regexp(pat, mode))
}

// Match reports whether name matches the case/glob pattern pat.
func Match(pat, name string) bool {
	re, err := Compile(pat, EntireString)
	if err != nil {
		return pat == name
	}
	return re.MatchString(name)
}

// HasMeta reports whether pat contains any unescaped glob metacharacter,
// used by the expansion engine to decide whether pathname expansion should
// run at all for a given word (spec §4.D.7).
func HasMeta(pat string) bool {
	for i := 0; i < len(pat); i++ {
		switch pat[i] {
		case '*', '?', '[':
			return true
		case '\\':
			i++
		}
	}
	return false
}

// SplitAlternates splits a case pattern on unescaped top-level '|'
// characters; the PATTERNS list in `PAT[|PAT]*)` is represented at the
// parser level as one *syntax.Word per alternative already, so this is
// only needed when an alternative itself is supplied pre-joined.
func SplitAlternates(s string) []string {
	var out []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			cur.WriteByte(s[i])
			cur.WriteByte(s[i+1])
			i++
			continue
		}
		if s[i] == '|' {
			out = append(out, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(s[i])
	}
	out = append(out, cur.String())
	return out
}

// LongestPrefix returns the longest (or shortest, if shortest is true)
// prefix of s that matches pat as a glob anchored at the start, used by
// ${NAME#pat} / ${NAME##pat}.
func LongestPrefix(s, pat string, shortest bool) string {
	best := -1
	for i := 0; i <= len(s); i++ {
		if Match(pat, s[:i]) {
			if shortest {
				return s[:i]
			}
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return s[:best]
}

// LongestSuffix is the ${NAME%pat} / ${NAME%%pat} counterpart of
// LongestPrefix.
func LongestSuffix(s, pat string, shortest bool) string {
	best := -1
	for i := len(s); i >= 0; i-- {
		if Match(pat, s[i:]) {
			if shortest {
				return s[i:]
			}
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return s[best:]
}
