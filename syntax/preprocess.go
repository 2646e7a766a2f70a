package syntax

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// HereDoc is the content recorded for one <<WORD occurrence (spec §3,
// "HereDocPlaceholder").
type HereDoc struct {
	Content string
	Expand  bool // false iff the delimiter word was quoted
}

// Preprocessor extracts here-documents from raw shell source before
// tokenizing, replacing each `<<WORD` (and its body) with a redirection
// against a collision-free placeholder token, and records the body text
// for later resolution by the Execution Engine (spec §4.B, §4.I).
//
// Leading-group rewriting ("( ... )" / "{ ... }" at command-start position,
// the Preprocessor's second responsibility in spec §4.B) is instead
// performed directly by the Parser's recursive descent: Go's parser can
// recognize a leading '(' or '{' token and recurse without a separate
// textual rewrite pass, so no internal marker text is needed for it. This
// keeps the same observable boundary (only a *leading* group is special;
// interior groups are ordinary parser recursion) without the fragility of
// string-level rewriting.
type Preprocessor struct {
	HereDocs map[string]*HereDoc
}

func NewPreprocessor() *Preprocessor {
	return &Preprocessor{HereDocs: map[string]*HereDoc{}}
}

// Process scans src for <<WORD / <<-WORD heredocs and returns source text
// with each occurrence (operator + body) replaced by `< PLACEHOLDER`,
// where PLACEHOLDER resolves through p.HereDocs.
func (p *Preprocessor) Process(src string) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(src) {
		if strings.HasPrefix(src[i:], "<<") && !strings.HasPrefix(src[i:], "<<<") {
			rest := src[i+2:]
			strip := false
			if strings.HasPrefix(rest, "-") {
				strip = true
				rest = rest[1:]
			}
			j := 0
			for j < len(rest) && (rest[j] == ' ' || rest[j] == '\t') {
				j++
			}
			rest = rest[j:]
			word, wlen, quoted, err := lexHeredocWord(rest)
			if err != nil {
				return "", err
			}
			bodyStart := i + 2 + boolLen(strip) + j + wlen
			// advance bodyStart to the start of the next line
			nl := strings.IndexByte(src[bodyStart:], '\n')
			if nl < 0 {
				return "", &SyntaxError{Detail: "here-document delimiter not found", Frag: word}
			}
			bodyStart += nl + 1
			body, bodyEnd, err := consumeHeredocBody(src[bodyStart:], word, strip)
			if err != nil {
				return "", err
			}
			placeholder := "HEREDOC_" + uuid.NewString()
			p.HereDocs[placeholder] = &HereDoc{Content: body, Expand: !quoted}
			out.WriteString("< ")
			out.WriteString(placeholder)
			i = bodyStart + bodyEnd
			continue
		}
		out.WriteByte(src[i])
		i++
	}
	return out.String(), nil
}

func boolLen(b bool) int {
	if b {
		return 1
	}
	return 0
}

// lexHeredocWord reads the delimiter word of a <<WORD operator, which may
// be quoted (suppressing expansion in the body) and returns the unquoted
// word, how many source bytes it occupied, and whether it was quoted.
func lexHeredocWord(s string) (word string, n int, quoted bool, err error) {
	var b strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '\'':
			quoted = true
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				return "", 0, false, fmt.Errorf("unterminated quote in heredoc delimiter")
			}
			b.WriteString(s[i+1 : i+1+end])
			i += end + 2
		case '"':
			quoted = true
			end := strings.IndexByte(s[i+1:], '"')
			if end < 0 {
				return "", 0, false, fmt.Errorf("unterminated quote in heredoc delimiter")
			}
			b.WriteString(s[i+1 : i+1+end])
			i += end + 2
		case '\\':
			quoted = true
			if i+1 < len(s) {
				b.WriteByte(s[i+1])
				i += 2
			} else {
				i++
			}
		case ' ', '\t', '\n', ';', '&', '|', '<', '>':
			return b.String(), i, quoted, nil
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i, quoted, nil
}

// consumeHeredocBody reads lines from s until one equals word (after
// stripping leading tabs, if strip is set), returning the body and the
// number of bytes of s consumed (including the terminator line).
func consumeHeredocBody(s, word string, strip bool) (string, int, error) {
	var body strings.Builder
	pos := 0
	for {
		nl := strings.IndexByte(s[pos:], '\n')
		var line string
		lineLen := 0
		if nl < 0 {
			line = s[pos:]
			lineLen = len(line)
		} else {
			line = s[pos : pos+nl]
			lineLen = nl + 1
		}
		cmp := line
		if strip {
			cmp = strings.TrimLeft(line, "\t")
		}
		if cmp == word {
			pos += lineLen
			return body.String(), pos, nil
		}
		if nl < 0 {
			return "", 0, &SyntaxError{Detail: "here-document delimiter not found", Frag: word}
		}
		if strip {
			line = strings.TrimLeft(line, "\t")
		}
		body.WriteString(line)
		body.WriteByte('\n')
		pos += lineLen
	}
}
