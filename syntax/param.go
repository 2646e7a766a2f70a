package syntax

import (
	"fmt"
	"strings"
)

// parseParamExp parses the inside of ${...} (without the braces) into a
// ParamExp, recognizing every modifier in spec §4.D.3.
func parseParamExp(body string, quoted bool) (*ParamExp, error) {
	pe := &ParamExp{Quoted: quoted}
	if body == "" {
		return nil, fmt.Errorf("empty parameter expansion")
	}
	if body[0] == '#' && body != "#" && !strings.HasPrefix(body, "##") {
		// ${#NAME}: length-of. Disambiguate from the "#" special parameter
		// itself and from the ##-prefix-strip operator by checking that
		// what follows is a bare parameter name.
		name := body[1:]
		if isPlainParamName(name) {
			pe.Param = name
			pe.Op = ParamLength
			return pe, nil
		}
	}

	name, rest := splitParamName(body)
	pe.Param = name
	if rest == "" {
		pe.Op = ParamPlain
		return pe, nil
	}

	// indexing: NAME[expr]
	if rest[0] == '[' {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil, fmt.Errorf("unterminated index")
		}
		idx, err := wordFromRaw(rest[1:end])
		if err != nil {
			return nil, err
		}
		pe.Index = idx
		rest = rest[end+1:]
		if rest == "" {
			pe.Op = ParamPlain
			return pe, nil
		}
	}

	type opSpec struct {
		lit string
		op  ParamOp
	}
	ops := []opSpec{
		{":-", ParamDefault}, {"-", ParamDefaultNull},
		{":=", ParamAssign}, {"=", ParamAssignNull},
		{":?", ParamError}, {"?", ParamErrorNull},
		{":+", ParamAlt}, {"+", ParamAltNull},
		{"##", ParamRemLongPre}, {"#", ParamRemShortPre},
		{"%%", ParamRemLongSuf}, {"%", ParamRemShortSuf},
		{"//", ParamReplAll}, {"/", ParamReplOnce},
		{"^^", ParamUpperAll}, {"^", ParamUpperFirst},
		{",,", ParamLowerAll}, {",", ParamLowerFirst},
	}
	for _, o := range ops {
		if strings.HasPrefix(rest, o.lit) {
			pe.Op = o.op
			arg := rest[len(o.lit):]
			if o.op == ParamReplOnce || o.op == ParamReplAll {
				parts := strings.SplitN(arg, "/", 2)
				w0, err := wordFromRaw(parts[0])
				if err != nil {
					return nil, err
				}
				pe.Arg = w0
				if len(parts) == 2 {
					w1, err := wordFromRaw(parts[1])
					if err != nil {
						return nil, err
					}
					pe.Arg2 = w1
				}
				return pe, nil
			}
			w, err := wordFromRaw(arg)
			if err != nil {
				return nil, err
			}
			pe.Arg = w
			return pe, nil
		}
	}
	return nil, fmt.Errorf("unknown parameter expansion operator: %q", rest)
}

func isPlainParamName(s string) bool {
	if s == "" {
		return false
	}
	if isIdentStart(s[0]) {
		for i := 1; i < len(s); i++ {
			if !isIdentCont(s[i]) {
				return false
			}
		}
		return true
	}
	return len(s) == 1 // special parameter like $#, $@, $?
}

// splitParamName splits "NAME<rest-of-operator>" into its parts. NAME is
// either an identifier, a positional digit run, or a single special
// parameter character.
func splitParamName(s string) (name, rest string) {
	if s == "" {
		return "", ""
	}
	if isIdentStart(s[0]) {
		i := 1
		for i < len(s) && isIdentCont(s[i]) {
			i++
		}
		return s[:i], s[i:]
	}
	if isDigit(s[0]) {
		i := 0
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		return s[:i], s[i:]
	}
	return s[:1], s[1:]
}

// wordFromRaw re-lexes a raw operand string (the argument of a parameter
// expansion modifier) into a Word, so nested expansions inside defaults,
// patterns, and replacements are themselves expanded in turn.
func wordFromRaw(s string) (*Word, error) {
	if s == "" {
		return &Word{}, nil
	}
	lx := NewLexer(s, 0)
	lx.noBreak = true
	w, err := lx.lexWord()
	if err != nil {
		return nil, err
	}
	return w, nil
}
