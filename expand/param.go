package expand

import (
	"strconv"
	"strings"

	"cjsh.dev/cjsh/pattern"
	"cjsh.dev/cjsh/syntax"
)

// paramExp evaluates one ${...}/$NAME expansion (spec §4.D.3). It returns
// either a single scalar value, or isAt=true plus the list of already-split
// values when Param is "@" and no modifier collapses it back to a scalar.
// "*" always comes back as one scalar, joined here with the first IFS
// character.
func (c *Config) paramExp(p *syntax.ParamExp) (value string, isAt bool, atVals []string, err error) {
	switch p.Param {
	case "@":
		if p.Op == ParamLength {
			return strconv.Itoa(len(c.Env.Positional())), false, nil, nil
		}
		return "", true, c.Env.Positional(), nil
	case "*":
		pos := c.Env.Positional()
		if p.Op == ParamLength {
			return strconv.Itoa(len(pos)), false, nil, nil
		}
		return strings.Join(pos, c.ifs()), false, nil, nil
	case "#":
		return strconv.Itoa(len(c.Env.Positional())), false, nil, nil
	case "?", "$", "!", "_", "-":
		v, _ := c.Env.Get(p.Param)
		return v, false, nil, nil
	}

	if n, err2 := strconv.Atoi(p.Param); err2 == nil {
		pos := c.Env.Positional()
		if n == 0 {
			v, _ := c.Env.Get("0")
			return v, false, nil, nil
		}
		if n < 1 || n > len(pos) {
			return "", false, nil, nil
		}
		return pos[n-1], false, nil, nil
	}

	val, set := c.Env.Get(p.Param)
	if p.Index != nil {
		arr, isArr := c.Env.GetArray(p.Param)
		idxStr, ierr := c.Literal(p.Index)
		if ierr != nil {
			return "", false, nil, ierr
		}
		idx, _ := strconv.Atoi(idxStr)
		if isArr {
			if idx >= 0 && idx < len(arr) {
				val, set = arr[idx], true
			} else {
				val, set = "", false
			}
		}
	}

	switch p.Op {
	case ParamPlain:
		return val, false, nil, nil
	case ParamLength:
		return strconv.Itoa(len(val)), false, nil, nil

	case ParamDefault, ParamDefaultNull:
		if set && (p.Op == ParamDefaultNull || val != "") {
			return val, false, nil, nil
		}
		return c.argLiteral(p.Arg)

	case ParamAssign, ParamAssignNull:
		if set && (p.Op == ParamAssignNull || val != "") {
			return val, false, nil, nil
		}
		def, err2 := c.argLiteral(p.Arg)
		if err2 != nil {
			return "", false, nil, err2
		}
		if c.Env.IsReadonly(p.Param) {
			return "", false, nil, &ExpandError{Kind: "ReadonlyError", Msg: p.Param + ": readonly variable"}
		}
		if err2 := c.Env.Set(p.Param, def); err2 != nil {
			return "", false, nil, err2
		}
		return def, false, nil, nil

	case ParamError, ParamErrorNull:
		if set && (p.Op == ParamErrorNull || val != "") {
			return val, false, nil, nil
		}
		msg, _ := c.argLiteral(p.Arg)
		if msg == "" {
			msg = "parameter null or not set"
		}
		return "", false, nil, &ExpandError{Kind: "UnboundVariableError", Msg: p.Param + ": " + msg}

	case ParamAlt, ParamAltNull:
		if !set || (p.Op == ParamAlt && val == "") {
			return "", false, nil, nil
		}
		return c.argLiteral(p.Arg)

	case ParamRemShortPre, ParamRemLongPre:
		pat, err2 := c.argLiteral(p.Arg)
		if err2 != nil {
			return "", false, nil, err2
		}
		return strings.TrimPrefix(val, pattern.LongestPrefix(val, pat, p.Op == ParamRemShortPre)), false, nil, nil

	case ParamRemShortSuf, ParamRemLongSuf:
		pat, err2 := c.argLiteral(p.Arg)
		if err2 != nil {
			return "", false, nil, err2
		}
		suf := pattern.LongestSuffix(val, pat, p.Op == ParamRemShortSuf)
		return strings.TrimSuffix(val, suf), false, nil, nil

	case ParamReplOnce, ParamReplAll:
		return c.paramReplace(val, p)

	case ParamUpperFirst, ParamUpperAll:
		return c.paramCase(val, p, strings.ToUpper), false, nil, nil
	case ParamLowerFirst, ParamLowerAll:
		return c.paramCase(val, p, strings.ToLower), false, nil, nil
	}
	return val, false, nil, nil
}

const ParamPlain = syntax.ParamPlain
const ParamLength = syntax.ParamLength
const ParamDefault = syntax.ParamDefault
const ParamDefaultNull = syntax.ParamDefaultNull
const ParamAssign = syntax.ParamAssign
const ParamAssignNull = syntax.ParamAssignNull
const ParamError = syntax.ParamError
const ParamErrorNull = syntax.ParamErrorNull
const ParamAlt = syntax.ParamAlt
const ParamAltNull = syntax.ParamAltNull
const ParamRemShortPre = syntax.ParamRemShortPre
const ParamRemLongPre = syntax.ParamRemLongPre
const ParamRemShortSuf = syntax.ParamRemShortSuf
const ParamRemLongSuf = syntax.ParamRemLongSuf
const ParamReplOnce = syntax.ParamReplOnce
const ParamReplAll = syntax.ParamReplAll
const ParamUpperFirst = syntax.ParamUpperFirst
const ParamUpperAll = syntax.ParamUpperAll
const ParamLowerFirst = syntax.ParamLowerFirst
const ParamLowerAll = syntax.ParamLowerAll

func (c *Config) argLiteral(w *syntax.Word) (string, bool, []string, error) {
	if w == nil {
		return "", false, nil, nil
	}
	s, err := c.Literal(w)
	return s, false, nil, err
}

func (c *Config) paramReplace(val string, p *syntax.ParamExp) (string, bool, []string, error) {
	pat, err := c.Literal(p.Arg)
	if err != nil {
		return "", false, nil, err
	}
	repl := ""
	if p.Arg2 != nil {
		repl, err = c.Literal(p.Arg2)
		if err != nil {
			return "", false, nil, err
		}
	}
	anchorPrefix := strings.HasPrefix(pat, "#")
	anchorSuffix := strings.HasPrefix(pat, "%")
	if anchorPrefix || anchorSuffix {
		pat = pat[1:]
	}
	re, err := pattern.Compile(pat, 0)
	if err != nil {
		return val, false, nil, nil
	}
	switch {
	case anchorPrefix:
		if loc := re.FindStringIndex(val); loc != nil && loc[0] == 0 {
			return repl + val[loc[1]:], false, nil, nil
		}
		return val, false, nil, nil
	case anchorSuffix:
		if loc := re.FindStringIndex(val); loc != nil && loc[1] == len(val) {
			return val[:loc[0]] + repl, false, nil, nil
		}
		return val, false, nil, nil
	case p.Op == ParamReplAll:
		return re.ReplaceAllString(val, strings.ReplaceAll(repl, "$", "$$")), false, nil, nil
	default:
		loc := re.FindStringIndex(val)
		if loc == nil {
			return val, false, nil, nil
		}
		return val[:loc[0]] + repl + val[loc[1]:], false, nil, nil
	}
}

func (c *Config) paramCase(val string, p *syntax.ParamExp, conv func(string) string) string {
	all := p.Op == ParamUpperAll || p.Op == ParamLowerAll
	if val == "" {
		return val
	}
	if p.Arg == nil {
		if all {
			return conv(val)
		}
		return conv(val[:1]) + val[1:]
	}
	pat, err := c.Literal(p.Arg)
	if err != nil {
		return val
	}
	apply := func(s string) string {
		if pattern.Match(pat, s) {
			return conv(s)
		}
		return s
	}
	if !all {
		return apply(val[:1]) + val[1:]
	}
	var b strings.Builder
	for _, r := range val {
		b.WriteString(apply(string(r)))
	}
	return b.String()
}
