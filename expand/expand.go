// Package expand implements the cjsh expansion engine (spec §4.D): brace
// expansion, tilde expansion, parameter expansion, arithmetic expansion,
// command substitution, field splitting, pathname globbing, and quote
// removal, run in exactly that order for every word before it reaches the
// Execution Engine.
package expand

import (
	"fmt"
	"os/user"
	"path/filepath"
	"sort"
	"strings"

	"cjsh.dev/cjsh/pattern"
	"cjsh.dev/cjsh/syntax"
)

// Field is one already-split, quote-removed argv entry plus whether it
// came from an unquoted expansion (and is therefore still eligible for
// pathname expansion).
type Field struct {
	Value    string
	Globable bool
}

// Env is the variable-store view the expansion engine needs. It is
// satisfied by interp.Runner; keeping it as an interface here avoids an
// import cycle between expand and interp (interp depends on expand, not
// the other way around), matching how mvdan.cc/sh/v3 splits expand.Config
// from interp.Runner.
type Env interface {
	Get(name string) (value string, set bool)
	GetArray(name string) ([]string, bool)
	Set(name, value string) error
	Unset(name string)
	IsReadonly(name string) bool
	Positional() []string
	IFS() string
	OptSet(name string) bool // noglob, nullglob, noclobber, ...
}

// CmdSubstFunc runs the statements of a $(...) or `...` substitution and
// returns their captured, trailing-newline-stripped stdout.
type CmdSubstFunc func(src string) (string, error)

// Config bundles the collaborators the expansion engine needs beyond the
// variable store itself (spec §1's "external collaborators" plus the
// command-substitution hook into the Execution Engine).
type Config struct {
	Env      Env
	CmdSubst CmdSubstFunc
	Dir      func() string // current working directory, for glob base
}

// ExpandError wraps any error kind the engine can produce (spec §7).
type ExpandError struct {
	Kind string
	Msg  string
}

func (e *ExpandError) Error() string { return fmt.Sprintf("cjsh: %s: %s", e.Kind, e.Msg) }

// Words runs the full pipeline (spec §4.D steps 1-8) over a list of parsed
// words and returns the final argv.
func (c *Config) Words(words []*syntax.Word) ([]string, error) {
	var out []string
	for _, w := range words {
		fields, err := c.oneWord(w)
		if err != nil {
			return nil, err
		}
		out = append(out, fields...)
	}
	return out, nil
}

// oneWord runs steps 1 (brace) through 8 (quote removal) for a single
// source word, which may itself expand to any number of final fields.
func (c *Config) oneWord(w *syntax.Word) ([]string, error) {
	var out []string
	for _, braced := range Braces(w) {
		fields, err := c.expandOne(braced)
		if err != nil {
			return nil, err
		}
		out = append(out, fields...)
	}
	return out, nil
}

// expandOne runs steps 2 (tilde) through 8 on a single (post-brace) word.
func (c *Config) expandOne(w *syntax.Word) ([]string, error) {
	parts, err := c.tilde(w)
	if err != nil {
		return nil, err
	}
	fields, err := c.paramArithCmdSubst(parts)
	if err != nil {
		return nil, err
	}
	split := c.splitFields(fields, isLoneAtUnquoted(w))
	return c.globAll(split), nil
}

// isLoneAtUnquoted reports whether w is exactly "$@" inside double quotes,
// the one case where splitting must still produce one field per
// positional parameter (spec §4.D invariant).
func isLoneAtUnquoted(w *syntax.Word) bool {
	if len(w.Parts) != 1 {
		return false
	}
	dq, ok := w.Parts[0].(*syntax.DblQuoted)
	if !ok || len(dq.Parts) != 1 {
		return false
	}
	pe, ok := dq.Parts[0].(*syntax.ParamExp)
	return ok && pe.Short && pe.Param == "@"
}

// tilde implements spec §4.D.2: a leading ~ or ~user expands to $HOME or
// that user's home directory. It only applies to an unquoted leading Lit.
func (c *Config) tilde(w *syntax.Word) (*syntax.Word, error) {
	if len(w.Parts) == 0 {
		return w, nil
	}
	lit, ok := w.Parts[0].(*syntax.Lit)
	if !ok || lit.Quote != syntax.QUnquoted || !strings.HasPrefix(lit.Value, "~") {
		return w, nil
	}
	rest := lit.Value[1:]
	name, tail, _ := strings.Cut(rest, "/")
	var home string
	if name == "" {
		home, _ = c.Env.Get("HOME")
	} else if u, err := user.Lookup(name); err == nil {
		home = u.HomeDir
	} else {
		return w, nil // unknown user: leave the word untouched
	}
	newLit := home
	if tail != "" || strings.Contains(rest, "/") {
		newLit += "/" + tail
	}
	out := &syntax.Word{Line: w.Line}
	out.Parts = append(out.Parts, &syntax.Lit{Value: newLit, Quote: syntax.QUnquoted})
	out.Parts = append(out.Parts, w.Parts[1:]...)
	return out, nil
}

// field is one still-unsplit intermediate value: text plus whether it is
// subject to splitting/globbing (false for anything produced inside
// double quotes).
type field struct {
	text   string
	quoted bool
}

// paramArithCmdSubst implements spec §4.D steps 3-5 over every WordPart in
// order, concatenating literal runs and expansion results into a flat
// field list (more than one field only when a "$@" expansion, quoted or
// not, is involved).
func (c *Config) paramArithCmdSubst(w *syntax.Word) ([]field, error) {
	var out []field
	cur := field{}
	flush := func() {
		if cur.text != "" || cur.quoted {
			out = append(out, cur)
		}
		cur = field{}
	}
	for _, p := range w.Parts {
		switch p := p.(type) {
		case *syntax.Lit:
			cur.text += p.Value
			cur.quoted = cur.quoted || p.Quote != syntax.QUnquoted
		case *syntax.SglQuoted:
			cur.text += p.Value
			cur.quoted = true
		case *syntax.DblQuoted:
			sub, err := c.paramArithCmdSubst(&syntax.Word{Parts: p.Parts})
			if err != nil {
				return nil, err
			}
			if len(sub) <= 1 {
				if len(sub) == 1 {
					cur.text += sub[0].text
				}
				cur.quoted = true
				continue
			}
			// A "$@" nested inside this double-quoted run expanded to
			// more than one field (one per positional parameter); each
			// becomes its own quoted field instead of being joined back
			// together. "$*" never reaches here: paramExp joins it.
			flush()
			for _, f := range sub {
				out = append(out, field{text: f.text, quoted: true})
			}
		case *syntax.ParamExp:
			val, isAt, atVals, err := c.paramExp(p)
			if err != nil {
				return nil, err
			}
			if isAt {
				flush()
				for _, v := range atVals {
					out = append(out, field{text: v, quoted: p.Quoted})
				}
				continue
			}
			cur.text += val
			cur.quoted = cur.quoted || p.Quoted
		case *syntax.ArithmExp:
			v, err := Arith(p.Expr, &envAdapter{c.Env})
			if err != nil {
				return nil, err
			}
			cur.text += fmt.Sprintf("%d", v)
		case *syntax.CmdSubst:
			if c.CmdSubst == nil {
				return nil, &ExpandError{Kind: "RuntimeError", Msg: "command substitution unavailable"}
			}
			out2, err := c.CmdSubst(p.Source)
			if err != nil {
				return nil, err
			}
			cur.text += strings.TrimRight(out2, "\n")
		}
	}
	flush()
	return out, nil
}

func (c *Config) ifs() string {
	s := c.Env.IFS()
	if s == "" {
		return " "
	}
	return string(s[0])
}

// envAdapter adapts expand.Env to expand.ArithEnv for the arithmetic
// evaluator.
type envAdapter struct{ env Env }

func (a *envAdapter) Get(name string) string {
	v, _ := a.env.Get(name)
	return v
}
func (a *envAdapter) Set(name, value string) error { return a.env.Set(name, value) }

// splitFields implements spec §4.D.6: IFS-based word splitting, applied
// only to the unquoted portions of each intermediate field.
func (c *Config) splitFields(fields []field, keepEmpty bool) []Field {
	ifs := c.Env.IFS()
	var out []Field
	for _, f := range fields {
		if f.quoted {
			if f.text != "" || keepEmpty {
				out = append(out, Field{Value: f.text, Globable: false})
			}
			continue
		}
		if ifs == "" {
			if f.text != "" {
				out = append(out, Field{Value: f.text, Globable: true})
			}
			continue
		}
		for _, piece := range splitIFS(f.text, ifs) {
			if piece != "" {
				out = append(out, Field{Value: piece, Globable: true})
			}
		}
	}
	return out
}

func splitIFS(s, ifs string) []string {
	isSep := func(r byte) bool { return strings.IndexByte(ifs, r) >= 0 }
	var out []string
	var cur strings.Builder
	started := false
	for i := 0; i < len(s); i++ {
		if isSep(s[i]) {
			out = append(out, cur.String())
			cur.Reset()
			started = true
			continue
		}
		started = true
		cur.WriteByte(s[i])
	}
	if started {
		out = append(out, cur.String())
	}
	return out
}

// globAll implements spec §4.D.7 (pathname expansion) over every field
// that still carries unquoted glob metacharacters.
func (c *Config) globAll(fields []Field) []string {
	if c.Env.OptSet("noglob") {
		out := make([]string, len(fields))
		for i, f := range fields {
			out[i] = f.Value
		}
		return out
	}
	var out []string
	for _, f := range fields {
		if !f.Globable || !pattern.HasMeta(f.Value) {
			out = append(out, f.Value)
			continue
		}
		matches := c.globOne(f.Value)
		if len(matches) == 0 {
			if c.Env.OptSet("nullglob") {
				continue
			}
			out = append(out, f.Value)
			continue
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	return out
}

func (c *Config) globOne(pat string) []string {
	base := "."
	if c.Dir != nil {
		base = c.Dir()
	}
	abs := pat
	if !filepath.IsAbs(pat) {
		abs = filepath.Join(base, pat)
	}
	matches, err := filepath.Glob(abs)
	if err != nil {
		return nil
	}
	if filepath.IsAbs(pat) {
		return matches
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		rel, err := filepath.Rel(base, m)
		if err != nil {
			rel = m
		}
		out[i] = rel
	}
	return out
}

// Literal expands w the same way oneWord does but requires exactly one
// resulting field, used for contexts that need a single scalar (a
// redirection target, a for-loop item already past splitting, an
// assignment's right-hand side).
func (c *Config) Literal(w *syntax.Word) (string, error) {
	fields, err := c.oneWord(w)
	if err != nil {
		return "", err
	}
	return strings.Join(fields, ""), nil
}
