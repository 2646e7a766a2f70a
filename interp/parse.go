package interp

import "cjsh.dev/cjsh/syntax"

// parseAndRemember runs the Preprocessor (heredoc extraction) and then the
// Parser over src (via parseSource), returning the resulting File. The heredoc bodies
// recorded by the Preprocessor are stashed on the Runner so the
// Execution Engine can resolve `< PLACEHOLDER` redirections back into
// their original body text (spec §4.B + §4.I).
func (r *Runner) parseAndRemember(src string) (*syntax.File, error) {
	f, hd, err := parseSource(src, r.opts.posix)
	if err != nil {
		return nil, err
	}
	if r.heredocs == nil {
		r.heredocs = map[string]*syntax.HereDoc{}
	}
	for k, v := range hd {
		r.heredocs[k] = v
	}
	return f, nil
}

func parseSource(src string, posix bool) (*syntax.File, map[string]*syntax.HereDoc, error) {
	pp := syntax.NewPreprocessor()
	processed, err := pp.Process(src)
	if err != nil {
		return nil, nil, err
	}
	f, err := syntax.Parse(processed, globalAliases, posix)
	if err != nil {
		return nil, nil, err
	}
	return f, pp.HereDocs, nil
}

// globalAliases is populated by the `alias` builtin; shared across a
// Runner and any sub() children, matching the teacher's choice to keep
// alias expansion a parse-time, not per-Runner, concern.
var globalAliases = syntax.Alias{}
