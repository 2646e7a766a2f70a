package interp

import (
	"context"
	"io"
	"os"
	"strconv"

	"cjsh.dev/cjsh/syntax"
)

// openFiles tracks the file descriptors a Stmt's redirections open, so
// they can be restored/closed once the statement finishes (spec §4.I).
type openFiles struct {
	stdin, stdout, stderr                   *os.File
	stdinClosed, stdoutClosed, stderrClosed bool
	extra                                   map[int]*os.File
	closers                                 []io.Closer
}

func (o *openFiles) closeAll() {
	for _, c := range o.closers {
		c.Close()
	}
}

// applyRedirects resolves each redirection against r's expansion engine
// and returns the resulting stdin/stdout/stderr (falling back to r's own
// streams when a Stmt carries no redirection for that stream).
func (r *Runner) applyRedirects(ctx context.Context, redirs []*syntax.Redirect) (*openFiles, error) {
	of := &openFiles{extra: map[int]*os.File{}}
	for _, rd := range redirs {
		if err := r.applyOne(ctx, rd, of); err != nil {
			of.closeAll()
			return nil, err
		}
	}
	return of, nil
}

func (r *Runner) applyOne(ctx context.Context, rd *syntax.Redirect, of *openFiles) error {
	if rd.Kind == syntax.RedirCloseFd {
		// fd >= 3 needs no action here: it is simply never added to
		// of.extra, so the child's cmd.ExtraFiles never carries it and
		// the descriptor doesn't exist in the child at all. fd 0/1/2
		// come from r.stdin/stdout/stderr instead, which default to
		// something (the parent's own stream) when left untouched, so
		// closing them needs an explicit marker (see withStreams).
		switch rd.Fd {
		case 0:
			of.stdinClosed = true
		case 1:
			of.stdoutClosed = true
		case 2:
			of.stderrClosed = true
		}
		return nil
	}

	target := ""
	if rd.Target != nil {
		t, err := r.ecfg.Literal(rd.Target)
		if err != nil {
			return err
		}
		target = t
	}

	fd := rd.Fd
	switch rd.Kind {
	case syntax.RedirInFile:
		if hd, ok := r.heredocFor(target); ok {
			f, err := r.heredocFile(hd)
			if err != nil {
				return err
			}
			of.closers = append(of.closers, f)
			r.assignFD(of, fd, 0, f)
			return nil
		}
		f, err := os.OpenFile(target, os.O_RDONLY, 0)
		if err != nil {
			return &RuntimeError{Kind: "RedirectionError", Msg: err.Error()}
		}
		of.closers = append(of.closers, f)
		r.assignFD(of, fd, 0, f)

	case syntax.RedirHereString:
		f, err := tempFileWithContent(target + "\n")
		if err != nil {
			return err
		}
		of.closers = append(of.closers, f)
		r.assignFD(of, fd, 0, f)

	case syntax.RedirOutFile, syntax.RedirAppend, syntax.RedirReadWrite:
		flag := os.O_WRONLY | os.O_CREATE
		switch rd.Kind {
		case syntax.RedirAppend:
			flag |= os.O_APPEND
		case syntax.RedirReadWrite:
			flag = os.O_RDWR | os.O_CREATE
		default:
			if r.Vars.OptSet("noclobber") && !rd.Force {
				if _, err := os.Stat(target); err == nil {
					return &RuntimeError{Kind: "RedirectionError", Msg: target + ": cannot overwrite existing file"}
				}
			}
			flag |= os.O_TRUNC
		}
		f, err := os.OpenFile(target, flag, 0o644)
		if err != nil {
			return &RuntimeError{Kind: "RedirectionError", Msg: err.Error()}
		}
		of.closers = append(of.closers, f)
		r.assignFD(of, fd, 1, f)

	case syntax.RedirDup:
		if target == "-" {
			return nil
		}
		n, err := strconv.Atoi(target)
		if err != nil {
			return &RuntimeError{Kind: "RedirectionError", Msg: "bad fd duplication target: " + target}
		}
		src := of.fdFile(n)
		if src == nil {
			switch n {
			case 0:
				src = osFile(r.stdin)
			case 1:
				src = osFile(r.stdout)
			case 2:
				src = osFile(r.stderr)
			}
		}
		if src == nil {
			return &RuntimeError{Kind: "RedirectionError", Msg: "bad fd duplication source"}
		}
		r.assignFD(of, fd, fd, src)
	}
	return nil
}

func (o *openFiles) fdFile(n int) *os.File {
	switch n {
	case 0:
		return o.stdin
	case 1:
		return o.stdout
	case 2:
		return o.stderr
	}
	return o.extra[n]
}

func (r *Runner) assignFD(of *openFiles, fd, defaultFD int, f *os.File) {
	if fd < 0 {
		fd = defaultFD
	}
	switch fd {
	case 0:
		of.stdin = f
	case 1:
		of.stdout = f
	case 2:
		of.stderr = f
	default:
		of.extra[fd] = f
	}
}

func osFile(w interface{}) *os.File {
	if f, ok := w.(*os.File); ok {
		return f
	}
	return nil
}

func (r *Runner) heredocFor(placeholder string) (*syntax.HereDoc, bool) {
	if r.heredocs == nil {
		return nil, false
	}
	hd, ok := r.heredocs[placeholder]
	return hd, ok
}

// heredocFile materializes a heredoc body as a readable temp file,
// expanding parameters/command substitutions first unless the delimiter
// was quoted (spec §4.B).
func (r *Runner) heredocFile(hd *syntax.HereDoc) (*os.File, error) {
	content := hd.Content
	if hd.Expand {
		expanded, err := r.expandHeredocBody(content)
		if err != nil {
			return nil, err
		}
		content = expanded
	}
	return tempFileWithContent(content)
}

func (r *Runner) expandHeredocBody(body string) (string, error) {
	parts, err := syntax.ExpandableParts(body)
	if err != nil {
		return body, nil
	}
	return r.ecfg.Literal(&syntax.Word{Parts: []syntax.WordPart{&syntax.DblQuoted{Parts: parts}}})
}

func tempFileWithContent(s string) (*os.File, error) {
	f, err := os.CreateTemp("", "cjsh-heredoc-*")
	if err != nil {
		return nil, err
	}
	os.Remove(f.Name())
	if _, err := f.WriteString(s); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
