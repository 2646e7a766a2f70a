package interp

import "strings"

// applySetFlags implements the option-letter parsing shared by the `set`
// builtin and the cjsh CLI's inline flags (spec §4.H/§6), returning the
// remaining non-option arguments.
func (r *Runner) applySetFlags(args []string) ([]string, error) {
	i := 0
	for i < len(args) {
		a := args[i]
		if a == "--" {
			i++
			break
		}
		if len(a) < 2 || (a[0] != '-' && a[0] != '+') {
			break
		}
		on := a[0] == '-'
		if a == "-o" || a == "+o" {
			if i+1 >= len(args) {
				return nil, &RuntimeError{Kind: "RuntimeError", Msg: "set: -o requires an argument"}
			}
			r.setLongOpt(args[i+1], on)
			i += 2
			continue
		}
		for _, c := range a[1:] {
			r.setShortOpt(c, on)
		}
		i++
	}
	return args[i:], nil
}

func (r *Runner) setShortOpt(c rune, on bool) {
	switch c {
	case 'e':
		r.opts.errexit = on
	case 'u':
		r.opts.nounset = on
	case 'x':
		r.opts.xtrace = on
	case 'n':
		r.opts.noexec = on
	case 'f':
		r.opts.noglob = on
		r.Vars.SetOpt("noglob", on)
	}
}

func (r *Runner) setLongOpt(name string, on bool) {
	name = strings.TrimSpace(name)
	switch name {
	case "errexit":
		r.opts.errexit = on
	case "nounset":
		r.opts.nounset = on
	case "xtrace":
		r.opts.xtrace = on
	case "noexec":
		r.opts.noexec = on
	case "noglob":
		r.opts.noglob = on
		r.Vars.SetOpt("noglob", on)
	case "pipefail":
		r.opts.pipefail = on
	case "posix":
		r.opts.posix = on
	case "monitor":
		r.opts.monitor = on
	case "noclobber":
		r.Vars.SetOpt("noclobber", on)
	case "nullglob":
		r.Vars.SetOpt("nullglob", on)
	}
}

// OptString renders currently-set long options, one per line, for `set -o`
// with no argument.
func (r *Runner) OptString() []string {
	all := []struct {
		name string
		on   bool
	}{
		{"errexit", r.opts.errexit},
		{"nounset", r.opts.nounset},
		{"xtrace", r.opts.xtrace},
		{"noexec", r.opts.noexec},
		{"noglob", r.opts.noglob},
		{"pipefail", r.opts.pipefail},
		{"posix", r.opts.posix},
		{"monitor", r.opts.monitor},
		{"noclobber", r.Vars.OptSet("noclobber")},
		{"nullglob", r.Vars.OptSet("nullglob")},
	}
	out := make([]string, len(all))
	for i, o := range all {
		state := "off"
		if o.on {
			state = "on"
		}
		out[i] = o.name + "\t" + state
	}
	return out
}
