// Command cjsh is the interactive POSIX-style shell built on top of the
// cjsh.dev/cjsh/interp core. It owns everything spec.md §1 calls an
// "external collaborator": CLI flag parsing, the line source, the
// terminal capability probe, and config-file sourcing; the actual
// lexing/parsing/expansion/execution all happens inside interp/syntax.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cjsh.dev/cjsh/interp"
)

// version is overridden at release build time via -ldflags; left as a
// plain var (not const) so that's possible without touching this file.
var version = "0.1.0-dev"

// flags mirrors spec.md §6's CLI surface one field per flag.
type flags struct {
	command     string
	login       bool
	interactive bool
	posix       bool
	noExec      bool
	showVersion bool

	minimal              bool
	noColors             bool
	noCompletions        bool
	noSyntaxHighlighting bool
	noSmartCd            bool
	noHistoryExpansion   bool
	noSource             bool
	noTitleline          bool
	showStartupTime      bool
	secure               bool
	noPromptVars         bool
}

func main() {
	os.Exit(mainRun())
}

func mainRun() int {
	start := time.Now()
	var f flags
	root := &cobra.Command{
		Use:           "cjsh [script_file] [args...]",
		Short:         "cjsh is the core command interpreter of a POSIX-style shell",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
	}
	// Everything after the first non-flag argument belongs to the script,
	// not to cjsh itself (a script named "-v" must not toggle --version).
	root.Flags().SetInterspersed(false)

	root.Flags().StringVarP(&f.command, "command", "c", "", "execute STRING and exit")
	root.Flags().BoolVarP(&f.login, "login", "l", false, "source .cjprofile as a login shell")
	root.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "force interactive mode even if stdin is not a TTY")
	root.Flags().BoolVar(&f.posix, "posix", false, "enforce POSIX-only syntax")
	root.Flags().BoolVar(&f.noExec, "no-exec", false, "parse-only syntax check, do not execute")
	root.Flags().BoolVarP(&f.showVersion, "version", "v", false, "print the version and exit")

	root.Flags().BoolVar(&f.minimal, "minimal", false, "disable every optional front-end feature below")
	root.Flags().BoolVar(&f.noColors, "no-colors", false, "disable colored output")
	root.Flags().BoolVar(&f.noCompletions, "no-completions", false, "disable completions")
	root.Flags().BoolVar(&f.noSyntaxHighlighting, "no-syntax-highlighting", false, "disable syntax highlighting")
	root.Flags().BoolVar(&f.noSmartCd, "no-smart-cd", false, "disable smart cd")
	root.Flags().BoolVar(&f.noHistoryExpansion, "no-history-expansion", false, "disable history expansion")
	root.Flags().BoolVar(&f.noSource, "no-source", false, "do not source any config file")
	root.Flags().BoolVar(&f.noTitleline, "no-titleline", false, "do not update the terminal title")
	root.Flags().BoolVar(&f.showStartupTime, "show-startup-time", false, "print elapsed startup time before the first prompt")
	root.Flags().BoolVar(&f.secure, "secure", false, "skip sourcing .cjshrc")
	root.Flags().BoolVar(&f.noPromptVars, "no-prompt-vars", false, "disable prompt variable expansion")

	exitCode := 0
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if f.showVersion {
			fmt.Fprintf(cmd.OutOrStdout(), "cjsh version %s\n", version)
			return nil
		}
		code, err := runShell(f, args, start)
		exitCode = code
		return err
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cjsh: "+err.Error())
		if exitCode == 0 {
			exitCode = 1
		}
	}
	return exitCode
}

// runShell builds the Runner per the resolved flags and dispatches to one
// of the three execution modes spec.md §6 describes: `-c STRING`, a
// script file (+ its argv), or the interactive prompt loop.
func runShell(f flags, args []string, start time.Time) (int, error) {
	if f.login {
		if home, _ := os.UserHomeDir(); home != "" {
			if data, err := os.ReadFile(filepath.Join(home, ".cjprofile")); err == nil {
				for _, flag := range interp.ParseStartupFlags(data) {
					applyStartupFlagName(&f, flag)
				}
			}
		}
	}

	if f.minimal {
		f.noColors, f.noCompletions, f.noSyntaxHighlighting = true, true, true
		f.noSmartCd, f.noHistoryExpansion, f.noTitleline = true, true, true
		f.noPromptVars = true
	}

	home, _ := os.UserHomeDir()

	var scriptArgs []string
	name := "cjsh"
	if len(args) > 0 {
		name = args[0]
		scriptArgs = args[1:]
	}

	opts := []interp.RunnerOption{
		interp.StdIO(os.Stdin, os.Stdout, os.Stderr),
		interp.Params(posFlags(f)...),
	}

	r, err := interp.New(opts...)
	if err != nil {
		return 1, err
	}
	r.Name = name
	applyFeatureFlags(r, f)
	r.Vars.SetPositional(scriptArgs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if !f.noSource {
		sourceConfigFiles(ctx, r, home, f)
	}

	historyPath := ""
	if home != "" {
		historyPath = filepath.Join(home, ".cjsh_history")
	}
	r.SetHistory(interp.NewHistory(historyPath))

	if f.showStartupTime {
		fmt.Fprintf(os.Stderr, "cjsh: startup took %s\n", time.Since(start))
	}

	switch {
	case f.command != "":
		return runOnce(ctx, r, f.command, "-c")
	case len(args) > 0:
		return runFile(ctx, r, args[0])
	default:
		if f.interactive || term.IsTerminal(int(os.Stdin.Fd())) {
			return runInteractive(ctx, r, f)
		}
		data, rerr := io.ReadAll(os.Stdin)
		if rerr != nil {
			return 1, rerr
		}
		return runOnce(ctx, r, string(data), "")
	}
}

// posFlags renders the subset of flags that double as `set`-style option
// letters (spec §4.H/§6) into the argv Params expects; cjsh's own
// front-end-only toggles (--no-colors and friends) are applied directly
// via applyFeatureFlags instead, since `set` has no letter for them.
func posFlags(f flags) []string {
	var out []string
	if f.posix {
		out = append(out, "-o", "posix")
	}
	if f.noExec {
		out = append(out, "-n")
	}
	out = append(out, "--")
	return out
}

// applyStartupFlagName maps a persisted flag name (stripped of its
// leading "--") back onto the flags struct, the `.cjprofile`
// `login-startup-arg` replay path.
func applyStartupFlagName(f *flags, name string) {
	switch strings.TrimPrefix(name, "--") {
	case "minimal":
		f.minimal = true
	case "no-colors":
		f.noColors = true
	case "no-completions":
		f.noCompletions = true
	case "no-syntax-highlighting":
		f.noSyntaxHighlighting = true
	case "no-smart-cd":
		f.noSmartCd = true
	case "no-history-expansion":
		f.noHistoryExpansion = true
	case "no-source":
		f.noSource = true
	case "no-titleline":
		f.noTitleline = true
	case "show-startup-time":
		f.showStartupTime = true
	case "secure":
		f.secure = true
	case "no-prompt-vars":
		f.noPromptVars = true
	case "posix":
		f.posix = true
	}
}

func applyFeatureFlags(r *interp.Runner, f flags) {
	set := func(name string, disabled bool) { r.Vars.SetOpt(name, !disabled) }
	set("colors", f.noColors)
	set("completions", f.noCompletions)
	set("syntax_highlighting", f.noSyntaxHighlighting)
	set("smart_cd", f.noSmartCd)
	set("history_expansion", f.noHistoryExpansion)
	set("titleline", f.noTitleline)
	set("prompt_vars", f.noPromptVars)
	r.Vars.SetOpt("secure", f.secure)
}

func runOnce(ctx context.Context, r *interp.Runner, src, name string) (int, error) {
	err := r.RunSource(ctx, src, name)
	r.Jobs.WaitBackground()
	return statusFromErr(r, err)
}

func runFile(ctx context.Context, r *interp.Runner, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cjsh: %s: %v\n", path, err)
		return 1, nil
	}
	err = r.RunSource(ctx, string(data), path)
	r.Jobs.WaitBackground()
	return statusFromErr(r, err)
}

func statusFromErr(r *interp.Runner, err error) (int, error) {
	if ee, ok := err.(*interp.ExitError); ok {
		return ee.Code, nil
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "cjsh: "+err.Error())
		return 1, nil
	}
	return r.Vars.LastStatus(), nil
}

// sourceConfigFiles implements the §6 config-loader contract: .cjprofile
// once in login mode, .cjshrc in interactive non-secure mode. Errors are
// reported but never abort shell startup, matching the teacher's own
// best-effort sourcing of shell rc files.
func sourceConfigFiles(ctx context.Context, r *interp.Runner, home string, f flags) {
	if home == "" {
		return
	}
	if f.login {
		sourceIfExists(ctx, r, filepath.Join(home, ".cjprofile"))
	}
	if !f.secure && (f.interactive || term.IsTerminal(int(os.Stdin.Fd()))) {
		sourceIfExists(ctx, r, filepath.Join(home, ".cjshrc"))
	}
}

func sourceIfExists(ctx context.Context, r *interp.Runner, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := r.Source(ctx, string(data)); err != nil {
		fmt.Fprintf(os.Stderr, "cjsh: %s: %v\n", path, err)
	}
}

// runInteractive drives the prompt loop: read one logical line (joining
// further physical lines while the parser reports ErrIncomplete), append
// it to history, run the preexec hook, run the line, run the precmd hook,
// then print the next prompt
// (spec §4.H hook points; §9 Open Question on precmd-vs-history ordering:
// history append happens first).
func runInteractive(ctx context.Context, r *interp.Runner, f flags) (int, error) {
	defer func() {
		if home, _ := os.UserHomeDir(); home != "" {
			sourceIfExists(ctx, r, filepath.Join(home, ".cjsh_logout"))
		}
		r.RunExitTrap(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	// One goroutine owns the bufio.Reader for the whole session so the
	// prompt loop never issues concurrent reads against it; a SIGINT just
	// makes the select below stop waiting on the in-flight line early.
	lines := startLineReader(os.Stdin)
	status := 0
	var pending strings.Builder

	prompt := func() {
		if pending.Len() == 0 {
			r.Notify(os.Stdout)
			ps1, _ := r.Vars.Get("PS1")
			if ps1 == "" {
				ps1 = "$ "
			}
			fmt.Fprint(os.Stdout, ps1)
		} else {
			ps2, _ := r.Vars.Get("PS2")
			if ps2 == "" {
				ps2 = "> "
			}
			fmt.Fprint(os.Stdout, ps2)
		}
	}

	for {
		prompt()
		var res lineResult
		select {
		case res = <-lines:
		case <-sigCh:
			// SIGINT: discard whatever was being continued and restart.
			pending.Reset()
			fmt.Fprintln(os.Stdout)
			continue
		}
		if res.err != nil && res.line == "" {
			break // EOF
		}
		pending.WriteString(res.line)
		src := pending.String()

		runErr := r.ParseOnly(src)
		if interp.Incomplete(runErr) {
			continue
		}
		pending.Reset()

		// History append happens before the hook runs (spec §9 Open
		// Question: "the source runs hooks after history append").
		if h := r.History(); h != nil {
			h.Add(strings.TrimRight(src, "\n"))
		}
		r.RunHookPreexec(ctx)

		if execErr := r.Source(ctx, src); execErr != nil {
			if ee, ok := execErr.(*interp.ExitError); ok {
				status = ee.Code
				break
			}
		}
		status = r.Vars.LastStatus()
		r.RunHookPrecmd(ctx)
	}
	r.Jobs.WaitBackground()
	return status, nil
}

// lineResult is one line (or terminal error) produced by startLineReader.
type lineResult struct {
	line string
	err  error
}

// startLineReader reads lines from f on a dedicated goroutine for the
// life of the process, so the interactive prompt loop's select against
// sigCh never issues a second concurrent read against the same
// bufio.Reader (spec §5 cancellation: "SIGINT at the prompt clears the
// current partial input" without tearing down the line source itself).
func startLineReader(f *os.File) <-chan lineResult {
	out := make(chan lineResult, 1)
	go func() {
		reader := bufio.NewReader(f)
		for {
			line, err := reader.ReadString('\n')
			out <- lineResult{line, err}
			if err != nil {
				return
			}
		}
	}()
	return out
}
