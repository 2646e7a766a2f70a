package interp

import (
	"bufio"
	"os"
	"strings"
)

// StartupFlagDirective is one `login-startup-arg FLAG` line recovered from
// original_source/include/builtin/startup_flag_command.h: a way for a
// login shell to persist CLI flags across invocations by writing them
// into .cjprofile instead of requiring them on every command line.
const startupFlagPrefix = "login-startup-arg "

// ParseStartupFlags scans a .cjprofile's contents for `login-startup-arg
// FLAG` directives and returns the flags in file order.
func ParseStartupFlags(data []byte) []string {
	var flags []string
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if rest, ok := strings.CutPrefix(line, startupFlagPrefix); ok {
			if rest = strings.TrimSpace(rest); rest != "" {
				flags = append(flags, rest)
			}
		}
	}
	return flags
}

// AppendStartupFlag idempotently appends a `login-startup-arg FLAG` line
// to path (creating it if needed); a flag already present is left alone
// rather than duplicated.
func AppendStartupFlag(path, flag string) error {
	existing, _ := os.ReadFile(path)
	for _, f := range ParseStartupFlags(existing) {
		if f == flag {
			return nil
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(startupFlagPrefix + flag + "\n")
	return err
}
