package interp

import (
	"os"
	"strings"

	"github.com/google/renameio/v2/maybe"
)

// History implements the command-history persistence recovered from
// original_source/'s history handling: a capped, deduplicated line list
// written back atomically so a crash mid-write never corrupts the file
// (spec SUPPLEMENTED FEATURES; grounded on the teacher's cmd/shfmt use of
// github.com/google/renameio/v2/maybe.WriteFile for crash-safe writes).
type History struct {
	Path     string
	MaxLines int
	entries  []string
}

const defaultHistoryCap = 2000

// NewHistory loads path's existing entries, if any, capping at MaxLines.
func NewHistory(path string) *History {
	h := &History{Path: path, MaxLines: defaultHistoryCap}
	data, err := os.ReadFile(path)
	if err != nil {
		return h
	}
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line != "" && !strings.HasPrefix(line, "#") {
			h.entries = append(h.entries, line)
		}
	}
	h.dedupAndCap()
	return h
}

// Add appends line, deduplicating immediate repeats and enforcing the
// line cap, then persists the file atomically.
func (h *History) Add(line string) error {
	if line == "" {
		return nil
	}
	if len(h.entries) > 0 && h.entries[len(h.entries)-1] == line {
		return nil
	}
	h.entries = append(h.entries, line)
	h.dedupAndCap()
	return h.save()
}

func (h *History) dedupAndCap() {
	if h.MaxLines > 0 && len(h.entries) > h.MaxLines {
		h.entries = h.entries[len(h.entries)-h.MaxLines:]
	}
}

func (h *History) save() error {
	if h.Path == "" {
		return nil
	}
	content := strings.Join(h.entries, "\n")
	if content != "" {
		content += "\n"
	}
	return maybe.WriteFile(h.Path, []byte(content), 0o600)
}

// Entries returns a copy of the stored history, oldest first.
func (h *History) Entries() []string {
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

func (r *Runner) historyEntries() []string {
	if r.history == nil {
		return nil
	}
	return r.history.Entries()
}
