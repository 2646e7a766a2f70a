package interp

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// suggestCommand prints a "did you mean" hint for an unknown command,
// fuzzy-matching against every builtin and every executable on $PATH.
// Grounded on _examples/opal-lang-opal's runtime/planner.go, which uses
// the same fuzzy.RankFindFold call to suggest pipeline stage names.
func suggestCommand(w io.Writer, name string) {
	candidates := make([]string, 0, len(builtins))
	for b := range builtins {
		candidates = append(candidates, b)
	}
	if pathEnv := os.Getenv("PATH"); pathEnv != "" {
		for _, dir := range strings.Split(pathEnv, string(os.PathListSeparator)) {
			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			for _, e := range entries {
				if !e.IsDir() {
					candidates = append(candidates, e.Name())
				}
			}
		}
	}
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) == 0 {
		return
	}
	sort.Sort(ranks)
	best := ranks[0].Target
	if filepath.Base(best) == name {
		return
	}
	fmt.Fprintf(w, "cjsh: did you mean %q?\n", best)
}
