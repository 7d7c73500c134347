package builder

import (
	"fmt"
	"sort"

	"github.com/clusterinfer/orchestrator/internal/recipe"
)

// sharedEnvironment renders PORT plus every recipe-declared variable, sorted
// for deterministic script output. Replica port allocation is added by the
// replica run variant itself, since it is per-replica rather than
// job-global.
func sharedEnvironment(spec recipe.Spec) []string {
	lines := make([]string, 0, len(spec.Environment)+1)

	if port, ok := spec.PrimaryPort(); ok {
		lines = append(lines, fmt.Sprintf("export PORT=%d", port))
	}

	keys := make([]string, 0, len(spec.Environment))
	for k := range spec.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("export %s=%q", k, spec.Environment[k]))
	}

	return lines
}
