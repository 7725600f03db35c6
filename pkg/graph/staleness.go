package graph

import (
	"fmt"
	"os"

	"github.com/akashkj/quay/pkg/utils"
)

// checkStale decides whether a target must run. A target is stale when it
// is always-stale, depends on a target rebuilt earlier in this run, is
// missing an output, or has an input newer than its oldest output.
func (g *Graph) checkStale(t Target, rebuilt map[string]bool) (bool, string, error) {
	if t.Always {
		return true, "always", nil
	}

	for _, dep := range t.DependsOn {
		// Only a rebuilt dependency with declared outputs forces a
		// rebuild: its freshly produced artifacts are what make this
		// target's outputs out of date. An output-less always step
		// (npm install) leaves nothing behind to be newer than.
		if rebuilt[dep] && len(g.targets[dep].Outputs) > 0 {
			return true, fmt.Sprintf("dependency %s rebuilt", dep), nil
		}
	}

	oldest, allExist, err := utils.OldestModTime(t.Outputs)
	if err != nil {
		return false, "", fmt.Errorf("unable to stat outputs of %s: %w", t.Name, err)
	}
	if !allExist {
		return true, "output missing", nil
	}

	for _, input := range t.Inputs {
		if _, err := os.Stat(input); os.IsNotExist(err) {
			// A missing input is surfaced when the action runs; treating
			// it as stale gives the action a chance to produce it.
			return true, fmt.Sprintf("input %s missing", input), nil
		}
		latest, err := utils.LatestModTime(input)
		if err != nil {
			return false, "", fmt.Errorf("unable to stat input %s of %s: %w", input, t.Name, err)
		}
		if latest.After(oldest) {
			return true, fmt.Sprintf("input %s newer than outputs", input), nil
		}
	}

	return false, "", nil
}
