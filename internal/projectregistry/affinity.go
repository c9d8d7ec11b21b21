package projectregistry

import (
	"strings"

	"github.com/agentfleet/pilot/internal/router"
)

// Affinity builds a router.AffinityFunc backed by store: a role earns a
// bonus proportional to the fraction of the task's expected files that
// fall under a registry entry this role created (spec §4.F "affinity —
// optional registry bonus"), mirroring the teacher's
// AgentRecommendation.Rationale reasoning in decision.go.
func Affinity(store *Store) router.AffinityFunc {
	return func(role string, task router.Task) float64 {
		if len(task.Files) == 0 || role == "" {
			return 0
		}
		owned, err := store.ByCreator(role)
		if err != nil || len(owned) == 0 {
			return 0
		}

		matched := 0
		for _, f := range task.Files {
			for _, e := range owned {
				if underPath(f, e.FilePath) {
					matched++
					break
				}
			}
		}
		return float64(matched) / float64(len(task.Files))
	}
}

// underPath reports whether file is exactly entryPath or nested under the
// directory entryPath names.
func underPath(file, entryPath string) bool {
	if file == entryPath {
		return true
	}
	dir := strings.TrimSuffix(entryPath, "/") + "/"
	return strings.HasPrefix(file, dir)
}
