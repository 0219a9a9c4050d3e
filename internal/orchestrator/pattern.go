package orchestrator

import "path/filepath"

// SelectTables resolves the effective table set from the full introspected
// list against include/exclude glob patterns (`*` and `?`, matched the way
// filepath.Match matches path segments; table names never contain '/' so this
// is safe to reuse for a flat name-glob). An empty include list means
// "everything". Exclude always wins over include. Patterns that match no
// table are reported as warnings rather than failing the run, since a
// pattern referencing a table dropped since the config was written
// shouldn't block migrating the tables that do exist.
func SelectTables(allTables []string, include, exclude []string) (selected []string, warnings []string) {
	matched := make(map[string]bool, len(include))

	if len(include) == 0 {
		selected = append(selected, allTables...)
	} else {
		for _, pattern := range include {
			found := false
			for _, name := range allTables {
				if globMatch(pattern, name) {
					found = true
					if !matched[name] {
						matched[name] = true
						selected = append(selected, name)
					}
				}
			}
			if !found {
				warnings = append(warnings, "include pattern matched no table: "+pattern)
			}
		}
	}

	if len(exclude) == 0 {
		return selected, warnings
	}

	kept := selected[:0]
	for _, name := range selected {
		excluded := false
		for _, pattern := range exclude {
			if globMatch(pattern, name) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, name)
		}
	}

	for _, pattern := range exclude {
		found := false
		for _, name := range allTables {
			if globMatch(pattern, name) {
				found = true
				break
			}
		}
		if !found {
			warnings = append(warnings, "exclude pattern matched no table: "+pattern)
		}
	}

	return kept, warnings
}

// globMatch matches name against pattern using filepath.Match semantics,
// which supports '*' and '?' the way the specification's table-selection
// syntax requires. Table names never contain path separators, so
// filepath.Match's segment-boundary behavior around '/' never triggers.
func globMatch(pattern, name string) bool {
	ok, err := filepath.Match(pattern, name)
	if err != nil {
		return pattern == name
	}
	return ok
}
