package gitrepo

import (
	"sort"
	"strings"
)

// DiffStats summarizes a unified diff without interpreting its content.
type DiffStats struct {
	Files     []string
	Additions int
	Deletions int
}

// ParseDiffStats extracts changed file paths and add/delete line counts
// from unified diff text. File paths come from the "diff --git a/... b/..."
// headers.
func ParseDiffStats(diff string) DiffStats {
	seen := make(map[string]bool)
	var stats DiffStats
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git"):
			if idx := strings.Index(line, " b/"); idx >= 0 {
				path := line[idx+3:]
				if path != "" && !seen[path] {
					seen[path] = true
					stats.Files = append(stats.Files, path)
				}
			}
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			stats.Additions++
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			stats.Deletions++
		}
	}
	sort.Strings(stats.Files)
	return stats
}
