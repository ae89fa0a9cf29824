package policy

import "github.com/gobwas/glob"

// matchesAny reports whether name matches any of the given glob
// patterns (`*`/`?` wildcards). Malformed patterns are skipped rather
// than panicking, so they never match: in an allow list such a pattern
// grants nothing, and in a deny list it denies nothing.
func matchesAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			continue
		}
		if g.Match(name) {
			return true
		}
	}
	return false
}
