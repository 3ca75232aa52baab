package vault

import (
	"path/filepath"
	"strings"
)

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against relative path; false = match against basename only
}

// IgnoreMatcher checks paths against configured ignore patterns.
// Patterns without '/' match against the basename only; patterns with '/'
// match against the full path relative to the scan root.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the given relative path should be ignored.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}

	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)

	for _, p := range m.patterns {
		var matched bool
		var err error
		if p.matchPath {
			matched, err = filepath.Match(p.pattern, normalized)
		} else {
			matched, err = filepath.Match(p.pattern, basename)
		}
		if err != nil {
			// Bad pattern — skip rather than crash.
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
