package errors

import "strings"

// PatternMatcher matches error messages to categories using string patterns.
type PatternMatcher interface {
	Match(errorMsg string) ErrorCategory
}

// NewPatternMatcher creates a new PatternMatcher with predefined patterns.
func NewPatternMatcher() PatternMatcher {
	return &patternMatcher{
		order: []ErrorCategory{
			CategoryAuth,
			CategoryConnect,
			CategoryPermission,
			CategoryDiskSpace,
			CategoryNotFound,
			CategoryIO,
		},
		patterns: map[ErrorCategory][]string{
			CategoryAuth: {
				"unable to authenticate",
				"no supported methods remain",
				"host key mismatch",
				"knownhosts: key mismatch",
			},
			CategoryConnect: {
				"connection refused",
				"no route to host",
				"i/o timeout",
				"no such host",
				"connection reset",
			},
			CategoryPermission: {
				"permission denied",
				"access denied",
				"operation not permitted",
			},
			CategoryDiskSpace: {
				"no space left on device",
				"disk full",
				"quota exceeded",
			},
			CategoryNotFound: {
				"no such file or directory",
				"file not found",
				"file does not exist",
			},
			CategoryIO: {
				"short write",
				"input/output error",
				"i/o error",
				"connection lost",
			},
		},
	}
}

// patternMatcher is the concrete implementation of PatternMatcher.
type patternMatcher struct {
	order    []ErrorCategory
	patterns map[ErrorCategory][]string
}

// Match returns the error category based on pattern matching.
// Categories are tried in a fixed order so overlapping messages categorise deterministically.
func (m *patternMatcher) Match(errorMsg string) ErrorCategory {
	lowerMsg := strings.ToLower(errorMsg)

	for _, category := range m.order {
		for _, pattern := range m.patterns[category] {
			if strings.Contains(lowerMsg, pattern) {
				return category
			}
		}
	}

	return CategoryUnknown
}
