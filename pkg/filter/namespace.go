// Package filter provides namespace exclusion filtering and pattern matching.
package filter

import (
	"fmt"
	"path/filepath"
	"strings"
)

// NamespaceFilter decides which labeled namespaces the controller may write to.
type NamespaceFilter struct {
	excludedNames    map[string]bool
	excludedPatterns []string
}

// NewNamespaceFilter creates a NamespaceFilter from a list of exclusions.
// Entries containing glob metacharacters are treated as patterns, everything
// else as literal namespace names.
func NewNamespaceFilter(excluded []string) *NamespaceFilter {
	nf := &NamespaceFilter{
		excludedNames: make(map[string]bool),
	}

	for _, entry := range excluded {
		if strings.ContainsAny(entry, "*?[") {
			nf.excludedPatterns = append(nf.excludedPatterns, entry)
			continue
		}
		nf.excludedNames[entry] = true
	}

	return nf
}

// IsAllowed checks if a namespace passes the exclusion filter.
// Returns true if the namespace is neither an excluded name nor matched
// by an excluded pattern.
func (nf *NamespaceFilter) IsAllowed(namespace string) bool {
	if nf.excludedNames[namespace] {
		return false
	}

	for _, pattern := range nf.excludedPatterns {
		if matchesPattern(namespace, pattern) {
			return false
		}
	}

	return true
}

// matchesPattern checks if a namespace name matches the given pattern.
// Supports glob-style patterns: "app-*", "*-prod", "stage-?-db"
func matchesPattern(namespace, pattern string) bool {
	matched, err := filepath.Match(pattern, namespace)
	if err != nil {
		// Invalid pattern, no match
		return false
	}

	return matched
}

// ValidatePattern checks if a glob pattern is syntactically valid.
// Returns an error if the pattern cannot be compiled by filepath.Match.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("empty pattern")
	}

	// Use filepath.Match with a test string to validate pattern syntax
	_, err := filepath.Match(pattern, "test")
	if err != nil {
		return fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}

	return nil
}

// ParseNamespaceList parses a comma-separated list of namespace names or
// patterns, trimming whitespace and dropping empty entries.
// Input: "kube-system, kube-*" -> ["kube-system", "kube-*"]
func ParseNamespaceList(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}

	return result
}
