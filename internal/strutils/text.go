package strutils

import (
	"slices"
	"strings"
)

// CollapseWhitespace trims s and replaces every run of whitespace with a single space
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeList cleans up a set-like list of user input.
// Entries are whitespace-collapsed, empty entries dropped, case-insensitive duplicates removed
// (keeping the first spelling), and the result sorted case-insensitively.
func NormalizeList(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		value = CollapseWhitespace(value)
		if value == "" {
			continue
		}
		folded := strings.ToLower(value)
		if seen[folded] {
			continue
		}
		seen[folded] = true
		result = append(result, value)
	}

	slices.SortFunc(result, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return result
}

// SplitList splits a comma separated query parameter into a normalized list
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	return NormalizeList(strings.Split(raw, ","))
}
