package ids

import (
	"errors"
	"fmt"
	"strings"
)

// UniquePrefixLengths returns the shortest unique prefix length for each ID.
func UniquePrefixLengths(ids []string) map[string]int {
	uniqueIDs := make([]string, 0, len(ids))
	seen := make(map[string]bool)
	for _, id := range ids {
		idLower := strings.ToLower(id)
		if idLower == "" || seen[idLower] {
			continue
		}
		seen[idLower] = true
		uniqueIDs = append(uniqueIDs, idLower)
	}

	lengths := make(map[string]int, len(uniqueIDs))
	for _, id := range uniqueIDs {
		lengths[id] = uniquePrefixLength(id, uniqueIDs)
	}

	return lengths
}

func uniquePrefixLength(id string, ids []string) int {
	for length := 1; length <= len(id); length++ {
		prefix := id[:length]
		unique := true
		for _, other := range ids {
			if other == id {
				continue
			}
			if strings.HasPrefix(other, prefix) {
				unique = false
				break
			}
		}
		if unique {
			return length
		}
	}

	return len(id)
}

// ErrNoMatch is returned when no ID starts with a prefix.
var ErrNoMatch = errors.New("no matching ID")

// ErrAmbiguousPrefix is returned when a prefix matches more than one ID.
var ErrAmbiguousPrefix = errors.New("ambiguous ID prefix")

// Resolve returns the single ID that prefix identifies. An exact match wins
// over longer IDs sharing the prefix. Matching is case-insensitive.
func Resolve(ids []string, prefix string) (string, error) {
	needle := strings.ToLower(strings.TrimSpace(prefix))
	if needle == "" {
		return "", fmt.Errorf("%w: empty prefix", ErrNoMatch)
	}

	var matches []string
	for _, id := range ids {
		lower := strings.ToLower(id)
		if lower == needle {
			return id, nil
		}
		if strings.HasPrefix(lower, needle) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNoMatch, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousPrefix, prefix)
	}
}
