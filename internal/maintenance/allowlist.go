package maintenance

import (
	"sort"
	"strings"
)

// MergeAllowlists unions the statically configured baseline with
// operator-added entries, returning a sorted, deduplicated list. Entries are
// trimmed and blanks dropped.
func MergeAllowlists(baseline, override []string) []string {
	seen := make(map[string]struct{}, len(baseline)+len(override))
	merged := make([]string, 0, len(baseline)+len(override))

	for _, list := range [][]string{baseline, override} {
		for _, entry := range list {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			if _, ok := seen[entry]; ok {
				continue
			}
			seen[entry] = struct{}{}
			merged = append(merged, entry)
		}
	}

	sort.Strings(merged)
	return merged
}
