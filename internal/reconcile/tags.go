package reconcile

import (
	"sort"
	"strings"
)

// CommonSegments counts the dash-separated segments across all workload
// names and keeps those occurring in more than rank names. Shared
// segments like team or pipeline prefixes become tags on the checks so
// the remote dashboard can be filtered the same way the jobs are named.
// The segment "job" is noise and always excluded.
func CommonSegments(names []string, rank int) map[string]int {
	counts := make(map[string]int)
	for _, name := range names {
		for _, segment := range strings.Split(name, "-") {
			counts[segment]++
		}
	}

	delete(counts, "job")
	for segment, count := range counts {
		if count <= rank {
			delete(counts, segment)
		}
	}
	return counts
}

// TagsFor returns the common segments present in name, sorted for a
// stable tag string.
func TagsFor(name string, common map[string]int) []string {
	var tags []string
	used := make(map[string]bool)
	for _, segment := range strings.Split(name, "-") {
		if _, ok := common[segment]; ok && !used[segment] {
			tags = append(tags, segment)
			used[segment] = true
		}
	}
	sort.Strings(tags)
	return tags
}
