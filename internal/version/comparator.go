package version

import (
	"sort"
	"strings"
)

// Compare compares two versions and returns:
//
//	-1 if v1 < v2
//	 0 if v1 == v2
//	 1 if v1 > v2
//
// A nil version sorts before any parsed one. Semantic versions sort before
// date versions.
func Compare(v1, v2 *Version) int {
	if v1 == nil || v2 == nil {
		switch {
		case v1 == nil && v2 == nil:
			return 0
		case v1 == nil:
			return -1
		default:
			return 1
		}
	}

	if v1.Type != v2.Type {
		if v1.Type == TypeSemantic {
			return -1
		}
		return 1
	}

	if c := compareInt(v1.Major, v2.Major); c != 0 {
		return c
	}
	if c := compareInt(v1.Minor, v2.Minor); c != 0 {
		return c
	}
	if c := compareInt(v1.Patch, v2.Patch); c != 0 {
		return c
	}

	// 1.0.0-alpha < 1.0.0
	if v1.Prerelease != v2.Prerelease {
		if v1.Prerelease == "" {
			return 1
		}
		if v2.Prerelease == "" {
			return -1
		}
		return strings.Compare(v1.Prerelease, v2.Prerelease)
	}

	return compareInt(v1.BuildNumber, v2.BuildNumber)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// SortTags returns a copy of tags ordered oldest to newest. Tags without a
// version come first in name order. Equal versions keep name order.
func SortTags(tags []string) []string {
	type keyed struct {
		tag string
		v   *Version
	}

	items := make([]keyed, len(tags))
	for i, tag := range tags {
		items[i] = keyed{tag: tag, v: Parse(tag)}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if c := Compare(items[i].v, items[j].v); c != 0 {
			return c < 0
		}
		return items[i].tag < items[j].tag
	})

	sorted := make([]string, len(items))
	for i, item := range items {
		sorted[i] = item.tag
	}
	return sorted
}
