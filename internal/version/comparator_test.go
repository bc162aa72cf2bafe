package version

import (
	"reflect"
	"testing"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"equal", "1.2.3", "v1.2.3", 0},
		{"major", "1.9.9", "2.0.0", -1},
		{"minor", "1.10.0", "1.9.0", 1},
		{"patch", "1.0.1", "1.0.2", -1},
		{"prerelease before release", "1.0.0-rc.1", "1.0.0", -1},
		{"release after prerelease", "1.0.0", "1.0.0-alpha", 1},
		{"prerelease lexical", "1.0.0-alpha", "1.0.0-beta", -1},
		{"build number", "4.1-ls285", "4.1-ls286", -1},
		{"unversioned first", "latest", "0.0.1", -1},
		{"both unversioned", "latest", "edge", 0},
		{"semantic before date", "99.0.0", "2020.01.01", -1},
		{"dates", "2024.02.01", "2024.01.31", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(Parse(tt.a), Parse(tt.b)); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSortTags(t *testing.T) {
	tags := []string{"v1.10.0", "latest", "v1.2.0", "1.2.0-rc.1", "edge", "v1.9.3", "2024.01.15"}
	want := []string{"edge", "latest", "1.2.0-rc.1", "v1.2.0", "v1.9.3", "v1.10.0", "2024.01.15"}

	got := SortTags(tags)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortTags() = %v, want %v", got, want)
	}
	if tags[0] != "v1.10.0" {
		t.Error("SortTags modified its input")
	}
}

func TestSortTagsEqualVersionsByName(t *testing.T) {
	got := SortTags([]string{"v1.0.0", "1.0.0"})
	want := []string{"1.0.0", "v1.0.0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortTags() = %v, want %v", got, want)
	}
}

func TestSortTagsEmpty(t *testing.T) {
	if got := SortTags(nil); len(got) != 0 {
		t.Errorf("SortTags(nil) = %v, want empty", got)
	}
}
