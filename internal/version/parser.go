package version

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// Requires at least major.minor; "1243" alone is not a version.
	semverPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)(?:\.(\d+))?`)

	prereleaseIdentifiers = []string{"alpha", "beta", "rc", "dev", "pre", "preview", "canary"}

	buildNumberPattern = regexp.MustCompile(`(?:^|[-.])(?:ls|r|build)?(\d+)$`)

	// Checked before semver: 2024.01.15 also matches the semver pattern.
	datePatterns = []struct {
		pattern *regexp.Regexp
		format  string
	}{
		{regexp.MustCompile(`^(\d{4})\.(\d{1,2})\.(\d{1,2})`), "2006.1.2"},
		{regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`), "2006-1-2"},
		{regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})`), "20060102"},
	}
)

// Parse extracts a version from a tag. It returns nil for tags that carry
// no version, such as "latest" or a commit hash.
//
//   - "1.21.3-alpine" -> 1.21.3
//   - "v2.0.0-rc.1"   -> 2.0.0-rc.1
//   - "4.1-ls285"     -> 4.1.0, build 285
//   - "2024.01.15"    -> date 2024-01-15
func Parse(tag string) *Version {
	if v := parseDate(tag); v != nil {
		return v
	}
	return parseSemantic(tag)
}

func parseSemantic(tag string) *Version {
	matches := semverPattern.FindStringSubmatch(tag)
	if matches == nil {
		return nil
	}

	v := &Version{Original: tag, Type: TypeSemantic}
	v.Major, _ = strconv.Atoi(matches[1])
	v.Minor, _ = strconv.Atoi(matches[2])
	if matches[3] != "" {
		v.Patch, _ = strconv.Atoi(matches[3])
	}

	remainder := strings.TrimLeft(strings.TrimPrefix(tag, matches[0]), "-+.")
	if remainder == "" {
		return v
	}

	parts := strings.FieldsFunc(remainder, func(r rune) bool {
		return r == '-' || r == '.' || r == '+'
	})
	if len(parts) > 0 && isPrerelease(parts[0]) {
		end := len(parts[0])
		if len(parts) > 1 {
			if _, err := strconv.Atoi(parts[1]); err == nil {
				end = strings.Index(remainder, parts[1]) + len(parts[1])
			}
		}
		v.Prerelease = remainder[:end]
		remainder = strings.TrimLeft(remainder[end:], "-+.")
	}

	if m := buildNumberPattern.FindStringSubmatch(remainder); m != nil {
		v.BuildNumber, _ = strconv.Atoi(m[1])
	}
	return v
}

func isPrerelease(part string) bool {
	part = strings.ToLower(part)
	for _, id := range prereleaseIdentifiers {
		if strings.HasPrefix(part, id) {
			return true
		}
	}
	return false
}

func parseDate(tag string) *Version {
	for _, dp := range datePatterns {
		matches := dp.pattern.FindStringSubmatch(tag)
		if matches == nil {
			continue
		}
		t, err := time.Parse(dp.format, matches[0])
		if err != nil {
			continue
		}
		return &Version{
			Original: tag,
			Type:     TypeDate,
			Major:    t.Year(),
			Minor:    int(t.Month()),
			Patch:    t.Day(),
			Date:     &t,
		}
	}
	return nil
}
