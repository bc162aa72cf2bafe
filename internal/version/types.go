package version

import (
	"fmt"
	"time"
)

// Version is the ordering key parsed from an image tag.
type Version struct {
	Major       int
	Minor       int
	Patch       int
	Prerelease  string     // e.g. "alpha", "beta.1", "rc2"
	BuildNumber int        // e.g. 285 from "-ls285"
	Original    string     // tag the version was parsed from
	Type        string     // TypeSemantic or TypeDate
	Date        *time.Time // set for TypeDate
}

const (
	TypeSemantic = "semantic"
	TypeDate     = "date"
)

// String returns the normalized form of the version.
func (v Version) String() string {
	if v.Type == TypeDate && v.Date != nil {
		return v.Date.Format("2006.01.02")
	}

	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	return s
}
