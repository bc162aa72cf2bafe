package registry

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies every failure that leaves the registry package.
type ErrorKind int

const (
	// TransportFailure covers network, DNS and timeout failures, plus
	// unexpected statuses on read operations.
	TransportFailure ErrorKind = iota + 1
	// RepositoryNotFound means the registry reported the repository as unknown.
	RepositoryNotFound
	// TagNotFound means the registry has no manifest for the tag.
	TagNotFound
	// DigestMissing means the registry served the manifest without a usable
	// Docker-Content-Digest header.
	DigestMissing
	// DeleteRejected means the registry answered a delete with anything but 202.
	DeleteRejected
	// CatalogUnavailable means the catalog could not be fetched at all.
	CatalogUnavailable
)

// Sentinel errors, one per kind. A *Error matches the sentinel of its kind
// under errors.Is.
var (
	ErrTransportFailure   = errors.New("transport failure")
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrTagNotFound        = errors.New("tag not found")
	ErrDigestMissing      = errors.New("digest missing")
	ErrDeleteRejected     = errors.New("delete rejected")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

var kindNames = map[ErrorKind]string{
	TransportFailure:   "TransportFailure",
	RepositoryNotFound: "RepositoryNotFound",
	TagNotFound:        "TagNotFound",
	DigestMissing:      "DigestMissing",
	DeleteRejected:     "DeleteRejected",
	CatalogUnavailable: "CatalogUnavailable",
}

var kindSentinels = map[ErrorKind]error{
	TransportFailure:   ErrTransportFailure,
	RepositoryNotFound: ErrRepositoryNotFound,
	TagNotFound:        ErrTagNotFound,
	DigestMissing:      ErrDigestMissing,
	DeleteRejected:     ErrDeleteRejected,
	CatalogUnavailable: ErrCatalogUnavailable,
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText lets reports and JSON output carry the kind by name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is the only error type returned by Client operations.
type Error struct {
	Kind       ErrorKind
	Op         string
	Repository string
	// Reference is the tag or digest the operation targeted, if any.
	Reference string
	// StatusCode is the HTTP status that caused the failure, 0 for transport errors.
	StatusCode int
	// Code is the first error code from the registry's error body (e.g. MANIFEST_UNKNOWN).
	Code string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Repository != "" {
		b.WriteString(" ")
		b.WriteString(e.Repository)
		if e.Reference != "" {
			if strings.Contains(e.Reference, ":") {
				b.WriteString("@")
			} else {
				b.WriteString(":")
			}
			b.WriteString(e.Reference)
		}
	}
	b.WriteString(": ")
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		b.WriteString(sentinel.Error())
	} else {
		b.WriteString("registry error")
	}
	if e.StatusCode != 0 {
		if e.Code != "" {
			fmt.Fprintf(&b, " (%d %s)", e.StatusCode, e.Code)
		} else {
			fmt.Fprintf(&b, " (%d)", e.StatusCode)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var regErr *Error
	if errors.As(err, &regErr) {
		return regErr.Kind
	}
	return 0
}
