package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/distribution/reference"
	"github.com/goware/urlx"
	"github.com/opencontainers/go-digest"
)

// Endpoint is a normalized registry base URL without a trailing slash.
type Endpoint string

// ParseEndpoint validates and normalizes a registry base URL.
// Examples:
//   - "registry.example.com" -> "https://registry.example.com"
//   - "http://localhost:5000/" -> "http://localhost:5000"
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("registry endpoint is empty")
	}

	u, err := urlx.ParseWithDefaultScheme(raw, DefaultScheme)
	if err != nil {
		return "", fmt.Errorf("invalid registry endpoint %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid registry endpoint %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid registry endpoint %q: missing host", raw)
	}
	if strings.Trim(u.Path, "/") != "" || u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("invalid registry endpoint %q: must be scheme://host[:port] only", raw)
	}

	normalized, err := urlx.Normalize(u)
	if err != nil {
		return "", fmt.Errorf("invalid registry endpoint %q: %w", raw, err)
	}

	return Endpoint(strings.TrimRight(normalized, "/")), nil
}

func (e Endpoint) String() string { return string(e) }

func (e Endpoint) catalogURL() string {
	return fmt.Sprintf("%s/v2/_catalog", e)
}

func (e Endpoint) tagsURL(repository string) string {
	return fmt.Sprintf("%s/v2/%s/tags/list", e, repository)
}

func (e Endpoint) manifestURL(repository, ref string) string {
	return fmt.Sprintf("%s/v2/%s/manifests/%s", e, repository, ref)
}

// validRepository reports whether name is a well-formed repository path.
// Malformed names are never sent to the registry.
func validRepository(name string) bool {
	if name == "" {
		return false
	}
	_, err := reference.WithName(name)
	return err == nil
}

// validTag reports whether tag matches the distribution tag grammar.
func validTag(repository, tag string) bool {
	named, err := reference.WithName(repository)
	if err != nil {
		return false
	}
	_, err = reference.WithTag(named, tag)
	return err == nil
}

// parseDigestHeader returns the digest from a response header value, or ""
// if it is absent or malformed.
func parseDigestHeader(value string) digest.Digest {
	if value == "" {
		return ""
	}
	dgst, err := digest.Parse(strings.TrimSpace(value))
	if err != nil {
		return ""
	}
	return dgst
}
