package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/opencontainers/go-digest"
)

// Client defines the registry operations the presentation layer may call.
// Each call is an independent request/response exchange.
type Client interface {
	// ListRepositories returns the repository names in the catalog.
	ListRepositories(ctx context.Context) ([]string, error)

	// ListTags returns the tags currently listed for a repository.
	ListTags(ctx context.Context, repository string) ([]string, error)

	// GetManifest returns the manifest a tag points to, verbatim.
	GetManifest(ctx context.Context, repository, tag string) (*Manifest, error)

	// ResolveDigest returns the content digest a tag currently points to.
	ResolveDigest(ctx context.Context, repository, tag string) (digest.Digest, error)

	// DeleteByTag resolves a tag to its digest and deletes that digest.
	DeleteByTag(ctx context.Context, repository, tag string) (bool, error)

	// DeleteTag is DeleteByTag reporting the resolved digest with the outcome.
	DeleteTag(ctx context.Context, repository, tag string) TagResult

	// DeleteByDigest deletes a manifest by its content digest.
	DeleteByDigest(ctx context.Context, repository string, dgst digest.Digest) (bool, error)

	// DeleteAllTags deletes every tag of a repository and reports each outcome.
	DeleteAllTags(ctx context.Context, repository string) (*DeletionReport, error)
}

// RegistryConfig contains configuration for registry access.
// It is copied into the client at construction and never changes afterwards.
type RegistryConfig struct {
	// Endpoint is the registry base URL (scheme://host[:port]); a bare host
	// defaults to https.
	Endpoint string

	// Timeout bounds every single HTTP exchange.
	Timeout time.Duration

	// Concurrency bounds the number of tags DeleteAllTags deletes at once.
	Concurrency int
}

// Manifest is a manifest document as served by the registry.
type Manifest struct {
	Repository string `json:"repository"`
	Reference  string `json:"reference"`

	// MediaType is the response Content-Type.
	MediaType string `json:"media_type,omitempty"`

	// Digest is taken from the Docker-Content-Digest header; empty if absent.
	Digest digest.Digest `json:"digest,omitempty"`

	// Body is the raw document, never parsed by the client.
	Body json.RawMessage `json:"body"`
}

// TagResult is the outcome of deleting one tag during a bulk delete.
type TagResult struct {
	Tag     string        `json:"tag"`
	Digest  digest.Digest `json:"digest,omitempty"`
	Deleted bool          `json:"deleted"`
	Kind    ErrorKind     `json:"error_kind,omitempty"`
	Message string        `json:"error,omitempty"`
	Err     error         `json:"-"`
}

// DeletionReport lists one TagResult per tag attempted, in listing order.
type DeletionReport struct {
	Repository string      `json:"repository"`
	Results    []TagResult `json:"results"`
}

// Succeeded returns the number of tags that were deleted.
func (r *DeletionReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Deleted {
			n++
		}
	}
	return n
}

// Failed returns the results of tags that were not deleted.
func (r *DeletionReport) Failed() []TagResult {
	var failed []TagResult
	for _, res := range r.Results {
		if !res.Deleted {
			failed = append(failed, res)
		}
	}
	return failed
}
