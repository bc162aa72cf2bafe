package registry

import (
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests to registries
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultConcurrency is the default number of parallel deletes in DeleteAllTags
	DefaultConcurrency = 4

	// DefaultScheme is used when the endpoint is given without one
	DefaultScheme = "https"

	// maxErrorBody caps how much of an error response is read
	maxErrorBody = 64 << 10
)

// Docker distribution media types.
const (
	MediaTypeDockerManifest     = "application/vnd.docker.distribution.manifest.v2+json"
	MediaTypeDockerManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
)

const headerContentDigest = "Docker-Content-Digest"

// manifestAccept is sent on manifest GETs so the registry answers with the
// same digest it expects on DELETE.
var manifestAccept = []string{
	MediaTypeDockerManifest,
	MediaTypeDockerManifestList,
	ocispec.MediaTypeImageManifest,
	ocispec.MediaTypeImageIndex,
}
