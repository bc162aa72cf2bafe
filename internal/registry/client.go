package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/chis/regman/internal/logging"
)

const (
	opListRepositories = "list repositories"
	opListTags         = "list tags"
	opGetManifest      = "get manifest"
	opResolveDigest    = "resolve digest"
	opDeleteManifest   = "delete manifest"
)

// HTTPClient implements the Client interface using the Docker Registry V2 API.
// All fields are set at construction and only read afterwards, so one client
// may be shared by any number of goroutines.
type HTTPClient struct {
	endpoint    Endpoint
	httpClient  *http.Client
	concurrency int
	logger      *log.Logger
}

// Option customizes an HTTPClient at construction.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying HTTP client. The client is copied;
// its Timeout is filled from the config when unset.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc == nil {
			return
		}
		cp := *hc
		c.httpClient = &cp
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *log.Logger) Option {
	return func(c *HTTPClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewHTTPClient creates a new registry client bound to config.Endpoint.
func NewHTTPClient(config RegistryConfig, opts ...Option) (*HTTPClient, error) {
	endpoint, err := ParseEndpoint(config.Endpoint)
	if err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	c := &HTTPClient{
		endpoint:    endpoint,
		httpClient:  &http.Client{Timeout: timeout},
		concurrency: concurrency,
		logger:      logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Timeout <= 0 {
		c.httpClient.Timeout = timeout
	}
	c.logger = c.logger.With("registry", endpoint.String())

	return c, nil
}

// Endpoint returns the registry base URL the client talks to.
func (c *HTTPClient) Endpoint() Endpoint {
	return c.endpoint
}

// catalogResponse represents the JSON response from the /v2/_catalog endpoint.
type catalogResponse struct {
	Repositories []string `json:"repositories"`
}

// tagsResponse represents the JSON response from the /v2/.../tags/list endpoint.
type tagsResponse struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// ListRepositories returns every repository in the registry catalog.
// Any failure, including an unreachable endpoint, is CatalogUnavailable.
func (c *HTTPClient) ListRepositories(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, http.MethodGet, c.endpoint.catalogURL(), nil)
	if err != nil {
		return nil, transportError(CatalogUnavailable, opListRepositories, "", "", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(CatalogUnavailable, opListRepositories, "", "", resp)
	}

	var catalog catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return nil, transportError(CatalogUnavailable, opListRepositories, "", "",
			fmt.Errorf("failed to decode response: %w", err))
	}

	if catalog.Repositories == nil {
		return []string{}, nil
	}
	return catalog.Repositories, nil
}

// ListTags returns all tags of a repository. An existing repository without
// tags yields an empty slice.
func (c *HTTPClient) ListTags(ctx context.Context, repository string) ([]string, error) {
	if !validRepository(repository) {
		return nil, &Error{Kind: RepositoryNotFound, Op: opListTags, Repository: repository,
			Err: errors.New("invalid repository name")}
	}

	resp, err := c.do(ctx, http.MethodGet, c.endpoint.tagsURL(repository), nil)
	if err != nil {
		return nil, transportError(TransportFailure, opListTags, repository, "", err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, statusError(RepositoryNotFound, opListTags, repository, "", resp)
	default:
		return nil, statusError(TransportFailure, opListTags, repository, "", resp)
	}

	var tagsResp tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return nil, transportError(TransportFailure, opListTags, repository, "",
			fmt.Errorf("failed to decode response: %w", err))
	}

	if tagsResp.Tags == nil {
		return []string{}, nil
	}
	return tagsResp.Tags, nil
}

// GetManifest returns the manifest a tag points to. The body is returned
// as served; its schema is not checked. The reference must be a tag: a
// digest fails name validation and yields TagNotFound.
func (c *HTTPClient) GetManifest(ctx context.Context, repository, tag string) (*Manifest, error) {
	resp, err := c.fetchManifest(ctx, opGetManifest, repository, tag)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(TransportFailure, opGetManifest, repository, tag,
			fmt.Errorf("failed to read manifest: %w", err))
	}

	return &Manifest{
		Repository: repository,
		Reference:  tag,
		MediaType:  resp.Header.Get("Content-Type"),
		Digest:     parseDigestHeader(resp.Header.Get(headerContentDigest)),
		Body:       json.RawMessage(body),
	}, nil
}

// ResolveDigest requests the tag's manifest and returns the content digest
// from the response headers. A registry that omits the header (or sends a
// malformed one) yields DigestMissing.
func (c *HTTPClient) ResolveDigest(ctx context.Context, repository, tag string) (digest.Digest, error) {
	resp, err := c.fetchManifest(ctx, opResolveDigest, repository, tag)
	if err != nil {
		return "", err
	}
	defer drain(resp)

	dgst := parseDigestHeader(resp.Header.Get(headerContentDigest))
	if dgst == "" {
		return "", &Error{Kind: DigestMissing, Op: opResolveDigest, Repository: repository, Reference: tag,
			Err: fmt.Errorf("registry did not return a valid %s header", headerContentDigest)}
	}
	return dgst, nil
}

// DeleteByTag deletes the content a tag currently points to. The tag is
// resolved first and the resulting digest deleted second; if the tag moves in
// between, the content it pointed to at resolution time is deleted.
func (c *HTTPClient) DeleteByTag(ctx context.Context, repository, tag string) (bool, error) {
	result := c.DeleteTag(ctx, repository, tag)
	return result.Deleted, result.Err
}

// DeleteTag is DeleteByTag returning the full outcome, including the digest
// the tag resolved to. Digest is empty only when resolution failed.
func (c *HTTPClient) DeleteTag(ctx context.Context, repository, tag string) TagResult {
	return c.deleteTag(ctx, repository, tag)
}

// DeleteByDigest deletes a manifest by digest. Only 202 Accepted counts as
// success; every other status is DeleteRejected.
func (c *HTTPClient) DeleteByDigest(ctx context.Context, repository string, dgst digest.Digest) (bool, error) {
	ref := dgst.String()
	if !validRepository(repository) {
		return false, &Error{Kind: DeleteRejected, Op: opDeleteManifest, Repository: repository, Reference: ref,
			Err: errors.New("invalid repository name")}
	}
	if err := dgst.Validate(); err != nil {
		return false, &Error{Kind: DeleteRejected, Op: opDeleteManifest, Repository: repository, Reference: ref,
			Err: fmt.Errorf("invalid digest: %w", err)}
	}

	resp, err := c.do(ctx, http.MethodDelete, c.endpoint.manifestURL(repository, ref), nil)
	if err != nil {
		return false, transportError(TransportFailure, opDeleteManifest, repository, ref, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusAccepted {
		return false, statusError(DeleteRejected, opDeleteManifest, repository, ref, resp)
	}

	c.logger.Info("deleted manifest", "repo", repository, "digest", ref)
	return true, nil
}

// DeleteAllTags lists the repository's tags and runs DeleteByTag for each,
// at most Concurrency at a time. Per-tag failures are recorded in the report;
// only a failed listing fails the call. Results keep the listing order.
func (c *HTTPClient) DeleteAllTags(ctx context.Context, repository string) (*DeletionReport, error) {
	tags, err := c.ListTags(ctx, repository)
	if err != nil {
		return nil, err
	}

	report := &DeletionReport{
		Repository: repository,
		Results:    make([]TagResult, len(tags)),
	}

	// Each goroutine owns exactly one slot of report.Results.
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, tag := range tags {
		i, tag := i, tag
		g.Go(func() error {
			report.Results[i] = c.deleteTag(ctx, repository, tag)
			return nil
		})
	}
	_ = g.Wait()

	c.logger.Info("bulk delete finished", "repo", repository,
		"tags", len(tags), "deleted", report.Succeeded(), "failed", len(tags)-report.Succeeded())
	return report, nil
}

// deleteTag is the resolve-then-delete sequence shared by DeleteByTag and
// DeleteAllTags.
func (c *HTTPClient) deleteTag(ctx context.Context, repository, tag string) TagResult {
	result := TagResult{Tag: tag}

	dgst, err := c.ResolveDigest(ctx, repository, tag)
	if err == nil {
		result.Digest = dgst
		c.logger.Debug("resolved tag", "repo", repository, "tag", tag, "digest", dgst)
		result.Deleted, err = c.DeleteByDigest(ctx, repository, dgst)
	}

	if err != nil {
		result.Err = err
		result.Kind = KindOf(err)
		result.Message = err.Error()
	}
	return result
}

// fetchManifest issues the manifest GET and classifies non-200 responses.
// On success the caller owns the response body.
func (c *HTTPClient) fetchManifest(ctx context.Context, op, repository, tag string) (*http.Response, error) {
	if !validTag(repository, tag) {
		return nil, &Error{Kind: TagNotFound, Op: op, Repository: repository, Reference: tag,
			Err: errors.New("invalid repository or tag name")}
	}

	resp, err := c.do(ctx, http.MethodGet, c.endpoint.manifestURL(repository, tag), manifestAccept)
	if err != nil {
		return nil, transportError(TransportFailure, op, repository, tag, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusNotFound:
		defer drain(resp)
		return nil, statusError(TagNotFound, op, repository, tag, resp)
	default:
		defer drain(resp)
		return nil, statusError(TransportFailure, op, repository, tag, resp)
	}
}

// do sends one request. Errors returned are transport-level only.
func (c *HTTPClient) do(ctx context.Context, method, url string, accept []string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for _, mediaType := range accept {
		req.Header.Add("Accept", mediaType)
	}

	logger := logging.Annotate(ctx, c.logger)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug("registry request failed", "method", method, "url", url, "err", err)
		return nil, err
	}

	logger.Debug("registry request", "method", method, "url", url,
		"status", resp.StatusCode, "elapsed", time.Since(start))
	return resp, nil
}
